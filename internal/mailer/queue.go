package mailer

import (
	"context"
	"encoding/json"
)

// Job is the wire format of a queued outbound mail.
type Job struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// PublishFunc publishes raw bytes to a named channel. It matches the
// message-queue backend's Publish signature without importing it, so the
// mailer stays broker-agnostic.
type PublishFunc func(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)

// QueueMailer hands mail off to the message queue. The mailworker command
// consumes the queue and performs the actual SMTP delivery.
type QueueMailer struct {
	queue   string
	publish PublishFunc
}

func NewQueueMailer(queue string, publish PublishFunc) *QueueMailer {
	return &QueueMailer{queue: queue, publish: publish}
}

func (m *QueueMailer) Send(ctx context.Context, to, subject, body string) error {
	data, err := json.Marshal(Job{To: to, Subject: subject, Body: body})
	if err != nil {
		return err
	}
	_, err = m.publish(ctx, m.queue, data, map[string]string{"kind": "mail"})
	return err
}

// DecodeJob parses a queued mail job.
func DecodeJob(data []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return Job{}, err
	}
	return job, nil
}
