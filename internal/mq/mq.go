package mq

import (
	"context"
	"fmt"
	"strings"

	"github.com/campushub/apiserver/config"
)

// Message is a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// New selects a broker backend from config ("rabbitmq" or "pubsub").
func New(ctx context.Context, cfg config.Config) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Mail.MQ)) {
	case "", "rabbitmq":
		return NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		return NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Mail.MQ)
	}
}
