/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/campushub/apiserver/config"
	"github.com/campushub/apiserver/internal/mailer"
	"github.com/campushub/apiserver/internal/mq"
	"github.com/spf13/cobra"
)

// mailworkerCmd consumes the outbound-mail queue and delivers over SMTP.
// Failed deliveries are nacked and redelivered by the broker.
var mailworkerCmd = &cobra.Command{
	Use:   "mailworker",
	Short: "Deliver queued outbound mail",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		broker, err := mq.New(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("connect broker failed: %w", err)
		}
		defer broker.Close()

		smtpMailer := mailer.NewSMTPMailer(cfg.Mail)

		log.Printf("mailworker consuming %q", cfg.Mail.Queue)
		return broker.Subscribe(cmd.Context(), cfg.Mail.Queue, func(ctx context.Context, msg mq.Message) error {
			job, err := mailer.DecodeJob(msg.Data)
			if err != nil {
				// Drop malformed jobs instead of redelivering them forever.
				log.Printf("dropping malformed mail job %s: %v", msg.ID, err)
				return nil
			}
			if err := smtpMailer.Send(ctx, job.To, job.Subject, job.Body); err != nil {
				log.Printf("delivery to %s failed: %v", job.To, err)
				return err
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(mailworkerCmd)
}
