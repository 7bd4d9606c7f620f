package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tripflow/platform/pkg/common/config"
	"github.com/tripflow/platform/pkg/common/kafka"
	"github.com/tripflow/platform/pkg/common/logger"
	"github.com/tripflow/platform/pkg/common/models"
	"github.com/tripflow/platform/pkg/delivery"
)

// The notifier is the one consumer of lifecycle events: it tells
// administrators about new registrations and submissions. The core services
// only publish; they never address admins directly.
func main() {
	logger.Init()
	cfg := config.Load()

	consumer := kafka.NewConsumer(cfg.LifecycleTopic, cfg.NotifierGroupID)
	defer consumer.Close()

	var deliverers []*delivery.EmailDeliverer
	for _, adminEmail := range cfg.NotifierAdminEmails {
		deliverers = append(deliverers, delivery.NewEmailDeliverer(
			cfg.SMTPHost, cfg.SMTPPort,
			cfg.SMTPUser, cfg.SMTPPassword,
			cfg.SMTPFrom, adminEmail,
		))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		err := consumer.Consume(ctx, func(ctx context.Context, event models.Event) error {
			subject, body, notify := describe(event)
			logger.Log.WithFields(map[string]interface{}{
				"event_id":   event.ID,
				"event_type": event.Type,
				"source":     event.Source,
			}).Info("lifecycle event received")

			if !notify {
				return nil
			}
			for _, d := range deliverers {
				if err := d.Deliver(ctx, "", subject, body); err != nil {
					logger.Log.WithError(err).Warn("admin notification not delivered")
				}
			}
			return nil
		})
		if err != nil && err != context.Canceled {
			logger.Log.WithError(err).Error("consumer stopped")
		}
	}()

	logger.Log.Info("Notifier Service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Notifier Service...")
	cancel()
	logger.Log.Info("Notifier Service stopped")
}

// describe maps an event to an admin-facing message. Events admins don't care
// about report notify=false.
func describe(event models.Event) (subject, body string, notify bool) {
	switch event.Type {
	case models.EventUserRegistered:
		return "New user awaiting approval",
			fmt.Sprintf("User %v (@%v) registered and waits for an access decision.",
				event.Data["external_id"], event.Data["username"]),
			true
	case models.EventTripSubmitted:
		return "New trip request submitted",
			fmt.Sprintf("Trip request #%v: %v, %v (%v participants). Rendered: %v, delivered: %v.",
				event.Data["record_id"], event.Data["city"], event.Data["country"],
				event.Data["participants"], event.Data["rendered"], event.Data["delivered"]),
			true
	case models.EventServiceStarted, models.EventServiceStopped:
		return "Service lifecycle: " + event.Type,
			fmt.Sprintf("%s reported %s.", event.Source, event.Type),
			true
	}
	return "", "", false
}
