package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/tripflow/platform/pkg/common/logger"
	"gopkg.in/gomail.v2"
)

var ErrNotConfigured = errors.New("smtp delivery not configured")

// EmailDeliverer sends the finalize notification over SMTP, with the rendered
// artifact attached when rendering succeeded.
type EmailDeliverer struct {
	host      string
	port      int
	user      string
	password  string
	from      string
	recipient string
}

func NewEmailDeliverer(host string, port int, user, password, from, recipient string) *EmailDeliverer {
	if from == "" {
		from = user
	}
	return &EmailDeliverer{
		host:      host,
		port:      port,
		user:      user,
		password:  password,
		from:      from,
		recipient: recipient,
	}
}

func (d *EmailDeliverer) Deliver(ctx context.Context, attachmentPath, subject, body string) error {
	if d.host == "" || d.recipient == "" {
		return ErrNotConfigured
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", d.from)
	msg.SetHeader("To", d.recipient)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	if attachmentPath != "" {
		msg.Attach(attachmentPath)
	}

	dialer := gomail.NewDialer(d.host, d.port, d.user, d.password)

	// gomail has no context support; honor cancellation before dialing.
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	logger.Log.WithField("recipient", d.recipient).Info("trip request delivered by email")
	return nil
}
