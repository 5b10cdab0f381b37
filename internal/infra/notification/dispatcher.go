package notification

import (
	"context"
	"log/slog"
	"time"

	"parkshare/internal/domain/entity"
	"parkshare/internal/infra/metrics"

	"github.com/pkg/errors"
)

// Dispatcher renders notifications and hands them to the sender of their channel.
// It is the final delivery step for both the API process and the worker.
type Dispatcher struct {
	email  EmailSender
	sms    SMSSender
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(email EmailSender, sms SMSSender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{email: email, sms: sms, logger: logger}
}

// Send renders and delivers the notification synchronously.
func (d *Dispatcher) Send(ctx context.Context, n *entity.Notification) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveNotification(string(n.Channel), string(n.Template), err, time.Since(start))
	}()

	msg, err := Render(n)
	if err != nil {
		return err
	}

	switch n.Channel {
	case entity.ChannelEmail:
		err = d.email.SendEmail(ctx, n.Recipient, msg)
	case entity.ChannelSMS:
		err = d.sms.SendSMS(ctx, n.Recipient, msg.Body)
	default:
		err = errors.Errorf("unknown notification channel %q", n.Channel)
	}
	if err != nil {
		return err
	}

	d.logger.DebugContext(ctx, "Notification delivered",
		slog.String("channel", string(n.Channel)),
		slog.String("template", string(n.Template)),
	)

	return nil
}
