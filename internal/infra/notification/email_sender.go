package notification

import (
	"context"

	"parkshare/config"

	"github.com/pkg/errors"
	"github.com/wneessen/go-mail"
)

// EmailSender delivers a rendered message to one address.
type EmailSender interface {
	SendEmail(ctx context.Context, to string, msg Message) error
}

type smtpSender struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewSMTPSender creates an EmailSender backed by an SMTP relay.
func NewSMTPSender(cfg *config.Config) EmailSender {
	smtp := cfg.Notification.SMTP

	return &smtpSender{
		host:     smtp.Host,
		port:     smtp.Port,
		username: smtp.Username,
		password: smtp.Password,
		from:     smtp.From,
	}
}

// SendEmail sends a plain-text email.
func (s *smtpSender) SendEmail(ctx context.Context, to string, msg Message) error {
	if s.host == "" {
		return errors.New("smtp host is not configured")
	}

	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return errors.Wrap(err, "invalid sender address")
	}
	if err := m.To(to); err != nil {
		return errors.Wrap(err, "invalid recipient address")
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	opts := []mail.Option{
		mail.WithPort(s.port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.username),
			mail.WithPassword(s.password),
		)
	}

	client, err := mail.NewClient(s.host, opts...)
	if err != nil {
		return errors.Wrap(err, "failed to create smtp client")
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return errors.Wrap(err, "failed to send email")
	}

	return nil
}
