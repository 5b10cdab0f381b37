// Package notification renders and delivers email and SMS notifications.
package notification

import (
	"bytes"
	"text/template"

	"parkshare/internal/domain/entity"

	"github.com/pkg/errors"
)

// Message is a rendered notification.
type Message struct {
	Subject string
	Body    string
}

type messageTemplate struct {
	subject *template.Template
	body    *template.Template
}

var templates = map[entity.NotificationTemplate]messageTemplate{
	entity.TemplatePinCode: mustTemplate(
		"ParkShare verification code",
		"Your ParkShare verification code is {{.pin}}. It expires in {{.ttl}}.",
	),
	entity.TemplateWelcome: mustTemplate(
		"Welcome to ParkShare",
		"Hello {{.username}},\n\nYour ParkShare account is confirmed. Happy parking!",
	),
	entity.TemplateEmailConfirmation: mustTemplate(
		"Confirm your email address",
		"Hello {{.username}},\n\nConfirm your email address by opening this link within {{.ttl}}:\n{{.link}}",
	),
	entity.TemplatePasswordReset: mustTemplate(
		"Reset your password",
		"Hello {{.username}},\n\nReset your password by opening this link within {{.ttl}}:\n{{.link}}\n\nIgnore this message if you did not ask for it.",
	),
	entity.TemplateReservationStarted: mustTemplate(
		"Your parking {{.parking}} is reserved",
		"Hello {{.username}},\n\nYour parking \"{{.parking}}\" was reserved at {{.started_at}}.",
	),
	entity.TemplateReservationEnded: mustTemplate(
		"Reservation ended on {{.parking}}",
		"Hello {{.username}},\n\nThe reservation of \"{{.parking}}\" ended at {{.ended_at}} after {{.duration}}. Amount due: {{.amount}}.",
	),
}

func mustTemplate(subject, body string) messageTemplate {
	return messageTemplate{
		subject: template.Must(template.New("subject").Option("missingkey=zero").Parse(subject)),
		body:    template.Must(template.New("body").Option("missingkey=zero").Parse(body)),
	}
}

// Render fills the template of the notification with its params.
func Render(n *entity.Notification) (Message, error) {
	tmpl, ok := templates[n.Template]
	if !ok {
		return Message{}, errors.Errorf("unknown notification template %q", n.Template)
	}

	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, n.Params); err != nil {
		return Message{}, errors.Wrap(err, "failed to render subject")
	}
	if err := tmpl.body.Execute(&body, n.Params); err != nil {
		return Message{}, errors.Wrap(err, "failed to render body")
	}

	return Message{Subject: subject.String(), Body: body.String()}, nil
}
