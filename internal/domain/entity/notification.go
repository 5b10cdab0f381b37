package entity

// NotificationChannel is the out-of-band transport of a notification.
type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
	ChannelSMS   NotificationChannel = "sms"
)

// NotificationTemplate names a message body.
type NotificationTemplate string

const (
	TemplatePinCode            NotificationTemplate = "pin_code"
	TemplateWelcome            NotificationTemplate = "welcome"
	TemplateEmailConfirmation  NotificationTemplate = "email_confirmation"
	TemplatePasswordReset      NotificationTemplate = "password_reset"
	TemplateReservationStarted NotificationTemplate = "reservation_started"
	TemplateReservationEnded   NotificationTemplate = "reservation_ended"
)

// Notification is a message to deliver to one recipient.
type Notification struct {
	Channel   NotificationChannel  `json:"channel"`
	Recipient string               `json:"recipient"`
	Template  NotificationTemplate `json:"template"`
	Params    map[string]string    `json:"params,omitempty"`
}
