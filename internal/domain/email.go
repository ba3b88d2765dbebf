package domain

import (
	"context"
	"time"
)

// Mailer defines the contract for sending emails (infrastructure port).
type Mailer interface {
	Send(ctx context.Context, to, subject, html, text string) error
}

// EmailTemplateRenderer renders email content from a named template with the given data.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// RegistrationApprovedEmailData holds data for the approval email.
type RegistrationApprovedEmailData struct {
	Email            string
	FullName         string
	EventTitle       string
	EventDescription string
	EventLocation    string
	StartDate        time.Time
	EndDate          time.Time
	QRCode           string
}

// EmailService defines the contract for sending domain-level emails.
type EmailService interface {
	SendRegistrationApproved(ctx context.Context, data *RegistrationApprovedEmailData) error
}

// ApprovalNotification asks the notification worker to email an approved attendee.
type ApprovalNotification struct {
	RegistrationID string `json:"registration_id"`
	EventID        string `json:"event_id"`
}

// NotificationQueue accepts notifications for asynchronous delivery.
type NotificationQueue interface {
	EnqueueApproval(ctx context.Context, n ApprovalNotification) error
}
