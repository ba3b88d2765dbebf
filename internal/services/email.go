package services

import (
	"context"
	"fmt"
	"log/slog"

	"eventcheckin/internal/adapters/email"
	"eventcheckin/internal/domain"
)

type emailService struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
	logger   *slog.Logger
}

// NewEmailService returns an EmailService that uses the given Mailer and template renderer.
func NewEmailService(mailer domain.Mailer, renderer domain.EmailTemplateRenderer, logger *slog.Logger) domain.EmailService {
	return &emailService{mailer: mailer, renderer: renderer, logger: logger}
}

// SendRegistrationApproved sends the approval email with the attendee's QR ticket.
func (s *emailService) SendRegistrationApproved(ctx context.Context, data *domain.RegistrationApprovedEmailData) error {
	if data == nil {
		return fmt.Errorf("registration approved email data is nil")
	}
	subject, htmlBody, textBody, err := s.renderer.Render(email.TemplateRegistrationApproved, data)
	if err != nil {
		return fmt.Errorf("failed to render %s template: %w", email.TemplateRegistrationApproved, err)
	}
	if err := s.mailer.Send(ctx, data.Email, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("failed to send registration approved email: %w", err)
	}
	s.logger.InfoContext(ctx, "registration approved email sent", "to", data.Email)
	return nil
}
