package services

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"classreminder/internal/models"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Transport delivers one outbox row to its recipient
type Transport interface {
	Deliver(ctx context.Context, msg models.OutboundMail) error
}

// EmailService sends outbox rows through SendGrid
type EmailService struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

// NewEmailService creates a SendGrid-backed transport
func NewEmailService(apiKey, fromEmail, fromName string) *EmailService {
	return &EmailService{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

// Deliver sends msg as a single email with plain text and HTML parts
func (s *EmailService) Deliver(ctx context.Context, msg models.OutboundMail) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.RecipientName, msg.Recipient)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.TextBody, msg.HTMLBody)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send to %s: %w", msg.Recipient, err)
	}
	if response.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("failed to send email to %s: %d %s", msg.Recipient, response.StatusCode, response.Body)
	}
	return nil
}

// LogTransport writes outbox rows to a logger instead of sending them
type LogTransport struct {
	logger *log.Logger
}

// NewLogTransport creates a transport for local development
func NewLogTransport(logger *log.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

// Deliver logs the message headers and text body
func (t *LogTransport) Deliver(_ context.Context, msg models.OutboundMail) error {
	t.logger.Printf("mail to=%q <%s> subject=%q\n%s", msg.RecipientName, msg.Recipient, msg.Subject, msg.TextBody)
	return nil
}
