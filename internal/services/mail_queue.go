package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"classreminder/internal/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Channel selects how the relay delivers a queued message
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelLog   Channel = "log"
)

// Receipt acknowledges that the queue accepted a message
type Receipt struct {
	ID         string    `json:"id"`
	Channel    Channel   `json:"channel"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// MailQueue accepts rendered reminders for asynchronous delivery
type MailQueue interface {
	Enqueue(ctx context.Context, msg ReminderMessage, channel Channel) (Receipt, error)
}

// OutboxQueue persists messages to the outbound_mail table. The MailRelay
// delivers them later, so Enqueue never waits on the mail provider.
type OutboxQueue struct {
	db  *gorm.DB
	now func() time.Time
}

// NewOutboxQueue creates an OutboxQueue backed by db
func NewOutboxQueue(db *gorm.DB) *OutboxQueue {
	return &OutboxQueue{db: db, now: time.Now}
}

// Enqueue stores msg as a pending outbox row
func (q *OutboxQueue) Enqueue(ctx context.Context, msg ReminderMessage, channel Channel) (Receipt, error) {
	if msg.RecipientEmail == "" {
		return Receipt{}, &DeliveryError{Recipient: "<none>", Err: errors.New("message has no recipient")}
	}
	if channel == "" {
		return Receipt{}, &DeliveryError{Recipient: msg.RecipientEmail, Err: errors.New("no delivery channel selected")}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return Receipt{}, &DeliveryError{Recipient: msg.RecipientEmail, Err: fmt.Errorf("encode payload: %w", err)}
	}

	now := q.now().UTC()
	row := models.OutboundMail{
		ID:            uuid.NewString(),
		Channel:       string(channel),
		Recipient:     msg.RecipientEmail,
		RecipientName: msg.RecipientName,
		Subject:       msg.Subject,
		TextBody:      msg.TextBody,
		HTMLBody:      msg.HTMLBody,
		Payload:       datatypes.JSON(payload),
		Status:        models.MailPending,
		CreatedAt:     now,
	}
	if err := q.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Receipt{}, &DeliveryError{Recipient: msg.RecipientEmail, Err: err}
	}
	return Receipt{ID: row.ID, Channel: channel, AcceptedAt: now}, nil
}
