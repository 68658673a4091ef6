package models

import (
	"time"

	"gorm.io/datatypes"
)

// MailStatus is the delivery state of an outbox row
type MailStatus string

const (
	MailPending MailStatus = "pending"
	MailSent    MailStatus = "sent"
	MailFailed  MailStatus = "failed"
)

// OutboundMail is a message accepted by the mail queue and waiting for the relay
type OutboundMail struct {
	ID            string         `gorm:"primaryKey;size:36" json:"id"`
	Channel       string         `gorm:"size:20;not null" json:"channel"`
	Recipient     string         `gorm:"size:255;not null" json:"recipient"`
	RecipientName string         `gorm:"size:255" json:"recipient_name"`
	Subject       string         `gorm:"size:255;not null" json:"subject"`
	TextBody      string         `gorm:"type:text" json:"text_body"`
	HTMLBody      string         `gorm:"type:text" json:"html_body"`
	Payload       datatypes.JSON `json:"payload"`
	Status        MailStatus     `gorm:"size:10;not null;index:idx_outbound_status_created" json:"status"`
	Attempts      int            `gorm:"not null;default:0" json:"attempts"`
	LastError     string         `gorm:"size:1000" json:"last_error,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;index:idx_outbound_status_created" json:"created_at"`
	SentAt        *time.Time     `json:"sent_at,omitempty"`
}
