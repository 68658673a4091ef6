package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"classreminder/internal/models"

	"gorm.io/gorm"
)

// maxLastErrorLen is the size of the last_error column
const maxLastErrorLen = 1000

// RelayConfig tunes the outbox relay
type RelayConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

// MailRelay drains pending outbox rows into their channel's transport
type MailRelay struct {
	db         *gorm.DB
	transports map[Channel]Transport
	cfg        RelayConfig
	logger     *log.Logger
	metrics    *Metrics
	now        func() time.Time
	done       chan struct{}
}

// NewMailRelay creates a relay. Missing config values fall back to defaults.
func NewMailRelay(db *gorm.DB, transports map[Channel]Transport, cfg RelayConfig, logger *log.Logger, metrics *Metrics) *MailRelay {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &MailRelay{
		db:         db,
		transports: transports,
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Start polls the outbox until ctx is cancelled
func (r *MailRelay) Start(ctx context.Context) {
	r.done = make(chan struct{})
	go r.run(ctx)
}

// Wait blocks until a started relay has stopped
func (r *MailRelay) Wait() {
	if r.done != nil {
		<-r.done
	}
}

func (r *MailRelay) run(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := r.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Printf("Failed to drain outbox: %v", err)
			}
		}
	}
}

// Drain delivers one batch of pending rows, oldest first
func (r *MailRelay) Drain(ctx context.Context) (sent, failed int, err error) {
	var pending []models.OutboundMail
	err = r.db.WithContext(ctx).
		Where("status = ?", models.MailPending).
		Order("created_at").
		Limit(r.cfg.BatchSize).
		Find(&pending).Error
	if err != nil {
		return 0, 0, fmt.Errorf("load pending mail: %w", err)
	}

	for _, msg := range pending {
		if err := ctx.Err(); err != nil {
			return sent, failed, err
		}
		if deliverErr := r.deliver(ctx, msg); deliverErr != nil {
			failed++
			if err := r.markFailed(ctx, msg, deliverErr); err != nil {
				return sent, failed, err
			}
			continue
		}
		sent++
		if err := r.markSent(ctx, msg); err != nil {
			return sent, failed, err
		}
	}
	return sent, failed, nil
}

func (r *MailRelay) deliver(ctx context.Context, msg models.OutboundMail) error {
	transport, ok := r.transports[Channel(msg.Channel)]
	if !ok {
		return fmt.Errorf("no transport for channel %q", msg.Channel)
	}
	return transport.Deliver(ctx, msg)
}

func (r *MailRelay) markSent(ctx context.Context, msg models.OutboundMail) error {
	now := r.now().UTC()
	err := r.db.WithContext(ctx).Model(&models.OutboundMail{}).
		Where("id = ?", msg.ID).
		Updates(map[string]any{
			"status":   models.MailSent,
			"attempts": msg.Attempts + 1,
			"sent_at":  now,
		}).Error
	if err != nil {
		return fmt.Errorf("mark mail %s sent: %w", msg.ID, err)
	}
	r.metrics.observeRelay(msg.Channel, string(models.MailSent))
	return nil
}

func (r *MailRelay) markFailed(ctx context.Context, msg models.OutboundMail, cause error) error {
	attempts := msg.Attempts + 1
	status := models.MailPending
	if attempts >= r.cfg.MaxAttempts {
		status = models.MailFailed
	}
	lastError := truncateUTF8(cause.Error(), maxLastErrorLen)
	r.logger.Printf("Delivery of mail %s to %s failed (attempt %d/%d): %v",
		msg.ID, msg.Recipient, attempts, r.cfg.MaxAttempts, cause)

	err := r.db.WithContext(ctx).Model(&models.OutboundMail{}).
		Where("id = ?", msg.ID).
		Updates(map[string]any{
			"status":     status,
			"attempts":   attempts,
			"last_error": lastError,
		}).Error
	if err != nil {
		return fmt.Errorf("mark mail %s failed: %w", msg.ID, err)
	}
	r.metrics.observeRelay(msg.Channel, string(status))
	return nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a character
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
