package database

import (
	"context"
	"fmt"
	"time"

	"classreminder/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReminderStore is the dedupe ledger of sent class reminders
type ReminderStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewReminderStore creates a ReminderStore backed by db
func NewReminderStore(db *gorm.DB) *ReminderStore {
	return &ReminderStore{db: db, now: time.Now}
}

// Exists reports whether a reminder was already recorded for the key
func (s *ReminderStore) Exists(ctx context.Context, occurrenceID, studentID uint, window time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.ReminderRecord{}).
		Where("occurrence_id = ? AND student_id = ? AND window_start = ?", occurrenceID, studentID, window.UTC()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check reminder %d/%d: %w", occurrenceID, studentID, err)
	}
	return count > 0, nil
}

// CreateIfAbsent inserts the record unless one already exists for the key.
// The unique index makes this a single check-and-set; it returns false when
// another writer got there first.
func (s *ReminderStore) CreateIfAbsent(ctx context.Context, occurrenceID, studentID uint, window time.Time) (bool, error) {
	record := models.ReminderRecord{
		OccurrenceID: occurrenceID,
		StudentID:    studentID,
		Window:       window.UTC(),
		SentAt:       s.now().UTC(),
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record)
	if result.Error != nil {
		return false, fmt.Errorf("record reminder %d/%d: %w", occurrenceID, studentID, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// PurgeBefore deletes records whose window ended before cutoff
func (s *ReminderStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("window_start < ?", cutoff.UTC()).
		Delete(&models.ReminderRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("purge reminders: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Recent returns the most recently sent records, newest first
func (s *ReminderStore) Recent(ctx context.Context, limit int) ([]models.ReminderRecord, error) {
	var records []models.ReminderRecord
	err := s.db.WithContext(ctx).
		Order("sent_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return records, nil
}
