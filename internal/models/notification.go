package models

import "time"

// ReminderRecord tracks which class reminders have been sent to avoid duplicates.
// At most one row exists per (occurrence, student, window). Window is the
// slot's wall-clock time in the display timezone, stored as UTC.
type ReminderRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	OccurrenceID uint      `gorm:"not null;uniqueIndex:idx_reminder_key" json:"occurrence_id"`
	StudentID    uint      `gorm:"not null;uniqueIndex:idx_reminder_key;index" json:"student_id"`
	Window       time.Time `gorm:"column:window_start;not null;uniqueIndex:idx_reminder_key;index" json:"window"`
	SentAt       time.Time `gorm:"not null" json:"sent_at"`
}
