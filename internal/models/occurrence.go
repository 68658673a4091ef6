package models

import "time"

// ClockLayout is the format of StartTime and EndTime
const ClockLayout = "15:04"

// DateLayout is the format used by Day for one-off occurrences
const DateLayout = "2006-01-02"

// ClassOccurrence is a scheduled meeting of a course batch.
//
// Day holds either a weekday name ("Monday") for a weekly class or a
// calendar date (2006-01-02) for a one-off session. StartTime and EndTime
// are wall-clock times in the display timezone.
type ClassOccurrence struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CourseID      *uint     `gorm:"index" json:"course_id"`
	BatchID       *uint     `gorm:"index" json:"batch_id"`
	Day           string    `gorm:"size:20;not null;index:idx_occurrence_slot" json:"day"`
	StartTime     string    `gorm:"size:5;index:idx_occurrence_slot" json:"start_time"`
	EndTime       string    `gorm:"size:5" json:"end_time"`
	ZoomMeetingID string    `gorm:"size:64" json:"zoom_meeting_id,omitempty"`
	JoinURL       string    `gorm:"size:512" json:"join_url,omitempty"`
	Course        *Course   `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	Batch         *Batch    `gorm:"foreignKey:BatchID" json:"batch,omitempty"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}
