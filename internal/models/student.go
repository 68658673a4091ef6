package models

import (
	"time"

	"gorm.io/gorm"
)

// EnrollmentStatus represents the state of a student's enrollment in a batch
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentSuspended EnrollmentStatus = "suspended"
	EnrollmentCompleted EnrollmentStatus = "completed"
)

// Student represents a learner account
type Student struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"size:255;not null" json:"name"`
	Email       string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Enrollments []Enrollment   `gorm:"foreignKey:StudentID" json:"enrollments,omitempty"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// Enrollment links a student to a batch
type Enrollment struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	StudentID  uint             `gorm:"not null;uniqueIndex:idx_enrollment_student_batch" json:"student_id"`
	BatchID    uint             `gorm:"not null;uniqueIndex:idx_enrollment_student_batch;index" json:"batch_id"`
	Status     EnrollmentStatus `gorm:"size:20;not null;default:'active'" json:"status"`
	EnrolledAt time.Time        `gorm:"not null" json:"enrolled_at"`
}

// BeforeCreate hook is called before creating a new student
func (s *Student) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}
	return nil
}

// BeforeSave hook is called before saving the student
func (s *Student) BeforeSave(tx *gorm.DB) error {
	s.UpdatedAt = time.Now()
	return nil
}

// BeforeCreate hook is called before creating a new enrollment
func (e *Enrollment) BeforeCreate(tx *gorm.DB) error {
	if e.EnrolledAt.IsZero() {
		e.EnrolledAt = time.Now()
	}
	if e.Status == "" {
		e.Status = EnrollmentActive
	}
	return nil
}
