package database

import (
	"context"
	"fmt"

	"classreminder/internal/models"

	"gorm.io/gorm"
)

// OccurrenceStore reads class occurrences and their enrolled students
type OccurrenceStore struct {
	db *gorm.DB
}

// NewOccurrenceStore creates an OccurrenceStore backed by db
func NewOccurrenceStore(db *gorm.DB) *OccurrenceStore {
	return &OccurrenceStore{db: db}
}

// DueOccurrences returns occurrences starting at startTime on the given
// weekday (weekly classes) or calendar date (one-off sessions), with the
// course and batch preloaded.
func (s *OccurrenceStore) DueOccurrences(ctx context.Context, weekday, date, startTime string) ([]models.ClassOccurrence, error) {
	var occurrences []models.ClassOccurrence
	err := s.db.WithContext(ctx).
		Preload("Course").
		Preload("Batch").
		Where("start_time = ? AND day IN ?", startTime, []string{weekday, date}).
		Order("id").
		Find(&occurrences).Error
	if err != nil {
		return nil, fmt.Errorf("query occurrences at %s %s: %w", date, startTime, err)
	}
	return occurrences, nil
}

// EnrolledStudents returns every student with an active enrollment in the batch
func (s *OccurrenceStore) EnrolledStudents(ctx context.Context, batchID uint) ([]models.Student, error) {
	var students []models.Student
	err := s.db.WithContext(ctx).
		Joins("JOIN enrollment ON enrollment.student_id = student.id").
		Where("enrollment.batch_id = ? AND enrollment.status = ?", batchID, models.EnrollmentActive).
		Order("student.id").
		Find(&students).Error
	if err != nil {
		return nil, fmt.Errorf("query students for batch %d: %w", batchID, err)
	}
	return students, nil
}
