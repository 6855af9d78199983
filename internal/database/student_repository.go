package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/mathfacts/pkg/models"
)

// StudentRepository handles database operations for student settings
type StudentRepository struct{}

// NewStudentRepository creates a new repository instance
func NewStudentRepository() *StudentRepository {
	return &StudentRepository{}
}

// GetStudent returns a student's settings, or (nil, nil) for an unknown
// student so first-time users work transparently.
func (r *StudentRepository) GetStudent(ctx context.Context, userID int64) (*models.Student, error) {
	var s models.Student
	query := `
		SELECT user_id, grade, focus_track, created_at, updated_at
		FROM students
		WHERE user_id = $1
	`
	err := DB.GetContext(ctx, &s, query, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %v", err)
	}
	return &s, nil
}

// UpsertStudent creates or updates a student's settings.
func (r *StudentRepository) UpsertStudent(ctx context.Context, s *models.Student) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO students (user_id, grade, focus_track, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			grade = excluded.grade,
			focus_track = excluded.focus_track,
			updated_at = excluded.updated_at
	`
	if _, err := DB.ExecContext(ctx, query, s.UserID, s.Grade, s.FocusTrack, now); err != nil {
		return fmt.Errorf("failed to upsert student: %v", err)
	}
	return nil
}
