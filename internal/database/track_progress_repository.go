package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/mathfacts/pkg/models"
)

// TrackProgressRepository handles database operations for per-track
// aggregate metrics
type TrackProgressRepository struct{}

// NewTrackProgressRepository creates a new repository instance
func NewTrackProgressRepository() *TrackProgressRepository {
	return &TrackProgressRepository{}
}

// GetTrackProgress returns the aggregates for a user's track, or a zeroed
// record if none exists yet.
func (r *TrackProgressRepository) GetTrackProgress(ctx context.Context, userID int64, trackID string) (*models.TrackProgress, error) {
	var tp models.TrackProgress
	query := `
		SELECT user_id, track_id, overall_cqpm, accuracy_rate, created_at, updated_at
		FROM track_progress
		WHERE user_id = $1 AND track_id = $2
	`
	err := DB.GetContext(ctx, &tp, query, userID, trackID)
	if err == sql.ErrNoRows {
		return &models.TrackProgress{UserID: userID, TrackID: trackID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get track progress: %v", err)
	}
	return &tp, nil
}

// SaveAggregates upserts the track's aggregate metrics. This is the one
// last-writer-wins write in the system: aggregates are reporting data and
// never drive transitions.
func (r *TrackProgressRepository) SaveAggregates(ctx context.Context, tp *models.TrackProgress) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO track_progress (user_id, track_id, overall_cqpm, accuracy_rate, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id, track_id) DO UPDATE SET
			overall_cqpm = excluded.overall_cqpm,
			accuracy_rate = excluded.accuracy_rate,
			updated_at = excluded.updated_at
	`
	if _, err := DB.ExecContext(ctx, query, tp.UserID, tp.TrackID, tp.OverallCQPM, tp.AccuracyRate, now); err != nil {
		return fmt.Errorf("failed to save track aggregates: %v", err)
	}
	return nil
}
