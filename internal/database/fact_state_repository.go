package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/mathfacts/pkg/models"
)

// ErrVersionConflict is returned when a fact-state write loses a race: the
// stored version no longer matches the version the caller read.
var ErrVersionConflict = errors.New("fact state was modified concurrently")

// FactStateRepository handles database operations for per-fact mastery state
type FactStateRepository struct{}

// NewFactStateRepository creates a new repository instance
func NewFactStateRepository() *FactStateRepository {
	return &FactStateRepository{}
}

// GetFactStates returns all recorded fact states for a user's track, keyed
// by fact ID. A user with no progress yet gets an empty map, not an error.
func (r *FactStateRepository) GetFactStates(ctx context.Context, userID int64, trackID string) (map[int]*models.FactState, error) {
	var states []models.FactState
	query := `
		SELECT user_id, track_id, fact_id, status, attempts, correct,
		       time_spent_ms, today_stats, status_updated_at, accuracy_streak,
		       retention_day, next_retention_date, version, created_at, updated_at
		FROM fact_states
		WHERE user_id = $1 AND track_id = $2
	`
	if err := DB.SelectContext(ctx, &states, query, userID, trackID); err != nil {
		return nil, fmt.Errorf("failed to get fact states: %v", err)
	}

	result := make(map[int]*models.FactState, len(states))
	for i := range states {
		result[states[i].FactID] = &states[i]
	}
	return result, nil
}

// GetFactState returns one fact's state, or nil if it has never been touched.
func (r *FactStateRepository) GetFactState(ctx context.Context, userID int64, trackID string, factID int) (*models.FactState, error) {
	states, err := r.GetFactStates(ctx, userID, trackID)
	if err != nil {
		return nil, err
	}
	return states[factID], nil
}

// SaveFactState writes one fact's state with an optimistic version guard:
// the write only lands if the stored version still equals the version the
// state was read at. fs.Version is bumped on success.
func (r *FactStateRepository) SaveFactState(ctx context.Context, fs *models.FactState) error {
	now := time.Now().UTC()
	if fs.CreatedAt.IsZero() {
		fs.CreatedAt = now
	}
	fs.UpdatedAt = now

	query := `
		INSERT INTO fact_states (
			user_id, track_id, fact_id, status, attempts, correct,
			time_spent_ms, today_stats, status_updated_at, accuracy_streak,
			retention_day, next_retention_date, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (user_id, track_id, fact_id) DO UPDATE SET
			status = excluded.status,
			attempts = excluded.attempts,
			correct = excluded.correct,
			time_spent_ms = excluded.time_spent_ms,
			today_stats = excluded.today_stats,
			status_updated_at = excluded.status_updated_at,
			accuracy_streak = excluded.accuracy_streak,
			retention_day = excluded.retention_day,
			next_retention_date = excluded.next_retention_date,
			version = excluded.version,
			updated_at = excluded.updated_at
		WHERE fact_states.version = $16
	`
	res, err := DB.ExecContext(ctx, query,
		fs.UserID,
		fs.TrackID,
		fs.FactID,
		fs.Status,
		fs.Attempts,
		fs.Correct,
		fs.TimeSpentMs,
		fs.TodayStats,
		fs.StatusUpdatedAt,
		fs.AccuracyStreak,
		fs.RetentionDay,
		fs.NextRetentionDate,
		fs.Version+1,
		fs.CreatedAt,
		fs.UpdatedAt,
		fs.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to save fact state: %v", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check fact state write: %v", err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}

	fs.Version++
	return nil
}

// DueRetention is one student's count of mastered facts due for a retention
// test, used by the reminder scheduler.
type DueRetention struct {
	UserID int64 `db:"user_id"`
	Due    int   `db:"due"`
}

// ActiveTrack is one (student, track) pair with recorded progress.
type ActiveTrack struct {
	UserID  int64  `db:"user_id"`
	TrackID string `db:"track_id"`
}

// GetActiveTracks returns every (student, track) pair with at least one
// recorded fact state.
func (r *FactStateRepository) GetActiveTracks(ctx context.Context) ([]ActiveTrack, error) {
	var tracks []ActiveTrack
	query := `SELECT DISTINCT user_id, track_id FROM fact_states`
	if err := DB.SelectContext(ctx, &tracks, query); err != nil {
		return nil, fmt.Errorf("failed to get active tracks: %v", err)
	}
	return tracks, nil
}

// GetDueRetentionCounts returns, per student, how many mastered facts have a
// retention test due at or before the given time.
func (r *FactStateRepository) GetDueRetentionCounts(ctx context.Context, asOf time.Time) ([]DueRetention, error) {
	var due []DueRetention
	query := `
		SELECT user_id, COUNT(*) AS due
		FROM fact_states
		WHERE status = 'mastered'
		  AND next_retention_date IS NOT NULL
		  AND next_retention_date <= $1
		GROUP BY user_id
	`
	if err := DB.SelectContext(ctx, &due, query, asOf); err != nil {
		return nil, fmt.Errorf("failed to get due retention counts: %v", err)
	}
	return due, nil
}
