package models

import "time"

// TrackProgress holds a student's aggregate metrics for one track. These are
// reporting values recomputed after every batch; they never drive status
// transitions, so last-writer-wins between concurrent batches is accepted.
type TrackProgress struct {
	UserID       int64     `json:"user_id" db:"user_id"`
	TrackID      string    `json:"track_id" db:"track_id"`
	OverallCQPM  float64   `json:"overall_cqpm" db:"overall_cqpm"`   // correct questions per minute
	AccuracyRate float64   `json:"accuracy_rate" db:"accuracy_rate"` // lifetime correct / attempts
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
