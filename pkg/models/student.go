package models

import "time"

// Student holds the per-student settings the engine needs: the grade that
// selects the fluency target, and an optional pinned focus track that
// overrides whatever track the caller submitted.
type Student struct {
	UserID     int64     `json:"user_id" db:"user_id"`
	Grade      int       `json:"grade" db:"grade"` // 0 (K) through 12
	FocusTrack string    `json:"focus_track" db:"focus_track"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
