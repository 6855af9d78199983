package models

import "time"

// GoalType is one of the four categories of daily practice goals.
type GoalType string

const (
	GoalLearning   GoalType = "learning"
	GoalAccuracy   GoalType = "accuracy"
	GoalFluency    GoalType = "fluency"
	GoalAssessment GoalType = "assessment"
)

// Goal holds the counters for one goal type on one day.
type Goal struct {
	Total     int `json:"total" db:"total"`
	Completed int `json:"completed" db:"completed"`
}

// Done reports whether the goal counts as fully completed. A zero-total goal
// only exists because chaining forced its presence and counts as done.
func (g Goal) Done() bool {
	return g.Completed >= g.Total
}

// DailyGoals is one day's goal record for a student on a track. The shape is
// fixed at creation (placement recalculation excepted); only the counters,
// the ledger and the two completion flags are amended in place.
type DailyGoals struct {
	UserID  int64              `json:"user_id" db:"user_id"`
	TrackID string             `json:"track_id" db:"track_id"`
	Day     string             `json:"day" db:"day"` // YYYY-MM-DD
	Goals   map[GoalType]*Goal `json:"goals"`

	// CompletedFacts is the idempotency ledger: fact IDs already credited
	// today, per goal type.
	CompletedFacts map[GoalType][]int `json:"completed_facts"`

	HalfCompleted bool      `json:"half_completed" db:"half_completed"`
	AllCompleted  bool      `json:"all_completed" db:"all_completed"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// CompletionFraction returns the fraction of goal types that are fully
// completed. Types, not facts: two goals with one done is 0.5.
func (d *DailyGoals) CompletionFraction() float64 {
	if len(d.Goals) == 0 {
		return 0
	}
	done := 0
	for _, g := range d.Goals {
		if g.Done() {
			done++
		}
	}
	return float64(done) / float64(len(d.Goals))
}
