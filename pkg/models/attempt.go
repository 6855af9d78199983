package models

// FactAttempt is one fact's share of a practice submission: how many times
// the fact was shown, how many answers were correct and how long the student
// spent, plus the drill mode that produced the attempts.
type FactAttempt struct {
	Attempts        int     `json:"attempts"`
	Correct         int     `json:"correct"`
	TimeSpentMs     int     `json:"time_spent_ms"`
	PracticeContext string  `json:"practice_context"` // e.g. "accuracy2", "fluency1", "assessment"
	Status          *Status `json:"status,omitempty"`  // explicit override, adopted unconditionally
}

// AttemptBatch is a practice submission keyed by fact ID.
type AttemptBatch map[int]FactAttempt
