package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the mastery stage of a single math fact. The constants form a
// strict hierarchy: a fact only moves down via an explicit caller override
// or a failed retention test.
type Status int

const (
	StatusNotStarted Status = iota
	StatusLearning
	StatusAccuracyPractice
	StatusFluency6
	StatusFluency3
	StatusFluency2
	StatusFluency15
	StatusFluency1
	StatusMastered
	StatusAutomatic // terminal
)

var statusNames = map[Status]string{
	StatusNotStarted:       "notStarted",
	StatusLearning:         "learning",
	StatusAccuracyPractice: "accuracyPractice",
	StatusFluency6:         "fluency6",
	StatusFluency3:         "fluency3",
	StatusFluency2:         "fluency2",
	StatusFluency15:        "fluency1.5",
	StatusFluency1:         "fluency1",
	StatusMastered:         "mastered",
	StatusAutomatic:        "automatic",
}

var statusByName = func() map[string]Status {
	m := make(map[string]Status, len(statusNames))
	for s, n := range statusNames {
		m[n] = s
	}
	return m
}()

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ParseStatus converts a stored status name back to its enum value.
func ParseStatus(name string) (Status, error) {
	if s, ok := statusByName[name]; ok {
		return s, nil
	}
	return StatusNotStarted, fmt.Errorf("unknown fact status: %q", name)
}

// IsFluency reports whether the status is one of the timed fluency stages.
func (s Status) IsFluency() bool {
	return s >= StatusFluency6 && s <= StatusFluency1
}

// Value implements driver.Valuer so statuses are stored by name.
func (s Status) Value() (driver.Value, error) {
	return s.String(), nil
}

// Scan implements sql.Scanner.
func (s *Status) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseStatus(v)
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	case []byte:
		return s.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Status", src)
	}
}

// ContextStats aggregates one practice context's attempts for a single day.
type ContextStats struct {
	Attempts           int     `json:"attempts"`
	Correct            int     `json:"correct"`
	TimeSpentMs        int     `json:"time_spent_ms"`
	AvgResponseTimeSec float64 `json:"avg_response_time_sec"`
	Date               string  `json:"date"` // practice day, YYYY-MM-DD
}

// TodayStats maps practice context label -> today's stats for that context.
// Entries never span more than one practice day; the whole map is cleared
// when a new day begins.
type TodayStats map[string]*ContextStats

// Value implements driver.Valuer; the map is stored as a JSON text column.
func (t TodayStats) Value() (driver.Value, error) {
	if t == nil {
		return "{}", nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (t *TodayStats) Scan(src interface{}) error {
	var b []byte
	switch v := src.(type) {
	case string:
		b = []byte(v)
	case []byte:
		b = v
	case nil:
		*t = TodayStats{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into TodayStats", src)
	}
	if len(b) == 0 {
		*t = TodayStats{}
		return nil
	}
	return json.Unmarshal(b, t)
}

// FactState tracks a student's mastery of a single math fact within a track.
type FactState struct {
	UserID            int64      `json:"user_id" db:"user_id"`
	TrackID           string     `json:"track_id" db:"track_id"`
	FactID            int        `json:"fact_id" db:"fact_id"`
	Status            Status     `json:"status" db:"status"`
	Attempts          int        `json:"attempts" db:"attempts"`                 // lifetime attempts
	Correct           int        `json:"correct" db:"correct"`                   // lifetime correct answers
	TimeSpentMs       int        `json:"time_spent_ms" db:"time_spent_ms"`       // lifetime time spent
	TodayStats        TodayStats `json:"today_stats" db:"today_stats"`
	StatusUpdatedAt   *time.Time `json:"status_updated_at" db:"status_updated_at"`
	AccuracyStreak    int        `json:"accuracy_streak" db:"accuracy_streak"`   // consecutive qualifying days, 0-2
	RetentionDay      *int       `json:"retention_day" db:"retention_day"`       // days-since-mastery schedule slot
	NextRetentionDate *time.Time `json:"next_retention_date" db:"next_retention_date"`
	Version           int        `json:"version" db:"version"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// LifetimeAccuracy returns the fact's lifetime accuracy rate (0.0 - 1.0).
func (f *FactState) LifetimeAccuracy() float64 {
	if f.Attempts == 0 {
		return 0
	}
	return float64(f.Correct) / float64(f.Attempts)
}
