// Package retention implements the spaced-retention schedule for mastered
// facts: an expanding sequence of re-test days with pass, slow-retry and
// fail-demote outcomes.
package retention

import (
	"time"

	"github.com/example/mathfacts/internal/fluency"
	"github.com/example/mathfacts/pkg/models"
)

// Schedule is the fixed sequence of days-since-mastery at which a mastered
// fact is re-tested. Passing the last entry makes the fact automatic.
var Schedule = []int{1, 3, 7, 16, 35, 75}

// Outcome describes what the scheduler decided for a mastered fact.
type Outcome int

const (
	// OutcomeStarted means retention tracking was initialized; no test yet.
	OutcomeStarted Outcome = iota
	// OutcomeNotDue means the next test date is still in the future.
	OutcomeNotDue
	// OutcomePass means the fact advanced to the next schedule entry.
	OutcomePass
	// OutcomeGraduated means the fact passed the last entry and is automatic.
	OutcomeGraduated
	// OutcomeSlow means accurate but too slow; retry tomorrow.
	OutcomeSlow
	// OutcomeFail means accuracy dropped below threshold; demoted.
	OutcomeFail
)

// Result carries the new retention fields for a mastered fact. Status is
// mastered unless the fact graduated or failed.
type Result struct {
	Outcome           Outcome
	Status            models.Status
	RetentionDay      *int
	NextRetentionDate *time.Time
}

const passAccuracy = 0.90

// Evaluate applies one day's qualifying practice to a mastered fact's
// retention schedule. today must be truncated to the practice day;
// lifetimeAccuracy must already include today's attempts.
func Evaluate(day *int, nextDate *time.Time, today time.Time, avgResponseTimeSec, lifetimeAccuracy, targetSec float64) Result {
	if nextDate == nil {
		// First day after mastery: schedule the first test for tomorrow.
		first := Schedule[0]
		next := today.AddDate(0, 0, 1)
		return Result{Outcome: OutcomeStarted, Status: models.StatusMastered, RetentionDay: &first, NextRetentionDate: &next}
	}

	if today.Before(*nextDate) {
		return Result{Outcome: OutcomeNotDue, Status: models.StatusMastered, RetentionDay: day, NextRetentionDate: nextDate}
	}

	if lifetimeAccuracy < passAccuracy {
		// Failed the retention test: fall back to the stage the response
		// time classifies into and stop tracking retention.
		return Result{Outcome: OutcomeFail, Status: fluency.StageFor(avgResponseTimeSec, targetSec)}
	}

	if avgResponseTimeSec > targetSec {
		// Accurate but slow: same schedule slot, retry tomorrow.
		next := today.AddDate(0, 0, 1)
		return Result{Outcome: OutcomeSlow, Status: models.StatusMastered, RetentionDay: day, NextRetentionDate: &next}
	}

	// Passed. Advance to the next schedule entry.
	cur := Schedule[0]
	if day != nil {
		cur = *day
	}
	idx := indexOf(cur)
	if idx < 0 || idx == len(Schedule)-1 {
		return Result{Outcome: OutcomeGraduated, Status: models.StatusAutomatic}
	}
	nextDay := Schedule[idx+1]
	next := today.AddDate(0, 0, nextDay-cur)
	return Result{Outcome: OutcomePass, Status: models.StatusMastered, RetentionDay: &nextDay, NextRetentionDate: &next}
}

func indexOf(day int) int {
	for i, d := range Schedule {
		if d == day {
			return i
		}
	}
	return -1
}
