// Package goals derives daily practice goals from fact mastery state and
// tracks their completion idempotently.
package goals

import (
	"github.com/example/mathfacts/pkg/models"
)

const (
	learningCap     = 4
	accuracyCap     = 4
	fluencyCap      = 8
	assessmentChunk = 60
)

// Derive builds the initial goal set for a day from the current fact map.
// trackSize is the number of facts in the track's range; facts with no
// recorded attempts count as unattempted for assessment sizing.
//
// Chaining rules: a non-zero learning goal brings an accuracy goal with it
// (and a fluency goal when eligible facts exist); an accuracy goal without
// learning chains a fluency goal. An assessment goal is always present.
func Derive(states map[int]*models.FactState, trackSize int) map[models.GoalType]*models.Goal {
	var learning, pureAccuracy, notStarted, fluencyEligible, attempted int
	for _, fs := range states {
		if fs.Attempts > 0 {
			attempted++
		}
		switch fs.Status {
		case models.StatusLearning:
			learning++
		case models.StatusAccuracyPractice:
			pureAccuracy++
		case models.StatusNotStarted:
			notStarted++
		}
		if fs.Status == models.StatusAccuracyPractice || fs.Status.IsFluency() {
			fluencyEligible++
		}
	}
	unattempted := trackSize - attempted
	if unattempted < 0 {
		unattempted = 0
	}

	learningTotal := capAt(learning, learningCap)

	// Fewer than four pure accuracy facts widens the pool with learning and
	// not-yet-started facts.
	accuracyTotal := pureAccuracy
	if accuracyTotal < accuracyCap {
		accuracyTotal += learning + notStarted + unattempted
	}
	accuracyTotal = capAt(accuracyTotal, accuracyCap)

	fluencyTotal := capAt(fluencyEligible, fluencyCap)

	gs := make(map[models.GoalType]*models.Goal)
	switch {
	case learningTotal > 0:
		gs[models.GoalLearning] = &models.Goal{Total: learningTotal}
		gs[models.GoalAccuracy] = &models.Goal{Total: accuracyTotal}
		if fluencyTotal > 0 {
			gs[models.GoalFluency] = &models.Goal{Total: fluencyTotal}
		}
	case pureAccuracy > 0:
		gs[models.GoalAccuracy] = &models.Goal{Total: accuracyTotal}
		if fluencyTotal > 0 {
			gs[models.GoalFluency] = &models.Goal{Total: fluencyTotal}
		}
	case fluencyTotal > 0:
		gs[models.GoalFluency] = &models.Goal{Total: fluencyTotal}
	}

	gs[models.GoalAssessment] = &models.Goal{Total: assessmentTotal(unattempted, fluencyTotal)}
	return gs
}

// assessmentTotal sizes the assessment goal: chunks of unattempted facts
// during placement, chunks of the fluency goal afterwards, minimum one.
func assessmentTotal(unattempted, fluencyTotal int) int {
	n := fluencyTotal
	if unattempted > 0 {
		n = unattempted
	}
	total := ceilDiv(n, assessmentChunk)
	if total < 1 {
		total = 1
	}
	return total
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func capAt(n, max int) int {
	if n > max {
		return max
	}
	return n
}
