// Package fluency classifies a fact's average response time into the mastery
// stage the student should practice at.
package fluency

import "github.com/example/mathfacts/pkg/models"

// StageFor maps an average response time to a target fluency stage given the
// student's grade-specific target. At or below the target (or at most one
// second regardless of grade) the fact counts as mastered; above it the
// stage follows fixed thresholds down to the six-second entry stage.
func StageFor(avgResponseTimeSec, targetSec float64) models.Status {
	if avgResponseTimeSec <= targetSec || avgResponseTimeSec <= 1.0 {
		return models.StatusMastered
	}
	switch {
	case avgResponseTimeSec <= 1.5:
		return models.StatusFluency1
	case avgResponseTimeSec <= 2:
		return models.StatusFluency15
	case avgResponseTimeSec <= 3:
		return models.StatusFluency2
	case avgResponseTimeSec <= 6:
		return models.StatusFluency3
	default:
		return models.StatusFluency6
	}
}
