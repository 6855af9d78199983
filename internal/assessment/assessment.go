// Package assessment builds placement probes: batches of unattempted facts
// a student works through so the engine can seed their mastery state.
package assessment

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/example/mathfacts/internal/curriculum"
	"github.com/example/mathfacts/pkg/models"
)

// ProbeSize is how many facts one assessment probe covers; the daily
// assessment goal counts one completion per probe.
const ProbeSize = 60

// PracticeContext is the drill-mode label assessment attempts carry.
const PracticeContext = "assessment"

// FactSource reads the student's current fact map.
type FactSource interface {
	GetFactStates(ctx context.Context, userID int64, trackID string) (map[int]*models.FactState, error)
}

// Probe is one placement batch of fact IDs to present.
type Probe struct {
	TrackID string
	FactIDs []int
}

// Builder samples unattempted facts into placement probes.
type Builder struct {
	facts FactSource
}

// NewBuilder creates an assessment builder.
func NewBuilder(facts FactSource) *Builder {
	return &Builder{facts: facts}
}

// BuildPlacement returns the track's unattempted facts shuffled and chunked
// into probes. An empty result means placement is finished for the track.
func (b *Builder) BuildPlacement(ctx context.Context, userID int64, trackID string) ([]Probe, error) {
	r, ok := curriculum.TrackRange(trackID)
	if !ok {
		return nil, fmt.Errorf("unknown track %q", trackID)
	}

	states, err := b.facts.GetFactStates(ctx, userID, trackID)
	if err != nil {
		return nil, err
	}

	var unattempted []int
	for id := r.Low; id <= r.High; id++ {
		if fs := states[id]; fs == nil || fs.Attempts == 0 {
			unattempted = append(unattempted, id)
		}
	}
	if len(unattempted) == 0 {
		return nil, nil
	}

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	rnd.Shuffle(len(unattempted), func(i, j int) {
		unattempted[i], unattempted[j] = unattempted[j], unattempted[i]
	})

	var probes []Probe
	for start := 0; start < len(unattempted); start += ProbeSize {
		end := start + ProbeSize
		if end > len(unattempted) {
			end = len(unattempted)
		}
		probes = append(probes, Probe{TrackID: trackID, FactIDs: unattempted[start:end]})
	}
	return probes, nil
}

// Response is one answered assessment question.
type Response struct {
	FactID      int
	Correct     bool
	TimeSpentMs int
}

// BatchFrom folds probe responses into an attempt batch ready for the
// progression engine, labeled with the assessment practice context.
func BatchFrom(responses []Response) models.AttemptBatch {
	batch := make(models.AttemptBatch)
	for _, r := range responses {
		a := batch[r.FactID]
		a.Attempts++
		if r.Correct {
			a.Correct++
		}
		a.TimeSpentMs += r.TimeSpentMs
		a.PracticeContext = PracticeContext
		batch[r.FactID] = a
	}
	return batch
}
