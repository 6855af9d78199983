package goals

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/example/mathfacts/internal/curriculum"
	"github.com/example/mathfacts/pkg/models"
)

const dateLayout = "2006-01-02"

type (
	// Store is the keyed-record store for daily goal records. All counter
	// mutations are conditional writes; see the database package.
	Store interface {
		GetDay(ctx context.Context, userID int64, trackID, day string) (*models.DailyGoals, error)
		CreateDay(ctx context.Context, dg *models.DailyGoals) error
		CreditFact(ctx context.Context, userID int64, trackID, day string, goalType models.GoalType, factID int) (bool, error)
		MarkHalfCompleted(ctx context.Context, userID int64, trackID, day string) (bool, error)
		MarkAllCompleted(ctx context.Context, userID int64, trackID, day string) (bool, error)
		ExpandGoals(ctx context.Context, userID int64, trackID, day string, add map[models.GoalType]int, assessmentTotal int) error
	}

	// FactSource reads the fact map the calculator derives goals from.
	FactSource interface {
		GetFactStates(ctx context.Context, userID int64, trackID string) (map[int]*models.FactState, error)
	}

	// Sink receives fire-and-forget completion signals for an external
	// notification or analytics collaborator.
	Sink interface {
		HalfCompleted(userID int64, trackID, day string)
		AllCompleted(userID int64, trackID, day string)
		LearningGoalCompleted(userID int64, trackID, day string)
	}

	// Tracker owns daily goal records: lazy creation, idempotent credit,
	// completion detection and the placement-phase recalculation loop.
	Tracker struct {
		store Store
		facts FactSource
		sink  Sink
		now   func() time.Time

		pollInterval time.Duration
		maxPolls     int

		mu     sync.Mutex
		recalc map[string]bool // recalculation loops in flight, keyed per user+track+day
	}
)

// NewTracker creates a goal progression tracker.
func NewTracker(store Store, facts FactSource, sink Sink) *Tracker {
	return &Tracker{
		store:        store,
		facts:        facts,
		sink:         sink,
		now:          time.Now,
		pollInterval: 3 * time.Second,
		maxPolls:     20,
		recalc:       make(map[string]bool),
	}
}

// Snapshot returns today's goal record for a student's track, deriving and
// creating it on first access.
func (t *Tracker) Snapshot(ctx context.Context, userID int64, trackID string) (*models.DailyGoals, error) {
	day := t.today()
	return t.ensureDay(ctx, userID, trackID, day)
}

// FactCompleted credits a fact toward a goal type for the given day, then
// re-checks the day's completion thresholds. An already-counted fact or a
// maxed-out goal is a silent no-op.
func (t *Tracker) FactCompleted(ctx context.Context, userID int64, trackID, day string, goalType models.GoalType, factID int) error {
	if _, err := t.ensureDay(ctx, userID, trackID, day); err != nil {
		return err
	}

	credited, err := t.store.CreditFact(ctx, userID, trackID, day, goalType, factID)
	if err != nil {
		return err
	}
	if !credited {
		return nil
	}

	dg, err := t.store.GetDay(ctx, userID, trackID, day)
	if err != nil {
		return err
	}
	if dg == nil {
		return fmt.Errorf("daily goals vanished for user %d track %s day %s", userID, trackID, day)
	}

	if goalType == models.GoalLearning {
		if g, ok := dg.Goals[models.GoalLearning]; ok && g.Done() {
			t.sink.LearningGoalCompleted(userID, trackID, day)
		}
	}

	// The flags are conditional writes, so each signal fires exactly once
	// per day even when credits race.
	frac := dg.CompletionFraction()
	if frac >= 0.5 {
		flipped, err := t.store.MarkHalfCompleted(ctx, userID, trackID, day)
		if err != nil {
			return err
		}
		if flipped {
			t.sink.HalfCompleted(userID, trackID, day)
		}
	}
	if frac >= 1 {
		flipped, err := t.store.MarkAllCompleted(ctx, userID, trackID, day)
		if err != nil {
			return err
		}
		if flipped {
			t.sink.AllCompleted(userID, trackID, day)
		}
	}

	if goalType == models.GoalAssessment {
		t.maybeStartRecalc(userID, trackID, day, dg)
	}
	return nil
}

// ensureDay loads the day's record, deriving a fresh goal set on first
// access. Creation races resolve in the store; the winner's set is reloaded.
func (t *Tracker) ensureDay(ctx context.Context, userID int64, trackID, day string) (*models.DailyGoals, error) {
	dg, err := t.store.GetDay(ctx, userID, trackID, day)
	if err != nil {
		return nil, err
	}
	if dg != nil {
		return dg, nil
	}

	r, ok := curriculum.TrackRange(trackID)
	if !ok {
		return nil, fmt.Errorf("unknown track %q", trackID)
	}
	states, err := t.facts.GetFactStates(ctx, userID, trackID)
	if err != nil {
		return nil, err
	}

	dg = &models.DailyGoals{
		UserID:  userID,
		TrackID: trackID,
		Day:     day,
		Goals:   Derive(states, r.Size()),
	}
	if err := t.store.CreateDay(ctx, dg); err != nil {
		return nil, err
	}

	created, err := t.store.GetDay(ctx, userID, trackID, day)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, fmt.Errorf("daily goals missing after create for user %d track %s day %s", userID, trackID, day)
	}
	return created, nil
}

// maybeStartRecalc starts the placement-phase recalculation loop if the day
// qualifies: a multi-probe assessment goal with at least one probe done, and
// no loop already running for this key. The loop covers the race where an
// assessment completes before its background fact-status writes land.
func (t *Tracker) maybeStartRecalc(userID int64, trackID, day string, dg *models.DailyGoals) {
	assess, ok := dg.Goals[models.GoalAssessment]
	if !ok || assess.Total <= 1 || assess.Completed < 1 {
		return
	}

	key := fmt.Sprintf("%d:%s:%s", userID, trackID, day)
	t.mu.Lock()
	if t.recalc[key] {
		t.mu.Unlock()
		return
	}
	t.recalc[key] = true
	t.mu.Unlock()

	go t.recalcLoop(key, userID, trackID, day)
}

// recalcLoop polls the fact store for newly practicable facts and expands
// the day's goal set once they appear. It self-terminates after the first
// expansion or after maxPolls checks.
func (t *Tracker) recalcLoop(key string, userID int64, trackID, day string) {
	defer func() {
		t.mu.Lock()
		delete(t.recalc, key)
		t.mu.Unlock()
	}()

	r, ok := curriculum.TrackRange(trackID)
	if !ok {
		return
	}

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for i := 0; i < t.maxPolls; i++ {
		<-ticker.C

		ctx := context.Background()
		states, err := t.facts.GetFactStates(ctx, userID, trackID)
		if err != nil {
			log.Printf("goal recalculation read failed for %s: %v", key, err)
			continue
		}

		derived := Derive(states, r.Size())
		add := make(map[models.GoalType]int)
		combined := 0
		for _, gt := range []models.GoalType{models.GoalLearning, models.GoalAccuracy, models.GoalFluency} {
			if g, ok := derived[gt]; ok && g.Total > 0 {
				add[gt] = g.Total
				combined += g.Total
			}
		}
		if len(add) == 0 {
			continue
		}

		assessTotal := ceilDiv(combined, assessmentChunk)
		if assessTotal < 1 {
			assessTotal = 1
		}
		if err := t.store.ExpandGoals(ctx, userID, trackID, day, add, assessTotal); err != nil {
			log.Printf("goal recalculation write failed for %s: %v", key, err)
			continue
		}
		log.Printf("expanded daily goals for %s: %d new practice facts", key, combined)
		return
	}
}

func (t *Tracker) today() string {
	return t.now().UTC().Format(dateLayout)
}
