// Package progression owns the per-fact mastery state machine: merging a
// day's attempts into fact state, deciding stage transitions and feeding the
// daily goal tracker.
package progression

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/example/mathfacts/internal/curriculum"
	"github.com/example/mathfacts/internal/fluency"
	"github.com/example/mathfacts/internal/retention"
	"github.com/example/mathfacts/pkg/models"
)

const dateLayout = "2006-01-02"

// defaultGrade is assumed for students with no registry record yet.
const defaultGrade = 2

var ErrEmptyBatch = errors.New("attempt batch is empty")

// RangeError rejects a whole batch: at least one submitted fact falls
// outside the resolved track's numeric range. Nothing is written.
type RangeError struct {
	TrackID string
	FactIDs []int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("facts %v are outside the range of track %q", e.FactIDs, e.TrackID)
}

type (
	// FactStore is the keyed-record store holding per-fact mastery state.
	FactStore interface {
		GetFactStates(ctx context.Context, userID int64, trackID string) (map[int]*models.FactState, error)
		SaveFactState(ctx context.Context, fs *models.FactState) error
	}

	// AggregateStore persists per-track reporting metrics.
	AggregateStore interface {
		SaveAggregates(ctx context.Context, tp *models.TrackProgress) error
	}

	// StudentStore resolves grade and pinned focus track. A nil student
	// means an unregistered first-time user.
	StudentStore interface {
		GetStudent(ctx context.Context, userID int64) (*models.Student, error)
	}

	// GoalTracker receives fact-completion events for daily goal credit.
	GoalTracker interface {
		FactCompleted(ctx context.Context, userID int64, trackID, day string, goalType models.GoalType, factID int) error
	}

	// Engine advances fact states from practice attempt batches.
	Engine struct {
		facts      FactStore
		aggregates AggregateStore
		students   StudentStore
		goals      GoalTracker
		now        func() time.Time
	}
)

// New creates a progression engine.
func New(facts FactStore, aggregates AggregateStore, students StudentStore, goals GoalTracker) *Engine {
	return &Engine{
		facts:      facts,
		aggregates: aggregates,
		students:   students,
		goals:      goals,
		now:        time.Now,
	}
}

// Result is what a processed batch hands back to the caller: the updated
// fact map for the resolved track and the recomputed aggregates.
type Result struct {
	TrackID  string
	Facts    map[int]*models.FactState
	Progress *models.TrackProgress
}

// ProcessBatch validates and applies one practice submission. The whole
// batch is rejected if any fact falls outside the resolved track's range;
// past that point each fact's write is independent, and a store failure on
// one fact does not roll back its siblings.
func (e *Engine) ProcessBatch(ctx context.Context, userID int64, trackID string, batch models.AttemptBatch) (*Result, error) {
	if len(batch) == 0 {
		return nil, ErrEmptyBatch
	}

	student, err := e.students.GetStudent(ctx, userID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		student = &models.Student{UserID: userID, Grade: defaultGrade}
	}
	// A pinned focus track overrides whatever the caller submitted.
	if student.FocusTrack != "" {
		trackID = student.FocusTrack
	}

	factIDs := make([]int, 0, len(batch))
	for id := range batch {
		factIDs = append(factIDs, id)
	}
	sort.Ints(factIDs)

	if offenders := curriculum.ValidateFacts(trackID, factIDs); len(offenders) > 0 {
		return nil, &RangeError{TrackID: trackID, FactIDs: offenders}
	}

	states, err := e.facts.GetFactStates(ctx, userID, trackID)
	if err != nil {
		return nil, err
	}

	today := dateOnly(e.now())
	todayStr := today.Format(dateLayout)
	target := curriculum.FluencyTarget(student.Grade)

	var failed []int
	for _, factID := range factIDs {
		fs := states[factID]
		if fs == nil {
			fs = &models.FactState{
				UserID:     userID,
				TrackID:    trackID,
				FactID:     factID,
				Status:     models.StatusNotStarted,
				TodayStats: models.TodayStats{},
			}
			states[factID] = fs
		}

		credits := e.processFact(fs, batch[factID], today, target)

		if err := e.facts.SaveFactState(ctx, fs); err != nil {
			log.Printf("fact %d write failed for user %d on track %s: %v", factID, userID, trackID, err)
			failed = append(failed, factID)
			continue
		}

		// Goal credit is fire-and-forget relative to the batch: the ledger
		// makes retries safe, so a tracker error never fails the submission.
		for _, gt := range credits {
			if err := e.goals.FactCompleted(ctx, userID, trackID, todayStr, gt, factID); err != nil {
				log.Printf("goal credit %s for fact %d failed: %v", gt, factID, err)
			}
		}
	}

	progress := e.recomputeAggregates(ctx, userID, trackID, states)

	result := &Result{TrackID: trackID, Facts: states, Progress: progress}
	if len(failed) > 0 {
		return result, fmt.Errorf("failed to write facts %v", failed)
	}
	return result, nil
}

// processFact merges one fact's new attempts and applies the transition
// rules. It returns the goal types the fact earned credit for; the caller
// notifies the tracker only after the state write lands.
func (e *Engine) processFact(fs *models.FactState, att models.FactAttempt, today time.Time, targetSec float64) []models.GoalType {
	todayStr := today.Format(dateLayout)
	brandNew := fs.Attempts == 0

	// Today's stats never span practice days: a stale entry clears the map.
	for _, cs := range fs.TodayStats {
		if cs.Date != todayStr {
			fs.TodayStats = models.TodayStats{}
			break
		}
	}
	if fs.TodayStats == nil {
		fs.TodayStats = models.TodayStats{}
	}

	fs.Attempts += att.Attempts
	fs.Correct += att.Correct
	fs.TimeSpentMs += att.TimeSpentMs

	label := att.PracticeContext
	if label == "" {
		label = "practice"
	}
	cs := fs.TodayStats[label]
	if cs == nil {
		cs = &models.ContextStats{}
		fs.TodayStats[label] = cs
	}
	cs.Attempts += att.Attempts
	cs.Correct += att.Correct
	cs.TimeSpentMs += att.TimeSpentMs
	if cs.Attempts > 0 {
		cs.AvgResponseTimeSec = float64(cs.TimeSpentMs) / float64(cs.Attempts) / 1000
	}
	cs.Date = todayStr

	// Cross-context totals for today drive every transition decision.
	var totalAttempts, totalCorrect, totalTimeMs int
	for _, c := range fs.TodayStats {
		totalAttempts += c.Attempts
		totalCorrect += c.Correct
		totalTimeMs += c.TimeSpentMs
	}
	var avgSec float64
	if totalAttempts > 0 {
		avgSec = float64(totalTimeMs) / float64(totalAttempts) / 1000
	}

	if att.Status != nil {
		return e.applyOverride(fs, *att.Status, today)
	}

	var credits []models.GoalType
	qualifying := totalAttempts >= 3 && totalCorrect == totalAttempts

	switch {
	case fs.Status == models.StatusNotStarted:
		// Legacy rule: a brand-new fact answered correctly on its very
		// first attempt skips learning and accuracy practice entirely.
		// TODO(curriculum): confirm with the product owner whether this
		// bypass should survive; see the fluency6 jump in the engine tests.
		if brandNew && fs.Attempts == 1 && fs.Correct == 1 {
			e.setStatus(fs, models.StatusFluency6, today)
		}

	case fs.Status == models.StatusAccuracyPractice && qualifying:
		promoted := false
		if totalCorrect >= 6 {
			e.setStatus(fs, models.StatusFluency6, today)
			fs.AccuracyStreak = 0
			promoted = true
		} else if fs.AccuracyStreak >= 2 {
			// Third qualifying day: graduate to the stage today's speed
			// classifies into.
			e.promote(fs, fluency.StageFor(avgSec, targetSec), today)
			fs.AccuracyStreak = 0
			promoted = true
		} else {
			fs.AccuracyStreak++
		}
		if totalCorrect >= 3 {
			credits = append(credits, models.GoalAccuracy)
			if promoted {
				credits = append(credits, models.GoalFluency)
			}
		}

	case fs.Status.IsFluency() && qualifying:
		if stage := fluency.StageFor(avgSec, targetSec); stage > fs.Status {
			e.promote(fs, stage, today)
			if totalCorrect >= 3 {
				credits = append(credits, models.GoalFluency)
			}
		}

	case fs.Status == models.StatusMastered && qualifying:
		res := retention.Evaluate(fs.RetentionDay, fs.NextRetentionDate, today, avgSec, fs.LifetimeAccuracy(), targetSec)
		fs.RetentionDay = res.RetentionDay
		fs.NextRetentionDate = res.NextRetentionDate
		if res.Status != fs.Status {
			e.setStatus(fs, res.Status, today)
		}
	}

	return credits
}

// applyOverride adopts a caller-supplied status unconditionally and
// initializes any stage-specific substructure.
func (e *Engine) applyOverride(fs *models.FactState, status models.Status, today time.Time) []models.GoalType {
	prev := fs.Status
	e.setStatus(fs, status, today)

	switch status {
	case models.StatusAccuracyPractice:
		fs.AccuracyStreak = 0
	case models.StatusMastered:
		if fs.RetentionDay == nil {
			first := retention.Schedule[0]
			next := today.AddDate(0, 0, 1)
			fs.RetentionDay = &first
			fs.NextRetentionDate = &next
		}
	}
	if status != models.StatusMastered {
		fs.RetentionDay = nil
		fs.NextRetentionDate = nil
	}

	if prev == models.StatusLearning && status == models.StatusAccuracyPractice {
		return []models.GoalType{models.GoalLearning}
	}
	return nil
}

// promote raises a fact's status; entering mastered starts the retention
// schedule with the first test due tomorrow.
func (e *Engine) promote(fs *models.FactState, status models.Status, today time.Time) {
	e.setStatus(fs, status, today)
	if status == models.StatusMastered {
		first := retention.Schedule[0]
		next := today.AddDate(0, 0, 1)
		fs.RetentionDay = &first
		fs.NextRetentionDate = &next
	}
}

func (e *Engine) setStatus(fs *models.FactState, status models.Status, today time.Time) {
	fs.Status = status
	stamp := today
	fs.StatusUpdatedAt = &stamp
	if status == models.StatusAutomatic {
		fs.RetentionDay = nil
		fs.NextRetentionDate = nil
	}
}

// recomputeAggregates rewrites the track's CQPM and accuracy rate from the
// full fact map. Concurrent batches may interleave here; last writer wins.
func (e *Engine) recomputeAggregates(ctx context.Context, userID int64, trackID string, states map[int]*models.FactState) *models.TrackProgress {
	var attempts, correct, timeMs int
	for _, fs := range states {
		attempts += fs.Attempts
		correct += fs.Correct
		timeMs += fs.TimeSpentMs
	}

	tp := &models.TrackProgress{UserID: userID, TrackID: trackID}
	if attempts > 0 {
		tp.AccuracyRate = float64(correct) / float64(attempts)
	}
	if timeMs > 0 {
		tp.OverallCQPM = float64(correct) / (float64(timeMs) / 60000)
	}

	if err := e.aggregates.SaveAggregates(ctx, tp); err != nil {
		log.Printf("aggregate write failed for user %d on track %s: %v", userID, trackID, err)
	}
	return tp
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
