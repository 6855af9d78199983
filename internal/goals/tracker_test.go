package goals

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/example/mathfacts/pkg/models"
)

// fakeGoalStore mimics the conditional-write semantics of the real store:
// ledger-guarded credits, monotonic flags, preserve-on-expand.
type fakeGoalStore struct {
	mu     sync.Mutex
	days   map[string]*models.DailyGoals
	ledger map[string]map[models.GoalType]map[int]bool
}

func newFakeGoalStore() *fakeGoalStore {
	return &fakeGoalStore{
		days:   make(map[string]*models.DailyGoals),
		ledger: make(map[string]map[models.GoalType]map[int]bool),
	}
}

func storeKey(userID int64, trackID, day string) string {
	return fmt.Sprintf("%d:%s:%s", userID, trackID, day)
}

func (s *fakeGoalStore) seed(userID int64, trackID, day string, goals map[models.GoalType]*models.Goal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := storeKey(userID, trackID, day)
	s.days[key] = &models.DailyGoals{UserID: userID, TrackID: trackID, Day: day, Goals: goals}
	s.ledger[key] = make(map[models.GoalType]map[int]bool)
}

func (s *fakeGoalStore) GetDay(ctx context.Context, userID int64, trackID, day string) (*models.DailyGoals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dg, ok := s.days[storeKey(userID, trackID, day)]
	if !ok {
		return nil, nil
	}
	cp := *dg
	cp.Goals = make(map[models.GoalType]*models.Goal, len(dg.Goals))
	for gt, g := range dg.Goals {
		gc := *g
		cp.Goals[gt] = &gc
	}
	return &cp, nil
}

func (s *fakeGoalStore) CreateDay(ctx context.Context, dg *models.DailyGoals) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := storeKey(dg.UserID, dg.TrackID, dg.Day)
	if _, ok := s.days[key]; ok {
		return nil
	}
	s.days[key] = dg
	s.ledger[key] = make(map[models.GoalType]map[int]bool)
	return nil
}

func (s *fakeGoalStore) CreditFact(ctx context.Context, userID int64, trackID, day string, goalType models.GoalType, factID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := storeKey(userID, trackID, day)
	dg, ok := s.days[key]
	if !ok {
		return false, fmt.Errorf("no day record")
	}
	counted := s.ledger[key][goalType]
	if counted == nil {
		counted = make(map[int]bool)
		s.ledger[key][goalType] = counted
	}
	if counted[factID] {
		return false, nil
	}
	g, ok := dg.Goals[goalType]
	if !ok || g.Completed >= g.Total {
		return false, nil
	}
	counted[factID] = true
	g.Completed++
	return true, nil
}

func (s *fakeGoalStore) MarkHalfCompleted(ctx context.Context, userID int64, trackID, day string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dg := s.days[storeKey(userID, trackID, day)]
	if dg == nil || dg.HalfCompleted {
		return false, nil
	}
	dg.HalfCompleted = true
	return true, nil
}

func (s *fakeGoalStore) MarkAllCompleted(ctx context.Context, userID int64, trackID, day string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dg := s.days[storeKey(userID, trackID, day)]
	if dg == nil || dg.AllCompleted {
		return false, nil
	}
	dg.AllCompleted = true
	return true, nil
}

func (s *fakeGoalStore) ExpandGoals(ctx context.Context, userID int64, trackID, day string, add map[models.GoalType]int, assessmentTotal int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dg := s.days[storeKey(userID, trackID, day)]
	if dg == nil {
		return fmt.Errorf("no day record")
	}
	for gt, total := range add {
		if _, ok := dg.Goals[gt]; !ok {
			dg.Goals[gt] = &models.Goal{Total: total}
		}
	}
	if g, ok := dg.Goals[models.GoalAssessment]; ok {
		if assessmentTotal < g.Completed {
			assessmentTotal = g.Completed
		}
		g.Total = assessmentTotal
	}
	return nil
}

type fakeFactSource struct {
	mu     sync.Mutex
	states map[int]*models.FactState
}

func (f *fakeFactSource) set(states map[int]*models.FactState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = states
}

func (f *fakeFactSource) GetFactStates(ctx context.Context, userID int64, trackID string) (map[int]*models.FactState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int]*models.FactState, len(f.states))
	for id, fs := range f.states {
		out[id] = fs
	}
	return out, nil
}

type recordSink struct {
	mu       sync.Mutex
	half     int
	all      int
	learning int
}

func (s *recordSink) HalfCompleted(userID int64, trackID, day string) {
	s.mu.Lock()
	s.half++
	s.mu.Unlock()
}

func (s *recordSink) AllCompleted(userID int64, trackID, day string) {
	s.mu.Lock()
	s.all++
	s.mu.Unlock()
}

func (s *recordSink) LearningGoalCompleted(userID int64, trackID, day string) {
	s.mu.Lock()
	s.learning++
	s.mu.Unlock()
}

func (s *recordSink) counts() (int, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.half, s.all, s.learning
}

func newTestTracker(store *fakeGoalStore, facts *fakeFactSource, sink *recordSink) *Tracker {
	t := NewTracker(store, facts, sink)
	t.pollInterval = 5 * time.Millisecond
	return t
}

const (
	testUser  = int64(7)
	testTrack = "multiplication" // range [368,511], 144 facts
	testDay   = "2024-03-10"
)

func TestSnapshotCreatesDayLazily(t *testing.T) {
	store := newFakeGoalStore()
	tr := newTestTracker(store, &fakeFactSource{}, &recordSink{})

	dg, err := tr.Snapshot(context.Background(), testUser, testTrack)
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	// Nothing attempted: placement sizing, ceil(144/60) = 3 probes.
	if g := dg.Goals[models.GoalAssessment]; g == nil || g.Total != 3 {
		t.Errorf("assessment goal = %+v, want total 3", g)
	}
	if len(dg.Goals) != 1 {
		t.Errorf("got %d goal types, want only assessment", len(dg.Goals))
	}
}

func TestFactCompletedIsIdempotent(t *testing.T) {
	store := newFakeGoalStore()
	store.seed(testUser, testTrack, testDay, map[models.GoalType]*models.Goal{
		models.GoalAccuracy:   {Total: 2},
		models.GoalAssessment: {Total: 1},
	})
	tr := newTestTracker(store, &fakeFactSource{}, &recordSink{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := tr.FactCompleted(ctx, testUser, testTrack, testDay, models.GoalAccuracy, 400); err != nil {
			t.Fatalf("FactCompleted() error: %v", err)
		}
	}
	dg, _ := store.GetDay(ctx, testUser, testTrack, testDay)
	if got := dg.Goals[models.GoalAccuracy].Completed; got != 1 {
		t.Errorf("accuracy completed = %d, want 1 after repeated credits", got)
	}

	if err := tr.FactCompleted(ctx, testUser, testTrack, testDay, models.GoalAccuracy, 401); err != nil {
		t.Fatalf("FactCompleted() error: %v", err)
	}
	dg, _ = store.GetDay(ctx, testUser, testTrack, testDay)
	if got := dg.Goals[models.GoalAccuracy].Completed; got != 2 {
		t.Errorf("accuracy completed = %d, want 2", got)
	}

	// Goal is maxed: further facts are silent no-ops.
	if err := tr.FactCompleted(ctx, testUser, testTrack, testDay, models.GoalAccuracy, 402); err != nil {
		t.Fatalf("FactCompleted() on maxed goal: %v", err)
	}
	dg, _ = store.GetDay(ctx, testUser, testTrack, testDay)
	if got := dg.Goals[models.GoalAccuracy].Completed; got != 2 {
		t.Errorf("accuracy completed = %d, want still 2", got)
	}
}

func TestCreditForAbsentGoalIsNoOp(t *testing.T) {
	store := newFakeGoalStore()
	store.seed(testUser, testTrack, testDay, map[models.GoalType]*models.Goal{
		models.GoalAssessment: {Total: 1},
	})
	tr := newTestTracker(store, &fakeFactSource{}, &recordSink{})

	if err := tr.FactCompleted(context.Background(), testUser, testTrack, testDay, models.GoalLearning, 370); err != nil {
		t.Fatalf("FactCompleted() error: %v", err)
	}
}

func TestCompletionSignalsFireOnce(t *testing.T) {
	store := newFakeGoalStore()
	store.seed(testUser, testTrack, testDay, map[models.GoalType]*models.Goal{
		models.GoalAccuracy: {Total: 1},
		models.GoalFluency:  {Total: 1},
	})
	sink := &recordSink{}
	tr := newTestTracker(store, &fakeFactSource{}, sink)
	ctx := context.Background()

	if err := tr.FactCompleted(ctx, testUser, testTrack, testDay, models.GoalAccuracy, 400); err != nil {
		t.Fatal(err)
	}
	half, all, _ := sink.counts()
	if half != 1 || all != 0 {
		t.Fatalf("after half: signals = (%d half, %d all), want (1, 0)", half, all)
	}

	if err := tr.FactCompleted(ctx, testUser, testTrack, testDay, models.GoalFluency, 401); err != nil {
		t.Fatal(err)
	}
	half, all, _ = sink.counts()
	if half != 1 || all != 1 {
		t.Fatalf("after full: signals = (%d half, %d all), want (1, 1)", half, all)
	}

	// Replaying a credit changes nothing.
	if err := tr.FactCompleted(ctx, testUser, testTrack, testDay, models.GoalFluency, 401); err != nil {
		t.Fatal(err)
	}
	half, all, _ = sink.counts()
	if half != 1 || all != 1 {
		t.Fatalf("after replay: signals = (%d half, %d all), want (1, 1)", half, all)
	}
}

func TestLearningGoalCompletionSignal(t *testing.T) {
	store := newFakeGoalStore()
	store.seed(testUser, testTrack, testDay, map[models.GoalType]*models.Goal{
		models.GoalLearning: {Total: 1},
		models.GoalAccuracy: {Total: 4},
	})
	sink := &recordSink{}
	tr := newTestTracker(store, &fakeFactSource{}, sink)

	if err := tr.FactCompleted(context.Background(), testUser, testTrack, testDay, models.GoalLearning, 370); err != nil {
		t.Fatal(err)
	}
	if _, _, learning := sink.counts(); learning != 1 {
		t.Errorf("learning signals = %d, want 1", learning)
	}
}

func TestRecalcExpandsGoalSetOnce(t *testing.T) {
	store := newFakeGoalStore()
	store.seed(testUser, testTrack, testDay, map[models.GoalType]*models.Goal{
		models.GoalAssessment: {Total: 2},
	})
	facts := &fakeFactSource{}
	tr := newTestTracker(store, facts, &recordSink{})
	ctx := context.Background()

	// Background fact updates have already landed: five facts in learning.
	learning := make(map[int]*models.FactState)
	for i := 0; i < 5; i++ {
		learning[368+i] = &models.FactState{FactID: 368 + i, Status: models.StatusLearning, Attempts: 1}
	}
	facts.set(learning)

	// Completing a probe of a multi-probe assessment starts the loop.
	if err := tr.FactCompleted(ctx, testUser, testTrack, testDay, models.GoalAssessment, 368); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		dg, _ := store.GetDay(ctx, testUser, testTrack, testDay)
		if _, ok := dg.Goals[models.GoalLearning]; ok {
			if g := dg.Goals[models.GoalLearning]; g.Total != 4 || g.Completed != 0 {
				t.Errorf("learning goal = %+v, want total 4 completed 0", g)
			}
			if g := dg.Goals[models.GoalAccuracy]; g == nil || g.Total != 4 {
				t.Errorf("accuracy goal = %+v, want total 4", g)
			}
			// Combined new-goal count 8 -> ceil(8/60) = 1, completed preserved.
			if g := dg.Goals[models.GoalAssessment]; g.Total != 1 || g.Completed != 1 {
				t.Errorf("assessment goal = %+v, want total 1 completed 1", g)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("recalculation never expanded the goal set")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestRecalcRunsOneLoopPerKey(t *testing.T) {
	store := newFakeGoalStore()
	store.seed(testUser, testTrack, testDay, map[models.GoalType]*models.Goal{
		models.GoalAssessment: {Total: 3},
	})
	facts := &fakeFactSource{}
	tr := newTestTracker(store, facts, &recordSink{})
	tr.pollInterval = time.Hour // keep the loop parked for the assertion
	ctx := context.Background()

	if err := tr.FactCompleted(ctx, testUser, testTrack, testDay, models.GoalAssessment, 368); err != nil {
		t.Fatal(err)
	}
	if err := tr.FactCompleted(ctx, testUser, testTrack, testDay, models.GoalAssessment, 369); err != nil {
		t.Fatal(err)
	}

	tr.mu.Lock()
	active := len(tr.recalc)
	tr.mu.Unlock()
	if active != 1 {
		t.Errorf("active recalculation loops = %d, want 1", active)
	}
}
