package retention

import (
	"testing"
	"time"

	"github.com/example/mathfacts/pkg/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intPtr(n int) *int { return &n }

func timePtr(t time.Time) *time.Time { return &t }

func TestEvaluateFirstDayAfterMastery(t *testing.T) {
	today := date(2024, 3, 10)
	res := Evaluate(nil, nil, today, 1.2, 1.0, 2.0)

	if res.Outcome != OutcomeStarted {
		t.Fatalf("outcome = %v, want OutcomeStarted", res.Outcome)
	}
	if res.Status != models.StatusMastered {
		t.Errorf("status = %v, want mastered", res.Status)
	}
	if res.RetentionDay == nil || *res.RetentionDay != 1 {
		t.Errorf("retention day = %v, want 1", res.RetentionDay)
	}
	if res.NextRetentionDate == nil || !res.NextRetentionDate.Equal(date(2024, 3, 11)) {
		t.Errorf("next date = %v, want tomorrow", res.NextRetentionDate)
	}
}

func TestEvaluateNotDue(t *testing.T) {
	today := date(2024, 3, 10)
	next := date(2024, 3, 14)
	res := Evaluate(intPtr(7), timePtr(next), today, 1.2, 0.95, 2.0)

	if res.Outcome != OutcomeNotDue {
		t.Fatalf("outcome = %v, want OutcomeNotDue", res.Outcome)
	}
	if *res.RetentionDay != 7 || !res.NextRetentionDate.Equal(next) {
		t.Errorf("schedule changed on a not-due day: day=%v next=%v", *res.RetentionDay, res.NextRetentionDate)
	}
}

func TestEvaluatePassAdvancesSchedule(t *testing.T) {
	today := date(2024, 3, 10)
	res := Evaluate(intPtr(7), timePtr(today), today, 1.5, 0.95, 2.0)

	if res.Outcome != OutcomePass {
		t.Fatalf("outcome = %v, want OutcomePass", res.Outcome)
	}
	if res.RetentionDay == nil || *res.RetentionDay != 16 {
		t.Errorf("retention day = %v, want 16", res.RetentionDay)
	}
	// 16 - 7 = 9 days out
	if res.NextRetentionDate == nil || !res.NextRetentionDate.Equal(date(2024, 3, 19)) {
		t.Errorf("next date = %v, want 2024-03-19", res.NextRetentionDate)
	}
}

func TestEvaluateSlowRetriesTomorrow(t *testing.T) {
	today := date(2024, 3, 10)
	res := Evaluate(intPtr(7), timePtr(today), today, 3.5, 0.95, 2.0)

	if res.Outcome != OutcomeSlow {
		t.Fatalf("outcome = %v, want OutcomeSlow", res.Outcome)
	}
	if res.Status != models.StatusMastered {
		t.Errorf("status = %v, want mastered", res.Status)
	}
	if *res.RetentionDay != 7 {
		t.Errorf("retention day = %d, want unchanged 7", *res.RetentionDay)
	}
	if !res.NextRetentionDate.Equal(date(2024, 3, 11)) {
		t.Errorf("next date = %v, want tomorrow", res.NextRetentionDate)
	}
}

func TestEvaluateFailDemotes(t *testing.T) {
	today := date(2024, 3, 10)
	res := Evaluate(intPtr(7), timePtr(today), today, 2.5, 0.85, 2.0)

	if res.Outcome != OutcomeFail {
		t.Fatalf("outcome = %v, want OutcomeFail", res.Outcome)
	}
	// 2.5s with a 2.0s target classifies into the 3-second stage
	if res.Status != models.StatusFluency2 {
		t.Errorf("status = %v, want fluency2", res.Status)
	}
	if res.RetentionDay != nil || res.NextRetentionDate != nil {
		t.Errorf("retention fields not cleared on fail: day=%v next=%v", res.RetentionDay, res.NextRetentionDate)
	}
}

func TestEvaluateGraduatesAtFinalEntry(t *testing.T) {
	today := date(2024, 3, 10)
	res := Evaluate(intPtr(75), timePtr(today), today, 1.1, 0.97, 2.0)

	if res.Outcome != OutcomeGraduated {
		t.Fatalf("outcome = %v, want OutcomeGraduated", res.Outcome)
	}
	if res.Status != models.StatusAutomatic {
		t.Errorf("status = %v, want automatic", res.Status)
	}
	if res.RetentionDay != nil || res.NextRetentionDate != nil {
		t.Errorf("retention fields not cleared on graduation: day=%v next=%v", res.RetentionDay, res.NextRetentionDate)
	}
}

func TestEvaluateOverdueTestStillRuns(t *testing.T) {
	today := date(2024, 3, 10)
	res := Evaluate(intPtr(1), timePtr(date(2024, 3, 1)), today, 1.5, 0.95, 2.0)

	if res.Outcome != OutcomePass {
		t.Fatalf("outcome = %v, want OutcomePass on an overdue test", res.Outcome)
	}
	if *res.RetentionDay != 3 {
		t.Errorf("retention day = %d, want 3", *res.RetentionDay)
	}
}

func TestScheduleIsMonotonic(t *testing.T) {
	today := date(2024, 3, 10)
	day := intPtr(Schedule[0])
	next := timePtr(today)

	for i := 0; i < len(Schedule); i++ {
		res := Evaluate(day, next, today, 1.0, 0.99, 2.0)
		if res.Status == models.StatusAutomatic {
			if i != len(Schedule)-1 {
				t.Fatalf("graduated after %d passes, want %d", i+1, len(Schedule))
			}
			return
		}
		if *res.RetentionDay <= *day {
			t.Fatalf("retention day went backwards: %d -> %d", *day, *res.RetentionDay)
		}
		day = res.RetentionDay
		today = *res.NextRetentionDate
		next = res.NextRetentionDate
	}
	t.Fatal("never graduated")
}
