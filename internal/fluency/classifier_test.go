package fluency

import (
	"testing"

	"github.com/example/mathfacts/pkg/models"
)

func TestStageFor(t *testing.T) {
	tests := []struct {
		name   string
		avg    float64
		target float64
		want   models.Status
	}{
		{"at grade target", 3.0, 3.0, models.StatusMastered},
		{"under grade target", 2.1, 3.0, models.StatusMastered},
		{"under one second beats any target", 0.9, 0.5, models.StatusMastered},
		{"exactly one second", 1.0, 0.5, models.StatusMastered},
		{"just over target within 1.5s", 1.4, 1.2, models.StatusFluency1},
		{"two seconds", 2.0, 1.5, models.StatusFluency15},
		{"between two and three", 2.8, 2.0, models.StatusFluency2},
		{"five seconds", 5.0, 3.0, models.StatusFluency3},
		{"six seconds", 6.0, 3.0, models.StatusFluency3},
		{"very slow", 8.0, 3.0, models.StatusFluency6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StageFor(tt.avg, tt.target); got != tt.want {
				t.Errorf("StageFor(%v, %v) = %v, want %v", tt.avg, tt.target, got, tt.want)
			}
		})
	}
}

func TestStageForNeverReturnsNonFluencyStage(t *testing.T) {
	for avg := 0.1; avg < 12; avg += 0.3 {
		got := StageFor(avg, 2.0)
		if got != models.StatusMastered && !got.IsFluency() {
			t.Fatalf("StageFor(%v, 2.0) = %v, not a fluency stage or mastered", avg, got)
		}
	}
}
