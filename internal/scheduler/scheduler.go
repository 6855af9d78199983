package scheduler

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/example/mathfacts/internal/database"
	"github.com/example/mathfacts/pkg/models"
	"github.com/go-co-op/gocron"
)

// Default notification window (UTC hours)
const (
	DefaultNotificationStartHour = 13
	DefaultNotificationEndHour   = 23
)

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	notifier  Notifier
	goals     GoalWarmer
}

// Notifier interface for sending notifications
type Notifier interface {
	SendRetentionReminder(userID int64, count int) error
}

// GoalWarmer creates a day's goal record ahead of the student's first
// practice request.
type GoalWarmer interface {
	Snapshot(ctx context.Context, userID int64, trackID string) (*models.DailyGoals, error)
}

// New creates a new scheduler instance
func New(notifier Notifier, goals GoalWarmer) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		notifier:  notifier,
		goals:     goals,
	}
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() {
	// Schedule hourly check for students with retention tests due
	s.scheduler.Every(1).Hour().Do(s.checkAndSendReminders)

	// Pre-create goal records shortly after the UTC day rolls over
	s.scheduler.Every(1).Day().At("00:10").Do(s.warmDailyGoals)

	// Start the scheduler in a non-blocking manner
	s.scheduler.StartAsync()
}

// warmDailyGoals derives today's goal sets for every active student so the
// first practice request of the day does not pay the derivation cost.
func (s *Scheduler) warmDailyGoals() {
	factRepo := database.NewFactStateRepository()

	tracks, err := factRepo.GetActiveTracks(context.Background())
	if err != nil {
		log.Printf("Error getting active tracks: %v", err)
		return
	}

	for _, at := range tracks {
		if _, err := s.goals.Snapshot(context.Background(), at.UserID, at.TrackID); err != nil {
			log.Printf("Error warming goals for user %d track %s: %v", at.UserID, at.TrackID, err)
		}
	}
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// checkAndSendReminders finds students with mastered facts due for a
// retention test and pings them through the notifier.
func (s *Scheduler) checkAndSendReminders() {
	currentHour := time.Now().UTC().Hour()

	startHour := DefaultNotificationStartHour
	endHour := DefaultNotificationEndHour

	if startHourStr := os.Getenv("NOTIFICATION_START_HOUR"); startHourStr != "" {
		if h, err := strconv.Atoi(startHourStr); err == nil && h >= 0 && h <= 23 {
			startHour = h
		}
	}
	if endHourStr := os.Getenv("NOTIFICATION_END_HOUR"); endHourStr != "" {
		if h, err := strconv.Atoi(endHourStr); err == nil && h >= 0 && h <= 23 {
			endHour = h
		}
	}

	if currentHour < startHour || currentHour > endHour {
		log.Printf("Current hour %d is outside notification hours (%d-%d), skipping reminders",
			currentHour, startHour, endHour)
		return
	}

	factRepo := database.NewFactStateRepository()

	due, err := factRepo.GetDueRetentionCounts(context.Background(), time.Now().UTC())
	if err != nil {
		log.Printf("Error getting due retention counts: %v", err)
		return
	}

	for _, d := range due {
		if err := s.notifier.SendRetentionReminder(d.UserID, d.Due); err != nil {
			log.Printf("Error sending retention reminder to user %d: %v", d.UserID, err)
		}
	}
}

// RunManualCheck forces a reminder check for a specific user
func (s *Scheduler) RunManualCheck(userID int64) error {
	factRepo := database.NewFactStateRepository()

	due, err := factRepo.GetDueRetentionCounts(context.Background(), time.Now().UTC())
	if err != nil {
		return err
	}

	for _, d := range due {
		if d.UserID == userID && d.Due > 0 {
			return s.notifier.SendRetentionReminder(d.UserID, d.Due)
		}
	}
	return nil
}
