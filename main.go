package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/example/mathfacts/internal/curriculum"
	"github.com/example/mathfacts/internal/database"
	"github.com/example/mathfacts/internal/goals"
	"github.com/example/mathfacts/internal/notify"
	"github.com/example/mathfacts/internal/progression"
	"github.com/example/mathfacts/internal/scheduler"
)

// Wiring checks: the repositories must satisfy the engine and tracker
// store contracts.
var (
	_ progression.FactStore      = (*database.FactStateRepository)(nil)
	_ progression.AggregateStore = (*database.TrackProgressRepository)(nil)
	_ progression.StudentStore   = (*database.StudentRepository)(nil)
	_ progression.GoalTracker    = (*goals.Tracker)(nil)
	_ goals.Store                = (*database.DailyGoalRepository)(nil)
	_ goals.FactSource           = (*database.FactStateRepository)(nil)
	_ goals.Sink                 = (*notify.TelegramSink)(nil)
	_ scheduler.Notifier         = (*notify.TelegramSink)(nil)
)

func main() {
	// Load .env if present; deployed environments set variables directly.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Skipping .env: %v", err)
	}

	if err := database.Connect(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// A deployment-specific curriculum replaces the built-in tables.
	if path := os.Getenv("CURRICULUM_FILE"); path != "" {
		result, err := curriculum.Import(curriculum.DefaultImportConfig(path))
		if err != nil {
			log.Fatalf("Failed to import curriculum: %v", err)
		}
		log.Printf("Curriculum loaded: %d tracks, %d grade targets", result.TracksLoaded, result.TargetsLoaded)
		for _, e := range result.Errors {
			log.Printf("Curriculum import: %s", e)
		}
	}

	factRepo := database.NewFactStateRepository()
	goalRepo := database.NewDailyGoalRepository()

	var sink interface {
		goals.Sink
		scheduler.Notifier
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		tg, err := notify.NewTelegramSink(token)
		if err != nil {
			log.Fatalf("Failed to create telegram sink: %v", err)
		}
		sink = tg
	} else {
		sink = notify.NewLogSink()
	}

	tracker := goals.NewTracker(goalRepo, factRepo, sink)

	sched := scheduler.New(sink, tracker)
	sched.Start()
	defer sched.Stop()

	log.Println("Mastery engine started. Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("Received signal: %v, shutting down", sig)
}
