package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DB is the global database connection
var DB *sqlx.DB

// Connect establishes a connection to the database. DB_TYPE selects the
// engine ("sqlite" by default); postgres connects via DATABASE_URL, sqlite
// via SQLITE_PATH or a local data directory.
func Connect() error {
	dbType := os.Getenv("DB_TYPE")
	if dbType == "" {
		dbType = "sqlite"
	}

	var db *sqlx.DB
	var err error

	switch dbType {
	case "postgres":
		db, err = sqlx.Connect("postgres", os.Getenv("DATABASE_URL"))
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %v", err)
		}
	default:
		dbPath := os.Getenv("SQLITE_PATH")
		if dbPath == "" {
			dataDir := "data"
			if err := os.MkdirAll(dataDir, 0755); err != nil {
				return fmt.Errorf("failed to create data directory: %v", err)
			}
			dbPath = filepath.Join(dataDir, "mathfacts.db")
		}

		db, err = sqlx.Connect("sqlite3", dbPath)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %v", err)
		}

		// Enable foreign keys
		if _, err = db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return fmt.Errorf("failed to enable foreign keys: %v", err)
		}

		// SQLite doesn't support multiple writers
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	DB = db

	// Initialize schema
	return initializeSchema()
}

// Close closes the database connection
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

// initializeSchema creates necessary tables if they don't exist. The DDL is
// engine-neutral: composite primary keys, no auto-increment columns.
func initializeSchema() error {
	// Create students table
	_, err := DB.Exec(`
		CREATE TABLE IF NOT EXISTS students (
			user_id BIGINT PRIMARY KEY,
			grade INTEGER NOT NULL DEFAULT 2,
			focus_track TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create students table: %v", err)
	}

	// Create track_progress table
	_, err = DB.Exec(`
		CREATE TABLE IF NOT EXISTS track_progress (
			user_id BIGINT NOT NULL,
			track_id TEXT NOT NULL,
			overall_cqpm REAL NOT NULL DEFAULT 0,
			accuracy_rate REAL NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, track_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create track_progress table: %v", err)
	}

	// Create fact_states table
	_, err = DB.Exec(`
		CREATE TABLE IF NOT EXISTS fact_states (
			user_id BIGINT NOT NULL,
			track_id TEXT NOT NULL,
			fact_id INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'notStarted',
			attempts INTEGER NOT NULL DEFAULT 0,
			correct INTEGER NOT NULL DEFAULT 0,
			time_spent_ms INTEGER NOT NULL DEFAULT 0,
			today_stats TEXT NOT NULL DEFAULT '{}',
			status_updated_at TIMESTAMP,
			accuracy_streak INTEGER NOT NULL DEFAULT 0,
			retention_day INTEGER,
			next_retention_date TIMESTAMP,
			version INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, track_id, fact_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create fact_states table: %v", err)
	}

	// Create daily_goals table
	_, err = DB.Exec(`
		CREATE TABLE IF NOT EXISTS daily_goals (
			user_id BIGINT NOT NULL,
			track_id TEXT NOT NULL,
			day TEXT NOT NULL,
			half_completed BOOLEAN NOT NULL DEFAULT FALSE,
			all_completed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, track_id, day)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create daily_goals table: %v", err)
	}

	// Create daily_goal_items table
	_, err = DB.Exec(`
		CREATE TABLE IF NOT EXISTS daily_goal_items (
			user_id BIGINT NOT NULL,
			track_id TEXT NOT NULL,
			day TEXT NOT NULL,
			goal_type TEXT NOT NULL,
			total INTEGER NOT NULL DEFAULT 0,
			completed INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, track_id, day, goal_type)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create daily_goal_items table: %v", err)
	}

	// Create goal_completed_facts table (the idempotency ledger)
	_, err = DB.Exec(`
		CREATE TABLE IF NOT EXISTS goal_completed_facts (
			user_id BIGINT NOT NULL,
			track_id TEXT NOT NULL,
			day TEXT NOT NULL,
			goal_type TEXT NOT NULL,
			fact_id INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, track_id, day, goal_type, fact_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create goal_completed_facts table: %v", err)
	}

	return nil
}
