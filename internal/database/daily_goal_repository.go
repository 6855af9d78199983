package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/example/mathfacts/pkg/models"
)

// DailyGoalRepository handles database operations for daily goal records.
// Every counter mutation goes through a guarded write so concurrent or
// retried requests cannot double count.
type DailyGoalRepository struct{}

// NewDailyGoalRepository creates a new repository instance
func NewDailyGoalRepository() *DailyGoalRepository {
	return &DailyGoalRepository{}
}

type goalItemRow struct {
	GoalType  string `db:"goal_type"`
	Total     int    `db:"total"`
	Completed int    `db:"completed"`
}

type ledgerRow struct {
	GoalType string `db:"goal_type"`
	FactID   int    `db:"fact_id"`
}

// GetDay loads one day's goal record with its counters and ledger. Returns
// (nil, nil) when no record exists yet so the caller can create it lazily.
func (r *DailyGoalRepository) GetDay(ctx context.Context, userID int64, trackID, day string) (*models.DailyGoals, error) {
	var dg models.DailyGoals
	query := `
		SELECT user_id, track_id, day, half_completed, all_completed, created_at, updated_at
		FROM daily_goals
		WHERE user_id = $1 AND track_id = $2 AND day = $3
	`
	err := DB.GetContext(ctx, &dg, query, userID, trackID, day)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get daily goals: %v", err)
	}

	var items []goalItemRow
	query = `
		SELECT goal_type, total, completed
		FROM daily_goal_items
		WHERE user_id = $1 AND track_id = $2 AND day = $3
	`
	if err := DB.SelectContext(ctx, &items, query, userID, trackID, day); err != nil {
		return nil, fmt.Errorf("failed to get goal items: %v", err)
	}
	dg.Goals = make(map[models.GoalType]*models.Goal, len(items))
	for _, it := range items {
		dg.Goals[models.GoalType(it.GoalType)] = &models.Goal{Total: it.Total, Completed: it.Completed}
	}

	var ledger []ledgerRow
	query = `
		SELECT goal_type, fact_id
		FROM goal_completed_facts
		WHERE user_id = $1 AND track_id = $2 AND day = $3
		ORDER BY goal_type, fact_id
	`
	if err := DB.SelectContext(ctx, &ledger, query, userID, trackID, day); err != nil {
		return nil, fmt.Errorf("failed to get goal ledger: %v", err)
	}
	dg.CompletedFacts = make(map[models.GoalType][]int)
	for _, row := range ledger {
		gt := models.GoalType(row.GoalType)
		dg.CompletedFacts[gt] = append(dg.CompletedFacts[gt], row.FactID)
	}

	return &dg, nil
}

// CreateDay inserts a freshly calculated goal set for a day. If another
// request created the day first, the existing record wins and this call is a
// no-op; callers should reload.
func (r *DailyGoalRepository) CreateDay(ctx context.Context, dg *models.DailyGoals) error {
	tx, err := DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO daily_goals (user_id, track_id, day, half_completed, all_completed, created_at, updated_at)
		VALUES ($1, $2, $3, FALSE, FALSE, $4, $4)
		ON CONFLICT (user_id, track_id, day) DO NOTHING
	`, dg.UserID, dg.TrackID, dg.Day, now)
	if err != nil {
		return fmt.Errorf("failed to create daily goals: %v", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check daily goals write: %v", err)
	}
	if affected == 0 {
		// Lost the creation race; the winner's goal set stands.
		return nil
	}

	// Deterministic insert order keeps multi-statement failures debuggable.
	types := make([]string, 0, len(dg.Goals))
	for gt := range dg.Goals {
		types = append(types, string(gt))
	}
	sort.Strings(types)
	for _, gt := range types {
		g := dg.Goals[models.GoalType(gt)]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO daily_goal_items (user_id, track_id, day, goal_type, total, completed)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, dg.UserID, dg.TrackID, dg.Day, gt, g.Total, g.Completed)
		if err != nil {
			return fmt.Errorf("failed to create %s goal: %v", gt, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit daily goals: %v", err)
	}
	dg.CreatedAt = now
	dg.UpdatedAt = now
	return nil
}

// CreditFact idempotently counts a fact toward a goal type. The write only
// lands if the fact is not already in the ledger and the goal exists with
// completed < total. Returns whether the credit was applied; a precondition
// miss is a no-op, not an error.
func (r *DailyGoalRepository) CreditFact(ctx context.Context, userID int64, trackID, day string, goalType models.GoalType, factID int) (bool, error) {
	tx, err := DB.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO goal_completed_facts (user_id, track_id, day, goal_type, fact_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, track_id, day, goal_type, fact_id) DO NOTHING
	`, userID, trackID, day, string(goalType), factID)
	if err != nil {
		return false, fmt.Errorf("failed to write goal ledger: %v", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check goal ledger write: %v", err)
	}
	if affected == 0 {
		// Already counted today.
		return false, nil
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE daily_goal_items
		SET completed = completed + 1
		WHERE user_id = $1 AND track_id = $2 AND day = $3 AND goal_type = $4
		  AND completed < total
	`, userID, trackID, day, string(goalType))
	if err != nil {
		return false, fmt.Errorf("failed to increment goal: %v", err)
	}
	affected, err = res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check goal increment: %v", err)
	}
	if affected == 0 {
		// Goal absent or already at max; roll the ledger entry back too.
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE daily_goals SET updated_at = $1
		WHERE user_id = $2 AND track_id = $3 AND day = $4
	`, time.Now().UTC(), userID, trackID, day)
	if err != nil {
		return false, fmt.Errorf("failed to touch daily goals: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit goal credit: %v", err)
	}
	return true, nil
}

// MarkHalfCompleted sets the monotonic half-completion flag. Returns true
// only for the single caller that flips it.
func (r *DailyGoalRepository) MarkHalfCompleted(ctx context.Context, userID int64, trackID, day string) (bool, error) {
	return r.markFlag(ctx, "half_completed", userID, trackID, day)
}

// MarkAllCompleted sets the monotonic full-completion flag. Returns true
// only for the single caller that flips it.
func (r *DailyGoalRepository) MarkAllCompleted(ctx context.Context, userID int64, trackID, day string) (bool, error) {
	return r.markFlag(ctx, "all_completed", userID, trackID, day)
}

func (r *DailyGoalRepository) markFlag(ctx context.Context, column string, userID int64, trackID, day string) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE daily_goals SET %s = TRUE, updated_at = $1
		WHERE user_id = $2 AND track_id = $3 AND day = $4 AND %s = FALSE
	`, column, column)
	res, err := DB.ExecContext(ctx, query, time.Now().UTC(), userID, trackID, day)
	if err != nil {
		return false, fmt.Errorf("failed to set %s: %v", column, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check %s write: %v", column, err)
	}
	return affected > 0, nil
}

// ExpandGoals atomically adds newly available goal types to an existing day
// and resizes the assessment goal, preserving completed counts for every
// goal type already present.
func (r *DailyGoalRepository) ExpandGoals(ctx context.Context, userID int64, trackID, day string, add map[models.GoalType]int, assessmentTotal int) error {
	tx, err := DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	types := make([]string, 0, len(add))
	for gt := range add {
		types = append(types, string(gt))
	}
	sort.Strings(types)
	for _, gt := range types {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO daily_goal_items (user_id, track_id, day, goal_type, total, completed)
			VALUES ($1, $2, $3, $4, $5, 0)
			ON CONFLICT (user_id, track_id, day, goal_type) DO NOTHING
		`, userID, trackID, day, gt, add[models.GoalType(gt)])
		if err != nil {
			return fmt.Errorf("failed to add %s goal: %v", gt, err)
		}
	}

	// Never shrink below what is already completed.
	_, err = tx.ExecContext(ctx, `
		UPDATE daily_goal_items
		SET total = CASE WHEN completed > $1 THEN completed ELSE $1 END
		WHERE user_id = $2 AND track_id = $3 AND day = $4 AND goal_type = 'assessment'
	`, assessmentTotal, userID, trackID, day)
	if err != nil {
		return fmt.Errorf("failed to resize assessment goal: %v", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE daily_goals SET updated_at = $1
		WHERE user_id = $2 AND track_id = $3 AND day = $4
	`, time.Now().UTC(), userID, trackID, day)
	if err != nil {
		return fmt.Errorf("failed to touch daily goals: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit goal expansion: %v", err)
	}
	return nil
}
