package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrAlreadyFinished is returned when a finish write matches no open
// run/task row: the record either does not exist or has already reached a
// terminal status. Finishing twice is rejected, never silently overwritten.
var ErrAlreadyFinished = errors.New("run or task already finished")

// InsertRun persists a run in the running state.
func (c *Client) InsertRun(ctx context.Context, run *Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	now := time.Now()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	if run.Status == "" {
		run.Status = StatusRunning
	}
	if run.StartedAt == nil {
		run.StartedAt = &now
	}

	query := `
		INSERT INTO runs (id, agent, input, output, status, error, started_at, finished_at, created_at)
		VALUES (:id, :agent, :input, :output, :status, :error, :started_at, :finished_at, :created_at)`

	if _, err := c.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	c.logger.Debug("Run started",
		zap.String("run_id", run.ID.String()),
		zap.String("agent", run.Agent),
	)
	return nil
}

// FinishRun moves an open run to a terminal status. The guard on the
// current status makes the transition invariant hold at the store: a run
// that is already completed or failed never matches, so the caller gets
// ErrAlreadyFinished instead of an overwrite.
func (c *Client) FinishRun(ctx context.Context, id uuid.UUID, status string, output JSONB, errMsg *string) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE runs
		SET status = $2, output = $3, error = $4, finished_at = $5
		WHERE id = $1 AND status IN ($6, $7)`,
		id, status, output, errMsg, time.Now(), StatusPending, StatusRunning)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to confirm run finish: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %s: %w", id, ErrAlreadyFinished)
	}
	return nil
}

// GetRun fetches one run; returns nil when it does not exist.
func (c *Client) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	var run Run
	err := c.db.GetContext(ctx, &run, `SELECT * FROM runs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// RecentRuns lists the newest runs for display.
func (c *Client) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	var out []Run
	err := c.db.SelectContext(ctx, &out, `
		SELECT * FROM runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent runs: %w", err)
	}
	return out, nil
}

// InsertTask persists a task in the running state under its parent run.
func (c *Client) InsertTask(ctx context.Context, task *Task) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	if task.Status == "" {
		task.Status = StatusRunning
	}

	query := `
		INSERT INTO tasks (id, run_id, kind, status, input, output, error, finished_at, created_at)
		VALUES (:id, :run_id, :kind, :status, :input, :output, :error, :finished_at, :created_at)`

	if _, err := c.db.NamedExecContext(ctx, query, task); err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// FinishTask moves an open task to a terminal status, with the same guard
// as FinishRun.
func (c *Client) FinishTask(ctx context.Context, id uuid.UUID, status string, output JSONB, errMsg *string) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $2, output = $3, error = $4, finished_at = $5
		WHERE id = $1 AND status IN ($6, $7)`,
		id, status, output, errMsg, time.Now(), StatusPending, StatusRunning)
	if err != nil {
		return fmt.Errorf("failed to finish task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to confirm task finish: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", id, ErrAlreadyFinished)
	}
	return nil
}

// ListTasksForRun returns a run's tasks in creation order.
func (c *Client) ListTasksForRun(ctx context.Context, runID uuid.UUID) ([]Task, error) {
	var out []Task
	err := c.db.SelectContext(ctx, &out, `
		SELECT * FROM tasks WHERE run_id = $1 ORDER BY created_at ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return out, nil
}
