// Package tracker records the lifecycle of workflow runs and their
// sub-steps. It is the audit backbone every pipeline writes through; it
// owns no business logic of its own.
package tracker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentworld/alba/go/orchestrator/internal/db"
)

// Store is the durable backend. *db.Client satisfies it; tests substitute
// an in-memory fake.
type Store interface {
	InsertRun(ctx context.Context, run *db.Run) error
	FinishRun(ctx context.Context, id uuid.UUID, status string, output db.JSONB, errMsg *string) error
	InsertTask(ctx context.Context, task *db.Task) error
	FinishTask(ctx context.Context, id uuid.UUID, status string, output db.JSONB, errMsg *string) error
}

// Tracker writes run/task state transitions through the store. Each
// run/task has exactly one writer (its creator), so the tracker holds no
// locks of its own; atomicity per record comes from the guarded store
// updates.
type Tracker struct {
	store  Store
	logger *zap.Logger
}

func New(store Store, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{store: store, logger: logger}
}

// StartRun opens a run in the running state and returns its id. A run that
// cannot be recorded is not started: callers must treat the error as fatal
// for the operation.
func (t *Tracker) StartRun(ctx context.Context, agent string, input db.JSONB) (uuid.UUID, error) {
	run := &db.Run{Agent: agent, Input: input}
	if err := t.store.InsertRun(ctx, run); err != nil {
		return uuid.Nil, fmt.Errorf("start run for %s: %w", agent, err)
	}
	return run.ID, nil
}

// CompleteRun finishes a run successfully. The output is recorded iff the
// store confirms the write; on error the run must not be reported as
// completed by any reader.
func (t *Tracker) CompleteRun(ctx context.Context, id uuid.UUID, output db.JSONB) error {
	if err := t.store.FinishRun(ctx, id, db.StatusCompleted, output, nil); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// FailRun finishes a run with an error message.
func (t *Tracker) FailRun(ctx context.Context, id uuid.UUID, msg string) error {
	if err := t.store.FinishRun(ctx, id, db.StatusFailed, nil, &msg); err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	return nil
}

// StartTask opens a task under a run and returns its id.
func (t *Tracker) StartTask(ctx context.Context, runID uuid.UUID, kind string, input db.JSONB) (uuid.UUID, error) {
	task := &db.Task{RunID: runID, Kind: kind, Input: input}
	if err := t.store.InsertTask(ctx, task); err != nil {
		return uuid.Nil, fmt.Errorf("start task %s: %w", kind, err)
	}
	return task.ID, nil
}

// CompleteTask finishes a task successfully.
func (t *Tracker) CompleteTask(ctx context.Context, id uuid.UUID, output db.JSONB) error {
	if err := t.store.FinishTask(ctx, id, db.StatusCompleted, output, nil); err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return nil
}

// FailTask finishes a task with an error message. Task failures are
// isolated: the parent run stays open and sibling tasks proceed.
func (t *Tracker) FailTask(ctx context.Context, id uuid.UUID, msg string) error {
	if err := t.store.FinishTask(ctx, id, db.StatusFailed, nil, &msg); err != nil {
		return fmt.Errorf("fail task: %w", err)
	}
	return nil
}
