package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JSONB represents a PostgreSQL jsonb column
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into JSONB", value)
	}

	return json.Unmarshal(bytes, j)
}

// Run and task lifecycle states. Transitions only move forward:
// pending -> running -> completed|failed.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Lead statuses.
const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusQualified = "qualified"
	LeadStatusConverted = "converted"
	LeadStatusLost      = "lost"
)

// ClientRecord is a configured customer the fleet sweep iterates over.
// Named to avoid clashing with the connection Client.
type ClientRecord struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Handle    *string   `db:"handle" json:"handle,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Lead is a prospective contact. Leads are never deleted; superseded
// duplicates are marked lost so the audit trail survives.
type Lead struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	ClientID    *uuid.UUID `db:"client_id" json:"clientId,omitempty"`
	Source      string     `db:"source" json:"source"`
	Name        *string    `db:"name" json:"name,omitempty"`
	Handle      *string    `db:"handle" json:"handle,omitempty"`
	URL         *string    `db:"url" json:"url,omitempty"`
	Location    *string    `db:"location" json:"location,omitempty"`
	Email       *string    `db:"email" json:"email,omitempty"`
	Phone       *string    `db:"phone" json:"phone,omitempty"`
	Status      string     `db:"status" json:"status"`
	Score       JSONB      `db:"score" json:"score,omitempty"`
	Fingerprint *string    `db:"fingerprint" json:"fingerprint,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
}

// Run is one execution of a named workflow or tool invocation.
type Run struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	Agent      string     `db:"agent" json:"agent"`
	Input      JSONB      `db:"input" json:"input,omitempty"`
	Output     JSONB      `db:"output" json:"output,omitempty"`
	Status     string     `db:"status" json:"status"`
	Error      *string    `db:"error" json:"error,omitempty"`
	StartedAt  *time.Time `db:"started_at" json:"startedAt,omitempty"`
	FinishedAt *time.Time `db:"finished_at" json:"finishedAt,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
}

// Task is one sub-step of a run, e.g. a single provider call. Tasks fail
// independently without failing the parent run.
type Task struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	RunID      uuid.UUID  `db:"run_id" json:"runId"`
	Kind       string     `db:"kind" json:"kind"`
	Status     string     `db:"status" json:"status"`
	Input      JSONB      `db:"input" json:"input,omitempty"`
	Output     JSONB      `db:"output" json:"output,omitempty"`
	Error      *string    `db:"error" json:"error,omitempty"`
	FinishedAt *time.Time `db:"finished_at" json:"finishedAt,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
}

// Interaction is an append-only contact event tied to a lead.
type Interaction struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	LeadID    *uuid.UUID `db:"lead_id" json:"leadId,omitempty"`
	Channel   string     `db:"channel" json:"channel"`
	Direction string     `db:"direction" json:"direction"`
	Content   string     `db:"content" json:"content"`
	Metadata  JSONB      `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}

// Memory is a free-text content blob, optionally linked to an entity.
type Memory struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	Content    string     `db:"content" json:"content"`
	EntityType *string    `db:"entity_type" json:"entityType,omitempty"`
	EntityID   *uuid.UUID `db:"entity_id" json:"entityId,omitempty"`
	Metadata   JSONB      `db:"metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
}

// MemoryLink joins a memory record to an entity.
type MemoryLink struct {
	ID         uuid.UUID `db:"id" json:"id"`
	EntityType string    `db:"entity_type" json:"entityType"`
	EntityID   uuid.UUID `db:"entity_id" json:"entityId"`
	MemoryID   uuid.UUID `db:"memory_id" json:"memoryId"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
