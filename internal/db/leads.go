package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// InsertLead persists a new lead. ID and created_at are assigned when zero.
func (c *Client) InsertLead(ctx context.Context, lead *Lead) error {
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now()
	}
	if lead.Status == "" {
		lead.Status = LeadStatusNew
	}

	query := `
		INSERT INTO leads (
			id, client_id, source, name, handle, url, location, email, phone,
			status, score, fingerprint, created_at
		) VALUES (
			:id, :client_id, :source, :name, :handle, :url, :location, :email, :phone,
			:status, :score, :fingerprint, :created_at
		)`

	if _, err := c.db.NamedExecContext(ctx, query, lead); err != nil {
		return fmt.Errorf("failed to insert lead: %w", err)
	}

	c.logger.Debug("Lead saved",
		zap.String("lead_id", lead.ID.String()),
		zap.String("source", lead.Source),
	)
	return nil
}

// GetLead fetches one lead by id; returns nil when the lead does not exist.
func (c *Client) GetLead(ctx context.Context, id uuid.UUID) (*Lead, error) {
	var lead Lead
	err := c.db.GetContext(ctx, &lead, `SELECT * FROM leads WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return &lead, nil
}

// FindActiveLeadByFingerprint returns the oldest non-lost lead carrying the
// fingerprint, or nil when none exists.
func (c *Client) FindActiveLeadByFingerprint(ctx context.Context, fingerprint string) (*Lead, error) {
	var lead Lead
	err := c.db.GetContext(ctx, &lead, `
		SELECT * FROM leads
		WHERE fingerprint = $1 AND status != $2
		ORDER BY created_at ASC
		LIMIT 1`, fingerprint, LeadStatusLost)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up fingerprint: %w", err)
	}
	return &lead, nil
}

// CountActiveDuplicates counts non-lost leads sharing the fingerprint,
// excluding the given lead.
func (c *Client) CountActiveDuplicates(ctx context.Context, fingerprint string, exclude uuid.UUID) (int, error) {
	var n int
	err := c.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM leads
		WHERE fingerprint = $1 AND status != $2 AND id != $3`,
		fingerprint, LeadStatusLost, exclude)
	if err != nil {
		return 0, fmt.Errorf("failed to count duplicates: %w", err)
	}
	return n, nil
}

// ListLeadsByIDs fetches the given leads in creation order.
func (c *Client) ListLeadsByIDs(ctx context.Context, ids []uuid.UUID) ([]Lead, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM leads WHERE id IN (?) ORDER BY created_at ASC`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build lead query: %w", err)
	}
	query = c.db.Rebind(query)

	var out []Lead
	if err := c.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	return out, nil
}

// ListLeadsByStatus fetches leads in a status, oldest first.
func (c *Client) ListLeadsByStatus(ctx context.Context, status string, limit int) ([]Lead, error) {
	var out []Lead
	err := c.db.SelectContext(ctx, &out, `
		SELECT * FROM leads WHERE status = $1 ORDER BY created_at ASC LIMIT $2`,
		status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads by status: %w", err)
	}
	return out, nil
}

// RecentLeads lists the newest leads for display.
func (c *Client) RecentLeads(ctx context.Context, limit int) ([]Lead, error) {
	var out []Lead
	err := c.db.SelectContext(ctx, &out, `
		SELECT * FROM leads ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent leads: %w", err)
	}
	return out, nil
}

// UpdateLeadEnrichment writes back normalized contact fields and the score.
func (c *Client) UpdateLeadEnrichment(ctx context.Context, id uuid.UUID, email, phone *string, score JSONB) error {
	_, err := c.db.ExecContext(ctx, `
		UPDATE leads SET email = COALESCE($2, email), phone = COALESCE($3, phone), score = $4
		WHERE id = $1`, id, email, phone, score)
	if err != nil {
		return fmt.Errorf("failed to update lead enrichment: %w", err)
	}
	return nil
}

// UpdateLeadStatus moves a lead to the given status.
func (c *Client) UpdateLeadStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := c.db.ExecContext(ctx, `UPDATE leads SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update lead status: %w", err)
	}
	return nil
}

// InsertInteraction appends a contact event for a lead.
func (c *Client) InsertInteraction(ctx context.Context, in *Interaction) error {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now()
	}
	if in.Direction == "" {
		in.Direction = "outbound"
	}

	query := `
		INSERT INTO interactions (id, lead_id, channel, direction, content, metadata, created_at)
		VALUES (:id, :lead_id, :channel, :direction, :content, :metadata, :created_at)`

	if _, err := c.db.NamedExecContext(ctx, query, in); err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}
	return nil
}

// ListClients returns every configured client, oldest first.
func (c *Client) ListClients(ctx context.Context) ([]ClientRecord, error) {
	var out []ClientRecord
	err := c.db.SelectContext(ctx, &out, `SELECT * FROM clients ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return out, nil
}
