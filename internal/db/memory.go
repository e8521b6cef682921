package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SaveMemory persists a free-text memory record.
func (c *Client) SaveMemory(ctx context.Context, mem *Memory) error {
	if mem.ID == uuid.Nil {
		mem.ID = uuid.New()
	}
	if mem.CreatedAt.IsZero() {
		mem.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO memories (id, content, entity_type, entity_id, metadata, created_at)
		VALUES (:id, :content, :entity_type, :entity_id, :metadata, :created_at)`

	if _, err := c.db.NamedExecContext(ctx, query, mem); err != nil {
		return fmt.Errorf("failed to save memory: %w", err)
	}
	return nil
}

// LinkMemory attaches a memory record to an entity.
func (c *Client) LinkMemory(ctx context.Context, link *MemoryLink) error {
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO memory_links (id, entity_type, entity_id, memory_id, created_at)
		VALUES (:id, :entity_type, :entity_id, :memory_id, :created_at)`

	if _, err := c.db.NamedExecContext(ctx, query, link); err != nil {
		return fmt.Errorf("failed to link memory: %w", err)
	}
	return nil
}

// SearchMemories does a plain substring match over memory content, newest
// first. Semantic ranking lives behind the same contract and can replace
// this without touching callers.
func (c *Client) SearchMemories(ctx context.Context, query string, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 5
	}
	var out []Memory
	err := c.db.SelectContext(ctx, &out, `
		SELECT * FROM memories
		WHERE content ILIKE '%' || $1 || '%'
		ORDER BY created_at DESC
		LIMIT $2`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search memories: %w", err)
	}
	return out, nil
}
