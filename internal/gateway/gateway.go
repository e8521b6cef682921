// Package gateway is the uniform interface to external providers. Every
// action a workflow step can take against the outside world goes through
// one capability call, named `<provider>_<action>`, so steps never talk to
// provider SDKs directly.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/agentworld/alba/go/orchestrator/internal/db"
)

// The closed set of capability actions. Dispatch happens over these tags,
// never over free-form strings from callers.
const (
	ActionWebSearch      = "exa_search"
	ActionSocialScrape   = "apify_instagram_scraper"
	ActionBrowserComment = "stagehand_comment"
	ActionBrowserDM      = "stagehand_dm"
	ActionMemorySearch   = "memory_search"
	ActionMemoryWrite    = "memory_write"
)

// ErrUnknownAction is returned by Invoke for action names outside the set.
var ErrUnknownAction = errors.New("unknown capability action")

// ProviderError is a recoverable failure of an external provider call,
// including timeouts. Callers decide whether to retry or skip; it must
// never crash the invoking step.
type ProviderError struct {
	Action     string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: provider returned %d: %s", e.Action, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// SearchHit is one ranked web-search result.
type SearchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SocialProfile is one scraped social-media profile.
type SocialProfile struct {
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	URL         string `json:"url"`
	Location    string `json:"location"`
}

// Browser action types.
const (
	BrowserComment = "comment"
	BrowserDM      = "dm"
)

// BrowserRequest describes one browser-automation action: a comment on a
// post or a direct message to a handle.
type BrowserRequest struct {
	Type     string                 `json:"type"`
	Target   string                 `json:"target"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Ack is an opaque provider acknowledgment.
type Ack map[string]interface{}

// Gateway is the capability set the pipeline and outreach step depend on.
type Gateway interface {
	WebSearch(ctx context.Context, query string, maxResults int) ([]SearchHit, error)
	SocialScrape(ctx context.Context, query string, maxResults int) ([]SocialProfile, error)
	BrowserAction(ctx context.Context, req BrowserRequest) (Ack, error)
	MemorySearch(ctx context.Context, query string, limit int) ([]db.Memory, error)
	MemoryWrite(ctx context.Context, content, entityType string, entityID *uuid.UUID) (uuid.UUID, error)
}

// Invoke dispatches a capability by name with a structured argument map.
// Unrecognized names fail with ErrUnknownAction before any call is made.
func Invoke(ctx context.Context, gw Gateway, action string, args map[string]interface{}) (interface{}, error) {
	switch action {
	case ActionWebSearch:
		return gw.WebSearch(ctx, stringArg(args, "query"), intArg(args, "max_results", 20))
	case ActionSocialScrape:
		return gw.SocialScrape(ctx, stringArg(args, "query"), intArg(args, "max_results", 20))
	case ActionBrowserComment, ActionBrowserDM:
		typ := BrowserComment
		if action == ActionBrowserDM {
			typ = BrowserDM
		}
		req := BrowserRequest{
			Type:    typ,
			Target:  stringArg(args, "target"),
			Content: stringArg(args, "content"),
		}
		if md, ok := args["metadata"].(map[string]interface{}); ok {
			req.Metadata = md
		}
		return gw.BrowserAction(ctx, req)
	case ActionMemorySearch:
		return gw.MemorySearch(ctx, stringArg(args, "query"), intArg(args, "limit", 5))
	case ActionMemoryWrite:
		var entityID *uuid.UUID
		if raw := stringArg(args, "entity_id"); raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				entityID = &id
			}
		}
		return gw.MemoryWrite(ctx, stringArg(args, "content"), stringArg(args, "entity_type"), entityID)
	default:
		return nil, fmt.Errorf("%s: %w", action, ErrUnknownAction)
	}
}

func stringArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

func intArg(args map[string]interface{}, key string, def int) int {
	switch v := args[key].(type) {
	case int:
		if v > 0 {
			return v
		}
	case float64:
		if v > 0 {
			return int(v)
		}
	}
	return def
}
