package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentworld/alba/go/orchestrator/internal/db"
	"github.com/agentworld/alba/go/orchestrator/internal/metrics"
	"github.com/agentworld/alba/go/orchestrator/internal/ratelimit"
)

// MemoryStore is the local backend for the memory capabilities.
// *db.Client satisfies it.
type MemoryStore interface {
	SaveMemory(ctx context.Context, mem *db.Memory) error
	LinkMemory(ctx context.Context, link *db.MemoryLink) error
	SearchMemories(ctx context.Context, query string, limit int) ([]db.Memory, error)
}

// Config holds gateway connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPGateway calls providers through an MCP-style HTTP endpoint. The
// bearer credential is attached per instance; memory actions never leave
// the process and go straight to the store.
type HTTPGateway struct {
	cfg     Config
	client  *http.Client
	mem     MemoryStore
	limiter ratelimit.Limiter
	logger  *zap.Logger
}

func NewHTTPGateway(cfg Config, mem MemoryStore, logger *zap.Logger) *HTTPGateway {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		mem:    mem,
		logger: logger,
	}
}

// WithRateLimiter guards provider calls with a shared per-action budget.
// An exhausted budget surfaces as a provider error on the affected task;
// a broken limiter backend fails open.
func (g *HTTPGateway) WithRateLimiter(l ratelimit.Limiter) *HTTPGateway {
	g.limiter = l
	return g
}

type toolCall struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type toolResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// call POSTs one tool invocation and decodes the result into out. Every
// failure mode, transport errors and timeouts included, comes back as a
// *ProviderError so callers can treat it as a recoverable task failure.
func (g *HTTPGateway) call(ctx context.Context, action string, args map[string]interface{}, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	if g.limiter != nil {
		ok, err := g.limiter.Allow(ctx, action)
		if err != nil {
			g.logger.Warn("gateway rate limiter unavailable", zap.String("action", action), zap.Error(err))
		} else if !ok {
			metrics.RateLimitRejections.WithLabelValues(action).Inc()
			return &ProviderError{Action: action, Message: "provider call budget exhausted"}
		}
	}

	body, err := json.Marshal(toolCall{Name: action, Arguments: args})
	if err != nil {
		return &ProviderError{Action: action, Message: "encode request: " + err.Error(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/tools/call", bytes.NewReader(body))
	if err != nil {
		return &ProviderError{Action: action, Message: "build request: " + err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		metrics.GatewayCalls.WithLabelValues(action, "error").Inc()
		return &ProviderError{Action: action, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		metrics.GatewayCalls.WithLabelValues(action, "error").Inc()
		return &ProviderError{Action: action, Message: "read response: " + err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.GatewayCalls.WithLabelValues(action, "error").Inc()
		return &ProviderError{Action: action, StatusCode: resp.StatusCode, Message: string(raw)}
	}

	var envelope toolResponse
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil {
		metrics.GatewayCalls.WithLabelValues(action, "error").Inc()
		return &ProviderError{Action: action, StatusCode: resp.StatusCode, Message: envelope.Error.Message}
	}

	payload := raw
	if len(envelope.Result) > 0 {
		payload = envelope.Result
	}
	if out != nil {
		// Malformed result payloads degrade to the zero value; per the
		// pipeline contract that is an empty candidate list, not a failure.
		if err := json.Unmarshal(payload, out); err != nil {
			g.logger.Warn("gateway result did not match expected shape",
				zap.String("action", action),
				zap.Error(err),
			)
		}
	}

	metrics.GatewayCalls.WithLabelValues(action, "ok").Inc()
	metrics.GatewayCallDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())
	return nil
}

func (g *HTTPGateway) WebSearch(ctx context.Context, query string, maxResults int) ([]SearchHit, error) {
	var hits []SearchHit
	err := g.call(ctx, ActionWebSearch, map[string]interface{}{
		"query":          query,
		"num_results":    maxResults,
		"use_autoprompt": true,
	}, &hits)
	if err != nil {
		return nil, err
	}
	return hits, nil
}

func (g *HTTPGateway) SocialScrape(ctx context.Context, query string, maxResults int) ([]SocialProfile, error) {
	var profiles []SocialProfile
	err := g.call(ctx, ActionSocialScrape, map[string]interface{}{
		"query":       query,
		"max_results": maxResults,
	}, &profiles)
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (g *HTTPGateway) BrowserAction(ctx context.Context, breq BrowserRequest) (Ack, error) {
	action := ActionBrowserComment
	if breq.Type == BrowserDM {
		action = ActionBrowserDM
	}
	var ack Ack
	err := g.call(ctx, action, map[string]interface{}{
		"action":   breq.Type,
		"target":   breq.Target,
		"content":  breq.Content,
		"metadata": breq.Metadata,
	}, &ack)
	if err != nil {
		return nil, err
	}
	return ack, nil
}

func (g *HTTPGateway) MemorySearch(ctx context.Context, query string, limit int) ([]db.Memory, error) {
	if g.mem == nil {
		return nil, fmt.Errorf("memory store not configured")
	}
	return g.mem.SearchMemories(ctx, query, limit)
}

func (g *HTTPGateway) MemoryWrite(ctx context.Context, content, entityType string, entityID *uuid.UUID) (uuid.UUID, error) {
	if g.mem == nil {
		return uuid.Nil, fmt.Errorf("memory store not configured")
	}
	mem := &db.Memory{Content: content}
	if entityType != "" && entityID != nil {
		mem.EntityType = &entityType
		mem.EntityID = entityID
	}
	if err := g.mem.SaveMemory(ctx, mem); err != nil {
		return uuid.Nil, err
	}
	if entityType != "" && entityID != nil {
		link := &db.MemoryLink{EntityType: entityType, EntityID: *entityID, MemoryID: mem.ID}
		if err := g.mem.LinkMemory(ctx, link); err != nil {
			return uuid.Nil, err
		}
	}
	return mem.ID, nil
}
