// Package outreach sends one outbound action (comment or DM) for one lead.
// Preconditions are validated and rate-limit budget consumed before the
// provider is ever called, so a rejected send leaves no partial state.
package outreach

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentworld/alba/go/orchestrator/internal/db"
	"github.com/agentworld/alba/go/orchestrator/internal/gateway"
	"github.com/agentworld/alba/go/orchestrator/internal/metrics"
	"github.com/agentworld/alba/go/orchestrator/internal/ratelimit"
	"github.com/agentworld/alba/go/orchestrator/internal/tracker"
)

// Channel is the outbound channel key, shared with the rate limiter.
const Channel = "instagram"

// ErrRateLimited reports an admission rejected by the rate limiter. It is
// distinct from a provider failure: the caller may retry later and no
// run/task is left behind.
var ErrRateLimited = errors.New("outreach rate limit exceeded")

// ValidationError reports a missing precondition. It is returned before
// any side effect: no gateway call, no rate-limit budget consumed.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "outreach validation: " + e.Reason }

// LeadStore is the slice of the datastore the outreach step needs.
type LeadStore interface {
	GetLead(ctx context.Context, id uuid.UUID) (*db.Lead, error)
	UpdateLeadStatus(ctx context.Context, id uuid.UUID, status string) error
	InsertInteraction(ctx context.Context, in *db.Interaction) error
}

// BrowserGateway is the capability slice used for sending.
type BrowserGateway interface {
	BrowserAction(ctx context.Context, req gateway.BrowserRequest) (gateway.Ack, error)
}

// Step performs outreach sends.
type Step struct {
	store   LeadStore
	gw      BrowserGateway
	limiter ratelimit.Limiter
	tracker *tracker.Tracker
	logger  *zap.Logger
}

func New(store LeadStore, gw BrowserGateway, limiter ratelimit.Limiter, tr *tracker.Tracker, logger *zap.Logger) *Step {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Step{store: store, gw: gw, limiter: limiter, tracker: tr, logger: logger}
}

// Input describes one outbound action.
type Input struct {
	LeadID  uuid.UUID
	Action  string // gateway.BrowserComment or gateway.BrowserDM
	Content string
	PostURL string // required for comment actions
}

// Result summarizes a delivered action.
type Result struct {
	RunID         uuid.UUID `json:"runId"`
	InteractionID uuid.UUID `json:"interactionId"`
	Action        string    `json:"action"`
}

// Send validates, admits and delivers one outreach action. On gateway
// failure the run and task are marked failed, no interaction is recorded
// and the lead status is untouched.
func (s *Step) Send(ctx context.Context, in Input) (*Result, error) {
	lead, target, err := s.validate(ctx, in)
	if err != nil {
		return nil, err
	}

	ok, err := s.limiter.Allow(ctx, Channel)
	if err != nil {
		return nil, fmt.Errorf("outreach rate limit check: %w", err)
	}
	if !ok {
		metrics.RateLimitRejections.WithLabelValues(Channel).Inc()
		return nil, ErrRateLimited
	}

	runID, err := s.tracker.StartRun(ctx, "BrowserOutreach", db.JSONB{
		"leadId": in.LeadID.String(),
		"action": in.Action,
	})
	if err != nil {
		return nil, err
	}
	taskID, err := s.tracker.StartTask(ctx, runID, "instagram_"+in.Action, db.JSONB{"target": target})
	if err != nil {
		return nil, err
	}

	ack, err := s.gw.BrowserAction(ctx, gateway.BrowserRequest{
		Type:    in.Action,
		Target:  target,
		Content: in.Content,
		Metadata: map[string]interface{}{
			"leadId":   in.LeadID.String(),
			"leadName": deref(lead.Name),
		},
	})
	if err != nil {
		s.logger.Warn("outreach delivery failed",
			zap.String("lead_id", in.LeadID.String()),
			zap.String("action", in.Action),
			zap.Error(err),
		)
		if ferr := s.tracker.FailTask(ctx, taskID, err.Error()); ferr != nil {
			s.logger.Error("failed to record task failure", zap.Error(ferr))
		}
		if ferr := s.tracker.FailRun(ctx, runID, err.Error()); ferr != nil {
			s.logger.Error("failed to record run failure", zap.Error(ferr))
		}
		return nil, err
	}

	interaction := &db.Interaction{
		LeadID:    &in.LeadID,
		Channel:   Channel,
		Direction: "outbound",
		Content:   in.Content,
		Metadata:  db.JSONB{"action": in.Action, "ack": map[string]interface{}(ack)},
	}
	if err := s.store.InsertInteraction(ctx, interaction); err != nil {
		if ferr := s.tracker.FailRun(ctx, runID, err.Error()); ferr != nil {
			s.logger.Error("failed to record run failure", zap.Error(ferr))
		}
		return nil, err
	}

	// A DM establishes contact; a comment leaves the lead status alone.
	if in.Action == gateway.BrowserDM {
		if err := s.store.UpdateLeadStatus(ctx, in.LeadID, db.LeadStatusContacted); err != nil {
			if ferr := s.tracker.FailRun(ctx, runID, err.Error()); ferr != nil {
				s.logger.Error("failed to record run failure", zap.Error(ferr))
			}
			return nil, err
		}
	}

	if err := s.tracker.CompleteTask(ctx, taskID, db.JSONB{"ack": map[string]interface{}(ack)}); err != nil {
		return nil, err
	}
	if err := s.tracker.CompleteRun(ctx, runID, db.JSONB{
		"interactionId": interaction.ID.String(),
	}); err != nil {
		return nil, err
	}

	metrics.OutreachSent.WithLabelValues(Channel, in.Action).Inc()
	return &Result{RunID: runID, InteractionID: interaction.ID, Action: in.Action}, nil
}

// validate checks the preconditions and resolves the provider target.
func (s *Step) validate(ctx context.Context, in Input) (*db.Lead, string, error) {
	if in.Action != gateway.BrowserComment && in.Action != gateway.BrowserDM {
		return nil, "", &ValidationError{Reason: fmt.Sprintf("unknown action %q", in.Action)}
	}
	if in.Content == "" {
		return nil, "", &ValidationError{Reason: "content is required"}
	}

	lead, err := s.store.GetLead(ctx, in.LeadID)
	if err != nil {
		return nil, "", err
	}
	if lead == nil {
		return nil, "", &ValidationError{Reason: fmt.Sprintf("lead %s not found", in.LeadID)}
	}

	switch in.Action {
	case gateway.BrowserDM:
		if lead.Handle == nil || *lead.Handle == "" {
			return nil, "", &ValidationError{Reason: "lead has no social handle for DM action"}
		}
		return lead, *lead.Handle, nil
	default:
		if in.PostURL == "" {
			return nil, "", &ValidationError{Reason: "postUrl is required for comment action"}
		}
		return lead, in.PostURL, nil
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
