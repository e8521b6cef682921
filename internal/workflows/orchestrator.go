// Package workflows composes the lead pipeline and outreach step into
// named workflows and runs them across the client fleet. One client's
// failure never aborts the sweep; the orchestrator collects a per-client
// result or error and moves on.
package workflows

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentworld/alba/go/orchestrator/internal/metrics"
	"github.com/agentworld/alba/go/orchestrator/internal/outreach"
	"github.com/agentworld/alba/go/orchestrator/internal/pipeline"
)

// ErrUnknownWorkflow is a configuration error: it fails before any side
// effect occurs.
var ErrUnknownWorkflow = errors.New("unknown workflow")

// Researcher runs the research and sync stages. *pipeline.Pipeline
// satisfies it.
type Researcher interface {
	Research(ctx context.Context, in pipeline.ResearchInput) (*pipeline.ResearchResult, error)
	Sync(ctx context.Context, in pipeline.SyncInput) (*pipeline.SyncResult, error)
}

// Sender delivers one outreach action. *outreach.Step satisfies it.
type Sender interface {
	Send(ctx context.Context, in outreach.Input) (*outreach.Result, error)
}

// Client identifies one customer in the fleet.
type Client struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Options bounds a sweep.
type Options struct {
	// Workers is the concurrency of the fleet sweep. Within one client,
	// stages stay strictly sequential.
	Workers int
	// SweepBudget is the wall-clock budget for a full sweep. Clients not
	// started before it elapses are reported skipped, not failed.
	SweepBudget time.Duration
}

// Orchestrator executes named workflows per client.
type Orchestrator struct {
	researcher Researcher
	sender     Sender
	catalog    *Catalog
	logger     *zap.Logger
	opts       Options
	now        func() time.Time
}

func New(researcher Researcher, sender Sender, catalog *Catalog, opts Options, logger *zap.Logger) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		researcher: researcher,
		sender:     sender,
		catalog:    catalog,
		logger:     logger,
		opts:       opts,
		now:        time.Now,
	}
}

// OutreachSummary counts the outreach stage outcomes for one client.
type OutreachSummary struct {
	Attempted   int `json:"attempted"`
	Sent        int `json:"sent"`
	Failed      int `json:"failed"`
	RateLimited int `json:"rateLimited"`
}

// WorkflowResult is the outcome of one workflow execution for one client.
type WorkflowResult struct {
	Workflow string                   `json:"workflow"`
	Research *pipeline.ResearchResult `json:"research,omitempty"`
	Sync     *pipeline.SyncResult     `json:"sync,omitempty"`
	Outreach *OutreachSummary         `json:"outreach,omitempty"`
}

// Per-client sweep statuses.
const (
	ClientStatusOK      = "ok"
	ClientStatusError   = "error"
	ClientStatusSkipped = "skipped"
)

// ClientResult is the collected outcome for one client in a sweep.
type ClientResult struct {
	ClientID   uuid.UUID       `json:"clientId"`
	ClientName string          `json:"clientName"`
	Status     string          `json:"status"`
	Result     *WorkflowResult `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// SweepResult summarizes one fleet sweep.
type SweepResult struct {
	Workflow  string         `json:"workflow"`
	Processed int            `json:"processed"`
	Skipped   int            `json:"skipped"`
	Results   []ClientResult `json:"results"`
}

// Execute runs one named workflow for one client: research, then sync of
// whatever research saved, then the optional outreach stage.
func (o *Orchestrator) Execute(ctx context.Context, name string, client Client) (*WorkflowResult, error) {
	def, ok := o.catalog.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownWorkflow)
	}

	metrics.WorkflowsStarted.WithLabelValues(name).Inc()

	research, err := o.researcher.Research(ctx, pipeline.ResearchInput{
		Query:      def.Query,
		ClientID:   &client.ID,
		MaxResults: def.MaxResults,
	})
	if err != nil {
		metrics.WorkflowsCompleted.WithLabelValues(name, "failed").Inc()
		return nil, fmt.Errorf("research stage: %w", err)
	}

	result := &WorkflowResult{Workflow: name, Research: research}

	if len(research.LeadIDs) > 0 {
		syncRes, err := o.researcher.Sync(ctx, pipeline.SyncInput{LeadIDs: research.LeadIDs})
		if err != nil {
			metrics.WorkflowsCompleted.WithLabelValues(name, "failed").Inc()
			return nil, fmt.Errorf("sync stage: %w", err)
		}
		result.Sync = syncRes
	}

	if def.Outreach.Enabled && def.Outreach.Content != "" {
		result.Outreach = o.runOutreach(ctx, def, research.LeadIDs)
	}

	metrics.WorkflowsCompleted.WithLabelValues(name, "completed").Inc()
	return result, nil
}

// runOutreach sends to the freshly saved leads, stopping at the send cap
// or the first rate-limit rejection. Validation and provider errors count
// against the lead only.
func (o *Orchestrator) runOutreach(ctx context.Context, def Definition, leadIDs []uuid.UUID) *OutreachSummary {
	summary := &OutreachSummary{}
	action := def.Outreach.Action
	if action == "" {
		action = "dm"
	}

	for _, id := range leadIDs {
		if def.Outreach.MaxSends > 0 && summary.Attempted >= def.Outreach.MaxSends {
			break
		}
		summary.Attempted++

		_, err := o.sender.Send(ctx, outreach.Input{
			LeadID:  id,
			Action:  action,
			Content: def.Outreach.Content,
			PostURL: def.Outreach.PostURL,
		})
		switch {
		case err == nil:
			summary.Sent++
		case errors.Is(err, outreach.ErrRateLimited):
			// Budget for this channel is spent; the rest wait for the
			// next sweep.
			summary.RateLimited++
			return summary
		default:
			summary.Failed++
			o.logger.Warn("outreach send failed",
				zap.String("lead_id", id.String()),
				zap.Error(err),
			)
		}
	}
	return summary
}

// Sweep executes the workflow once per client with a bounded worker pool.
// Unknown workflow names fail before any client work starts.
func (o *Orchestrator) Sweep(ctx context.Context, name string, clients []Client) (*SweepResult, error) {
	if _, ok := o.catalog.Lookup(name); !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownWorkflow)
	}

	start := o.now()
	var deadline time.Time
	if o.opts.SweepBudget > 0 {
		deadline = start.Add(o.opts.SweepBudget)
	}

	results := make([]ClientResult, len(clients))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < o.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				client := clients[i]
				if !deadline.IsZero() && o.now().After(deadline) {
					results[i] = ClientResult{
						ClientID:   client.ID,
						ClientName: client.Name,
						Status:     ClientStatusSkipped,
					}
					continue
				}
				results[i] = o.runClient(ctx, name, client)
			}
		}()
	}

	for i := range clients {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	sweep := &SweepResult{Workflow: name, Results: results}
	for _, r := range results {
		metrics.SweepClients.WithLabelValues(r.Status).Inc()
		if r.Status == ClientStatusSkipped {
			sweep.Skipped++
		} else {
			sweep.Processed++
		}
	}
	metrics.SweepDuration.Observe(time.Since(start).Seconds())

	o.logger.Info("fleet sweep finished",
		zap.String("workflow", name),
		zap.Int("processed", sweep.Processed),
		zap.Int("skipped", sweep.Skipped),
	)
	return sweep, nil
}

// runClient isolates one client's execution: errors and panics become a
// captured per-client error instead of stopping the fleet.
func (o *Orchestrator) runClient(ctx context.Context, name string, client Client) (res ClientResult) {
	res = ClientResult{ClientID: client.ID, ClientName: client.Name, Status: ClientStatusOK}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("workflow panicked",
				zap.String("client", client.Name),
				zap.Any("panic", r),
			)
			res.Status = ClientStatusError
			res.Error = fmt.Sprintf("panic: %v", r)
			res.Result = nil
		}
	}()

	result, err := o.Execute(ctx, name, client)
	if err != nil {
		o.logger.Warn("workflow failed for client",
			zap.String("client", client.Name),
			zap.Error(err),
		)
		res.Status = ClientStatusError
		res.Error = err.Error()
		return res
	}
	res.Result = result
	return res
}
