// Package pipeline turns a free-text query into deduplicated, scored,
// persisted leads. Each provider call runs as a task under one parent run;
// a provider failure is recorded on its task and never blocks the sibling
// provider or the persist step.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentworld/alba/go/orchestrator/internal/db"
	"github.com/agentworld/alba/go/orchestrator/internal/gateway"
	"github.com/agentworld/alba/go/orchestrator/internal/leads"
	"github.com/agentworld/alba/go/orchestrator/internal/metrics"
	"github.com/agentworld/alba/go/orchestrator/internal/tracker"
)

// Task kinds recorded under a research run.
const (
	TaskKindWebSearch    = "web_search"
	TaskKindSocialScrape = "social_scrape"
	TaskKindPersist      = "persist_leads"
)

// LeadStore is the slice of the datastore the pipeline needs.
type LeadStore interface {
	InsertLead(ctx context.Context, lead *db.Lead) error
	FindActiveLeadByFingerprint(ctx context.Context, fingerprint string) (*db.Lead, error)
	ListLeadsByIDs(ctx context.Context, ids []uuid.UUID) ([]db.Lead, error)
	ListLeadsByStatus(ctx context.Context, status string, limit int) ([]db.Lead, error)
	UpdateLeadEnrichment(ctx context.Context, id uuid.UUID, email, phone *string, score db.JSONB) error
	UpdateLeadStatus(ctx context.Context, id uuid.UUID, status string) error
	CountActiveDuplicates(ctx context.Context, fingerprint string, exclude uuid.UUID) (int, error)
}

// Pipeline runs the research and sync stages.
type Pipeline struct {
	gw      gateway.Gateway
	store   LeadStore
	tracker *tracker.Tracker
	logger  *zap.Logger
}

func New(gw gateway.Gateway, store LeadStore, tr *tracker.Tracker, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{gw: gw, store: store, tracker: tr, logger: logger}
}

// ResearchInput parameterizes one research run.
type ResearchInput struct {
	Query      string
	ClientID   *uuid.UUID
	MaxResults int
}

// ResearchResult summarizes one research run.
type ResearchResult struct {
	RunID      uuid.UUID   `json:"runId"`
	LeadsFound int         `json:"leadsFound"`
	LeadsSaved int         `json:"leadsSaved"`
	Skipped    int         `json:"skipped"`
	LeadIDs    []uuid.UUID `json:"leadIds"`
}

// candidate is a provider hit before dedup/normalization.
type candidate struct {
	source   string
	name     string
	handle   string
	url      string
	location string
	email    string
	phone    string
}

// Research discovers candidates from the search and scrape providers, then
// dedupes, normalizes, scores and persists them in discovery order.
func (p *Pipeline) Research(ctx context.Context, in ResearchInput) (*ResearchResult, error) {
	if in.Query == "" {
		return nil, fmt.Errorf("research: query is required")
	}
	if in.MaxResults <= 0 {
		in.MaxResults = 20
	}

	input := db.JSONB{"query": in.Query, "maxResults": in.MaxResults}
	if in.ClientID != nil {
		input["clientId"] = in.ClientID.String()
	}

	runID, err := p.tracker.StartRun(ctx, "LeadResearch", input)
	if err != nil {
		return nil, err
	}

	var candidates []candidate

	// Search results come before scrape results; persist order follows
	// discovery order so earlier providers win fingerprint ties.
	if hits, err := p.searchTask(ctx, runID, in); err == nil {
		candidates = append(candidates, hits...)
	}
	if profiles, err := p.scrapeTask(ctx, runID, in); err == nil {
		candidates = append(candidates, profiles...)
	}

	result, err := p.persistTask(ctx, runID, in.ClientID, candidates)
	if err != nil {
		msg := err.Error()
		if ferr := p.tracker.FailRun(ctx, runID, msg); ferr != nil {
			p.logger.Error("failed to record run failure", zap.Error(ferr))
		}
		return nil, fmt.Errorf("research run %s: %w", runID, err)
	}
	result.RunID = runID
	result.LeadsFound = len(candidates)

	output := db.JSONB{
		"leadsFound": result.LeadsFound,
		"leadsSaved": result.LeadsSaved,
		"skipped":    result.Skipped,
		"leadIds":    idStrings(result.LeadIDs),
	}
	if err := p.tracker.CompleteRun(ctx, runID, output); err != nil {
		return nil, err
	}

	metrics.LeadsFound.Add(float64(result.LeadsFound))
	metrics.LeadsSaved.Add(float64(result.LeadsSaved))
	metrics.LeadsSkipped.Add(float64(result.Skipped))

	p.logger.Info("research run finished",
		zap.String("run_id", runID.String()),
		zap.Int("found", result.LeadsFound),
		zap.Int("saved", result.LeadsSaved),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// searchTask wraps the web-search provider call in a task. A provider
// failure fails only the task; the empty candidate slice and the error are
// returned so the caller can continue with the other provider.
func (p *Pipeline) searchTask(ctx context.Context, runID uuid.UUID, in ResearchInput) ([]candidate, error) {
	taskID, err := p.tracker.StartTask(ctx, runID, TaskKindWebSearch, db.JSONB{"query": in.Query})
	if err != nil {
		return nil, err
	}

	hits, err := p.gw.WebSearch(ctx, in.Query, in.MaxResults)
	if err != nil {
		p.logger.Warn("web search failed", zap.String("run_id", runID.String()), zap.Error(err))
		if ferr := p.tracker.FailTask(ctx, taskID, err.Error()); ferr != nil {
			p.logger.Error("failed to record task failure", zap.Error(ferr))
		}
		return nil, err
	}

	out := make([]candidate, 0, len(hits))
	for _, h := range hits {
		if h.Title == "" && h.URL == "" {
			continue
		}
		name := h.Title
		if name == "" {
			name = truncate(h.Snippet, 100)
		}
		out = append(out, candidate{source: "search", name: name, url: h.URL})
	}

	if err := p.tracker.CompleteTask(ctx, taskID, db.JSONB{"results": len(hits)}); err != nil {
		return nil, err
	}
	return out, nil
}

// scrapeTask wraps the social-scrape provider call in a task.
func (p *Pipeline) scrapeTask(ctx context.Context, runID uuid.UUID, in ResearchInput) ([]candidate, error) {
	taskID, err := p.tracker.StartTask(ctx, runID, TaskKindSocialScrape, db.JSONB{"query": in.Query})
	if err != nil {
		return nil, err
	}

	profiles, err := p.gw.SocialScrape(ctx, in.Query, in.MaxResults)
	if err != nil {
		p.logger.Warn("social scrape failed", zap.String("run_id", runID.String()), zap.Error(err))
		if ferr := p.tracker.FailTask(ctx, taskID, err.Error()); ferr != nil {
			p.logger.Error("failed to record task failure", zap.Error(ferr))
		}
		return nil, err
	}

	out := make([]candidate, 0, len(profiles))
	for _, pr := range profiles {
		if pr.Handle == "" && pr.DisplayName == "" {
			continue
		}
		name := pr.DisplayName
		if name == "" {
			name = pr.Handle
		}
		out = append(out, candidate{
			source:   "social",
			name:     name,
			handle:   pr.Handle,
			url:      pr.URL,
			location: pr.Location,
		})
	}

	if err := p.tracker.CompleteTask(ctx, taskID, db.JSONB{"results": len(profiles)}); err != nil {
		return nil, err
	}
	return out, nil
}

// persistTask dedupes candidates by fingerprint and persists the new ones,
// normalized and scored, as status-new leads.
func (p *Pipeline) persistTask(ctx context.Context, runID uuid.UUID, clientID *uuid.UUID, candidates []candidate) (*ResearchResult, error) {
	taskID, err := p.tracker.StartTask(ctx, runID, TaskKindPersist, db.JSONB{"candidates": len(candidates)})
	if err != nil {
		return nil, err
	}

	result := &ResearchResult{}
	for _, c := range candidates {
		fp := leads.Fingerprint(leads.Identity{Name: c.name, Handle: c.handle, Email: c.email, URL: c.url})
		if fp != "" {
			existing, err := p.store.FindActiveLeadByFingerprint(ctx, fp)
			if err != nil {
				if ferr := p.tracker.FailTask(ctx, taskID, err.Error()); ferr != nil {
					p.logger.Error("failed to record task failure", zap.Error(ferr))
				}
				return nil, err
			}
			if existing != nil {
				result.Skipped++
				continue
			}
		}

		email := leads.NormalizeEmail(c.email)
		phone := leads.NormalizePhone(c.phone)
		score := leads.ComputeScore(leads.Enrichment{
			Email:    email,
			Phone:    phone,
			Handle:   c.handle,
			Location: c.location,
			URL:      c.url,
		})

		lead := &db.Lead{
			ClientID: clientID,
			Source:   c.source,
			Status:   db.LeadStatusNew,
			Score:    scoreJSON(score),
		}
		setIfPresent(&lead.Name, c.name)
		setIfPresent(&lead.Handle, c.handle)
		setIfPresent(&lead.URL, c.url)
		setIfPresent(&lead.Location, c.location)
		setIfPresent(&lead.Email, email)
		setIfPresent(&lead.Phone, phone)
		if fp != "" {
			lead.Fingerprint = &fp
		}

		if err := p.store.InsertLead(ctx, lead); err != nil {
			if ferr := p.tracker.FailTask(ctx, taskID, err.Error()); ferr != nil {
				p.logger.Error("failed to record task failure", zap.Error(ferr))
			}
			return nil, err
		}
		result.LeadsSaved++
		result.LeadIDs = append(result.LeadIDs, lead.ID)
	}

	if err := p.tracker.CompleteTask(ctx, taskID, db.JSONB{
		"saved":   result.LeadsSaved,
		"skipped": result.Skipped,
	}); err != nil {
		return nil, err
	}
	return result, nil
}

func scoreJSON(s leads.Score) db.JSONB {
	return db.JSONB{"overall": s.Overall, "engagement": s.Engagement, "fit": s.Fit}
}

func setIfPresent(dst **string, v string) {
	if v != "" {
		s := v
		*dst = &s
	}
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		return string(runes[:n])
	}
	return s
}
