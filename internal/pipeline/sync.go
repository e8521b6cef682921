package pipeline

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentworld/alba/go/orchestrator/internal/db"
	"github.com/agentworld/alba/go/orchestrator/internal/leads"
)

// SyncInput selects which leads to re-process. With no explicit ids, every
// status-new lead is swept.
type SyncInput struct {
	LeadIDs []uuid.UUID
	Limit   int
}

// SyncResult summarizes one sync run.
type SyncResult struct {
	RunID      uuid.UUID   `json:"runId"`
	Processed  int         `json:"processed"`
	Duplicates int         `json:"duplicates"`
	LeadIDs    []uuid.UUID `json:"leadIds"`
}

// Sync re-normalizes and re-scores persisted leads and demotes late
// duplicates to lost, keeping at most one non-lost lead per fingerprint.
// The earliest lead wins; the one being processed is the newer record.
func (p *Pipeline) Sync(ctx context.Context, in SyncInput) (*SyncResult, error) {
	if in.Limit <= 0 {
		in.Limit = 100
	}

	runID, err := p.tracker.StartRun(ctx, "CRMSync", db.JSONB{"leadIds": idStrings(in.LeadIDs)})
	if err != nil {
		return nil, err
	}

	var batch []db.Lead
	if len(in.LeadIDs) > 0 {
		batch, err = p.store.ListLeadsByIDs(ctx, in.LeadIDs)
	} else {
		batch, err = p.store.ListLeadsByStatus(ctx, db.LeadStatusNew, in.Limit)
	}
	if err != nil {
		if ferr := p.tracker.FailRun(ctx, runID, err.Error()); ferr != nil {
			p.logger.Error("failed to record run failure", zap.Error(ferr))
		}
		return nil, err
	}

	result := &SyncResult{RunID: runID}
	for i := range batch {
		lead := &batch[i]
		if err := p.syncLead(ctx, lead, result); err != nil {
			if ferr := p.tracker.FailRun(ctx, runID, err.Error()); ferr != nil {
				p.logger.Error("failed to record run failure", zap.Error(ferr))
			}
			return nil, err
		}
	}

	if err := p.tracker.CompleteRun(ctx, runID, db.JSONB{
		"processed":  result.Processed,
		"duplicates": result.Duplicates,
	}); err != nil {
		return nil, err
	}

	p.logger.Info("sync run finished",
		zap.String("run_id", runID.String()),
		zap.Int("processed", result.Processed),
		zap.Int("duplicates", result.Duplicates),
	)
	return result, nil
}

func (p *Pipeline) syncLead(ctx context.Context, lead *db.Lead, result *SyncResult) error {
	var email, phone *string
	if lead.Email != nil {
		e := leads.NormalizeEmail(*lead.Email)
		email = &e
	}
	if lead.Phone != nil {
		ph := leads.NormalizePhone(*lead.Phone)
		phone = &ph
	}

	score := leads.ComputeScore(leads.Enrichment{
		Email:    deref(email),
		Phone:    deref(phone),
		Handle:   deref(lead.Handle),
		Location: deref(lead.Location),
		URL:      deref(lead.URL),
	})
	if err := p.store.UpdateLeadEnrichment(ctx, lead.ID, email, phone, scoreJSON(score)); err != nil {
		return err
	}

	if lead.Fingerprint != nil {
		n, err := p.store.CountActiveDuplicates(ctx, *lead.Fingerprint, lead.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			if err := p.store.UpdateLeadStatus(ctx, lead.ID, db.LeadStatusLost); err != nil {
				return err
			}
			result.Duplicates++
			return nil
		}
	}

	result.Processed++
	result.LeadIDs = append(result.LeadIDs, lead.ID)
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
