package workflows

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentworld/alba/go/orchestrator/internal/gateway"
	"github.com/agentworld/alba/go/orchestrator/internal/outreach"
	"github.com/agentworld/alba/go/orchestrator/internal/pipeline"
)

// fakeResearcher fails for configured client ids and otherwise reports a
// fixed number of saved leads.
type fakeResearcher struct {
	mu       sync.Mutex
	failFor  map[uuid.UUID]error
	panicFor map[uuid.UUID]bool
	saved    int
	delay    time.Duration
	calls    int
}

func (r *fakeResearcher) Research(_ context.Context, in pipeline.ResearchInput) (*pipeline.ResearchResult, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if in.ClientID != nil {
		if r.panicFor[*in.ClientID] {
			panic("research exploded")
		}
		if err := r.failFor[*in.ClientID]; err != nil {
			return nil, err
		}
	}
	ids := make([]uuid.UUID, r.saved)
	for i := range ids {
		ids[i] = uuid.New()
	}
	return &pipeline.ResearchResult{LeadsFound: r.saved, LeadsSaved: r.saved, LeadIDs: ids}, nil
}

func (r *fakeResearcher) Sync(_ context.Context, in pipeline.SyncInput) (*pipeline.SyncResult, error) {
	return &pipeline.SyncResult{Processed: len(in.LeadIDs), LeadIDs: in.LeadIDs}, nil
}

type fakeSender struct {
	mu        sync.Mutex
	sent      int
	failAfter int // sends succeeding before rate limiting kicks in; 0 = unlimited
	err       error
}

func (s *fakeSender) Send(_ context.Context, in outreach.Input) (*outreach.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.failAfter > 0 && s.sent >= s.failAfter {
		return nil, outreach.ErrRateLimited
	}
	s.sent++
	return &outreach.Result{Action: in.Action}, nil
}

func fleet(n int) []Client {
	clients := make([]Client, n)
	for i := range clients {
		clients[i] = Client{ID: uuid.New(), Name: fmt.Sprintf("client-%d", i+1)}
	}
	return clients
}

func TestExecuteUnknownWorkflow(t *testing.T) {
	r := &fakeResearcher{}
	o := New(r, &fakeSender{}, DefaultCatalog(), Options{}, nil)

	_, err := o.Execute(context.Background(), "lead_weekly", Client{ID: uuid.New()})
	assert.ErrorIs(t, err, ErrUnknownWorkflow)
	assert.Zero(t, r.calls, "no side effect before the name check")
}

func TestExecuteResearchThenSync(t *testing.T) {
	r := &fakeResearcher{saved: 3}
	o := New(r, &fakeSender{}, DefaultCatalog(), Options{}, nil)

	res, err := o.Execute(context.Background(), "lead_daily", Client{ID: uuid.New(), Name: "acme"})
	require.NoError(t, err)
	require.NotNil(t, res.Research)
	require.NotNil(t, res.Sync)
	assert.Equal(t, 3, res.Sync.Processed)
	assert.Nil(t, res.Outreach, "outreach disabled by default")
}

func TestExecuteOutreachStage(t *testing.T) {
	cat := NewCatalog()
	require.NoError(t, cat.Register(Definition{
		Name:       "lead_daily",
		Query:      "opening hair salon",
		MaxResults: 20,
		Outreach:   OutreachSpec{Enabled: true, Action: "dm", Content: "hi!", MaxSends: 2},
	}))

	r := &fakeResearcher{saved: 5}
	sender := &fakeSender{}
	o := New(r, sender, cat, Options{}, nil)

	res, err := o.Execute(context.Background(), "lead_daily", Client{ID: uuid.New()})
	require.NoError(t, err)
	require.NotNil(t, res.Outreach)
	assert.Equal(t, 2, res.Outreach.Attempted, "capped by max_sends")
	assert.Equal(t, 2, res.Outreach.Sent)
}

func TestOutreachStopsOnRateLimit(t *testing.T) {
	cat := NewCatalog()
	require.NoError(t, cat.Register(Definition{
		Name:     "lead_daily",
		Query:    "opening hair salon",
		Outreach: OutreachSpec{Enabled: true, Action: "dm", Content: "hi!"},
	}))

	r := &fakeResearcher{saved: 5}
	sender := &fakeSender{failAfter: 2}
	o := New(r, sender, cat, Options{}, nil)

	res, err := o.Execute(context.Background(), "lead_daily", Client{ID: uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Outreach.Sent)
	assert.Equal(t, 1, res.Outreach.RateLimited)
	assert.Equal(t, 3, res.Outreach.Attempted, "loop stops at the rejection")
}

func TestSweepIsolatesClientFailure(t *testing.T) {
	clients := fleet(3)
	r := &fakeResearcher{
		saved: 1,
		failFor: map[uuid.UUID]error{
			clients[1].ID: &gateway.ProviderError{Action: gateway.ActionWebSearch, Message: "boom"},
		},
	}
	o := New(r, &fakeSender{}, DefaultCatalog(), Options{Workers: 2}, nil)

	sweep, err := o.Sweep(context.Background(), "lead_daily", clients)
	require.NoError(t, err)
	require.Len(t, sweep.Results, 3)

	assert.Equal(t, ClientStatusOK, sweep.Results[0].Status)
	assert.Equal(t, ClientStatusError, sweep.Results[1].Status)
	assert.Contains(t, sweep.Results[1].Error, "boom")
	assert.Equal(t, ClientStatusOK, sweep.Results[2].Status)
	assert.Equal(t, 3, sweep.Processed)
}

func TestSweepIsolatesPanic(t *testing.T) {
	clients := fleet(2)
	r := &fakeResearcher{
		saved:    1,
		panicFor: map[uuid.UUID]bool{clients[0].ID: true},
	}
	o := New(r, &fakeSender{}, DefaultCatalog(), Options{Workers: 1}, nil)

	sweep, err := o.Sweep(context.Background(), "lead_daily", clients)
	require.NoError(t, err)
	assert.Equal(t, ClientStatusError, sweep.Results[0].Status)
	assert.Contains(t, sweep.Results[0].Error, "panic")
	assert.Equal(t, ClientStatusOK, sweep.Results[1].Status)
}

func TestSweepUnknownWorkflowFailsFast(t *testing.T) {
	r := &fakeResearcher{}
	o := New(r, &fakeSender{}, DefaultCatalog(), Options{}, nil)

	_, err := o.Sweep(context.Background(), "nope", fleet(2))
	assert.ErrorIs(t, err, ErrUnknownWorkflow)
	assert.Zero(t, r.calls)
}

func TestSweepBudgetSkipsRemainingClients(t *testing.T) {
	clients := fleet(3)
	r := &fakeResearcher{saved: 0, delay: 30 * time.Millisecond}
	o := New(r, &fakeSender{}, DefaultCatalog(), Options{Workers: 1, SweepBudget: 10 * time.Millisecond}, nil)

	sweep, err := o.Sweep(context.Background(), "lead_daily", clients)
	require.NoError(t, err)

	assert.Equal(t, ClientStatusOK, sweep.Results[0].Status, "first client starts inside the budget")
	assert.Equal(t, ClientStatusSkipped, sweep.Results[1].Status)
	assert.Equal(t, ClientStatusSkipped, sweep.Results[2].Status)
	assert.Equal(t, 1, sweep.Processed)
	assert.Equal(t, 2, sweep.Skipped)
}

func TestLoadCatalog(t *testing.T) {
	path := t.TempDir() + "/workflows.yaml"
	content := `
workflows:
  - name: lead_daily
    query: "opening hair salon"
    max_results: 10
    outreach:
      enabled: true
      action: dm
      content: "hello"
      max_sends: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cat, err := LoadCatalog(path)
	require.NoError(t, err)

	def, ok := cat.Lookup("lead_daily")
	require.True(t, ok)
	assert.Equal(t, 10, def.MaxResults)
	assert.True(t, def.Outreach.Enabled)
	assert.Equal(t, 5, def.Outreach.MaxSends)
}

func TestLoadCatalogRejectsNamelessEntry(t *testing.T) {
	path := t.TempDir() + "/workflows.yaml"
	require.NoError(t, os.WriteFile(path, []byte("workflows:\n  - query: x\n"), 0o644))

	_, err := LoadCatalog(path)
	assert.Error(t, err)
}
