package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentworld/alba/go/orchestrator/internal/db"
	"github.com/agentworld/alba/go/orchestrator/internal/ratelimit"
)

type fakeMemoryStore struct {
	mu       sync.Mutex
	memories []*db.Memory
	links    []*db.MemoryLink
}

func (s *fakeMemoryStore) SaveMemory(_ context.Context, mem *db.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mem.ID == uuid.Nil {
		mem.ID = uuid.New()
	}
	s.memories = append(s.memories, mem)
	return nil
}

func (s *fakeMemoryStore) LinkMemory(_ context.Context, link *db.MemoryLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links = append(s.links, link)
	return nil
}

func (s *fakeMemoryStore) SearchMemories(_ context.Context, query string, _ int) ([]db.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.Memory
	for _, m := range s.memories {
		out = append(out, *m)
	}
	return out, nil
}

func newTestServer(t *testing.T, handler func(call toolCall) (int, interface{})) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/tools/call", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var call toolCall
		require.NoError(t, json.NewDecoder(r.Body).Decode(&call))
		status, body := handler(call)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebSearch(t *testing.T) {
	srv := newTestServer(t, func(call toolCall) (int, interface{}) {
		assert.Equal(t, ActionWebSearch, call.Name)
		assert.Equal(t, "opening hair salon", call.Arguments["query"])
		return http.StatusOK, map[string]interface{}{
			"result": []map[string]string{
				{"title": "Aura Salon opening soon", "url": "https://aura.example", "snippet": "grand opening"},
			},
		}
	})

	gw := NewHTTPGateway(Config{BaseURL: srv.URL, APIKey: "test-key"}, nil, nil)
	hits, err := gw.WebSearch(context.Background(), "opening hair salon", 20)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Aura Salon opening soon", hits[0].Title)
}

func TestProviderErrorSurfaced(t *testing.T) {
	srv := newTestServer(t, func(toolCall) (int, interface{}) {
		return http.StatusBadGateway, map[string]string{"detail": "upstream down"}
	})

	gw := NewHTTPGateway(Config{BaseURL: srv.URL, APIKey: "test-key"}, nil, nil)
	_, err := gw.SocialScrape(context.Background(), "salon", 10)
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ActionSocialScrape, perr.Action)
	assert.Equal(t, http.StatusBadGateway, perr.StatusCode)
}

func TestProviderErrorEnvelope(t *testing.T) {
	srv := newTestServer(t, func(toolCall) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{
			"error": map[string]string{"message": "quota exhausted"},
		}
	})

	gw := NewHTTPGateway(Config{BaseURL: srv.URL, APIKey: "test-key"}, nil, nil)
	_, err := gw.WebSearch(context.Background(), "salon", 10)
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Message, "quota exhausted")
}

func TestMalformedResultIsEmptyNotError(t *testing.T) {
	srv := newTestServer(t, func(toolCall) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{"result": "not a list"}
	})

	gw := NewHTTPGateway(Config{BaseURL: srv.URL, APIKey: "test-key"}, nil, nil)
	hits, err := gw.WebSearch(context.Background(), "salon", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestCallTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	gw := NewHTTPGateway(Config{BaseURL: srv.URL, APIKey: "k", Timeout: 20 * time.Millisecond}, nil, nil)
	_, err := gw.WebSearch(context.Background(), "salon", 10)
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
}

func TestBrowserActionRoutesByType(t *testing.T) {
	var seen string
	srv := newTestServer(t, func(call toolCall) (int, interface{}) {
		seen = call.Name
		return http.StatusOK, map[string]interface{}{"result": map[string]string{"status": "sent"}}
	})

	gw := NewHTTPGateway(Config{BaseURL: srv.URL, APIKey: "test-key"}, nil, nil)

	ack, err := gw.BrowserAction(context.Background(), BrowserRequest{Type: BrowserDM, Target: "salon.aura", Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, ActionBrowserDM, seen)
	assert.Equal(t, "sent", ack["status"])

	_, err = gw.BrowserAction(context.Background(), BrowserRequest{Type: BrowserComment, Target: "https://post", Content: "nice"})
	require.NoError(t, err)
	assert.Equal(t, ActionBrowserComment, seen)
}

func TestMemoryWriteAndLink(t *testing.T) {
	mem := &fakeMemoryStore{}
	gw := NewHTTPGateway(Config{BaseURL: "http://unused", APIKey: "k"}, mem, nil)

	entity := uuid.New()
	id, err := gw.MemoryWrite(context.Background(), "client prefers DMs", "lead", &entity)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	require.Len(t, mem.links, 1)
	assert.Equal(t, entity, mem.links[0].EntityID)

	// No entity: record only, no link.
	_, err = gw.MemoryWrite(context.Background(), "general note", "", nil)
	require.NoError(t, err)
	assert.Len(t, mem.links, 1)
}

func TestCallBudgetExhausted(t *testing.T) {
	calls := 0
	srv := newTestServer(t, func(toolCall) (int, interface{}) {
		calls++
		return http.StatusOK, map[string]interface{}{"result": []map[string]string{{"title": "x"}}}
	})

	limiter := ratelimit.NewMemoryLimiter(ratelimit.Config{MaxRequests: 1, Window: time.Hour}, nil)
	gw := NewHTTPGateway(Config{BaseURL: srv.URL, APIKey: "test-key"}, nil, nil).WithRateLimiter(limiter)

	_, err := gw.WebSearch(context.Background(), "salon", 10)
	require.NoError(t, err)

	_, err = gw.WebSearch(context.Background(), "salon", 10)
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Message, "budget")
	assert.Equal(t, 1, calls, "rejected call must not reach the provider")
}

func TestInvokeUnknownAction(t *testing.T) {
	gw := NewHTTPGateway(Config{BaseURL: "http://unused"}, nil, nil)
	_, err := Invoke(context.Background(), gw, "slack_post_message", nil)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestInvokeDispatch(t *testing.T) {
	srv := newTestServer(t, func(call toolCall) (int, interface{}) {
		assert.Equal(t, ActionWebSearch, call.Name)
		assert.Equal(t, float64(3), call.Arguments["num_results"])
		return http.StatusOK, map[string]interface{}{"result": []map[string]string{{"title": "x"}}}
	})

	gw := NewHTTPGateway(Config{BaseURL: srv.URL, APIKey: "test-key"}, nil, nil)
	out, err := Invoke(context.Background(), gw, ActionWebSearch, map[string]interface{}{
		"query":       "salon",
		"max_results": 3,
	})
	require.NoError(t, err)
	hits, ok := out.([]SearchHit)
	require.True(t, ok)
	assert.Len(t, hits, 1)
}
