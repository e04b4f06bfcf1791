package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/wizards/pkg/adapters/memory"
	"github.com/aretw0/wizards/pkg/domain"
	"github.com/aretw0/wizards/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, opts ...Option) (http.Handler, *session.Manager) {
	t.Helper()
	mgr := session.NewManager(&memory.Service{})
	t.Cleanup(mgr.Shutdown)
	h, err := NewHandler(mgr, opts...)
	require.NoError(t, err)
	return h, mgr
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func openTestDrawer(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, "POST", "/drawers", map[string]any{"query": map[string]any{"metric": "up"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeBody[DrawerResponse](t, rec)
	require.NotEmpty(t, resp.ID)
	assert.True(t, resp.State.ShowStartingMessage)
	return resp.ID
}

func TestServer_AIFlow(t *testing.T) {
	h, mgr := newTestHandler(t)
	id := openTestDrawer(t, h)
	base := "/drawers/" + id

	rec := do(t, h, "POST", base+"/choose", map[string]any{"type": "ai"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	chosen := decodeBody[IndexResponse](t, rec)
	assert.Equal(t, 0, chosen.Index)
	assert.False(t, chosen.State.ShowStartingMessage)

	rec = do(t, h, "POST", base+"/interactions/0/submit", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty prompt")

	rec = do(t, h, "PUT", base+"/interactions/0/prompt", map[string]any{"prompt": "  targets that are down  "})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, "POST", base+"/interactions/0/submit", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	d, err := mgr.Get(context.Background(), id)
	require.NoError(t, err)
	d.Wait()

	rec = do(t, h, "GET", base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeBody[DrawerResponse](t, rec).State
	require.Len(t, state.Interactions, 1)
	require.Len(t, state.Interactions[0].Suggestions, 1)
	assert.Equal(t, "targets that are down", state.Interactions[0].Suggestions[0].Title)

	rec = do(t, h, "PUT", base+"/interactions/0/prompt", map[string]any{"prompt": "changed"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, "POST", base+"/interactions/0/suggestions/0/explain?wait=true", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "up evaluates up", decodeBody[ExplainResponse](t, rec).Explanation)

	rec = do(t, h, "POST", base+"/interactions/0/suggestions/0/explain", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cached := decodeBody[ExplainResponse](t, rec)
	assert.True(t, cached.Cached)
	assert.Equal(t, "up evaluates up", cached.Explanation)

	rec = do(t, h, "POST", base+"/interactions/0/suggestions/5/explain", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, "POST", base+"/interactions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, decodeBody[IndexResponse](t, rec).Index)
}

func TestServer_Actions(t *testing.T) {
	h, _ := newTestHandler(t)
	id := openTestDrawer(t, h)

	rec := do(t, h, "POST", "/drawers/"+id+"/actions", map[string]any{
		"type":    domain.ActionSetIndicateCheckbox,
		"payload": map[string]any{"value": true},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeBody[DrawerResponse](t, rec).State.IndicateCheckbox)

	rec = do(t, h, "POST", "/drawers/"+id+"/actions", map[string]any{"type": "suggestions_resolved"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "completions are not client actions")

	rec = do(t, h, "POST", "/drawers/"+id+"/actions", map[string]any{
		"type":    domain.ActionUpdateInteractionAt,
		"payload": map[string]any{"index": 3, "interaction": map[string]any{"suggestion_type": "ai"}},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ActionsStartPendingFetch(t *testing.T) {
	h, mgr := newTestHandler(t)
	id := openTestDrawer(t, h)
	base := "/drawers/" + id

	rec := do(t, h, "POST", base+"/choose", map[string]any{"type": "ai"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	// Replacing the interaction with a loading copy issues the request.
	rec = do(t, h, "POST", base+"/actions", map[string]any{
		"type": domain.ActionUpdateInteractionAt,
		"payload": map[string]any{
			"index": 0,
			"interaction": map[string]any{
				"suggestion_type": "ai",
				"prompt":          "error ratio",
				"is_loading":      true,
			},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, "POST", base+"/actions", map[string]any{
		"type":    domain.ActionAddInteraction,
		"payload": map[string]any{"type": "historical", "is_loading": true},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	d, err := mgr.Get(context.Background(), id)
	require.NoError(t, err)
	d.Wait()

	state := d.State()
	require.Len(t, state.Interactions, 2)
	assert.Equal(t, domain.PhaseResolved, state.Interactions[0].Phase())
	assert.Equal(t, "error ratio", state.Interactions[0].Suggestions[0].Title)
	assert.False(t, state.Interactions[1].IsLoading)
}

func TestServer_Validation(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := do(t, h, "POST", "/drawers", map[string]any{"metric": "up"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decodeBody[Error](t, rec).Error)

	id := openTestDrawer(t, h)
	rec = do(t, h, "POST", "/drawers/"+id+"/interactions/-1/retry", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, "POST", "/drawers/"+id+"/choose", map[string]any{"type": "magic"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_WithoutValidation(t *testing.T) {
	h, _ := newTestHandler(t, WithoutValidation())
	id := openTestDrawer(t, h)

	rec := do(t, h, "POST", "/drawers/"+id+"/choose", map[string]any{"type": "magic"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[Error](t, rec).Error, "unknown suggestion type")
}

func TestServer_NotFoundAndDelete(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := do(t, h, "GET", "/drawers/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, "POST", "/drawers/missing/interactions/0/retry", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	id := openTestDrawer(t, h)
	rec = do(t, h, "GET", "/drawers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{id}, decodeBody[map[string][]string](t, rec)["drawers"])

	rec = do(t, h, "POST", "/drawers/"+id+"/interactions/0/retry", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "no interaction yet")

	rec = do(t, h, "DELETE", "/drawers/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, "GET", "/drawers/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_InfoHealthAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("wizards_up 1\n"))
	})
	h, _ := newTestHandler(t, WithMetrics(metrics))

	rec := do(t, h, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, "GET", "/info", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "wizards-http", info["app"])
	assert.Equal(t, "1.0.0", info["api_version"])

	rec = do(t, h, "GET", "/metrics", nil)
	assert.Equal(t, "wizards_up 1\n", rec.Body.String())

	rec = do(t, h, "GET", "/openapi.yaml", nil)
	assert.Contains(t, rec.Body.String(), "openapi: 3.0.3")
}

func TestSubscribeEvents_StreamsFilteredDiffs(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	id := openTestDrawer(t, h)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(srv.URL + "/drawers/" + id + "/events?watch=interactions")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	require.True(t, scanner.Scan())
	assert.Equal(t, "event: ping", scanner.Text())

	rec := do(t, h, "POST", "/drawers/"+id+"/interactions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: {") {
			continue
		}
		var diff domain.StateDiff
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &diff))
		// The initial diff only carries the starting message and is filtered out.
		assert.Nil(t, diff.ShowStartingMessage)
		require.Len(t, diff.Appended, 1)
		assert.Equal(t, domain.SuggestionAI, diff.Appended[0].SuggestionType)
		return
	}
	t.Fatalf("stream ended without an interaction diff: %v", scanner.Err())
}

func TestMatches(t *testing.T) {
	v := true
	startOnly := &domain.StateDiff{ShowStartingMessage: &v}
	appended := &domain.StateDiff{Appended: []domain.Interaction{domain.NewInteraction(domain.SuggestionAI, false)}}

	assert.True(t, matches(startOnly, nil))
	assert.True(t, matches(startOnly, []string{WatchStartingMessage}))
	assert.False(t, matches(startOnly, []string{WatchInteractions}))
	assert.True(t, matches(appended, []string{"bogus", WatchInteractions}))
}
