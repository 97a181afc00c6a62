package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rerankd/rerankd"
	"github.com/rerankd/rerankd/pkg/config"
	"github.com/rerankd/rerankd/pkg/device"
	"github.com/rerankd/rerankd/pkg/scorer"
	"github.com/rerankd/rerankd/pkg/server"
	"github.com/rerankd/rerankd/pkg/server/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubScorer returns canned scores, or fails when err is set.
type stubScorer struct {
	scores []float64
	err    error
}

func (s *stubScorer) Score(_ context.Context, _ string, documents []string) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.scores != nil {
		return s.scores, nil
	}
	scores := make([]float64, len(documents))
	return scores, nil
}

func (s *stubScorer) Close() error { return nil }

func newTestEngine(t *testing.T, sc scorer.Scorer, rt device.Runtime) (*gin.Engine, *rerankd.Service) {
	t.Helper()
	cfg := &config.Config{
		Model: config.ModelConfig{
			Provider:    "mock",
			Name:        "test-model",
			DeviceIndex: -1,
		},
	}
	var factory rerankd.ScorerFactory
	if sc != nil {
		factory = func(device.Device) (scorer.Scorer, error) { return sc, nil }
	}
	svc := rerankd.New(cfg, rt, factory, nil)

	engine := gin.New()
	server.RegisterRoutes(engine, svc)
	return engine, svc
}

func postRank(t *testing.T, engine *gin.Engine, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/rank", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestRankEndpoint(t *testing.T) {
	sc := &stubScorer{scores: []float64{0.1, 0.9, 0.5}}
	engine, _ := newTestEngine(t, sc, nil)

	w := postRank(t, engine, dto.RankRequest{
		Question:  "What is a panda?",
		Documents: []string{"a", "b", "c"},
		TopK:      2,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.RankResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.RankedDocuments, 2)
	assert.Equal(t, "b", resp.RankedDocuments[0].Document)
	assert.Equal(t, 0.9, resp.RankedDocuments[0].Score)
	assert.Equal(t, "c", resp.RankedDocuments[1].Document)
	assert.GreaterOrEqual(t, resp.ExecutionTime, 0.0)
}

func TestRankDefaultTopK(t *testing.T) {
	sc := &stubScorer{scores: []float64{0.1, 0.2, 0.3, 0.4, 0.5}}
	engine, _ := newTestEngine(t, sc, nil)

	w := postRank(t, engine, dto.RankRequest{
		Question:  "q",
		Documents: []string{"a", "b", "c", "d", "e"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.RankResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.RankedDocuments, dto.DefaultTopK)
}

func TestRankTopKClampedToDocumentCount(t *testing.T) {
	sc := &stubScorer{scores: []float64{0.1, 0.2}}
	engine, _ := newTestEngine(t, sc, nil)

	w := postRank(t, engine, dto.RankRequest{
		Question:  "q",
		Documents: []string{"a", "b"},
		TopK:      10,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.RankResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.RankedDocuments, 2)
}

func TestRankValidation(t *testing.T) {
	engine, _ := newTestEngine(t, &stubScorer{}, nil)

	tests := []struct {
		name    string
		body    any
		wantMsg string
	}{
		{
			name:    "missing question",
			body:    gin.H{"documents": []string{"a"}},
			wantMsg: "Question",
		},
		{
			name:    "empty documents",
			body:    dto.RankRequest{Question: "q", Documents: []string{}},
			wantMsg: "no documents provided",
		},
		{
			name:    "nil documents",
			body:    gin.H{"question": "q"},
			wantMsg: "no documents provided",
		},
		{
			name:    "negative top_k",
			body:    dto.RankRequest{Question: "q", Documents: []string{"a"}, TopK: -1},
			wantMsg: "top_k must be >= 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postRank(t, engine, tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)

			var resp dto.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "invalid_request", resp.Error)
			assert.Contains(t, resp.Message, tt.wantMsg)
		})
	}
}

func TestRankMalformedJSON(t *testing.T) {
	engine, _ := newTestEngine(t, &stubScorer{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/rank", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRankScoringFailure(t *testing.T) {
	sc := &stubScorer{err: errors.New("session crashed")}
	engine, _ := newTestEngine(t, sc, nil)

	w := postRank(t, engine, dto.RankRequest{
		Question:  "q",
		Documents: []string{"a"},
		TopK:      1,
	})
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ranking_failed", resp.Error)
	assert.Contains(t, resp.Message, "session crashed")
}

func TestHealthDoesNotLoadModel(t *testing.T) {
	engine, svc := newTestEngine(t, &stubScorer{}, nil)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.False(t, resp.ModelLoaded)
	assert.Equal(t, "test-model", resp.Model)
	assert.Nil(t, resp.Device.CurrentIndex)
	assert.False(t, svc.Loaded())
}

func TestHealthAfterLoad(t *testing.T) {
	rt := &acceleratedRuntime{count: 1}
	engine, svc := newTestEngine(t, &stubScorer{scores: []float64{0.5}}, rt)

	_, _, err := svc.Rank(context.Background(), "q", []string{"a"}, 1)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.ModelLoaded)
	assert.True(t, resp.Device.AcceleratorAvailable)
	require.NotNil(t, resp.Device.CurrentIndex)
	assert.Equal(t, 0, *resp.Device.CurrentIndex)
}

func TestUnloadEndpoint(t *testing.T) {
	engine, svc := newTestEngine(t, &stubScorer{scores: []float64{0.5}}, nil)

	// Unloading before anything is loaded still succeeds.
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/unload", nil))
	require.Equal(t, http.StatusOK, w.Code)

	_, _, err := svc.Rank(context.Background(), "q", []string{"a"}, 1)
	require.NoError(t, err)
	require.True(t, svc.Loaded())

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/unload", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.UnloadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "unloaded", resp.Status)
	assert.False(t, resp.ModelLoaded)
	assert.False(t, svc.Loaded())
}

func TestSelfTestEndpoint(t *testing.T) {
	// nil scorer: the service falls back to the configured mock provider.
	engine, _ := newTestEngine(t, nil, nil)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/selftest", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.RankResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.RankedDocuments, 3)

	// Both panda documents outrank the unrelated one.
	assert.Equal(t, "Python is a programming language.", resp.RankedDocuments[2].Document)
	assert.Greater(t, resp.RankedDocuments[0].Score, resp.RankedDocuments[2].Score)
	assert.Greater(t, resp.RankedDocuments[1].Score, resp.RankedDocuments[2].Score)
}

func TestInstructionsEndpoint(t *testing.T) {
	engine, _ := newTestEngine(t, &stubScorer{}, nil)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp, "description")

	endpoints, ok := resp["endpoints"].(map[string]any)
	require.True(t, ok)
	for _, path := range []string{"/", "/rank", "/health", "/unload", "/selftest"} {
		assert.Contains(t, endpoints, path)
	}
}

// acceleratedRuntime pretends one accelerator is present.
type acceleratedRuntime struct {
	count int
}

func (r *acceleratedRuntime) Available() bool        { return true }
func (r *acceleratedRuntime) Count() int             { return r.count }
func (r *acceleratedRuntime) ReleaseCache(int) error { return nil }
