package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/calendaria/duration-engine/internal/adapters/store"
	"github.com/calendaria/duration-engine/internal/core"
	"github.com/calendaria/duration-engine/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubAnalyzer answers every email with the same analysis
type stubAnalyzer struct {
	result *core.ContentAnalysisResult
	err    error
}

func (s *stubAnalyzer) Analyze(_ context.Context, req *core.AnalysisRequest) (*core.ContentAnalysisResult, error) {
	if strings.Contains(req.Subject, "panic") {
		panic("analyzer exploded")
	}
	if s.err != nil {
		return nil, s.err
	}
	copied := *s.result
	return &copied, nil
}

func newTestRouter(t *testing.T, analyzer core.ContentAnalyzer) http.Handler {
	t.Helper()
	logger := zap.NewNop()
	reg := prometheus.NewRegistry()
	m := metrics.NewDurationMetrics(reg)

	engine := core.NewEngine(analyzer, logger, time.Second, m)
	batch := core.NewBatchCoordinator(engine, core.DefaultBatchSize, logger)
	feedbackStore := store.NewMemoryStore(logger, 0)
	t.Cleanup(feedbackStore.Stop)
	feedback := core.NewFeedbackService(feedbackStore, logger, time.Hour)

	return NewRouter(&RouterConfig{
		Handler:  NewHandler(engine, batch, feedback, logger),
		Logger:   logger,
		Metrics:  m,
		Gatherer: reg,
	})
}

func confidentAnalysis() *core.ContentAnalysisResult {
	return &core.ContentAnalysisResult{
		SuggestedDuration: 45,
		Confidence:        0.9,
		Reasoning:         "Initial evaluation with several concerns",
		MatchedKeywords:   []string{"evaluation"},
		Category:          "evaluation",
		UrgencyLevel:      "medium",
		IsFirstVisit:      true,
		Complexity:        "complex",
	}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestProcessEmail_AIAnalysis(t *testing.T) {
	h := newTestRouter(t, &stubAnalyzer{result: confidentAnalysis()})

	rec := doJSON(t, h, http.MethodPost, "/process-email", map[string]any{
		"email": map[string]any{
			"subject":     "Evaluation request",
			"content":     "I would like a full evaluation.",
			"senderEmail": "john.smith@example.com",
		},
		"config": core.DefaultProcessingConfig(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, float64(45), body["finalDuration"])
	assert.Equal(t, "ai_analysis", body["method"])
	assert.NotEmpty(t, body["processedAt"])
	assert.NotNil(t, body["configWarnings"])

	event := body["suggestedCalendarEvent"].(map[string]any)
	assert.Equal(t, "Appointment - john.smith@example.com", event["title"])
	assert.Equal(t, float64(45), event["duration"])
	assert.Contains(t, event["description"], "First visit: Yes")
}

func TestProcessEmail_MissingFields(t *testing.T) {
	h := newTestRouter(t, &stubAnalyzer{result: confidentAnalysis()})

	rec := doJSON(t, h, http.MethodPost, "/process-email", map[string]any{
		"email": map[string]any{"subject": "Hello"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "Missing required fields", body["error"])
	assert.Equal(t, "email.content, config", body["details"])
}

func TestProcessEmail_MalformedBody(t *testing.T) {
	h := newTestRouter(t, &stubAnalyzer{result: confidentAnalysis()})

	req := httptest.NewRequest(http.MethodPost, "/process-email", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessEmail_InvalidConfig(t *testing.T) {
	h := newTestRouter(t, &stubAnalyzer{result: confidentAnalysis()})

	cfg := core.DefaultProcessingConfig()
	cfg.ConfidenceThreshold = 1.5
	cfg.FallbackDuration = 0

	rec := doJSON(t, h, http.MethodPost, "/process-email", map[string]any{
		"email":  map[string]any{"subject": "Hi", "content": "Need an appointment"},
		"config": cfg,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "Invalid configuration", body["error"])
	assert.Len(t, body["validationErrors"], 2)
}

func TestProcessEmail_FallbackOnAnalyzerPanic(t *testing.T) {
	h := newTestRouter(t, &stubAnalyzer{result: confidentAnalysis()})

	rec := doJSON(t, h, http.MethodPost, "/process-email", map[string]any{
		"email":  map[string]any{"subject": "panic please", "content": "anything"},
		"config": core.DefaultProcessingConfig(),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "fallback", body["method"])
	assert.Equal(t, float64(30), body["finalDuration"])
	assert.Equal(t, float64(0), body["confidence"])
}

func TestProcessBatch(t *testing.T) {
	h := newTestRouter(t, &stubAnalyzer{result: confidentAnalysis()})

	emails := []map[string]any{
		{"subject": "One", "content": "first"},
		{"subject": "", "content": "missing subject"},
		{"subject": "Three", "content": "third"},
	}
	rec := doJSON(t, h, http.MethodPut, "/process-email", map[string]any{
		"emails": emails,
		"config": core.DefaultProcessingConfig(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	stats := body["stats"].(map[string]any)
	assert.Equal(t, float64(3), stats["total"])
	assert.Equal(t, float64(2), stats["successful"])
	assert.Equal(t, float64(1), stats["failed"])
	assert.Equal(t, float64(45), stats["averageDuration"])

	results := body["results"].([]any)
	require.Len(t, results, 3)
	assert.Equal(t, false, results[1].(map[string]any)["success"])
	assert.Contains(t, body, "configValidation")
	assert.Contains(t, body, "processedAt")
}

func TestProcessBatch_EmptyEmails(t *testing.T) {
	h := newTestRouter(t, &stubAnalyzer{result: confidentAnalysis()})

	rec := doJSON(t, h, http.MethodPut, "/process-email", map[string]any{
		"emails": []any{},
		"config": core.DefaultProcessingConfig(),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDescribe(t *testing.T) {
	h := newTestRouter(t, &stubAnalyzer{result: confidentAnalysis()})

	rec := doJSON(t, h, http.MethodGet, "/process-email?type=sample-emails", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["emails"], 3)

	rec = doJSON(t, h, http.MethodGet, "/process-email?type=default-config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cfg := decodeBody(t, rec)["config"].(map[string]any)
	rules := cfg["automaticDurationRules"].([]any)
	require.Len(t, rules, 3)

	durations := map[string]float64{}
	for _, r := range rules {
		rule := r.(map[string]any)
		durations[rule["category"].(string)] = rule["duration"].(float64)
	}
	assert.Equal(t, map[string]float64{"quick consult": 15, "standard consult": 30, "first visit": 60}, durations)

	rec = doJSON(t, h, http.MethodGet, "/process-email", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeBody(t, rec)["endpoints"])

	rec = doJSON(t, h, http.MethodGet, "/process-email?type=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeedbackLifecycle(t *testing.T) {
	h := newTestRouter(t, &stubAnalyzer{result: confidentAnalysis()})

	correct := 45
	rec := doJSON(t, h, http.MethodPost, "/feedback", map[string]any{
		"email":           map[string]any{"subject": "Evaluation", "content": "Full evaluation"},
		"result":          map[string]any{"finalDuration": 45, "method": "ai_analysis", "confidence": 0.9, "reasoning": "ok"},
		"correctDuration": correct,
		"rating":          5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decodeBody(t, rec)["id"].(string)
	assert.NotEmpty(t, id)

	rec = doJSON(t, h, http.MethodGet, "/feedback?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Len(t, body["records"], 1)
	summary := body["summary"].(map[string]any)
	assert.Equal(t, float64(1), summary["count"])
	assert.Equal(t, float64(1), summary["accuracy"])

	rec = doJSON(t, h, http.MethodDelete, "/feedback/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/feedback/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeedback_Invalid(t *testing.T) {
	h := newTestRouter(t, &stubAnalyzer{result: confidentAnalysis()})

	rec := doJSON(t, h, http.MethodPost, "/feedback", map[string]any{
		"email": map[string]any{"subject": "Evaluation", "content": "Full evaluation"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/feedback?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestRouter(t, &stubAnalyzer{result: confidentAnalysis()})

	rec := doJSON(t, h, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "duration_engine_http_requests_total")
}
