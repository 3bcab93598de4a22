package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scamdetect-server/pkg/analysis"
	"scamdetect-server/pkg/callcontext"
	"scamdetect-server/pkg/config"
	"scamdetect-server/pkg/metrics"
	"scamdetect-server/pkg/pipeline"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

type stubEngine struct {
	verdict callcontext.ScamVerdict
}

func (e *stubEngine) Analyze(ctx context.Context, evidence *analysis.Evidence, feedback *callcontext.Feedback) (*callcontext.ScamVerdict, error) {
	v := e.verdict
	return &v, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *callcontext.Store) {
	t.Helper()
	metrics.Init(testLogger())

	store := callcontext.NewStore(callcontext.NewMemoryDocumentStore(), 10, testLogger())
	orchestrator := pipeline.NewOrchestrator(
		analysis.NewMockTranscriber(testLogger()),
		&analysis.MockVoiceDetector{},
		&analysis.MockNoiseDetector{},
		&analysis.MockDiarizer{Speakers: 2},
		&analysis.MockEmotionDetector{},
		&stubEngine{verdict: callcontext.ScamVerdict{IsScam: true, Confidence: 75, RedFlags: []string{"urgency"}, ScamType: "irs"}},
		store,
		time.Second,
		testLogger(),
	)

	handler := NewHandler(orchestrator, store, 1024*1024, testLogger())
	server := NewServer(testLogger(), &config.HTTPConfig{Port: 8080, MetricsEnabled: true}, handler, nil)

	ts := httptest.NewServer(server.mux)
	t.Cleanup(ts.Close)
	return ts, store
}

func analyzeChunk(t *testing.T, ts *httptest.Server, callID string, chunkNumber string, audio []byte) *http.Response {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("call_id", callID))
	require.NoError(t, writer.WriteField("chunk_number", chunkNumber))
	part, err := writer.CreateFormFile("audio", "chunk.wav")
	require.NoError(t, err)
	_, err = part.Write(audio)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/analyze-audio", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func TestAnalyzeAudio(t *testing.T) {
	ts, store := newTestServer(t)

	resp := analyzeChunk(t, ts, "call-1", "1", []byte("fake-audio"))
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result pipeline.AnalysisResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "call-1", result.CallID)
	assert.True(t, result.Verdict.IsScam)
	assert.Equal(t, 75, result.Verdict.Confidence)
	assert.NotEmpty(t, result.ProcessingID)

	assert.Len(t, store.Load("call-1").Chunks, 1)
}

func TestAnalyzeAudioValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	t.Run("missing call_id", func(t *testing.T) {
		resp := analyzeChunk(t, ts, "", "1", []byte("audio"))
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("bad chunk_number", func(t *testing.T) {
		resp := analyzeChunk(t, ts, "call-2", "first", []byte("audio"))
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("empty audio", func(t *testing.T) {
		resp := analyzeChunk(t, ts, "call-2", "1", nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestCallSummary(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := analyzeChunk(t, ts, "call-3", "1", []byte("audio"))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err := ts.Client().Get(ts.URL + "/call-summary/call-3")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary callcontext.CallSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, "call-3", summary.CallID)
	assert.Equal(t, 1, summary.TotalChunks)
	assert.Equal(t, "10 seconds", summary.DurationAnalyzed)
	assert.Contains(t, summary.RedFlags, "urgency")
}

func TestCallSummaryNotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/call-summary/never-seen")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestClearCallData(t *testing.T) {
	ts, store := newTestServer(t)

	resp := analyzeChunk(t, ts, "call-4", "1", []byte("audio"))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/call-data/call-4", nil)
	require.NoError(t, err)
	resp, err = ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Empty(t, store.Load("call-4").Chunks)

	// Clearing again is still a success.
	req, err = http.NewRequest(http.MethodDelete, ts.URL+"/call-data/call-4", nil)
	require.NoError(t, err)
	resp, err = ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		resp, err := ts.Client().Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
