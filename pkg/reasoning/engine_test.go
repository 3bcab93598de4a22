package reasoning

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scamdetect-server/pkg/analysis"
	"scamdetect-server/pkg/callcontext"
	"scamdetect-server/pkg/errors"
	"scamdetect-server/pkg/metrics"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     callcontext.ScamVerdict
		wantErr  bool
	}{
		{
			name:     "clean json",
			response: `{"is_scam": true, "confidence": 85, "red_flags": ["urgency", "payment demand"], "scam_type": "irs", "analysis": "Caller impersonates the IRS."}`,
			want: callcontext.ScamVerdict{
				IsScam:     true,
				Confidence: 85,
				RedFlags:   []string{"urgency", "payment demand"},
				ScamType:   "irs",
				Analysis:   "Caller impersonates the IRS.",
			},
		},
		{
			name:     "json wrapped in prose",
			response: "Here is my assessment:\n```json\n{\"is_scam\": false, \"confidence\": 10, \"red_flags\": [], \"scam_type\": \"none\"}\n```\nLet me know if you need more.",
			want: callcontext.ScamVerdict{
				IsScam:     false,
				Confidence: 10,
				RedFlags:   []string{},
				ScamType:   "none",
			},
		},
		{
			name:     "missing fields get defaults",
			response: `{"is_scam": true}`,
			want: callcontext.ScamVerdict{
				IsScam:     true,
				Confidence: 0,
				RedFlags:   []string{},
				ScamType:   "none",
			},
		},
		{
			name:     "confidence clamped high",
			response: `{"is_scam": true, "confidence": 300, "scam_type": "other"}`,
			want: callcontext.ScamVerdict{
				IsScam:     true,
				Confidence: 100,
				RedFlags:   []string{},
				ScamType:   "other",
			},
		},
		{
			name:     "confidence clamped low",
			response: `{"is_scam": false, "confidence": -5}`,
			want: callcontext.ScamVerdict{
				IsScam:     false,
				Confidence: 0,
				RedFlags:   []string{},
				ScamType:   "none",
			},
		},
		{
			name:     "no json object",
			response: "I cannot determine whether this is a scam.",
			wantErr:  true,
		},
		{
			name:     "malformed json",
			response: `{"is_scam": true, "confidence":`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVerdict(tt.response)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsErrorType(err, errors.ErrReasoningParse))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestDegradedVerdict(t *testing.T) {
	v := DegradedVerdict()
	assert.False(t, v.IsScam)
	assert.Equal(t, 0, v.Confidence)
	assert.Equal(t, []string{"reasoning_engine_error"}, v.RedFlags)
	assert.True(t, v.Degraded)
}

func TestBuildPromptFirstChunk(t *testing.T) {
	evidence := &analysis.Evidence{
		CallID:      "call-1",
		ChunkNumber: 1,
		Transcription: &analysis.TranscriptionResult{
			Transcript:   "This is the IRS, pay immediately or face arrest.",
			ScamKeywords: analysis.DetectScamKeywords("This is the IRS, pay immediately or face arrest."),
		},
		VoiceAuthenticity: &analysis.VoiceAuthenticityResult{IsSynthetic: true, Confidence: 0.92, Classification: "FAKE"},
		Diarization:       &analysis.DiarizationResult{NumSpeakers: 2},
		Emotions: map[string]*analysis.EmotionResult{
			"SPEAKER_00": {TopEmotion: "angry", Confidence: 0.7, StressLevel: 0.8},
		},
	}

	prompt := BuildPrompt(evidence, &callcontext.Feedback{})

	assert.Contains(t, prompt, "chunk 1")
	assert.Contains(t, prompt, "pay immediately")
	assert.Contains(t, prompt, "artificially generated")
	assert.Contains(t, prompt, "SPEAKER_00: angry")
	assert.Contains(t, prompt, "first segment of the call")
	assert.Contains(t, prompt, `"is_scam"`)
}

func TestBuildPromptCarriesFeedback(t *testing.T) {
	evidence := &analysis.Evidence{
		CallID:        "call-2",
		ChunkNumber:   4,
		Transcription: analysis.DefaultTranscription(),
	}
	feedback := &callcontext.Feedback{
		PreviousVerdicts: []callcontext.PriorVerdict{
			{ChunkNumber: 1, IsScam: true, Confidence: 60, RedFlags: []string{"urgency"}},
			{ChunkNumber: 2, IsScam: true, Confidence: 70, RedFlags: []string{"urgency", "payment demand"}},
			{ChunkNumber: 3, IsScam: true, Confidence: 85, RedFlags: []string{"urgency"}},
		},
		Trend: callcontext.TrendSummary{
			Trend:               callcontext.FeedbackHighlySuspicious,
			AverageConfidence:   71.7,
			ScamPercentage:      100,
			ConsistentRedFlags:  []string{"urgency"},
			EscalationPattern:   callcontext.TrendEscalating,
			TotalChunksAnalyzed: 3,
		},
		TotalChunks: 3,
	}

	prompt := BuildPrompt(evidence, feedback)

	assert.Contains(t, prompt, "3 chunks analyzed so far")
	assert.Contains(t, prompt, "Chunk 2: scam=true confidence=70")
	assert.Contains(t, prompt, "highly_suspicious")
	assert.Contains(t, prompt, "escalation escalating")
	assert.Contains(t, prompt, "Recurring red flags: urgency")
}

func TestOllamaEngineAnalyze(t *testing.T) {
	metrics.Init(testLogger())

	var gotPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotPrompt = req.Prompt
		json.NewEncoder(w).Encode(generateResponse{
			Response: `{"is_scam": true, "confidence": 90, "red_flags": ["impersonation"], "scam_type": "irs", "analysis": "IRS impersonation."}`,
			Done:     true,
		})
	}))
	defer server.Close()

	engine := NewOllamaEngine(server.URL, "test-model", 5*time.Second, testLogger())
	evidence := &analysis.Evidence{
		CallID:        "call-3",
		ChunkNumber:   1,
		Transcription: &analysis.TranscriptionResult{Transcript: "This is the IRS."},
	}

	verdict, err := engine.Analyze(context.Background(), evidence, &callcontext.Feedback{})
	require.NoError(t, err)
	assert.True(t, verdict.IsScam)
	assert.Equal(t, 90, verdict.Confidence)
	assert.Equal(t, "irs", verdict.ScamType)
	assert.False(t, verdict.Degraded)
	assert.True(t, strings.Contains(gotPrompt, "This is the IRS."))
}

func TestOllamaEngineTimeout(t *testing.T) {
	metrics.Init(testLogger())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	engine := NewOllamaEngine(server.URL, "test-model", 20*time.Millisecond, testLogger())
	_, err := engine.Analyze(context.Background(), &analysis.Evidence{CallID: "call-4", ChunkNumber: 1}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrReasoningTimeout))
}

func TestOllamaEngineMalformedVerdict(t *testing.T) {
	metrics.Init(testLogger())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Response: "no verdict here", Done: true})
	}))
	defer server.Close()

	engine := NewOllamaEngine(server.URL, "test-model", 5*time.Second, testLogger())
	_, err := engine.Analyze(context.Background(), &analysis.Evidence{CallID: "call-5", ChunkNumber: 1}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrReasoningParse))
}
