package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"scamdetect-server/pkg/analysis"
	"scamdetect-server/pkg/callcontext"
	"scamdetect-server/pkg/errors"
	"scamdetect-server/pkg/metrics"
)

// Engine turns assembled chunk evidence plus short-term feedback into a scam
// verdict. Implementations are expected to honor the context deadline.
type Engine interface {
	Analyze(ctx context.Context, evidence *analysis.Evidence, feedback *callcontext.Feedback) (*callcontext.ScamVerdict, error)
}

// DegradedVerdict is the conservative default substituted when the reasoning
// engine times out or returns malformed output.
func DegradedVerdict() callcontext.ScamVerdict {
	return callcontext.ScamVerdict{
		IsScam:     false,
		Confidence: 0,
		RedFlags:   []string{"reasoning_engine_error"},
		ScamType:   "none",
		Analysis:   "Reasoning engine unavailable, conservative default substituted",
		Degraded:   true,
	}
}

// OllamaEngine calls a local Ollama-compatible generate API.
type OllamaEngine struct {
	logger  *logrus.Entry
	client  *http.Client
	baseURL string
	model   string
	timeout time.Duration
}

// NewOllamaEngine creates an engine targeting an Ollama generate endpoint.
func NewOllamaEngine(baseURL, model string, timeout time.Duration, logger *logrus.Logger) *OllamaEngine {
	return &OllamaEngine{
		logger:  logger.WithField("component", "reasoning_engine"),
		client:  &http.Client{},
		baseURL: baseURL,
		model:   model,
		timeout: timeout,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Analyze sends the evidence to the model and parses the verdict. The call
// carries an explicit timeout; expiry surfaces as ErrReasoningTimeout so the
// caller can substitute the degraded default.
func (e *OllamaEngine) Analyze(ctx context.Context, evidence *analysis.Evidence, feedback *callcontext.Feedback) (*callcontext.ScamVerdict, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	started := time.Now()
	prompt := BuildPrompt(evidence, feedback)

	body, err := json.Marshal(generateRequest{
		Model:  e.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode reasoning request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build reasoning request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			metrics.ReasoningTimeouts.Inc()
			return nil, errors.Wrap(errors.ErrReasoningTimeout, "reasoning engine call timed out",
				map[string]interface{}{"timeout": e.timeout.String()})
		}
		return nil, errors.Wrap(err, "reasoning engine call failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(fmt.Sprintf("reasoning engine returned status %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read reasoning response")
	}

	var gen generateResponse
	if err := json.Unmarshal(raw, &gen); err != nil {
		metrics.ReasoningParseErrors.Inc()
		return nil, errors.Wrap(errors.ErrReasoningParse, "reasoning response envelope malformed")
	}

	verdict, err := ParseVerdict(gen.Response)
	if err != nil {
		metrics.ReasoningParseErrors.Inc()
		return nil, err
	}

	metrics.ReasoningLatency.Observe(time.Since(started).Seconds())
	e.logger.WithFields(logrus.Fields{
		"call_id":      evidence.CallID,
		"chunk_number": evidence.ChunkNumber,
		"is_scam":      verdict.IsScam,
		"confidence":   verdict.Confidence,
		"duration_ms":  time.Since(started).Milliseconds(),
	}).Info("Reasoning analysis complete")

	return verdict, nil
}

// ParseVerdict extracts the JSON verdict from a model response. Models wrap
// the JSON in prose often enough that we scan from the first '{' to the last
// '}' before decoding. Missing fields get defaults and confidence is clamped
// to [0, 100].
func ParseVerdict(response string) (*callcontext.ScamVerdict, error) {
	start := bytes.IndexByte([]byte(response), '{')
	end := bytes.LastIndexByte([]byte(response), '}')
	if start == -1 || end == -1 || end < start {
		return nil, errors.Wrap(errors.ErrReasoningParse, "no JSON object in reasoning response")
	}

	var parsed struct {
		IsScam     bool     `json:"is_scam"`
		Confidence *int     `json:"confidence"`
		RedFlags   []string `json:"red_flags"`
		ScamType   string   `json:"scam_type"`
		Analysis   string   `json:"analysis"`
	}
	if err := json.Unmarshal([]byte(response[start:end+1]), &parsed); err != nil {
		return nil, errors.Wrap(errors.ErrReasoningParse, "reasoning verdict is not valid JSON")
	}

	verdict := &callcontext.ScamVerdict{
		IsScam:   parsed.IsScam,
		RedFlags: parsed.RedFlags,
		ScamType: parsed.ScamType,
		Analysis: parsed.Analysis,
	}
	if parsed.Confidence != nil {
		verdict.Confidence = callcontext.ClampConfidence(*parsed.Confidence)
	}
	if verdict.RedFlags == nil {
		verdict.RedFlags = []string{}
	}
	if verdict.ScamType == "" {
		verdict.ScamType = "none"
	}
	return verdict, nil
}
