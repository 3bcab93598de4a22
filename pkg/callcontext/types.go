package callcontext

import (
	"time"
)

// Risk levels derived from the rolling scam likelihood
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Escalation trends over the three most recent chunk confidences
const (
	TrendEscalating   = "escalating"
	TrendDeEscalating = "de-escalating"
	TrendStable       = "stable"
)

// Timeline event types
const (
	EventHighConfidenceScam = "high_confidence_scam_detection"
	EventAIVoiceDetected    = "ai_voice_detected"
	EventSpeakerChange      = "speaker_change"
)

// Speaker emotional stability classifications
const (
	StabilityStable   = "stable"
	StabilityVariable = "variable"
	StabilityUnstable = "unstable"
)

// Short-horizon trend classifications used in reasoning feedback
const (
	FeedbackHighlySuspicious     = "highly_suspicious"
	FeedbackModeratelySuspicious = "moderately_suspicious"
	FeedbackPotentiallySuspicious = "potentially_suspicious"
	FeedbackLikelyClean          = "likely_clean"

	EscalationVariable         = "variable"
	EscalationInsufficientData = "insufficient_data"
)

// Bounds on rolling state
const (
	// TranscriptSnippetLen is how much of each chunk transcript is retained
	TranscriptSnippetLen = 200

	// MaxTimelineEvents caps the timeline, oldest evicted first
	MaxTimelineEvents = 20

	// SpeakerWindow bounds the per-speaker emotion and stress windows
	SpeakerWindow = 10

	// FeedbackVerdicts is how many recent verdicts are replayed to the
	// reasoning engine
	FeedbackVerdicts = 3
)

// ScamVerdict is the reasoning engine's assessment of one chunk.
type ScamVerdict struct {
	IsScam     bool     `json:"is_scam"`
	Confidence int      `json:"confidence"`
	RedFlags   []string `json:"red_flags"`
	ScamType   string   `json:"scam_type"`
	Analysis   string   `json:"analysis,omitempty"`

	// Degraded marks verdicts substituted after a reasoning timeout or
	// parse failure.
	Degraded bool `json:"degraded,omitempty"`
}

// SpeakerEmotion is the per-speaker emotion outcome for one chunk.
type SpeakerEmotion struct {
	TopEmotion  string  `json:"top_emotion"`
	Confidence  float64 `json:"confidence"`
	StressLevel float64 `json:"stress_level"`
}

// ChunkEvidence is what the orchestrator hands the store for one chunk:
// the assembled raw analysis outcomes, prior to any aggregation.
type ChunkEvidence struct {
	ChunkNumber          int                       `json:"chunk_number"`
	Timestamp            time.Time                 `json:"timestamp"`
	Transcript           string                    `json:"transcript"`
	AIVoiceDetected      bool                      `json:"ai_voice_detected"`
	SuspiciousBackground bool                      `json:"suspicious_background"`
	NumSpeakers          int                       `json:"num_speakers"`
	Emotions             map[string]SpeakerEmotion `json:"emotions"`
}

// ChunkSummary is the persisted per-chunk record. Chunks are an arrival log:
// chunk numbers are caller-supplied and not validated for order or
// uniqueness.
type ChunkSummary struct {
	ChunkNumber          int               `json:"chunk_number"`
	Timestamp            time.Time         `json:"timestamp"`
	TranscriptSnippet    string            `json:"transcript_snippet"`
	AIVoiceDetected      bool              `json:"ai_voice_detected"`
	SuspiciousBackground bool              `json:"suspicious_background"`
	NumSpeakers          int               `json:"num_speakers"`
	DominantEmotions     map[string]string `json:"dominant_emotions"`
	ScamAnalysis         ScamVerdict       `json:"scam_analysis"`
}

// OverallAnalysis is the rolling aggregate recomputed on every chunk.
type OverallAnalysis struct {
	ScamLikelihood     float64  `json:"scam_likelihood"`
	PersistentPatterns []string `json:"persistent_patterns"`
	EscalationTrend    string   `json:"escalation_trend"`
	RiskLevel          string   `json:"risk_level"`
}

// SpeakerProfile tracks rolling emotional signals for one speaker.
// DominantEmotions and StressLevels are kept in lock-step, bounded to
// SpeakerWindow entries.
type SpeakerProfile struct {
	Appearances        int       `json:"appearances"`
	DominantEmotions   []string  `json:"dominant_emotions"`
	StressLevels       []float64 `json:"stress_levels"`
	EmotionalStability string    `json:"emotional_stability"`
}

// TimelineEvent records one significant event in the call.
type TimelineEvent struct {
	Chunk   int    `json:"chunk"`
	Event   string `json:"event"`
	Details string `json:"details"`
}

// CallContext is the per-call document, the system of record for all
// history. It is exclusively owned by the Store for the call's duration.
type CallContext struct {
	CallID          string                     `json:"call_id"`
	CreatedAt       time.Time                  `json:"created_at"`
	LastUpdated     time.Time                  `json:"last_updated"`
	Chunks          []ChunkSummary             `json:"chunks"`
	Overall         OverallAnalysis            `json:"overall_analysis"`
	SpeakerProfiles map[string]*SpeakerProfile `json:"speaker_profiles"`
	Timeline        []TimelineEvent            `json:"timeline"`
}

// NewCallContext initializes an empty context for a call id.
func NewCallContext(callID string) *CallContext {
	now := time.Now().UTC()
	return &CallContext{
		CallID:      callID,
		CreatedAt:   now,
		LastUpdated: now,
		Chunks:      []ChunkSummary{},
		Overall: OverallAnalysis{
			ScamLikelihood:     0.0,
			PersistentPatterns: []string{},
			EscalationTrend:    TrendStable,
			RiskLevel:          RiskLow,
		},
		SpeakerProfiles: make(map[string]*SpeakerProfile),
		Timeline:        []TimelineEvent{},
	}
}

// OverallAssessment summarizes the rolling aggregate for the summary view.
type OverallAssessment struct {
	IsLikelyScam    bool    `json:"is_likely_scam"`
	ScamLikelihood  float64 `json:"scam_likelihood"`
	RiskLevel       string  `json:"risk_level"`
	EscalationTrend string  `json:"escalation_trend"`
}

// SummaryStatistics holds per-call counters for the summary view.
type SummaryStatistics struct {
	ScamChunks                 int     `json:"scam_chunks"`
	ScamPercentage             float64 `json:"scam_percentage"`
	AIVoiceDetectedChunks      int     `json:"ai_voice_detected_chunks"`
	SuspiciousBackgroundChunks int     `json:"suspicious_background_chunks"`
	AverageConfidence          float64 `json:"average_confidence"`
}

// CallSummary is the read-only comprehensive view of a call.
type CallSummary struct {
	CallID           string                     `json:"call_id"`
	TotalChunks      int                        `json:"total_chunks"`
	DurationAnalyzed string                     `json:"duration_analyzed"`
	Overall          OverallAssessment          `json:"overall_assessment"`
	Statistics       SummaryStatistics          `json:"statistics"`
	RedFlags         []string                   `json:"red_flags"`
	SpeakerProfiles  map[string]*SpeakerProfile `json:"speaker_analysis"`
	Timeline         []TimelineEvent            `json:"timeline"`
	LatestAnalysis   *ScamVerdict               `json:"latest_analysis,omitempty"`
	CreatedAt        time.Time                  `json:"created_at"`
	LastUpdated      time.Time                  `json:"last_updated"`
}

// PriorVerdict is one earlier chunk's verdict replayed to the reasoning
// engine as short-term memory.
type PriorVerdict struct {
	ChunkNumber int      `json:"chunk_number"`
	IsScam      bool     `json:"is_scam"`
	Confidence  int      `json:"confidence"`
	RedFlags    []string `json:"red_flags"`
	ScamType    string   `json:"scam_type"`
	Analysis    string   `json:"analysis,omitempty"`
}

// TrendSummary classifies the run of previous verdicts for the reasoning
// engine.
type TrendSummary struct {
	Trend               string   `json:"trend"`
	AverageConfidence   float64  `json:"average_confidence"`
	ScamPercentage      float64  `json:"scam_percentage"`
	ConsistentRedFlags  []string `json:"consistent_red_flags"`
	EscalationPattern   string   `json:"escalation_pattern"`
	TotalChunksAnalyzed int      `json:"total_chunks_analyzed"`
}

// Feedback gives the reasoning engine short-term memory without resending
// the full history: the last few verdicts plus a derived trend summary.
type Feedback struct {
	PreviousVerdicts []PriorVerdict `json:"previous_verdicts"`
	Trend            TrendSummary   `json:"trend"`
	TotalChunks      int            `json:"total_chunks"`
}
