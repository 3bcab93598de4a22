package analysis

import (
	"context"
	"time"
)

// Analysis stage names used in logs, metrics, and degraded-stage markers.
const (
	StageTranscription   = "transcription"
	StageVoiceAuth       = "voice_authenticity"
	StageBackgroundNoise = "background_noise"
	StageDiarization     = "diarization"
	StageEmotion         = "emotion"
)

// KeywordAnalysis is the keyword risk assessment of a transcript.
type KeywordAnalysis struct {
	Keywords   []string `json:"keywords"`
	Categories []string `json:"categories"`
	RiskScore  float64  `json:"risk_score"`
}

// TranscriptSegment is one timed span of the transcript.
type TranscriptSegment struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// TranscriptionResult is the transcription stage output.
type TranscriptionResult struct {
	Transcript        string              `json:"transcript"`
	Language          string              `json:"language"`
	WordCount         int                 `json:"word_count"`
	Segments          []TranscriptSegment `json:"segments,omitempty"`
	AverageConfidence float64             `json:"average_confidence"`
	ScamKeywords      KeywordAnalysis     `json:"scam_keywords"`
}

// DefaultTranscription is the fail-soft substitute when the transcription
// stage fails or times out.
func DefaultTranscription() *TranscriptionResult {
	return &TranscriptionResult{
		Language:     "unknown",
		ScamKeywords: KeywordAnalysis{Keywords: []string{}, Categories: []string{}},
	}
}

// VoiceAuthenticityResult is the synthetic-voice detection output.
type VoiceAuthenticityResult struct {
	IsSynthetic    bool    `json:"is_synthetic"`
	Confidence     float64 `json:"confidence"`
	Classification string  `json:"classification"`
}

// DefaultVoiceAuthenticity is the fail-soft substitute: a chunk that could
// not be classified is treated as a real voice with zero confidence.
func DefaultVoiceAuthenticity() *VoiceAuthenticityResult {
	return &VoiceAuthenticityResult{Classification: "UNKNOWN"}
}

// SuspiciousSound is one recognized background sound above its threshold.
type SuspiciousSound struct {
	Sound      string  `json:"sound"`
	Confidence float64 `json:"confidence"`
}

// BackgroundNoiseResult is the background environment classification output.
type BackgroundNoiseResult struct {
	SuspiciousSounds []SuspiciousSound `json:"suspicious_sounds"`
	SuspicionScore   float64           `json:"suspicion_score"`
	IsSuspicious     bool              `json:"is_suspicious"`
}

// DefaultBackgroundNoise is the fail-soft substitute.
func DefaultBackgroundNoise() *BackgroundNoiseResult {
	return &BackgroundNoiseResult{SuspiciousSounds: []SuspiciousSound{}}
}

// SpeakerSegment is one speaker-attributed time interval.
type SpeakerSegment struct {
	SpeakerID string  `json:"speaker_id"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
}

// DiarizationResult is the speaker segmentation output. Zero segments is a
// valid outcome (silence, music), not an error.
type DiarizationResult struct {
	Segments        []SpeakerSegment `json:"segments"`
	NumSpeakers     int              `json:"num_speakers"`
	TotalSpeechTime float64          `json:"total_speech_time"`
}

// DefaultDiarization is the fail-soft substitute: no segments, so the
// emotion stage is skipped.
func DefaultDiarization() *DiarizationResult {
	return &DiarizationResult{Segments: []SpeakerSegment{}}
}

// EmotionResult is the per-speaker emotion classification output.
type EmotionResult struct {
	TopEmotion  string  `json:"top_emotion"`
	Confidence  float64 `json:"confidence"`
	StressLevel float64 `json:"stress_level"`
}

// DefaultEmotion is the fail-soft substitute for one speaker.
func DefaultEmotion() *EmotionResult {
	return &EmotionResult{TopEmotion: "unknown"}
}

// Evidence is the assembled output of all analysis stages for one chunk,
// handed to the reasoning engine and the context store.
type Evidence struct {
	CallID      string    `json:"call_id"`
	ChunkNumber int       `json:"chunk_number"`
	Timestamp   time.Time `json:"timestamp"`

	Transcription     *TranscriptionResult     `json:"transcription"`
	VoiceAuthenticity *VoiceAuthenticityResult `json:"voice_authenticity"`
	BackgroundNoise   *BackgroundNoiseResult   `json:"background_noise"`
	Diarization       *DiarizationResult       `json:"diarization"`
	Emotions          map[string]*EmotionResult `json:"emotions"`

	// DegradedStages lists stages whose output is a fail-soft substitute.
	DegradedStages []string `json:"degraded_stages,omitempty"`
}

// Transcriber converts an audio chunk to text with keyword risk scoring.
type Transcriber interface {
	// Name returns the provider name
	Name() string

	// Transcribe converts one audio chunk to a transcription result
	Transcribe(ctx context.Context, audio []byte) (*TranscriptionResult, error)
}

// VoiceAuthenticityDetector classifies whether a chunk's voice is
// synthetically generated.
type VoiceAuthenticityDetector interface {
	Detect(ctx context.Context, audio []byte) (*VoiceAuthenticityResult, error)
}

// BackgroundNoiseDetector classifies the chunk's background environment.
type BackgroundNoiseDetector interface {
	Detect(ctx context.Context, audio []byte) (*BackgroundNoiseResult, error)
}

// Diarizer segments a chunk into speaker-attributed intervals and splits the
// audio per speaker.
type Diarizer interface {
	Diarize(ctx context.Context, audio []byte) (*DiarizationResult, error)

	// SplitBySpeaker extracts one concatenated clip per distinct speaker.
	SplitBySpeaker(audio []byte, segments []SpeakerSegment) (map[string][]byte, error)
}

// EmotionDetector classifies the dominant emotion of one speaker's clip.
type EmotionDetector interface {
	Detect(ctx context.Context, clip []byte) (*EmotionResult, error)
}
