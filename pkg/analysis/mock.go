package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Mock providers for development and testing. They produce deterministic
// results derived from the audio payload so pipeline behavior is
// reproducible without any inference backend.

// MockTranscriber implements Transcriber with canned transcripts.
type MockTranscriber struct {
	logger *logrus.Logger

	// Transcript overrides the canned output when set.
	Transcript string
}

// NewMockTranscriber creates a new mock transcriber
func NewMockTranscriber(logger *logrus.Logger) *MockTranscriber {
	return &MockTranscriber{logger: logger}
}

// Name returns the provider name
func (m *MockTranscriber) Name() string {
	return "mock"
}

// Transcribe returns a canned transcription with keyword scoring applied.
func (m *MockTranscriber) Transcribe(ctx context.Context, audio []byte) (*TranscriptionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	transcript := m.Transcript
	if transcript == "" {
		transcript = fmt.Sprintf("Mock transcript for %d bytes of audio.", len(audio))
	}

	m.logger.WithField("bytes", len(audio)).Debug("Mock transcription generated")

	return &TranscriptionResult{
		Transcript:        transcript,
		Language:          "en",
		WordCount:         len(strings.Fields(transcript)),
		AverageConfidence: 0.95,
		ScamKeywords:      DetectScamKeywords(transcript),
	}, nil
}

// MockVoiceDetector implements VoiceAuthenticityDetector.
type MockVoiceDetector struct {
	// Synthetic forces the detection outcome.
	Synthetic bool
}

// Detect classifies the voice as real unless Synthetic is set.
func (m *MockVoiceDetector) Detect(ctx context.Context, audio []byte) (*VoiceAuthenticityResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	classification := "REAL"
	confidence := 0.1
	if m.Synthetic {
		classification = "FAKE"
		confidence = 0.9
	}
	return &VoiceAuthenticityResult{
		IsSynthetic:    m.Synthetic,
		Confidence:     confidence,
		Classification: classification,
	}, nil
}

// MockNoiseDetector implements BackgroundNoiseDetector.
type MockNoiseDetector struct {
	// Suspicious forces a suspicious environment result.
	Suspicious bool
}

// Detect returns a quiet environment unless Suspicious is set.
func (m *MockNoiseDetector) Detect(ctx context.Context, audio []byte) (*BackgroundNoiseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !m.Suspicious {
		return DefaultBackgroundNoise(), nil
	}
	return &BackgroundNoiseResult{
		SuspiciousSounds: []SuspiciousSound{{Sound: "Keyboard typing", Confidence: 0.8}},
		SuspicionScore:   0.7,
		IsSuspicious:     true,
	}, nil
}

// MockDiarizer implements Diarizer with a fixed number of speakers.
type MockDiarizer struct {
	// Speakers is how many distinct speakers to report; zero yields an
	// empty segment list.
	Speakers int
}

// Diarize splits the chunk duration evenly across the configured speakers.
func (m *MockDiarizer) Diarize(ctx context.Context, audio []byte) (*DiarizationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if m.Speakers <= 0 {
		return DefaultDiarization(), nil
	}

	segments := make([]SpeakerSegment, 0, m.Speakers)
	span := 10.0 / float64(m.Speakers)
	total := 0.0
	for i := 0; i < m.Speakers; i++ {
		segments = append(segments, SpeakerSegment{
			SpeakerID: fmt.Sprintf("SPEAKER_%02d", i),
			Start:     float64(i) * span,
			End:       float64(i+1) * span,
		})
		total += span
	}

	return &DiarizationResult{
		Segments:        segments,
		NumSpeakers:     m.Speakers,
		TotalSpeechTime: total,
	}, nil
}

// SplitBySpeaker partitions the raw bytes proportionally to each speaker's
// speech time. Good enough for a mock: downstream only needs per-speaker
// clips, not audible audio.
func (m *MockDiarizer) SplitBySpeaker(audio []byte, segments []SpeakerSegment) (map[string][]byte, error) {
	if len(segments) == 0 {
		return map[string][]byte{}, nil
	}

	speakers := make(map[string]bool)
	ordered := []string{}
	for _, seg := range segments {
		if !speakers[seg.SpeakerID] {
			speakers[seg.SpeakerID] = true
			ordered = append(ordered, seg.SpeakerID)
		}
	}

	clips := make(map[string][]byte, len(ordered))
	if len(audio) == 0 {
		for _, id := range ordered {
			clips[id] = nil
		}
		return clips, nil
	}

	chunk := len(audio) / len(ordered)
	for i, id := range ordered {
		start := i * chunk
		end := start + chunk
		if i == len(ordered)-1 {
			end = len(audio)
		}
		clips[id] = audio[start:end]
	}
	return clips, nil
}

// MockEmotionDetector implements EmotionDetector.
type MockEmotionDetector struct {
	// Emotion and Stress override the canned result when set.
	Emotion string
	Stress  float64
}

// Detect returns a neutral emotion unless overridden.
func (m *MockEmotionDetector) Detect(ctx context.Context, clip []byte) (*EmotionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	emotion := m.Emotion
	if emotion == "" {
		emotion = "neutral"
	}
	return &EmotionResult{
		TopEmotion:  emotion,
		Confidence:  0.8,
		StressLevel: m.Stress,
	}, nil
}
