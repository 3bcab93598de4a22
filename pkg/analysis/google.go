package analysis

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"scamdetect-server/pkg/config"
)

// GoogleTranscriber implements Transcriber using Google Speech-to-Text
// synchronous recognition. Chunks are short (~10s), well under the one-minute
// limit of the Recognize RPC, so no streaming session is needed.
type GoogleTranscriber struct {
	logger *logrus.Logger
	client *speech.Client
	config *config.GoogleSTTConfig
}

// NewGoogleTranscriber creates a new Google Speech-to-Text transcriber
func NewGoogleTranscriber(logger *logrus.Logger, cfg *config.GoogleSTTConfig) *GoogleTranscriber {
	return &GoogleTranscriber{
		logger: logger,
		config: cfg,
	}
}

// Name returns the provider name
func (p *GoogleTranscriber) Name() string {
	return "google"
}

// Initialize initializes the Google Speech-to-Text client
func (p *GoogleTranscriber) Initialize(ctx context.Context) error {
	if p.config == nil {
		return fmt.Errorf("Google STT configuration is required")
	}

	var clientOptions []option.ClientOption

	// Use API key if provided, otherwise use credentials file
	if p.config.APIKey != "" {
		clientOptions = append(clientOptions, option.WithAPIKey(p.config.APIKey))
		p.logger.Debug("Using Google STT API key authentication")
	} else if p.config.CredentialsFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(p.config.CredentialsFile))
		p.logger.WithField("credentials_file", p.config.CredentialsFile).Debug("Using Google STT credentials file")
	} else {
		return fmt.Errorf("Google STT requires either API key or credentials file")
	}

	var err error
	p.client, err = speech.NewClient(ctx, clientOptions...)
	if err != nil {
		p.logger.WithError(err).Error("Failed to create Google Speech client")
		return fmt.Errorf("failed to create Google Speech client: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"language":    p.config.Language,
		"sample_rate": p.config.SampleRate,
		"model":       p.config.Model,
	}).Info("Google Speech-to-Text client initialized")
	return nil
}

// Close releases the underlying client connection.
func (p *GoogleTranscriber) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

// Transcribe runs synchronous recognition on one audio chunk.
func (p *GoogleTranscriber) Transcribe(ctx context.Context, audio []byte) (*TranscriptionResult, error) {
	if p.client == nil {
		return nil, fmt.Errorf("Google Speech client not initialized")
	}

	recognitionConfig := &speechpb.RecognitionConfig{
		Encoding:                   speechpb.RecognitionConfig_LINEAR16,
		SampleRateHertz:            int32(p.config.SampleRate),
		LanguageCode:               p.config.Language,
		EnableAutomaticPunctuation: true,
	}
	if p.config.Model != "" {
		recognitionConfig.Model = p.config.Model
	}

	resp, err := p.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: recognitionConfig,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		p.logger.WithError(err).Error("Google Speech recognition failed")
		return nil, err
	}

	var parts []string
	var segments []TranscriptSegment
	var confidenceSum float64
	language := "unknown"

	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		alt := result.Alternatives[0]
		parts = append(parts, alt.Transcript)
		confidenceSum += float64(alt.Confidence)

		segment := TranscriptSegment{
			Text:       alt.Transcript,
			Confidence: float64(alt.Confidence),
		}
		if result.ResultEndTime != nil {
			segment.End = result.ResultEndTime.AsDuration().Seconds()
		}
		segments = append(segments, segment)

		if result.LanguageCode != "" {
			language = result.LanguageCode
		}
	}

	transcript := strings.TrimSpace(strings.Join(parts, " "))
	avgConfidence := 0.0
	if len(segments) > 0 {
		avgConfidence = confidenceSum / float64(len(segments))
	}

	p.logger.WithFields(logrus.Fields{
		"characters": len(transcript),
		"segments":   len(segments),
	}).Debug("Google transcription complete")

	return &TranscriptionResult{
		Transcript:        transcript,
		Language:          language,
		WordCount:         len(strings.Fields(transcript)),
		Segments:          segments,
		AverageConfidence: avgConfidence,
		ScamKeywords:      DetectScamKeywords(transcript),
	}, nil
}
