package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"scamdetect-server/pkg/analysis"
	"scamdetect-server/pkg/callcontext"
	"scamdetect-server/pkg/errors"
	"scamdetect-server/pkg/metrics"
	"scamdetect-server/pkg/reasoning"
)

// ResultPublisher receives completed chunk results for delivery to external
// consumers. Implementations must not block the pipeline.
type ResultPublisher interface {
	PublishResult(callID string, result *AnalysisResult)
}

// AnalysisResult is the per-chunk response returned to the API caller and
// published to subscribers.
type AnalysisResult struct {
	ProcessingID string                  `json:"processing_id"`
	CallID       string                  `json:"call_id"`
	ChunkNumber  int                     `json:"chunk_number"`
	Timestamp    time.Time               `json:"timestamp"`
	Verdict      callcontext.ScamVerdict `json:"verdict"`

	Transcript      string   `json:"transcript"`
	AIVoiceDetected bool     `json:"ai_voice_detected"`
	NumSpeakers     int      `json:"num_speakers"`
	DegradedStages  []string `json:"degraded_stages,omitempty"`

	ScamLikelihood float64 `json:"scam_likelihood"`
	RiskLevel      string  `json:"risk_level"`

	ProcessingTime string `json:"processing_time"`
}

// Orchestrator runs the per-chunk analysis pipeline: independent stages
// concurrently, diarization then per-speaker emotion, reasoning with
// short-term feedback, and finally the context store commit.
type Orchestrator struct {
	logger *logrus.Entry

	transcriber   analysis.Transcriber
	voiceDetector analysis.VoiceAuthenticityDetector
	noiseDetector analysis.BackgroundNoiseDetector
	diarizer      analysis.Diarizer
	emotion       analysis.EmotionDetector

	engine reasoning.Engine
	store  *callcontext.Store

	// publishers receive every completed result; nil entries are skipped
	publishers []ResultPublisher

	stageTimeout time.Duration
}

// NewOrchestrator wires the pipeline from its collaborators.
func NewOrchestrator(
	transcriber analysis.Transcriber,
	voiceDetector analysis.VoiceAuthenticityDetector,
	noiseDetector analysis.BackgroundNoiseDetector,
	diarizer analysis.Diarizer,
	emotion analysis.EmotionDetector,
	engine reasoning.Engine,
	store *callcontext.Store,
	stageTimeout time.Duration,
	logger *logrus.Logger,
) *Orchestrator {
	if stageTimeout <= 0 {
		stageTimeout = 15 * time.Second
	}
	return &Orchestrator{
		logger:        logger.WithField("component", "pipeline"),
		transcriber:   transcriber,
		voiceDetector: voiceDetector,
		noiseDetector: noiseDetector,
		diarizer:      diarizer,
		emotion:       emotion,
		engine:        engine,
		store:         store,
		stageTimeout:  stageTimeout,
	}
}

// AddPublisher registers a delivery target for completed results.
func (o *Orchestrator) AddPublisher(p ResultPublisher) {
	if p != nil {
		o.publishers = append(o.publishers, p)
	}
}

// Process runs the full pipeline for one audio chunk. Stage failures degrade
// to documented defaults rather than failing the chunk; only an empty audio
// payload or a store commit failure is returned as an error.
func (o *Orchestrator) Process(ctx context.Context, callID string, chunkNumber int, audio []byte) (*AnalysisResult, error) {
	if len(audio) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyAudio, "cannot analyze empty chunk",
			map[string]interface{}{"call_id": callID, "chunk_number": chunkNumber})
	}

	metrics.ActiveCalls.Inc()
	defer metrics.ActiveCalls.Dec()

	started := time.Now()
	processingID := uuid.New().String()
	log := o.logger.WithFields(logrus.Fields{
		"processing_id": processingID,
		"call_id":       callID,
		"chunk_number":  chunkNumber,
	})
	log.WithField("bytes", len(audio)).Info("Processing audio chunk")

	evidence := &analysis.Evidence{
		CallID:      callID,
		ChunkNumber: chunkNumber,
		Timestamp:   time.Now().UTC(),
	}

	// Stage 1: transcription, voice authenticity, and background noise are
	// independent of each other and run concurrently.
	o.runIndependentStages(ctx, audio, evidence, log)

	// Stage 2: diarization, then per-speaker emotion on the split clips.
	o.runSpeakerStages(ctx, audio, evidence, log)

	// Reasoning over assembled evidence plus short-term feedback.
	feedback := o.store.DeriveFeedback(callID)
	verdict := o.runReasoning(ctx, evidence, feedback, log)

	// Commit to the call context store.
	if err := o.store.Update(callID, buildChunkEvidence(evidence), verdict); err != nil {
		metrics.ChunksProcessed.WithLabelValues("error").Inc()
		return nil, errors.Wrap(err, "failed to commit chunk to call context",
			map[string]interface{}{"call_id": callID, "chunk_number": chunkNumber})
	}

	result := o.buildResult(processingID, evidence, verdict, started)

	if verdict.Degraded || len(evidence.DegradedStages) > 0 {
		metrics.DegradedChunks.Inc()
	}
	metrics.ChunksProcessed.WithLabelValues("success").Inc()
	metrics.ChunkProcessingTime.Observe(time.Since(started).Seconds())

	for _, p := range o.publishers {
		p.PublishResult(callID, result)
	}

	log.WithFields(logrus.Fields{
		"is_scam":         verdict.IsScam,
		"confidence":      verdict.Confidence,
		"degraded_stages": len(evidence.DegradedStages),
		"duration_ms":     time.Since(started).Milliseconds(),
	}).Info("Chunk processing complete")

	return result, nil
}

// runIndependentStages fans the three audio-level stages out to goroutines
// and joins at the barrier. Each stage carries its own timeout and degrades
// to its default on failure.
func (o *Orchestrator) runIndependentStages(ctx context.Context, audio []byte, evidence *analysis.Evidence, log *logrus.Entry) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	degraded := func(stage string) {
		mu.Lock()
		evidence.DegradedStages = append(evidence.DegradedStages, stage)
		mu.Unlock()
	}

	wg.Add(3)

	go func() {
		defer wg.Done()
		out, err := runStage(ctx, o.stageTimeout, analysis.StageTranscription, log, func(sctx context.Context) (*analysis.TranscriptionResult, error) {
			return o.transcriber.Transcribe(sctx, audio)
		})
		if err != nil {
			out = analysis.DefaultTranscription()
			degraded(analysis.StageTranscription)
		}
		evidence.Transcription = out
	}()

	go func() {
		defer wg.Done()
		out, err := runStage(ctx, o.stageTimeout, analysis.StageVoiceAuth, log, func(sctx context.Context) (*analysis.VoiceAuthenticityResult, error) {
			return o.voiceDetector.Detect(sctx, audio)
		})
		if err != nil {
			out = analysis.DefaultVoiceAuthenticity()
			degraded(analysis.StageVoiceAuth)
		}
		evidence.VoiceAuthenticity = out
	}()

	go func() {
		defer wg.Done()
		out, err := runStage(ctx, o.stageTimeout, analysis.StageBackgroundNoise, log, func(sctx context.Context) (*analysis.BackgroundNoiseResult, error) {
			return o.noiseDetector.Detect(sctx, audio)
		})
		if err != nil {
			out = analysis.DefaultBackgroundNoise()
			degraded(analysis.StageBackgroundNoise)
		}
		evidence.BackgroundNoise = out
	}()

	wg.Wait()
}

// runSpeakerStages diarizes the chunk and classifies emotion per speaker.
// Zero speaker segments skips emotion entirely.
func (o *Orchestrator) runSpeakerStages(ctx context.Context, audio []byte, evidence *analysis.Evidence, log *logrus.Entry) {
	diarization, err := runStage(ctx, o.stageTimeout, analysis.StageDiarization, log, func(sctx context.Context) (*analysis.DiarizationResult, error) {
		return o.diarizer.Diarize(sctx, audio)
	})
	if err != nil {
		diarization = analysis.DefaultDiarization()
		evidence.DegradedStages = append(evidence.DegradedStages, analysis.StageDiarization)
	}
	evidence.Diarization = diarization
	evidence.Emotions = make(map[string]*analysis.EmotionResult)

	if len(diarization.Segments) == 0 {
		return
	}

	clips, err := o.diarizer.SplitBySpeaker(audio, diarization.Segments)
	if err != nil {
		log.WithError(err).Warn("Failed to split audio by speaker, skipping emotion analysis")
		evidence.DegradedStages = append(evidence.DegradedStages, analysis.StageEmotion)
		return
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for speakerID, clip := range clips {
		wg.Add(1)
		go func(speakerID string, clip []byte) {
			defer wg.Done()
			out, err := runStage(ctx, o.stageTimeout, analysis.StageEmotion, log, func(sctx context.Context) (*analysis.EmotionResult, error) {
				return o.emotion.Detect(sctx, clip)
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				evidence.Emotions[speakerID] = analysis.DefaultEmotion()
				if !containsStage(evidence.DegradedStages, analysis.StageEmotion) {
					evidence.DegradedStages = append(evidence.DegradedStages, analysis.StageEmotion)
				}
				return
			}
			evidence.Emotions[speakerID] = out
		}(speakerID, clip)
	}
	wg.Wait()
}

// runReasoning invokes the engine and substitutes the degraded verdict on
// any failure so the chunk still commits and the call history stays whole.
func (o *Orchestrator) runReasoning(ctx context.Context, evidence *analysis.Evidence, feedback *callcontext.Feedback, log *logrus.Entry) callcontext.ScamVerdict {
	verdict, err := o.engine.Analyze(ctx, evidence, feedback)
	if err != nil {
		log.WithError(err).Error("Reasoning engine failed, substituting degraded verdict")
		metrics.StageFailures.WithLabelValues("reasoning").Inc()
		return reasoning.DegradedVerdict()
	}
	return *verdict
}

// runStage executes one analysis stage with its own timeout and records
// latency and failure metrics.
func runStage[T any](ctx context.Context, timeout time.Duration, stage string, log *logrus.Entry, fn func(context.Context) (T, error)) (T, error) {
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	out, err := fn(sctx)
	metrics.StageLatency.WithLabelValues(stage).Observe(time.Since(started).Seconds())

	if err != nil {
		log.WithError(err).WithField("stage", stage).Warn("Analysis stage failed, substituting default")
		metrics.StageFailures.WithLabelValues(stage).Inc()
	}
	return out, err
}

// buildChunkEvidence converts assembled pipeline evidence into the store's
// per-chunk record.
func buildChunkEvidence(evidence *analysis.Evidence) callcontext.ChunkEvidence {
	emotions := make(map[string]callcontext.SpeakerEmotion, len(evidence.Emotions))
	for id, e := range evidence.Emotions {
		emotions[id] = callcontext.SpeakerEmotion{
			TopEmotion:  e.TopEmotion,
			Confidence:  e.Confidence,
			StressLevel: e.StressLevel,
		}
	}

	return callcontext.ChunkEvidence{
		ChunkNumber:          evidence.ChunkNumber,
		Timestamp:            evidence.Timestamp,
		Transcript:           evidence.Transcription.Transcript,
		AIVoiceDetected:      evidence.VoiceAuthenticity.IsSynthetic,
		SuspiciousBackground: evidence.BackgroundNoise.IsSuspicious,
		NumSpeakers:          evidence.Diarization.NumSpeakers,
		Emotions:             emotions,
	}
}

func (o *Orchestrator) buildResult(processingID string, evidence *analysis.Evidence, verdict callcontext.ScamVerdict, started time.Time) *AnalysisResult {
	overall := o.store.Load(evidence.CallID).Overall

	return &AnalysisResult{
		ProcessingID:    processingID,
		CallID:          evidence.CallID,
		ChunkNumber:     evidence.ChunkNumber,
		Timestamp:       evidence.Timestamp,
		Verdict:         verdict,
		Transcript:      evidence.Transcription.Transcript,
		AIVoiceDetected: evidence.VoiceAuthenticity.IsSynthetic,
		NumSpeakers:     evidence.Diarization.NumSpeakers,
		DegradedStages:  evidence.DegradedStages,
		ScamLikelihood:  overall.ScamLikelihood,
		RiskLevel:       overall.RiskLevel,
		ProcessingTime:  time.Since(started).String(),
	}
}

func containsStage(stages []string, stage string) bool {
	for _, s := range stages {
		if s == stage {
			return true
		}
	}
	return false
}
