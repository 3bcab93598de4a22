package callcontext

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"scamdetect-server/pkg/errors"
	"scamdetect-server/pkg/metrics"
)

// Store owns the per-call documents. Updates for one call id are serialized
// under a per-call lock so two chunks can never race the read-modify-write
// and silently drop a contribution; different calls proceed in parallel.
type Store struct {
	docs   DocumentStore
	logger *logrus.Entry

	// chunkSeconds is the nominal chunk duration, used only for the
	// summary's duration estimate.
	chunkSeconds int

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewStore creates a context store over a document backend.
func NewStore(docs DocumentStore, chunkSeconds int, logger *logrus.Logger) *Store {
	if chunkSeconds <= 0 {
		chunkSeconds = 10
	}
	return &Store{
		docs:         docs,
		logger:       logger.WithField("component", "context_store"),
		chunkSeconds: chunkSeconds,
		locks:        make(map[string]*sync.Mutex),
	}
}

// callLock returns the mutex guarding one call id's document.
func (s *Store) callLock(callID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	lock, ok := s.locks[callID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[callID] = lock
	}
	return lock
}

// Load returns the call's context, or a freshly-initialized empty context if
// none exists. A corrupt document degrades to an empty context so the call
// pipeline stays live; the corruption is logged, not propagated.
func (s *Store) Load(callID string) *CallContext {
	lock := s.callLock(callID)
	lock.Lock()
	defer lock.Unlock()

	return s.loadLocked(callID)
}

// loadLocked reads and decodes the document. Callers must hold the call lock.
func (s *Store) loadLocked(callID string) *CallContext {
	data, exists, err := s.docs.Get(callID)
	if err != nil {
		s.logger.WithError(err).WithField("call_id", callID).Error("Failed to read call document, treating as empty")
		metrics.StoreCorruptions.Inc()
		return NewCallContext(callID)
	}
	if !exists {
		return NewCallContext(callID)
	}

	ctx := &CallContext{}
	if err := json.Unmarshal(data, ctx); err != nil {
		corruption := errors.NewStoreCorruption(callID, err)
		s.logger.WithError(corruption).Error("Corrupt call document, treating as empty")
		metrics.StoreCorruptions.Inc()
		return NewCallContext(callID)
	}

	if ctx.SpeakerProfiles == nil {
		ctx.SpeakerProfiles = make(map[string]*SpeakerProfile)
	}
	return ctx
}

// Update appends a chunk's evidence and verdict to the call context and
// recomputes all rolling aggregates, then persists the whole document. The
// read-modify-write is atomic per call id.
func (s *Store) Update(callID string, evidence ChunkEvidence, verdict ScamVerdict) error {
	lock := s.callLock(callID)
	lock.Lock()
	defer lock.Unlock()

	ctx := s.loadLocked(callID)
	ctx.LastUpdated = time.Now().UTC()

	verdict.Confidence = ClampConfidence(verdict.Confidence)
	if verdict.RedFlags == nil {
		verdict.RedFlags = []string{}
	}

	summary := ChunkSummary{
		ChunkNumber:          evidence.ChunkNumber,
		Timestamp:            evidence.Timestamp,
		TranscriptSnippet:    truncate(evidence.Transcript, TranscriptSnippetLen),
		AIVoiceDetected:      evidence.AIVoiceDetected,
		SuspiciousBackground: evidence.SuspiciousBackground,
		NumSpeakers:          evidence.NumSpeakers,
		DominantEmotions:     dominantEmotions(evidence.Emotions),
		ScamAnalysis:         verdict,
	}
	ctx.Chunks = append(ctx.Chunks, summary)

	UpdateOverall(&ctx.Overall, ctx.Chunks, verdict)
	UpdateSpeakerProfiles(ctx.SpeakerProfiles, evidence.Emotions)
	UpdateTimeline(ctx, summary)

	data, err := json.Marshal(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to marshal call context",
			map[string]interface{}{"call_id": callID})
	}
	if err := s.docs.Put(callID, data); err != nil {
		return errors.Wrap(err, "failed to persist call context",
			map[string]interface{}{"call_id": callID})
	}

	metrics.StoreUpdates.Inc()
	s.logger.WithFields(logrus.Fields{
		"call_id":      callID,
		"chunk_number": evidence.ChunkNumber,
		"total_chunks": len(ctx.Chunks),
		"risk_level":   ctx.Overall.RiskLevel,
	}).Info("Call context updated")

	return nil
}

// Summarize computes the read-only comprehensive view of a call. Returns
// ErrCallNotFound if no context exists for the id.
func (s *Store) Summarize(callID string) (*CallSummary, error) {
	lock := s.callLock(callID)
	lock.Lock()
	defer lock.Unlock()

	_, exists, err := s.docs.Get(callID)
	if err == nil && !exists {
		return nil, errors.NewCallNotFound(callID)
	}

	ctx := s.loadLocked(callID)

	summary := &CallSummary{
		CallID:           callID,
		TotalChunks:      len(ctx.Chunks),
		DurationAnalyzed: fmt.Sprintf("%d seconds", len(ctx.Chunks)*s.chunkSeconds),
		Overall: OverallAssessment{
			IsLikelyScam:    ctx.Overall.ScamLikelihood > 0.6,
			ScamLikelihood:  ctx.Overall.ScamLikelihood,
			RiskLevel:       ctx.Overall.RiskLevel,
			EscalationTrend: ctx.Overall.EscalationTrend,
		},
		SpeakerProfiles: ctx.SpeakerProfiles,
		Timeline:        ctx.Timeline,
		CreatedAt:       ctx.CreatedAt,
		LastUpdated:     ctx.LastUpdated,
	}

	seenFlags := make(map[string]bool)
	summary.RedFlags = []string{}
	confidenceSum := 0

	for _, chunk := range ctx.Chunks {
		if chunk.ScamAnalysis.IsScam {
			summary.Statistics.ScamChunks++
		}
		if chunk.AIVoiceDetected {
			summary.Statistics.AIVoiceDetectedChunks++
		}
		if chunk.SuspiciousBackground {
			summary.Statistics.SuspiciousBackgroundChunks++
		}
		confidenceSum += chunk.ScamAnalysis.Confidence

		for _, flag := range chunk.ScamAnalysis.RedFlags {
			if !seenFlags[flag] {
				seenFlags[flag] = true
				summary.RedFlags = append(summary.RedFlags, flag)
			}
		}
	}

	if len(ctx.Chunks) > 0 {
		summary.Statistics.AverageConfidence = float64(confidenceSum) / float64(len(ctx.Chunks))
		summary.Statistics.ScamPercentage = float64(summary.Statistics.ScamChunks) / float64(len(ctx.Chunks)) * 100.0
		latest := ctx.Chunks[len(ctx.Chunks)-1].ScamAnalysis
		summary.LatestAnalysis = &latest
	}

	return summary, nil
}

// Clear deletes the persisted document for a call id. Clearing an unknown
// call id is not an error.
func (s *Store) Clear(callID string) error {
	lock := s.callLock(callID)
	lock.Lock()
	defer lock.Unlock()

	_, exists, err := s.docs.Get(callID)
	if err == nil && !exists {
		s.logger.WithField("call_id", callID).Warn("No call data found to clear")
		return nil
	}

	if err := s.docs.Delete(callID); err != nil {
		return err
	}

	s.logger.WithField("call_id", callID).Info("Cleared call data")
	return nil
}

// DeriveFeedback returns the last few chunks' verdicts plus a derived trend
// summary, giving the reasoning engine short-term memory without the full
// history.
func (s *Store) DeriveFeedback(callID string) *Feedback {
	lock := s.callLock(callID)
	lock.Lock()
	defer lock.Unlock()

	ctx := s.loadLocked(callID)

	priors := make([]PriorVerdict, 0, len(ctx.Chunks))
	for _, chunk := range ctx.Chunks {
		priors = append(priors, PriorVerdict{
			ChunkNumber: chunk.ChunkNumber,
			IsScam:      chunk.ScamAnalysis.IsScam,
			Confidence:  chunk.ScamAnalysis.Confidence,
			RedFlags:    chunk.ScamAnalysis.RedFlags,
			ScamType:    chunk.ScamAnalysis.ScamType,
			Analysis:    truncate(chunk.ScamAnalysis.Analysis, TranscriptSnippetLen),
		})
	}

	recent := priors
	if len(recent) > FeedbackVerdicts {
		recent = recent[len(recent)-FeedbackVerdicts:]
	}

	return &Feedback{
		PreviousVerdicts: recent,
		Trend:            DeriveTrend(priors),
		TotalChunks:      len(priors),
	}
}

// dominantEmotions renders the per-speaker emotion map in the compact
// "emotion (confidence)" form kept on chunk summaries.
func dominantEmotions(emotions map[string]SpeakerEmotion) map[string]string {
	out := make(map[string]string, len(emotions))
	for speaker, emotion := range emotions {
		out[speaker] = fmt.Sprintf("%s (%.2f)", emotion.TopEmotion, emotion.Confidence)
	}
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
