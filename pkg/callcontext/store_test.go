package callcontext

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scamdetect-server/pkg/errors"
	"scamdetect-server/pkg/metrics"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	metrics.Init(testLogger())
	return NewStore(NewMemoryDocumentStore(), 10, testLogger())
}

func scamChunk(n, confidence int, flags ...string) (ChunkEvidence, ScamVerdict) {
	evidence := ChunkEvidence{
		ChunkNumber: n,
		Timestamp:   time.Now().UTC(),
		Transcript:  fmt.Sprintf("chunk %d transcript", n),
		NumSpeakers: 2,
	}
	if flags == nil {
		flags = []string{}
	}
	verdict := ScamVerdict{
		IsScam:     true,
		Confidence: confidence,
		RedFlags:   flags,
		ScamType:   "irs",
	}
	return evidence, verdict
}

func cleanChunk(n, confidence int) (ChunkEvidence, ScamVerdict) {
	evidence := ChunkEvidence{
		ChunkNumber: n,
		Timestamp:   time.Now().UTC(),
		Transcript:  fmt.Sprintf("chunk %d transcript", n),
		NumSpeakers: 2,
	}
	verdict := ScamVerdict{
		IsScam:     false,
		Confidence: confidence,
		RedFlags:   []string{},
	}
	return evidence, verdict
}

func TestFreshCallCleanVerdictStaysLow(t *testing.T) {
	store := newTestStore(t)

	evidence, verdict := cleanChunk(1, 10)
	require.NoError(t, store.Update("call-a", evidence, verdict))

	ctx := store.Load("call-a")
	assert.Equal(t, 0.0, ctx.Overall.ScamLikelihood)
	assert.Equal(t, RiskLow, ctx.Overall.RiskLevel)
	assert.Equal(t, TrendStable, ctx.Overall.EscalationTrend)
}

func TestLikelihoodRatchetsUpThroughScamRun(t *testing.T) {
	store := newTestStore(t)

	expected := []float64{0.15, 0.36, 0.63}
	for i, confidence := range []int{50, 70, 90} {
		evidence, verdict := scamChunk(i+1, confidence)
		require.NoError(t, store.Update("call-b", evidence, verdict))

		ctx := store.Load("call-b")
		assert.InDelta(t, expected[i], ctx.Overall.ScamLikelihood, 1e-9, "after chunk %d", i+1)
	}

	ctx := store.Load("call-b")
	assert.Equal(t, TrendEscalating, ctx.Overall.EscalationTrend)
	assert.Equal(t, RiskMedium, ctx.Overall.RiskLevel)
}

func TestLikelihoodDecaysSlowlyOnCleanChunks(t *testing.T) {
	store := newTestStore(t)

	evidence, verdict := scamChunk(1, 90)
	require.NoError(t, store.Update("call-c", evidence, verdict))
	assert.InDelta(t, 0.27, store.Load("call-c").Overall.ScamLikelihood, 1e-9)

	evidence, verdict = cleanChunk(2, 10)
	require.NoError(t, store.Update("call-c", evidence, verdict))
	assert.InDelta(t, 0.17, store.Load("call-c").Overall.ScamLikelihood, 1e-9)

	// Decay clamps at zero.
	for n := 3; n <= 6; n++ {
		evidence, verdict = cleanChunk(n, 5)
		require.NoError(t, store.Update("call-c", evidence, verdict))
	}
	assert.Equal(t, 0.0, store.Load("call-c").Overall.ScamLikelihood)
}

func TestPersistentPatternPromotedAtSecondSighting(t *testing.T) {
	store := newTestStore(t)

	evidence, verdict := scamChunk(1, 60, "urgency")
	require.NoError(t, store.Update("call-d", evidence, verdict))
	assert.Empty(t, store.Load("call-d").Overall.PersistentPatterns)

	evidence, verdict = scamChunk(2, 60, "payment demand")
	require.NoError(t, store.Update("call-d", evidence, verdict))
	assert.Empty(t, store.Load("call-d").Overall.PersistentPatterns)

	// "urgency" now seen in chunks 1 and 3.
	evidence, verdict = scamChunk(3, 60, "urgency")
	require.NoError(t, store.Update("call-d", evidence, verdict))
	assert.Contains(t, store.Load("call-d").Overall.PersistentPatterns, "urgency")
}

func TestPersistentPatternsNeverRemoved(t *testing.T) {
	store := newTestStore(t)

	for n := 1; n <= 2; n++ {
		evidence, verdict := scamChunk(n, 60, "urgency")
		require.NoError(t, store.Update("call-e", evidence, verdict))
	}
	require.Contains(t, store.Load("call-e").Overall.PersistentPatterns, "urgency")

	// A long clean run must not shrink the persistent set.
	for n := 3; n <= 10; n++ {
		evidence, verdict := cleanChunk(n, 5)
		require.NoError(t, store.Update("call-e", evidence, verdict))
	}
	assert.Contains(t, store.Load("call-e").Overall.PersistentPatterns, "urgency")
}

func TestEscalationTrendRequiresStrictRun(t *testing.T) {
	tests := []struct {
		name        string
		confidences []int
		want        string
	}{
		{"strictly increasing", []int{40, 60, 80}, TrendEscalating},
		{"strictly decreasing", []int{80, 60, 40}, TrendDeEscalating},
		{"plateau is stable", []int{60, 60, 80}, TrendStable},
		{"mixed is stable", []int{40, 80, 60}, TrendStable},
		{"two chunks stay stable", []int{40, 80}, TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			callID := "call-trend-" + tt.name
			for i, c := range tt.confidences {
				evidence, verdict := scamChunk(i+1, c)
				require.NoError(t, store.Update(callID, evidence, verdict))
			}
			assert.Equal(t, tt.want, store.Load(callID).Overall.EscalationTrend)
		})
	}
}

func TestRiskLevelThresholds(t *testing.T) {
	overall := &OverallAnalysis{PersistentPatterns: []string{}}

	overall.ScamLikelihood = 0.0
	UpdateOverall(overall, nil, ScamVerdict{IsScam: true, Confidence: 100, RedFlags: []string{}})
	assert.InDelta(t, 0.3, overall.ScamLikelihood, 1e-9)
	assert.Equal(t, RiskLow, overall.RiskLevel)

	UpdateOverall(overall, nil, ScamVerdict{IsScam: true, Confidence: 100, RedFlags: []string{}})
	assert.InDelta(t, 0.6, overall.ScamLikelihood, 1e-9)
	assert.Equal(t, RiskMedium, overall.RiskLevel)

	UpdateOverall(overall, nil, ScamVerdict{IsScam: true, Confidence: 100, RedFlags: []string{}})
	UpdateOverall(overall, nil, ScamVerdict{IsScam: true, Confidence: 100, RedFlags: []string{}})
	assert.Equal(t, 1.0, overall.ScamLikelihood)
	assert.Equal(t, RiskHigh, overall.RiskLevel)
}

func TestTranscriptSnippetTruncated(t *testing.T) {
	store := newTestStore(t)

	long := ""
	for len(long) < 500 {
		long += "you must pay immediately "
	}

	evidence, verdict := scamChunk(1, 60)
	evidence.Transcript = long
	require.NoError(t, store.Update("call-f", evidence, verdict))

	ctx := store.Load("call-f")
	assert.Len(t, ctx.Chunks[0].TranscriptSnippet, TranscriptSnippetLen)
}

func TestTimelineEvents(t *testing.T) {
	store := newTestStore(t)

	// High-confidence detection and AI voice in one chunk.
	evidence, verdict := scamChunk(1, 95)
	evidence.AIVoiceDetected = true
	require.NoError(t, store.Update("call-g", evidence, verdict))

	ctx := store.Load("call-g")
	require.Len(t, ctx.Timeline, 2)
	assert.Equal(t, EventHighConfidenceScam, ctx.Timeline[0].Event)
	assert.Equal(t, "Scam confidence: 95%", ctx.Timeline[0].Details)
	assert.Equal(t, EventAIVoiceDetected, ctx.Timeline[1].Event)

	// Speaker change on the next chunk.
	evidence, verdict = cleanChunk(2, 10)
	evidence.NumSpeakers = 3
	require.NoError(t, store.Update("call-g", evidence, verdict))

	ctx = store.Load("call-g")
	require.Len(t, ctx.Timeline, 3)
	assert.Equal(t, EventSpeakerChange, ctx.Timeline[2].Event)
	assert.Equal(t, "Speakers changed from 2 to 3", ctx.Timeline[2].Details)
}

func TestTimelineCapped(t *testing.T) {
	store := newTestStore(t)

	// Each chunk emits two events (high confidence + AI voice).
	for n := 1; n <= 15; n++ {
		evidence, verdict := scamChunk(n, 95)
		evidence.AIVoiceDetected = true
		require.NoError(t, store.Update("call-h", evidence, verdict))
	}

	ctx := store.Load("call-h")
	assert.Len(t, ctx.Timeline, MaxTimelineEvents)
	// Oldest events were evicted first.
	assert.Equal(t, 6, ctx.Timeline[0].Chunk)
	assert.Equal(t, 15, ctx.Timeline[len(ctx.Timeline)-1].Chunk)
}

func TestSpeakerProfilesWindowed(t *testing.T) {
	store := newTestStore(t)

	for n := 1; n <= 15; n++ {
		evidence, verdict := cleanChunk(n, 10)
		evidence.Emotions = map[string]SpeakerEmotion{
			"SPEAKER_00": {TopEmotion: "neutral", Confidence: 0.8, StressLevel: 0.1},
		}
		require.NoError(t, store.Update("call-i", evidence, verdict))
	}

	profile := store.Load("call-i").SpeakerProfiles["SPEAKER_00"]
	require.NotNil(t, profile)
	assert.Equal(t, 15, profile.Appearances)
	assert.Len(t, profile.DominantEmotions, SpeakerWindow)
	assert.Len(t, profile.StressLevels, SpeakerWindow)
	assert.Equal(t, StabilityStable, profile.EmotionalStability)
}

func TestSpeakerStabilityClassification(t *testing.T) {
	tests := []struct {
		name   string
		stress []float64
		want   string
	}{
		{"flat stress is stable", []float64{0.2, 0.2, 0.2}, StabilityStable},
		{"moderate swings are variable", []float64{0.1, 0.5, 0.9}, StabilityVariable},
		{"wild swings are unstable", []float64{0.0, 1.0, 0.0}, StabilityUnstable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profiles := make(map[string]*SpeakerProfile)
			for _, stress := range tt.stress {
				UpdateSpeakerProfiles(profiles, map[string]SpeakerEmotion{
					"SPEAKER_00": {TopEmotion: "neutral", StressLevel: stress},
				})
			}
			assert.Equal(t, tt.want, profiles["SPEAKER_00"].EmotionalStability)
		})
	}
}

func TestSummarize(t *testing.T) {
	store := newTestStore(t)

	evidence, verdict := scamChunk(1, 60, "urgency")
	evidence.AIVoiceDetected = true
	require.NoError(t, store.Update("call-j", evidence, verdict))

	evidence, verdict = cleanChunk(2, 20)
	evidence.SuspiciousBackground = true
	require.NoError(t, store.Update("call-j", evidence, verdict))

	evidence, verdict = scamChunk(3, 80, "urgency", "payment demand")
	require.NoError(t, store.Update("call-j", evidence, verdict))

	summary, err := store.Summarize("call-j")
	require.NoError(t, err)

	assert.Equal(t, "call-j", summary.CallID)
	assert.Equal(t, 3, summary.TotalChunks)
	assert.Equal(t, "30 seconds", summary.DurationAnalyzed)
	assert.Equal(t, 2, summary.Statistics.ScamChunks)
	assert.InDelta(t, 66.67, summary.Statistics.ScamPercentage, 0.01)
	assert.InDelta(t, (60.0+20.0+80.0)/3.0, summary.Statistics.AverageConfidence, 1e-9)
	assert.Equal(t, 1, summary.Statistics.AIVoiceDetectedChunks)
	assert.Equal(t, 1, summary.Statistics.SuspiciousBackgroundChunks)
	assert.Equal(t, []string{"urgency", "payment demand"}, summary.RedFlags)
	require.NotNil(t, summary.LatestAnalysis)
	assert.Equal(t, 80, summary.LatestAnalysis.Confidence)

	// Summarize is read-only: a second call returns the same view.
	again, err := store.Summarize("call-j")
	require.NoError(t, err)
	assert.Equal(t, summary.Statistics, again.Statistics)
	assert.Equal(t, summary.Overall, again.Overall)
}

func TestSummarizeUnknownCall(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Summarize("never-seen")
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrCallNotFound))
}

func TestClearIsIdempotent(t *testing.T) {
	store := newTestStore(t)

	evidence, verdict := scamChunk(1, 60)
	require.NoError(t, store.Update("call-k", evidence, verdict))

	require.NoError(t, store.Clear("call-k"))
	assert.Empty(t, store.Load("call-k").Chunks)

	// Clearing an already-cleared call succeeds.
	require.NoError(t, store.Clear("call-k"))
	require.NoError(t, store.Clear("never-seen"))
}

func TestCorruptDocumentDegradesToEmpty(t *testing.T) {
	metrics.Init(testLogger())
	docs := NewMemoryDocumentStore()
	store := NewStore(docs, 10, testLogger())

	require.NoError(t, docs.Put("call-l", []byte("{not json")))

	ctx := store.Load("call-l")
	assert.Equal(t, "call-l", ctx.CallID)
	assert.Empty(t, ctx.Chunks)

	// The call remains updatable after the corruption.
	evidence, verdict := scamChunk(1, 60)
	require.NoError(t, store.Update("call-l", evidence, verdict))
	assert.Len(t, store.Load("call-l").Chunks, 1)
}

func TestDeriveFeedback(t *testing.T) {
	store := newTestStore(t)

	for i, confidence := range []int{50, 70, 85, 90} {
		evidence, verdict := scamChunk(i+1, confidence, "urgency")
		require.NoError(t, store.Update("call-m", evidence, verdict))
	}

	fb := store.DeriveFeedback("call-m")
	assert.Equal(t, 4, fb.TotalChunks)
	require.Len(t, fb.PreviousVerdicts, FeedbackVerdicts)
	assert.Equal(t, 2, fb.PreviousVerdicts[0].ChunkNumber)
	assert.Equal(t, 90, fb.PreviousVerdicts[2].Confidence)

	assert.Equal(t, FeedbackHighlySuspicious, fb.Trend.Trend)
	assert.Equal(t, TrendEscalating, fb.Trend.EscalationPattern)
	assert.Equal(t, []string{"urgency"}, fb.Trend.ConsistentRedFlags)
	assert.Equal(t, 4, fb.Trend.TotalChunksAnalyzed)
	assert.InDelta(t, 100.0, fb.Trend.ScamPercentage, 1e-9)
}

func TestDeriveFeedbackFreshCall(t *testing.T) {
	store := newTestStore(t)

	fb := store.DeriveFeedback("never-seen")
	assert.Equal(t, 0, fb.TotalChunks)
	assert.Empty(t, fb.PreviousVerdicts)
	assert.Equal(t, FeedbackLikelyClean, fb.Trend.Trend)
	assert.Equal(t, EscalationInsufficientData, fb.Trend.EscalationPattern)
}

func TestConcurrentUpdatesLoseNothing(t *testing.T) {
	store := newTestStore(t)

	const chunks = 20
	var wg sync.WaitGroup
	for n := 1; n <= chunks; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			evidence, verdict := scamChunk(n, 50)
			assert.NoError(t, store.Update("call-n", evidence, verdict))
		}(n)
	}
	wg.Wait()

	assert.Len(t, store.Load("call-n").Chunks, chunks)
}
