package callcontext

// Trend & escalation calculation. Pure functions of (prior overall, chunk
// history, new verdict); the Store invokes them under the per-call lock.

// scamLikelihoodGain weights how fast a scam verdict ratchets the rolling
// likelihood up. The update is intentionally asymmetric: scam evidence moves
// likelihood up fast, absence of evidence decays it slowly.
const (
	scamLikelihoodGain  = 0.3
	scamLikelihoodDecay = 0.1

	riskHighThreshold   = 0.8
	riskMediumThreshold = 0.5
)

// UpdateOverall recomputes the rolling aggregate after a new verdict.
// chunks must already include the new chunk's summary.
func UpdateOverall(overall *OverallAnalysis, chunks []ChunkSummary, verdict ScamVerdict) {
	confidence := float64(ClampConfidence(verdict.Confidence)) / 100.0

	if verdict.IsScam {
		overall.ScamLikelihood = Clamp01(overall.ScamLikelihood + confidence*scamLikelihoodGain)
	} else {
		overall.ScamLikelihood = Clamp01(overall.ScamLikelihood - scamLikelihoodDecay)
	}

	promotePersistentPatterns(overall, chunks, verdict)

	switch {
	case overall.ScamLikelihood > riskHighThreshold:
		overall.RiskLevel = RiskHigh
	case overall.ScamLikelihood > riskMediumThreshold:
		overall.RiskLevel = RiskMedium
	default:
		overall.RiskLevel = RiskLow
	}

	overall.EscalationTrend = escalationTrend(chunks)
}

// promotePersistentPatterns adds each of the verdict's red flags to the
// persistent set once it has been seen in at least two chunks. Flags are
// never removed within a call's lifetime.
func promotePersistentPatterns(overall *OverallAnalysis, chunks []ChunkSummary, verdict ScamVerdict) {
	for _, flag := range verdict.RedFlags {
		if containsString(overall.PersistentPatterns, flag) {
			continue
		}

		count := 0
		for _, chunk := range chunks {
			if containsString(chunk.ScamAnalysis.RedFlags, flag) {
				count++
			}
		}
		if count >= 2 {
			overall.PersistentPatterns = append(overall.PersistentPatterns, flag)
		}
	}
}

// escalationTrend compares the three most recent chunk confidences. Strict
// increase is escalating, strict decrease de-escalating; plateaus and mixed
// runs are stable. With fewer than three chunks the trend stays stable.
func escalationTrend(chunks []ChunkSummary) string {
	if len(chunks) < 3 {
		return TrendStable
	}

	recent := chunks[len(chunks)-3:]
	c0 := recent[0].ScamAnalysis.Confidence
	c1 := recent[1].ScamAnalysis.Confidence
	c2 := recent[2].ScamAnalysis.Confidence

	switch {
	case c2 > c1 && c1 > c0:
		return TrendEscalating
	case c2 < c1 && c1 < c0:
		return TrendDeEscalating
	default:
		return TrendStable
	}
}

// DeriveTrend classifies the run of previous verdicts for the reasoning
// feedback: scam-percentage buckets plus a non-strict 3-point monotonicity
// check over the most recent confidences.
func DeriveTrend(priors []PriorVerdict) TrendSummary {
	if len(priors) == 0 {
		return TrendSummary{
			Trend:             FeedbackLikelyClean,
			EscalationPattern: EscalationInsufficientData,
		}
	}

	var confidenceSum, scamCount int
	for _, prior := range priors {
		confidenceSum += prior.Confidence
		if prior.IsScam {
			scamCount++
		}
	}

	avgConfidence := float64(confidenceSum) / float64(len(priors))
	scamPercentage := float64(scamCount) / float64(len(priors)) * 100.0

	var trend string
	switch {
	case scamPercentage >= 70:
		trend = FeedbackHighlySuspicious
	case scamPercentage >= 40:
		trend = FeedbackModeratelySuspicious
	case scamPercentage >= 15:
		trend = FeedbackPotentiallySuspicious
	default:
		trend = FeedbackLikelyClean
	}

	return TrendSummary{
		Trend:               trend,
		AverageConfidence:   avgConfidence,
		ScamPercentage:      scamPercentage,
		ConsistentRedFlags:  consistentRedFlags(priors),
		EscalationPattern:   escalationPattern(priors),
		TotalChunksAnalyzed: len(priors),
	}
}

// consistentRedFlags returns flags that appear in at least two prior
// verdicts, in first-seen order.
func consistentRedFlags(priors []PriorVerdict) []string {
	counts := make(map[string]int)
	order := []string{}
	for _, prior := range priors {
		for _, flag := range prior.RedFlags {
			if counts[flag] == 0 {
				order = append(order, flag)
			}
			counts[flag]++
		}
	}

	consistent := []string{}
	for _, flag := range order {
		if counts[flag] >= 2 {
			consistent = append(consistent, flag)
		}
	}
	return consistent
}

// escalationPattern is the feedback-side monotonicity check: non-strict over
// the last three prior confidences, with a distinct marker when fewer than
// three priors exist.
func escalationPattern(priors []PriorVerdict) string {
	if len(priors) < 3 {
		return EscalationInsufficientData
	}

	recent := priors[len(priors)-3:]
	nonDecreasing := recent[0].Confidence <= recent[1].Confidence && recent[1].Confidence <= recent[2].Confidence
	nonIncreasing := recent[0].Confidence >= recent[1].Confidence && recent[1].Confidence >= recent[2].Confidence

	switch {
	case nonDecreasing:
		return TrendEscalating
	case nonIncreasing:
		return TrendDeEscalating
	default:
		return EscalationVariable
	}
}

// Clamp01 bounds a likelihood to [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ClampConfidence bounds a verdict confidence to [0, 100].
func ClampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

func containsString(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}
