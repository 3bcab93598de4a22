package callcontext

// Speaker profile tracking: rolling per-speaker emotional-stability signals
// derived from each chunk's emotion results.

const (
	stabilityUnstableVariance = 0.2
	stabilityVariableVariance = 0.1

	// stabilitySamples is how many recent stress values the variance is
	// computed over.
	stabilitySamples = 3
)

// UpdateSpeakerProfiles folds one chunk's emotion results into the per-call
// speaker profiles. Profiles are created on first sight; both rolling windows
// are truncated in lock-step to SpeakerWindow entries, oldest dropped first.
func UpdateSpeakerProfiles(profiles map[string]*SpeakerProfile, emotions map[string]SpeakerEmotion) {
	for speakerID, emotion := range emotions {
		profile, exists := profiles[speakerID]
		if !exists {
			profile = &SpeakerProfile{
				DominantEmotions:   []string{},
				StressLevels:       []float64{},
				EmotionalStability: StabilityStable,
			}
			profiles[speakerID] = profile
		}

		profile.Appearances++
		profile.DominantEmotions = append(profile.DominantEmotions, emotion.TopEmotion)
		profile.StressLevels = append(profile.StressLevels, emotion.StressLevel)

		if len(profile.DominantEmotions) > SpeakerWindow {
			profile.DominantEmotions = profile.DominantEmotions[len(profile.DominantEmotions)-SpeakerWindow:]
			profile.StressLevels = profile.StressLevels[len(profile.StressLevels)-SpeakerWindow:]
		}

		if len(profile.StressLevels) >= stabilitySamples {
			profile.EmotionalStability = classifyStability(profile.StressLevels[len(profile.StressLevels)-stabilitySamples:])
		}
	}
}

// classifyStability buckets the population variance of the recent stress
// values.
func classifyStability(stress []float64) string {
	variance := populationVariance(stress)
	switch {
	case variance > stabilityUnstableVariance:
		return StabilityUnstable
	case variance > stabilityVariableVariance:
		return StabilityVariable
	default:
		return StabilityStable
	}
}

func populationVariance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	return variance / float64(len(values))
}
