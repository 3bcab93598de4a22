package callcontext

import "fmt"

// Timeline building: appends significant events per chunk and keeps the log
// bounded.

// highConfidenceThreshold is the verdict confidence above which a chunk is
// recorded as a high-confidence detection.
const highConfidenceThreshold = 80

// UpdateTimeline appends the new chunk's significant events to the call
// timeline. All applicable events are added, in a fixed order; afterwards the
// timeline is truncated to the most recent MaxTimelineEvents entries.
// The new chunk's summary must already be the last element of ctx.Chunks.
func UpdateTimeline(ctx *CallContext, summary ChunkSummary) {
	chunkNum := summary.ChunkNumber

	if summary.ScamAnalysis.Confidence > highConfidenceThreshold {
		ctx.Timeline = append(ctx.Timeline, TimelineEvent{
			Chunk:   chunkNum,
			Event:   EventHighConfidenceScam,
			Details: fmt.Sprintf("Scam confidence: %d%%", summary.ScamAnalysis.Confidence),
		})
	}

	if summary.AIVoiceDetected {
		ctx.Timeline = append(ctx.Timeline, TimelineEvent{
			Chunk:   chunkNum,
			Event:   EventAIVoiceDetected,
			Details: "Artificial voice generation detected",
		})
	}

	// Speaker count changes are only evaluable from the second chunk onward.
	if len(ctx.Chunks) > 1 {
		prevSpeakers := ctx.Chunks[len(ctx.Chunks)-2].NumSpeakers
		if summary.NumSpeakers != prevSpeakers {
			ctx.Timeline = append(ctx.Timeline, TimelineEvent{
				Chunk:   chunkNum,
				Event:   EventSpeakerChange,
				Details: fmt.Sprintf("Speakers changed from %d to %d", prevSpeakers, summary.NumSpeakers),
			})
		}
	}

	if len(ctx.Timeline) > MaxTimelineEvents {
		ctx.Timeline = ctx.Timeline[len(ctx.Timeline)-MaxTimelineEvents:]
	}
}
