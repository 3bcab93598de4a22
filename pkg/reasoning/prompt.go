package reasoning

import (
	"fmt"
	"sort"
	"strings"

	"scamdetect-server/pkg/analysis"
	"scamdetect-server/pkg/callcontext"
)

// BuildPrompt assembles the reasoning prompt from the current chunk's
// evidence and the call's short-term feedback. Previous verdicts and the
// derived trend give the model continuity across chunks without resending
// full history.
func BuildPrompt(evidence *analysis.Evidence, feedback *callcontext.Feedback) string {
	var b strings.Builder

	b.WriteString("You are a phone scam detection expert analyzing a segment of an ongoing call.\n\n")

	b.WriteString(fmt.Sprintf("CURRENT SEGMENT (chunk %d):\n", evidence.ChunkNumber))
	transcript := "(no speech detected)"
	if evidence.Transcription != nil && evidence.Transcription.Transcript != "" {
		transcript = evidence.Transcription.Transcript
	}
	b.WriteString(fmt.Sprintf("Transcript: %q\n", transcript))

	if evidence.Transcription != nil && len(evidence.Transcription.ScamKeywords.Keywords) > 0 {
		kw := evidence.Transcription.ScamKeywords
		b.WriteString(fmt.Sprintf("Scam keywords detected: %s (categories: %s, risk score %.1f)\n",
			strings.Join(kw.Keywords, ", "), strings.Join(kw.Categories, ", "), kw.RiskScore))
	}

	if evidence.VoiceAuthenticity != nil {
		b.WriteString(fmt.Sprintf("\nVOICE AUTHENTICITY: %s (confidence %.2f)\n",
			evidence.VoiceAuthenticity.Classification, evidence.VoiceAuthenticity.Confidence))
		if evidence.VoiceAuthenticity.IsSynthetic {
			b.WriteString("WARNING: the voice appears to be artificially generated.\n")
		}
	}

	if evidence.BackgroundNoise != nil && evidence.BackgroundNoise.IsSuspicious {
		b.WriteString(fmt.Sprintf("\nBACKGROUND: suspicious environment (score %.2f)\n",
			evidence.BackgroundNoise.SuspicionScore))
		for _, s := range evidence.BackgroundNoise.SuspiciousSounds {
			b.WriteString(fmt.Sprintf("- %s (%.2f)\n", s.Sound, s.Confidence))
		}
	}

	if evidence.Diarization != nil {
		b.WriteString(fmt.Sprintf("\nSPEAKERS: %d detected\n", evidence.Diarization.NumSpeakers))
	}
	if len(evidence.Emotions) > 0 {
		ids := make([]string, 0, len(evidence.Emotions))
		for id := range evidence.Emotions {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			emo := evidence.Emotions[id]
			b.WriteString(fmt.Sprintf("- %s: %s (confidence %.2f, stress %.2f)\n",
				id, emo.TopEmotion, emo.Confidence, emo.StressLevel))
		}
	}

	if len(evidence.DegradedStages) > 0 {
		b.WriteString(fmt.Sprintf("\nNOTE: the following analysis stages failed and report defaults: %s\n",
			strings.Join(evidence.DegradedStages, ", ")))
	}

	writeFeedback(&b, feedback)

	b.WriteString("\nRespond with ONLY a JSON object in this exact format:\n")
	b.WriteString(`{"is_scam": true/false, "confidence": 0-100, "red_flags": ["..."], "scam_type": "tech_support|irs|prize|romance|other|none", "analysis": "one sentence"}`)
	b.WriteString("\n")

	return b.String()
}

func writeFeedback(b *strings.Builder, feedback *callcontext.Feedback) {
	if feedback == nil || feedback.TotalChunks == 0 {
		b.WriteString("\nThis is the first segment of the call; there is no prior context.\n")
		return
	}

	b.WriteString(fmt.Sprintf("\nPREVIOUS ANALYSIS (%d chunks analyzed so far):\n", feedback.TotalChunks))
	for _, v := range feedback.PreviousVerdicts {
		flags := "none"
		if len(v.RedFlags) > 0 {
			flags = strings.Join(v.RedFlags, ", ")
		}
		b.WriteString(fmt.Sprintf("- Chunk %d: scam=%t confidence=%d red_flags=[%s]\n",
			v.ChunkNumber, v.IsScam, v.Confidence, flags))
	}

	t := feedback.Trend
	b.WriteString(fmt.Sprintf("\nTREND: %s (escalation %s), avg confidence %.1f, scam verdicts in %.0f%% of chunks\n",
		t.Trend, t.EscalationPattern, t.AverageConfidence, t.ScamPercentage))
	if len(t.ConsistentRedFlags) > 0 {
		b.WriteString(fmt.Sprintf("Recurring red flags: %s\n", strings.Join(t.ConsistentRedFlags, ", ")))
	}
	b.WriteString("Weigh this history: sustained or escalating suspicion across chunks matters more than any single segment.\n")
}
