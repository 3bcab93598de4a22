package analysis

import (
	"sort"
	"strings"
)

// scamKeywordCategories maps keyword categories to the phrases that signal
// them. Matching is case-insensitive substring search over the transcript.
var scamKeywordCategories = map[string][]string{
	"urgency":       {"urgent", "immediately", "right now", "quickly", "hurry", "deadline", "expires"},
	"money":         {"money", "payment", "bank", "account", "credit card", "wire transfer", "bitcoin", "cash", "refund"},
	"authority":     {"police", "irs", "government", "arrest", "warrant", "legal action", "court", "officer"},
	"tech_support":  {"computer", "virus", "malware", "microsoft", "windows", "apple", "tech support", "remote access"},
	"prizes":        {"won", "winner", "prize", "lottery", "sweepstakes", "congratulations", "claim"},
	"personal_info": {"social security", "ssn", "password", "pin", "date of birth", "mother's maiden name"},
	"threats":       {"arrest", "lawsuit", "legal trouble", "suspended", "frozen", "closed", "terminated"},
	"verification":  {"verify", "confirm", "validate", "authenticate", "security check"},
}

// DetectScamKeywords scans a transcript for scam-signal phrases. Each match
// adds 0.1 to the risk score, capped at 1.0.
func DetectScamKeywords(transcript string) KeywordAnalysis {
	result := KeywordAnalysis{
		Keywords:   []string{},
		Categories: []string{},
	}
	if transcript == "" {
		return result
	}

	lower := strings.ToLower(transcript)
	seen := make(map[string]bool)

	// Iterate categories in sorted order for deterministic output.
	categories := make([]string, 0, len(scamKeywordCategories))
	for category := range scamKeywordCategories {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		matched := false
		for _, keyword := range scamKeywordCategories[category] {
			if strings.Contains(lower, keyword) {
				matched = true
				result.RiskScore += 0.1
				if !seen[keyword] {
					seen[keyword] = true
					result.Keywords = append(result.Keywords, keyword)
				}
			}
		}
		if matched {
			result.Categories = append(result.Categories, category)
		}
	}

	if result.RiskScore > 1.0 {
		result.RiskScore = 1.0
	}
	return result
}
