package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectScamKeywords(t *testing.T) {
	t.Run("empty transcript", func(t *testing.T) {
		result := DetectScamKeywords("")
		assert.Empty(t, result.Keywords)
		assert.Empty(t, result.Categories)
		assert.Equal(t, 0.0, result.RiskScore)
	})

	t.Run("clean transcript", func(t *testing.T) {
		result := DetectScamKeywords("Hi honey, just calling to say the dinner is ready.")
		assert.Empty(t, result.Keywords)
		assert.Equal(t, 0.0, result.RiskScore)
	})

	t.Run("case insensitive matching", func(t *testing.T) {
		result := DetectScamKeywords("This is URGENT, the IRS requires PAYMENT now.")
		assert.Contains(t, result.Keywords, "urgent")
		assert.Contains(t, result.Keywords, "irs")
		assert.Contains(t, result.Keywords, "payment")
		assert.Contains(t, result.Categories, "urgency")
		assert.Contains(t, result.Categories, "authority")
		assert.Contains(t, result.Categories, "money")
		assert.InDelta(t, 0.3, result.RiskScore, 1e-9)
	})

	t.Run("multi-word phrases", func(t *testing.T) {
		result := DetectScamKeywords("Please confirm your social security number and allow remote access.")
		assert.Contains(t, result.Keywords, "social security")
		assert.Contains(t, result.Keywords, "remote access")
		assert.Contains(t, result.Categories, "personal_info")
		assert.Contains(t, result.Categories, "tech_support")
	})

	t.Run("risk score capped at one", func(t *testing.T) {
		loaded := "urgent immediately right now quickly hurry deadline expires money payment bank account wire transfer"
		result := DetectScamKeywords(loaded)
		assert.Equal(t, 1.0, result.RiskScore)
	})

	t.Run("categories sorted deterministically", func(t *testing.T) {
		first := DetectScamKeywords("urgent payment to the police")
		second := DetectScamKeywords("urgent payment to the police")
		assert.Equal(t, first.Categories, second.Categories)
		assert.Equal(t, first.Keywords, second.Keywords)
	})
}
