// Package fusion turns collected evidence into a bounded confidence, a
// threat tier and the indicators and recommendations shown to analysts.
// Every function in this package is pure.
package fusion

import (
	"fmt"

	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
)

const (
	maliciousThreshold  = 0.8
	suspiciousThreshold = 0.5

	keywordOverrideThreshold = 0.7
)

// Weights balances the classifier against the keyword scanner.
type Weights struct {
	Model   float64
	Keyword float64
}

func DefaultWeights() Weights {
	return Weights{Model: 0.6, Keyword: 0.4}
}

// FuseContentSignals combines a normalized classifier confidence with a
// keyword score. Both inputs are clamped to [0,1] first.
func FuseContentSignals(modelScore, keywordScore float64, w Weights) domain.FusionResult {
	modelScore = domain.Clamp(modelScore, 0, 1)
	keywordScore = domain.Clamp(keywordScore, 0, 1)

	final := domain.Clamp(w.Model*modelScore+w.Keyword*keywordScore, 0, 1)

	category := domain.CategorySafe
	flagged := false
	switch {
	case final >= maliciousThreshold:
		category, flagged = domain.CategoryMalicious, true
	case final >= suspiciousThreshold:
		category, flagged = domain.CategorySuspicious, true
	case keywordScore > keywordOverrideThreshold && modelScore < suspiciousThreshold:
		category, flagged = domain.CategorySuspicious, true
	}

	indicators := NewList(MaxIndicators).Add(
		fmt.Sprintf("Classifier: %.1f%% malicious confidence", modelScore*100),
		fmt.Sprintf("Keywords: %.1f%%", keywordScore*100),
		fmt.Sprintf("Hybrid score: %.1f%% = model x %.0f%% + keywords x %.0f%%", final*100, w.Model*100, w.Keyword*100),
	)
	if category == domain.CategorySuspicious && final < suspiciousThreshold {
		indicators.Add("Keyword evidence overrides a low classifier score")
	}

	return domain.FusionResult{
		Confidence:      final,
		Category:        category,
		Tier:            TierFor(category, final, flagged),
		Flagged:         flagged,
		Indicators:      indicators.Items(),
		Recommendations: ContentRecommendations(category),
	}
}

// TierFor maps a verdict to a tier. It is shared by the classifier and heuristic paths.
func TierFor(category domain.Category, confidence float64, flagged bool) domain.ThreatLevel {
	if !flagged || category == domain.CategorySafe {
		return domain.LevelLow
	}
	switch category {
	case domain.CategoryMalicious:
		if confidence > maliciousThreshold {
			return domain.LevelCritical
		}
		return domain.LevelHigh
	case domain.CategorySuspicious:
		return domain.LevelMedium
	}
	return domain.LevelLow
}

// categoryForScore applies the plain thresholds used by the heuristic path.
func categoryForScore(score float64) domain.Category {
	switch {
	case score < suspiciousThreshold:
		return domain.CategorySafe
	case score < maliciousThreshold:
		return domain.CategorySuspicious
	default:
		return domain.CategoryMalicious
	}
}

// ContentRecommendations returns the fixed guidance for a content verdict.
func ContentRecommendations(category domain.Category) []string {
	list := NewList(MaxRecommendations)
	switch category {
	case domain.CategoryMalicious:
		list.Add(
			"Do not click any link in this message",
			"Do not provide any personal information",
			"Delete this message immediately",
			"Contact the organization through its official channels",
			"Report this phishing attempt to your IT or security team",
		)
	case domain.CategorySuspicious:
		list.Add(
			"Be very careful with this message",
			"Verify the identity of the sender",
			"Do not open links without checking them first",
			"Contact the sender through an alternative channel",
			"When in doubt, do not reply",
		)
	default:
		list.Add(
			"This message looks legitimate",
			"Still double-check the sender to be sure",
			"Hover over links before clicking them",
			"Never enter your password if asked to",
		)
	}
	return list.Items()
}
