package domain

import "strings"

// ThreatLevel is the discrete severity exposed to users.
type ThreatLevel string

const (
	LevelLow      ThreatLevel = "low"
	LevelMedium   ThreatLevel = "medium"
	LevelHigh     ThreatLevel = "high"
	LevelCritical ThreatLevel = "critical"
)

var levelRank = map[ThreatLevel]int{
	LevelLow:      1,
	LevelMedium:   2,
	LevelHigh:     3,
	LevelCritical: 4,
}

// AtLeast reports whether l is as severe as other.
func (l ThreatLevel) AtLeast(other ThreatLevel) bool {
	return levelRank[l] >= levelRank[other]
}

// ParseThreatLevel accepts any casing; unknown values map to low.
func ParseThreatLevel(s string) ThreatLevel {
	l := ThreatLevel(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := levelRank[l]; ok {
		return l
	}
	return LevelLow
}

// Category is the verdict of a content or network fusion.
type Category string

const (
	CategorySafe       Category = "safe"
	CategorySuspicious Category = "suspicious"
	CategoryMalicious  Category = "malicious"
)

// FusionResult is the fused verdict. Category and Tier are only ever set by
// the fusion functions.
type FusionResult struct {
	Confidence      float64     `json:"confidence"`
	Category        Category    `json:"category"`
	Tier            ThreatLevel `json:"threat_level"`
	Flagged         bool        `json:"is_flagged"`
	Indicators      []string    `json:"indicators"`
	Recommendations []string    `json:"recommendations"`
	ModelUsed       string      `json:"model_used"`
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
