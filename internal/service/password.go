package service

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/nbutton23/zxcvbn-go"
	"go.uber.org/zap"

	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/fusion"
)

const (
	maxPasswordRunes = 256
	maxSuggestions   = 5
	symbolChars      = "!@#$%^&*()_+-=[]{}|;:,.<>?"
)

var strengthLabels = [...]string{"very_weak", "weak", "fair", "strong", "very_strong"}

// PasswordAnalysis never carries the password itself.
type PasswordAnalysis struct {
	Score            int       `json:"score"`
	Strength         string    `json:"strength"`
	CrackTimeSeconds float64   `json:"crack_time_seconds"`
	CrackTimeDisplay string    `json:"crack_time_display"`
	Entropy          float64   `json:"entropy"`
	Length           int       `json:"length"`
	Suggestions      []string  `json:"suggestions"`
	Warning          string    `json:"warning,omitempty"`
	AnalyzedAt       time.Time `json:"timestamp"`
}

type PasswordService struct {
	logger *zap.Logger
}

func NewPasswordService(logger *zap.Logger) *PasswordService {
	return &PasswordService{logger: logger}
}

// Analyze estimates the strength of password with zxcvbn.
func (s *PasswordService) Analyze(password string) (*PasswordAnalysis, error) {
	length := utf8.RuneCountInString(password)
	if length == 0 {
		return nil, fmt.Errorf("password is required: %w", domain.ErrInvalidInput)
	}
	if length > maxPasswordRunes {
		return nil, fmt.Errorf("password longer than %d characters: %w", maxPasswordRunes, domain.ErrInvalidInput)
	}

	m := zxcvbn.PasswordStrength(password, nil)
	score := min(max(m.Score, 0), 4)

	analysis := &PasswordAnalysis{
		Score:            score,
		Strength:         strengthLabels[score],
		CrackTimeSeconds: m.CrackTime,
		CrackTimeDisplay: FormatCrackTime(m.CrackTime),
		Entropy:          m.Entropy,
		Length:           length,
		Suggestions:      PasswordSuggestions(password),
		Warning:          passwordWarning(score),
		AnalyzedAt:       time.Now().UTC(),
	}

	s.logger.Debug("password analyzed",
		zap.Int("length", length),
		zap.Int("score", score),
	)
	return analysis, nil
}

// PasswordSuggestions lists what the password lacks, at most five entries.
func PasswordSuggestions(password string) []string {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
		if strings.ContainsRune(symbolChars, r) {
			hasSymbol = true
		}
	}

	list := fusion.NewList(maxSuggestions)
	if utf8.RuneCountInString(password) < 12 {
		list.Add("Use at least 12 characters")
	}
	if !hasUpper {
		list.Add("Add uppercase letters (A-Z)")
	}
	if !hasLower {
		list.Add("Add lowercase letters (a-z)")
	}
	if !hasDigit {
		list.Add("Add digits (0-9)")
	}
	if !hasSymbol {
		list.Add("Add special symbols (!@#$%^&*)")
	}
	return list.Items()
}

func passwordWarning(score int) string {
	switch {
	case score <= 1:
		return "This password is very weak and can be cracked quickly"
	case score == 2:
		return "This password is fair. Add more complexity"
	default:
		return ""
	}
}

// FormatCrackTime renders a duration in seconds the way a person reads it.
func FormatCrackTime(seconds float64) string {
	const (
		minute  = 60
		hour    = 60 * minute
		day     = 24 * hour
		month   = 30 * day
		year    = 365 * day
		century = 100 * year
	)
	switch {
	case seconds < 0.001:
		return "instant"
	case seconds < 1:
		return "less than a second"
	case seconds < minute:
		return plural(int(seconds), "second")
	case seconds < hour:
		return plural(int(seconds/minute), "minute")
	case seconds < day:
		return plural(int(seconds/hour), "hour")
	case seconds < month:
		return plural(int(seconds/day), "day")
	case seconds < year:
		return plural(int(seconds/month), "month")
	case seconds < century:
		return plural(int(seconds/year), "year")
	default:
		return "centuries"
	}
}

func plural(n int, unit string) string {
	if n > 1 {
		return fmt.Sprintf("%d %ss", n, unit)
	}
	return fmt.Sprintf("%d %s", n, unit)
}
