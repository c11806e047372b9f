// Package keyword implements the weighted lexical scanner used for phishing
// and spam detection.
package keyword

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
)

const (
	// MaxReportedMatches caps KeywordScanResult.Matches; TotalMatches keeps the full count.
	MaxReportedMatches = 15

	densityThreshold = 0.10
	densityBonus     = 1.2
)

// Scanner is safe for concurrent use; its table is never modified after construction.
type Scanner struct {
	categories []Category
	labels     map[string]string
}

func NewScanner(table *Table) *Scanner {
	s := &Scanner{labels: make(map[string]string, len(table.Categories))}
	for _, c := range table.Categories {
		lowered := make([]string, len(c.Keywords))
		for i, kw := range c.Keywords {
			lowered[i] = strings.ToLower(strings.TrimSpace(kw))
		}
		s.categories = append(s.categories, Category{
			Name:     c.Name,
			Label:    c.Label,
			Weight:   c.Weight,
			Keywords: lowered,
		})
		s.labels[c.Name] = c.Label
	}
	return s
}

// Label returns the display name of a category.
func (s *Scanner) Label(category string) string {
	if l, ok := s.labels[category]; ok {
		return l
	}
	return category
}

// Scan scores text against every category of the table.
func (s *Scanner) Scan(text string) domain.KeywordScanResult {
	lower := strings.ToLower(text)

	result := domain.KeywordScanResult{
		Matches:        []string{},
		Categories:     []string{},
		CategoryScores: make(map[string]float64, len(s.categories)),
	}

	var all []string
	score := 0.0
	for _, c := range s.categories {
		matched := 0
		for _, kw := range c.Keywords {
			if kw == "" || !keywordPresent(lower, kw) {
				continue
			}
			matched++
			all = append(all, kw)
		}

		if matched == 0 {
			result.CategoryScores[c.Name] = 0
			continue
		}
		catScore := float64(matched) / float64(len(c.Keywords)) * c.Weight
		result.CategoryScores[c.Name] = catScore
		result.Categories = append(result.Categories, c.Name)
		score += catScore
	}
	score = domain.Clamp(score, 0, 1)

	words := len(strings.Fields(text))
	if words > 0 {
		result.Density = float64(len(all)) / float64(words)
	}
	if result.Density > densityThreshold {
		score = domain.Clamp(score*densityBonus, 0, 1)
	}

	result.Score = score
	result.TotalMatches = len(all)
	if len(all) > MaxReportedMatches {
		all = all[:MaxReportedMatches]
	}
	if all != nil {
		result.Matches = all
	}
	return result
}

// keywordPresent uses substring containment for phrases and word-boundary
// matching for single words, so "gratuit" does not match "gratuitement".
func keywordPresent(text, kw string) bool {
	if strings.Contains(kw, " ") {
		return strings.Contains(text, kw)
	}

	first, _ := utf8.DecodeRuneInString(kw)
	last, _ := utf8.DecodeLastRuneInString(kw)

	for offset := 0; offset <= len(text)-len(kw); {
		idx := strings.Index(text[offset:], kw)
		if idx == -1 {
			return false
		}
		start := offset + idx
		end := start + len(kw)
		if boundaryBefore(text, start, first) && boundaryAfter(text, end, last) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
	return false
}

// boundaryBefore mirrors regex \b: the word-ness of the neighbour must differ
// from the word-ness of the keyword's edge rune.
func boundaryBefore(text string, pos int, edge rune) bool {
	prevIsWord := false
	if pos > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:pos])
		prevIsWord = isWordRune(r)
	}
	return prevIsWord != isWordRune(edge)
}

func boundaryAfter(text string, pos int, edge rune) bool {
	nextIsWord := false
	if pos < len(text) {
		r, _ := utf8.DecodeRuneInString(text[pos:])
		nextIsWord = isWordRune(r)
	}
	return nextIsWord != isWordRune(edge)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
