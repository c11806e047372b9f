package fusion

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
)

const (
	ModelHeuristic = "Heuristic (fallback)"

	maxBodyForModel = 1000
	heuristicCap    = 0.99

	urgencyIncrement   = 0.15
	sensitiveIncrement = 0.25
	threatIncrement    = 0.20
	senderFlagWeight   = 0.2
	urlFlagWeight      = 0.3
)

var (
	urgencyPatterns = []string{
		"urgent", "immediately", "act now", "expire", "suspended",
		"verify now", "confirm identity", "unusual activity", "action required",
		"limited time", "expires today",
	}
	sensitivePatterns = []string{
		"password", "credit card", "social security", "ssn",
		"bank account", "pin code", "personal information",
		"confirm your account", "verify your identity",
	}
	threatPatterns = []string{
		"legal action", "police", "arrest", "lawsuit", "close account",
		"suspended", "blocked", "terminated",
	}

	suspiciousDomainTokens = []string{
		"temp", "fake", "secure", "verify", "account",
		"alert", "support-", "-support", "login",
	}
	suspiciousTLDs  = []string{".xyz", ".top", ".club", ".online", ".site"}
	subjectUrgency  = []string{"urgent", "action required", "verify", "suspended"}
	urlKeywords     = []string{"login", "verify", "secure", "account", "update", "confirm", "suspended", "paypal", "banking"}
	typosquatTarget = []struct{ typo, real string }{
		{"g00gle", "google"},
		{"paypa1", "paypal"},
		{"micros0ft", "microsoft"},
		{"app1e", "apple"},
		{"faceb00k", "facebook"},
		{"amaz0n", "amazon"},
	}
)

// Email is the content submitted for phishing analysis.
type Email struct {
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	URL     string `json:"url,omitempty"`
}

// ModelText is what the classifier sees: "Subject: .. Sender: .. Body: ..",
// with the body cut to its first 1000 characters.
func (e Email) ModelText() string {
	var parts []string
	if e.Subject != "" {
		parts = append(parts, "Subject: "+e.Subject)
	}
	if e.Sender != "" {
		parts = append(parts, "Sender: "+e.Sender)
	}
	if e.Body != "" {
		body := e.Body
		if r := []rune(body); len(r) > maxBodyForModel {
			body = string(r[:maxBodyForModel])
		}
		parts = append(parts, "Body: "+body)
	}
	return strings.Join(parts, " ")
}

// KeywordText is what the keyword scanner sees: subject and body only.
func (e Email) KeywordText() string {
	var b strings.Builder
	if e.Subject != "" {
		b.WriteString(e.Subject)
		b.WriteString(" ")
	}
	b.WriteString(e.Body)
	return b.String()
}

// SenderFlags inspects the domain of the sender address.
func SenderFlags(sender string) []string {
	dom := domain.EmailDomain(sender)
	if dom == "" {
		return nil
	}

	var flags []string
	for _, token := range suspiciousDomainTokens {
		if strings.Contains(dom, token) {
			flags = append(flags, "Suspicious sender domain: "+dom)
			break
		}
	}
	for _, tld := range suspiciousTLDs {
		if strings.HasSuffix(dom, tld) {
			flags = append(flags, "Suspicious domain extension")
			break
		}
	}
	digits := 0
	for _, r := range dom {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if digits > 3 {
		flags = append(flags, fmt.Sprintf("Too many digits in sender domain (%d)", digits))
	}
	return flags
}

// SubjectFlags detects urgency wording and all-caps subjects.
func SubjectFlags(subject string) []string {
	if subject == "" {
		return nil
	}
	var flags []string
	lower := strings.ToLower(subject)
	for _, w := range subjectUrgency {
		if strings.Contains(lower, w) {
			flags = append(flags, "Subject contains urgency words")
			break
		}
	}
	if isUpper(subject) {
		flags = append(flags, "Subject written in capitals (pressure tactic)")
	}
	return flags
}

// isUpper is true when s has at least one cased letter and no lower-case letter.
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

// URLFlags looks for raw IP hosts, lure keywords and typosquatted brands.
func URLFlags(raw string) []string {
	if raw == "" {
		return nil
	}
	host := ""
	if u, err := url.Parse(raw); err == nil {
		host = strings.ToLower(u.Host)
	}

	var flags []string
	if domain.IsIPv4Literal(host) {
		flags = append(flags, "URL uses a raw IP address")
	}

	lower := strings.ToLower(raw)
	var found []string
	for _, kw := range urlKeywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	if len(found) > 3 {
		found = found[:3]
	}
	if len(found) > 0 {
		flags = append(flags, "Suspicious keywords in URL: "+strings.Join(found, ", "))
	}

	for _, t := range typosquatTarget {
		if strings.Contains(host, t.typo) {
			flags = append(flags, fmt.Sprintf("Possible typosquatting of '%s'", t.real))
		}
	}
	return flags
}

// HeuristicFallback scores an email without a classifier.
func HeuristicFallback(e Email) domain.FusionResult {
	text := strings.ToLower(e.ModelText())
	indicators := NewList(MaxIndicators)
	score := 0.0

	for _, p := range urgencyPatterns {
		if strings.Contains(text, p) {
			indicators.Add(fmt.Sprintf("Urgency language: '%s'", p))
			score += urgencyIncrement
		}
	}
	for _, p := range sensitivePatterns {
		if strings.Contains(text, p) {
			indicators.Add(fmt.Sprintf("Sensitive information request: '%s'", p))
			score += sensitiveIncrement
		}
	}
	for _, p := range threatPatterns {
		if strings.Contains(text, p) {
			indicators.Add(fmt.Sprintf("Threatening language: '%s'", p))
			score += threatIncrement
		}
	}

	sender := SenderFlags(e.Sender)
	indicators.Add(sender...)
	score += senderFlagWeight * float64(len(sender))

	urlFlags := URLFlags(e.URL)
	indicators.Add(urlFlags...)
	score += urlFlagWeight * float64(len(urlFlags))

	confidence := domain.Clamp(score, 0, heuristicCap)
	flagged := score > suspiciousThreshold
	category := categoryForScore(confidence)

	if indicators.Len() == 0 {
		indicators.Add("No major suspicious indicator detected")
	}

	return domain.FusionResult{
		Confidence:      confidence,
		Category:        category,
		Tier:            TierFor(category, confidence, flagged),
		Flagged:         flagged,
		Indicators:      indicators.Items(),
		Recommendations: ContentRecommendations(category),
		ModelUsed:       ModelHeuristic,
	}
}

// AssessEmail fuses a classifier result (absent when the model is unavailable
// or failed) with the keyword scan of the email. labelOf renders category names.
func AssessEmail(e Email, model domain.Result[float64], modelName string, kw domain.KeywordScanResult, labelOf func(string) string, w Weights) domain.FusionResult {
	modelScore, ok := model.Get()
	if !ok || strings.TrimSpace(e.ModelText()) == "" {
		return HeuristicFallback(e)
	}

	result := FuseContentSignals(modelScore, kw.Score, w)

	indicators := NewList(MaxIndicators).Add(result.Indicators...)
	indicators.Add(fmt.Sprintf("Keyword matches: %d", kw.TotalMatches))
	if len(kw.Categories) > 0 {
		names := make([]string, len(kw.Categories))
		for i, c := range kw.Categories {
			names[i] = c
			if labelOf != nil {
				names[i] = labelOf(c)
			}
		}
		indicators.Add("Categories: " + strings.Join(names, ", "))
	}
	if len(kw.Matches) > 0 {
		top := kw.Matches
		if len(top) > 5 {
			top = top[:5]
		}
		indicators.Add("Suspicious words: " + strings.Join(top, ", "))
	}
	indicators.Add(SenderFlags(e.Sender)...)
	indicators.Add(SubjectFlags(e.Subject)...)
	indicators.Add(URLFlags(e.URL)...)

	result.Indicators = indicators.Items()
	result.ModelUsed = modelName + " + KeywordScanner"
	return result
}
