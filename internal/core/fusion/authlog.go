package fusion

import (
	"cmp"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"

	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
)

const (
	// MaxAuthLogBytes is the largest log accepted for analysis.
	MaxAuthLogBytes = 10 << 20

	// TopAttackers is how many of the most frequent addresses get enriched.
	TopAttackers = 10

	unknownCountry = "Unknown"
)

// failedAuthPatterns are tried in order; the first match of a line wins.
// The user name is matched as a single token where the address follows it,
// so the trailing "port N" is never taken for the address.
var failedAuthPatterns = []*regexp.Regexp{
	regexp.MustCompile(`Failed password for .* from ([\d.]+)`),
	regexp.MustCompile(`authentication failure.*rhost=([\d.]+)`),
	regexp.MustCompile(`Invalid user .* from ([\d.]+)`),
	regexp.MustCompile(`Connection closed by authenticating user \S+ ([\d.]+)`),
	regexp.MustCompile(`Disconnected from authenticating user \S+ ([\d.]+)`),
	regexp.MustCompile(`Failed publickey for .* from ([\d.]+)`),
	regexp.MustCompile(`fatal: Unable to negotiate (?:with|.* from) ([\d.]+)`),
}

// ParseAuthLog returns the source address of every failed-authentication
// line, in log order. Unrecognized lines are skipped.
func ParseAuthLog(text string) []string {
	var ips []string
	for _, line := range strings.Split(text, "\n") {
		for _, re := range failedAuthPatterns {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			if domain.IsIPv4Literal(m[1]) {
				ips = append(ips, m[1])
			}
			break
		}
	}
	return ips
}

// AttemptCount is one row of the frequency table.
type AttemptCount struct {
	IP       string
	Attempts int
}

// CountAttempts builds the frequency table ordered by count descending,
// ties broken by first appearance in the log.
func CountAttempts(ips []string) []AttemptCount {
	index := make(map[string]int)
	var counts []AttemptCount
	for _, ip := range ips {
		if i, ok := index[ip]; ok {
			counts[i].Attempts++
			continue
		}
		index[ip] = len(counts)
		counts = append(counts, AttemptCount{IP: ip, Attempts: 1})
	}
	slices.SortStableFunc(counts, func(a, b AttemptCount) int {
		return cmp.Compare(b.Attempts, a.Attempts)
	})
	return counts
}

// DetectAttackPatterns reports every aggregate pattern that applies, or a
// single normal pattern when none does.
func DetectAttackPatterns(counts []AttemptCount) []domain.AttackPattern {
	var patterns []domain.AttackPattern

	maxAttempts := 0
	if len(counts) > 0 {
		maxAttempts = counts[0].Attempts
	}
	switch {
	case maxAttempts > 100:
		patterns = append(patterns, domain.AttackPattern{
			Type:        domain.PatternBruteForce,
			Description: fmt.Sprintf("Brute-force attack detected (%d attempts from a single IP)", maxAttempts),
			Severity:    domain.LevelHigh,
		})
	case maxAttempts > 50:
		patterns = append(patterns, domain.AttackPattern{
			Type:        domain.PatternBruteForce,
			Description: fmt.Sprintf("Repeated login attempts (%d from one IP)", maxAttempts),
			Severity:    domain.LevelMedium,
		})
	}

	unique := len(counts)
	switch {
	case unique > 50:
		patterns = append(patterns, domain.AttackPattern{
			Type:        domain.PatternDistributed,
			Description: fmt.Sprintf("Distributed attack detected (%d different IPs)", unique),
			Severity:    domain.LevelHigh,
		})
	case unique > 20:
		patterns = append(patterns, domain.AttackPattern{
			Type:        domain.PatternDistributed,
			Description: fmt.Sprintf("Possibly distributed attack (%d IPs)", unique),
			Severity:    domain.LevelMedium,
		})
	}

	lowAttempt := 0
	for _, c := range counts {
		if c.Attempts <= 3 {
			lowAttempt++
		}
	}
	if lowAttempt > 10 && float64(lowAttempt)/float64(unique) > 0.5 {
		patterns = append(patterns, domain.AttackPattern{
			Type:        domain.PatternNetworkScan,
			Description: fmt.Sprintf("Network scan detected (%d IPs with few attempts)", lowAttempt),
			Severity:    domain.LevelLow,
		})
	}

	if len(patterns) == 0 {
		patterns = append(patterns, domain.AttackPattern{
			Type:        domain.PatternNormal,
			Description: "Normal authentication failures",
			Severity:    domain.LevelLow,
		})
	}
	return patterns
}

// TopAttackerRows converts the head of the frequency table into attackers
// without reputation data.
func TopAttackerRows(counts []AttemptCount, total int) []domain.Attacker {
	n := len(counts)
	if n > TopAttackers {
		n = TopAttackers
	}
	attackers := make([]domain.Attacker, n)
	for i := 0; i < n; i++ {
		attackers[i] = domain.Attacker{
			IP:         counts[i].IP,
			Attempts:   counts[i].Attempts,
			Percentage: math.Round(float64(counts[i].Attempts)/float64(total)*10000) / 100,
			Country:    unknownCountry,
		}
	}
	return attackers
}

// Enrich applies a reputation result to an attacker row. Absence leaves the
// abuse score unset.
func Enrich(a domain.Attacker, rep domain.Result[domain.ReputationRecord]) domain.Attacker {
	record, ok := rep.Get()
	if !ok {
		return a
	}
	score := record.AbuseScore
	a.AbuseScore = &score
	a.IsWhitelisted = record.IsWhitelisted
	if record.Country != "" {
		a.Country = record.Country
	}
	return a
}

func abuseAbove(a domain.Attacker, threshold float64) bool {
	return a.AbuseScore != nil && *a.AbuseScore > threshold
}

// AuthLogTier grades an auth log from its totals and enriched top attackers.
func AuthLogTier(total, unique int, top []domain.Attacker) domain.ThreatLevel {
	highAbuse := 0
	for _, a := range top {
		if abuseAbove(a, 75) {
			highAbuse++
		}
	}

	switch {
	case total > 1000 || highAbuse >= 3:
		return domain.LevelCritical
	case total > 500 || unique > 50 || highAbuse >= 1:
		return domain.LevelHigh
	case total > 100 || unique > 10:
		return domain.LevelMedium
	default:
		return domain.LevelLow
	}
}

// AuthLogRecommendations renders remediation guidance for an auth log.
func AuthLogRecommendations(total, unique int, tier domain.ThreatLevel, top []domain.Attacker) []string {
	list := NewList(MaxRecommendations)
	if total == 0 {
		return list.Add("No attack attempt detected in the provided logs").Items()
	}

	if tier.AtLeast(domain.LevelHigh) {
		list.Add(
			"URGENT: block the offending IPs now with fail2ban or iptables",
			"Disable SSH password authentication and allow keys only",
		)
	}
	if total > 100 {
		list.Add(
			"Install and configure fail2ban to block attackers automatically",
			"Move SSH off the default port 22",
		)
	}
	if unique > 20 {
		list.Add("Restrict SSH access to trusted IPs or countries with a firewall")
	}

	list.Add(
		"Use SSH keys protected by a passphrase instead of passwords",
		"Disable direct root login (PermitRootLogin no)",
		"Enable two-factor authentication for SSH",
		"Monitor logs regularly with a tool such as OSSEC or Wazuh",
	)

	var malicious []string
	for _, a := range top {
		if abuseAbove(a, 50) {
			malicious = append(malicious, a.IP)
		}
	}
	if len(malicious) > 5 {
		malicious = malicious[:5]
	}
	if len(malicious) > 0 {
		list.Add("Block these known malicious IPs: " + strings.Join(malicious, ", "))
	}
	return list.Items()
}

// AuthLogSummary is the pure part of an auth-log analysis, before enrichment.
type AuthLogSummary struct {
	TotalAttacks    int
	UniqueAttackers int
	Counts          []AttemptCount
	Patterns        []domain.AttackPattern
}

// SummarizeAuthLog parses the log and detects patterns.
func SummarizeAuthLog(text string) AuthLogSummary {
	ips := ParseAuthLog(text)
	counts := CountAttempts(ips)
	return AuthLogSummary{
		TotalAttacks:    len(ips),
		UniqueAttackers: len(counts),
		Counts:          counts,
		Patterns:        DetectAttackPatterns(counts),
	}
}

// AuthLogConfidence maps the tier onto the [0,1] scale of stored records.
func AuthLogConfidence(tier domain.ThreatLevel) float64 {
	if tier == domain.LevelLow {
		return 0
	}
	return severityWeight[tier]
}
