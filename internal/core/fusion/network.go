package fusion

import (
	"fmt"
	"math"

	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
)

// CommonPorts is the port set probed by a quick scan.
var CommonPorts = []int{21, 22, 23, 25, 53, 80, 110, 143, 443, 3306, 3389, 8080, 8443}

type portRisk struct {
	service     string
	description string
	severity    domain.Severity
	remediation string
}

var portTable = map[int]portRisk{
	21:   {"FTP", "FTP service detected - unencrypted protocol", domain.LevelMedium, "Replace FTP with SFTP or FTPS"},
	22:   {"SSH", "SSH exposed - ensure strong authentication", domain.LevelLow, "Enforce key-based SSH authentication"},
	23:   {"Telnet", "Telnet detected - critical security risk (unencrypted)", domain.LevelHigh, "Disable Telnet and use SSH instead"},
	25:   {"SMTP", "SMTP server exposed", domain.LevelLow, "Restrict SMTP relaying and require authentication"},
	3306: {"MySQL", "MySQL database publicly accessible", domain.LevelHigh, "Bind MySQL to a private interface or firewall it"},
	3389: {"RDP", "Remote Desktop exposed - high attack surface", domain.LevelHigh, "Put RDP behind a VPN and enable Network Level Authentication"},
	8080: {"HTTP-Alt", "Alternative HTTP port - may lack encryption", domain.LevelMedium, "Serve the alternative HTTP port over TLS or close it"},
}

var severityWeight = map[domain.Severity]float64{
	domain.LevelCritical: 0.95,
	domain.LevelHigh:     0.75,
	domain.LevelMedium:   0.5,
	domain.LevelLow:      0.25,
}

const ModelRules = "rules"

// NetworkFindings maps open ports and the reputation of the address to findings.
func NetworkFindings(openPorts []int, rep domain.Result[domain.ReputationRecord]) []domain.Finding {
	findings := []domain.Finding{}
	for _, port := range openPorts {
		risk, ok := portTable[port]
		if !ok {
			continue
		}
		findings = append(findings, domain.Finding{
			Port:        port,
			Service:     risk.service,
			Description: risk.description,
			Severity:    risk.severity,
		})
	}

	record, ok := rep.Get()
	if !ok || record.AbuseScore <= 0 {
		return findings
	}

	score := formatScore(record.AbuseScore)
	f := domain.Finding{Port: 0, Service: "reputation"}
	switch {
	case record.AbuseScore > 75:
		f.Severity = domain.LevelCritical
		f.Description = fmt.Sprintf("IP has high abuse score: %s%% (AbuseIPDB)", score)
	case record.AbuseScore > 50:
		f.Severity = domain.LevelHigh
		f.Description = fmt.Sprintf("IP has moderate abuse score: %s%% (AbuseIPDB)", score)
	default:
		f.Severity = domain.LevelMedium
		f.Description = fmt.Sprintf("IP has been reported for abuse: %s%% confidence", score)
	}
	return append(findings, f)
}

// NetworkTier derives the overall tier from findings and reputation.
func NetworkTier(findings []domain.Finding, rep domain.Result[domain.ReputationRecord]) domain.ThreatLevel {
	var critical, high, medium int
	for _, f := range findings {
		switch f.Severity {
		case domain.LevelCritical:
			critical++
		case domain.LevelHigh:
			high++
		case domain.LevelMedium:
			medium++
		}
	}

	abuse := 0.0
	if record, ok := rep.Get(); ok {
		abuse = record.AbuseScore
	}

	switch {
	case critical > 0 || abuse > 75:
		return domain.LevelCritical
	case high >= 2 || abuse > 50:
		return domain.LevelHigh
	case high > 0 || medium >= 2 || abuse > 25:
		return domain.LevelMedium
	default:
		return domain.LevelLow
	}
}

// FuseNetworkSignals fuses open ports and an optional reputation record.
// An absent reputation contributes nothing.
func FuseNetworkSignals(openPorts []int, rep domain.Result[domain.ReputationRecord]) (domain.FusionResult, []domain.Finding) {
	findings := NetworkFindings(openPorts, rep)
	tier := NetworkTier(findings, rep)

	confidence := 0.0
	if record, ok := rep.Get(); ok {
		confidence = domain.Clamp(record.AbuseScore/100, 0, 1)
	}
	for _, f := range findings {
		confidence = math.Max(confidence, severityWeight[f.Severity])
	}

	indicators := NewList(MaxIndicators)
	recommendations := NewList(MaxRecommendations)
	for _, f := range findings {
		if f.Port > 0 {
			indicators.Add(fmt.Sprintf("Port %d/%s: %s", f.Port, f.Service, f.Description))
			recommendations.Add(portTable[f.Port].remediation)
		} else {
			indicators.Add(f.Description)
		}
	}
	if record, ok := rep.Get(); ok {
		if record.AbuseScore > 50 {
			recommendations.Add("Block or investigate traffic from this address")
		}
		if record.IsWhitelisted {
			indicators.Add("Address is whitelisted by the reputation provider")
		}
	} else {
		cause := rep.Cause()
		if cause == "" {
			cause = "unknown"
		}
		indicators.Add("Reputation unavailable: " + cause)
	}
	if len(findings) == 0 {
		indicators.Add("No risky service exposed on common ports")
	}
	if tier.AtLeast(domain.LevelHigh) {
		recommendations.Add("Close every port that does not need to be reachable from the internet")
	}
	recommendations.Add("Re-scan after remediation to confirm exposure is reduced")

	category := categoryForTier(tier)
	return domain.FusionResult{
		Confidence:      confidence,
		Category:        category,
		Tier:            tier,
		Flagged:         category != domain.CategorySafe,
		Indicators:      indicators.Items(),
		Recommendations: recommendations.Items(),
		ModelUsed:       ModelRules,
	}, findings
}

func categoryForTier(tier domain.ThreatLevel) domain.Category {
	switch {
	case tier.AtLeast(domain.LevelHigh):
		return domain.CategoryMalicious
	case tier == domain.LevelMedium:
		return domain.CategorySuspicious
	default:
		return domain.CategorySafe
	}
}

// formatScore prints integral scores without decimals, as providers report them.
func formatScore(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}
