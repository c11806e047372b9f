package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
)

func reputation(score float64) domain.Result[domain.ReputationRecord] {
	return domain.Present(domain.ReputationRecord{AbuseScore: score, Country: "FR"})
}

func TestNetworkFindings(t *testing.T) {
	findings := NetworkFindings([]int{80, 23, 3306, 443}, reputation(60))

	require.Len(t, findings, 3)
	assert.Equal(t, 23, findings[0].Port)
	assert.Equal(t, "Telnet", findings[0].Service)
	assert.Equal(t, 3306, findings[1].Port)
	assert.Equal(t, domain.Finding{
		Port:        0,
		Service:     "reputation",
		Description: "IP has moderate abuse score: 60% (AbuseIPDB)",
		Severity:    domain.LevelHigh,
	}, findings[2])
}

func TestNetworkFindings_ReputationSeverity(t *testing.T) {
	tests := []struct {
		score    float64
		severity domain.Severity
		present  bool
	}{
		{0, "", false},
		{10, domain.LevelMedium, true},
		{50, domain.LevelMedium, true},
		{51, domain.LevelHigh, true},
		{75, domain.LevelHigh, true},
		{76, domain.LevelCritical, true},
	}

	for _, tt := range tests {
		findings := NetworkFindings(nil, reputation(tt.score))
		if !tt.present {
			assert.Empty(t, findings)
			continue
		}
		require.Len(t, findings, 1)
		assert.Equal(t, tt.severity, findings[0].Severity, "score %v", tt.score)
	}
}

func TestFuseNetworkSignals_Tiers(t *testing.T) {
	absent := domain.Absent[domain.ReputationRecord]("no api key")

	tests := []struct {
		name  string
		ports []int
		rep   domain.Result[domain.ReputationRecord]
		tier  domain.ThreatLevel
	}{
		{"nothing open and no reputation", nil, absent, domain.LevelLow},
		{"web only", []int{80, 443}, absent, domain.LevelLow},
		{"ssh and smtp are low", []int{22, 25}, absent, domain.LevelLow},
		{"one high finding", []int{23}, absent, domain.LevelMedium},
		{"two medium findings", []int{21, 8080}, absent, domain.LevelMedium},
		{"two high findings", []int{3306, 3389}, absent, domain.LevelHigh},
		{"abuse above 25", nil, reputation(30), domain.LevelMedium},
		{"abuse above 50", nil, reputation(51), domain.LevelHigh},
		{"abuse above 75", []int{80}, reputation(90), domain.LevelCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, _ := FuseNetworkSignals(tt.ports, tt.rep)
			assert.Equal(t, tt.tier, result.Tier)
			assert.Equal(t, ModelRules, result.ModelUsed)
			assert.GreaterOrEqual(t, result.Confidence, 0.0)
			assert.LessOrEqual(t, result.Confidence, 1.0)
		})
	}
}

func TestFuseNetworkSignals_Confidence(t *testing.T) {
	absent := domain.Absent[domain.ReputationRecord]("timeout")

	result, findings := FuseNetworkSignals(nil, absent)
	assert.Empty(t, findings)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Equal(t, domain.CategorySafe, result.Category)
	assert.False(t, result.Flagged)
	assert.Contains(t, result.Indicators, "Reputation unavailable: timeout")

	result, _ = FuseNetworkSignals([]int{23}, reputation(40))
	assert.Equal(t, 0.75, result.Confidence)
	assert.Equal(t, domain.CategorySuspicious, result.Category)

	result, _ = FuseNetworkSignals([]int{22}, reputation(100))
	assert.Equal(t, 1.0, result.Confidence)
	assert.Equal(t, domain.CategoryMalicious, result.Category)
	assert.Contains(t, result.Recommendations, "Block or investigate traffic from this address")
}

func TestFuseNetworkSignals_AbsentIsNotClean(t *testing.T) {
	absent, _ := FuseNetworkSignals([]int{23}, domain.Absent[domain.ReputationRecord]("rate limited"))
	clean, _ := FuseNetworkSignals([]int{23}, reputation(0))

	assert.Equal(t, absent.Tier, clean.Tier)
	assert.NotEqual(t, absent.Indicators, clean.Indicators)
}

func TestFuseNetworkSignals_Idempotent(t *testing.T) {
	first, firstFindings := FuseNetworkSignals([]int{21, 23, 3389}, reputation(55))
	for i := 0; i < 5; i++ {
		again, againFindings := FuseNetworkSignals([]int{21, 23, 3389}, reputation(55))
		assert.Equal(t, first, again)
		assert.Equal(t, firstFindings, againFindings)
	}
}
