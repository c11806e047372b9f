package exporter

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
)

func sampleRecords() []domain.ScanRecord {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []domain.ScanRecord{
		{
			ID: "scan_1a2b3c4d", Kind: domain.KindNetworkScan, Target: "203.0.113.7",
			Status: domain.StatusCompleted, Tier: domain.LevelHigh, Confidence: 0.75,
			CreatedAt: at, Payload: json.RawMessage(`{"open_ports":[23]}`),
		},
		{
			ID: "phish_5e6f7a8b", Kind: domain.KindPhishing, Target: "support@paypa1.com",
			Status: domain.StatusCompleted, Tier: domain.LevelLow, Confidence: 0.2,
			CreatedAt: at.Add(time.Minute), Payload: json.RawMessage(`{}`),
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{" cef ", FormatCEF, false},
		{"stix", FormatSTIX, false},
		{"pdf", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			exp, err := ForFormat(got)
			require.NoError(t, err)
			assert.Equal(t, got, exp.Format())
			assert.NotEmpty(t, exp.ContentType())
		})
	}
}

func TestCEFExporter(t *testing.T) {
	out, err := NewCEFExporter().Export(sampleRecords())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)

	assert.True(t, strings.HasPrefix(lines[0], "CEF:0|SOC-IA|ThreatTriage|1.0|network_scan|Network scan assessment HIGH|8|"))
	assert.Contains(t, lines[0], "src=203.0.113.7")
	assert.Contains(t, lines[0], "cn1=75")
	assert.Contains(t, lines[0], "cs3=scan_1a2b3c4d")
	assert.Contains(t, lines[0], "rt=1772366400000")

	assert.Contains(t, lines[1], "|phishing|Phishing assessment LOW|3|")
	assert.NotContains(t, lines[1], "src=")
}

func TestCEFEscaping(t *testing.T) {
	assert.Equal(t, `a\=b\\c\nd`, escapeField("a=b\\c\nd"))
	assert.Equal(t, `x\|y`, escapeHeader("x|y"))
}

func TestCalculateSeverity(t *testing.T) {
	assert.Equal(t, 10, calculateSeverity(domain.LevelCritical))
	assert.Equal(t, 8, calculateSeverity(domain.LevelHigh))
	assert.Equal(t, 5, calculateSeverity(domain.LevelMedium))
	assert.Equal(t, 3, calculateSeverity(domain.LevelLow))
}

func TestSTIXExporter(t *testing.T) {
	out, err := NewSTIXExporter().Export(sampleRecords())
	require.NoError(t, err)

	var bundle STIXBundle
	require.NoError(t, json.Unmarshal([]byte(out), &bundle))

	assert.Equal(t, "bundle", bundle.Type)
	assert.True(t, strings.HasPrefix(bundle.ID, "bundle--"))
	require.Len(t, bundle.Objects, 2)

	ind := bundle.Objects[0]
	assert.Equal(t, "indicator", ind.Type)
	assert.Equal(t, "2.1", ind.SpecVersion)
	assert.Equal(t, "[ipv4-addr:value = '203.0.113.7']", ind.Pattern)
	assert.Equal(t, 75, ind.Confidence)
	assert.Equal(t, "2026-03-01T12:00:00Z", ind.ValidFrom)
	assert.Equal(t, []string{"anomalous-activity"}, ind.IndicatorTypes)

	assert.Equal(t, "[email-message:from_ref.value = 'support@paypa1.com']", bundle.Objects[1].Pattern)
	assert.Equal(t, []string{"benign"}, bundle.Objects[1].IndicatorTypes)

	// Ids are stable per record
	again, err := NewSTIXExporter().Export(sampleRecords()[:1])
	require.NoError(t, err)
	assert.Contains(t, again, ind.ID)
}

func TestBuildPattern(t *testing.T) {
	tests := []struct {
		name string
		rec  domain.ScanRecord
		want string
	}{
		{"url", domain.ScanRecord{Kind: domain.KindCVEScan, Target: "https://example.com/"}, "[url:value = 'https://example.com/']"},
		{"hostname", domain.ScanRecord{Kind: domain.KindNetworkScan, Target: "example.com"}, "[domain-name:value = 'example.com']"},
		{"quote escaped", domain.ScanRecord{Kind: domain.KindCVEScan, Target: "https://x/'a"}, `[url:value = 'https://x/\'a']`},
		{"fallback", domain.ScanRecord{ID: "ssh_audit_1", Kind: domain.KindAuthLog, Target: "auth.log"}, "[x-socia-assessment:id = 'ssh_audit_1']"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildPattern(tt.rec))
		})
	}
}

func TestJSONExporter(t *testing.T) {
	out, err := NewJSONExporter().Export(sampleRecords())
	require.NoError(t, err)

	var doc struct {
		Count   int                 `json:"count"`
		Records []domain.ScanRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, 2, doc.Count)
	assert.JSONEq(t, `{"open_ports":[23]}`, string(doc.Records[0].Payload))

	empty, err := NewJSONExporter().Export(nil)
	require.NoError(t, err)
	assert.Contains(t, empty, `"records": []`)
}
