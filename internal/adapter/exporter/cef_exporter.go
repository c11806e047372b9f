package exporter

import (
	"fmt"
	"strings"

	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
)

// CEFExporter renders one ArcSight CEF line per scan record for SIEM ingestion
type CEFExporter struct{}

func NewCEFExporter() *CEFExporter {
	return &CEFExporter{}
}

func (e *CEFExporter) Format() Format { return FormatCEF }

func (e *CEFExporter) ContentType() string { return "text/plain; charset=utf-8" }

// Export generates the CEF feed.
// Format: CEF:Version|Device Vendor|Device Product|Device Version|Signature ID|Name|Severity|Extension
func (e *CEFExporter) Export(records []domain.ScanRecord) (string, error) {
	var output strings.Builder
	for _, rec := range records {
		output.WriteString(e.formatCEF(rec))
		output.WriteString("\n")
	}
	return output.String(), nil
}

func (e *CEFExporter) formatCEF(rec domain.ScanRecord) string {
	vendor := "SOC-IA"
	product := "ThreatTriage"
	version := "1.0"
	signatureID := escapeHeader(string(rec.Kind))
	name := escapeHeader(fmt.Sprintf("%s assessment %s", kindName(rec.Kind), strings.ToUpper(string(rec.Tier))))
	severity := calculateSeverity(rec.Tier)

	// CEF Extensions (key=value pairs)
	var extensions []string
	if domain.IsIPv4Literal(rec.Target) {
		extensions = append(extensions, fmt.Sprintf("src=%s", rec.Target))
	}
	extensions = append(extensions,
		"cs1Label=Target",
		fmt.Sprintf("cs1=%s", escapeField(rec.Target)),
		"cs2Label=ThreatLevel",
		fmt.Sprintf("cs2=%s", rec.Tier),
		"cs3Label=RecordID",
		fmt.Sprintf("cs3=%s", escapeField(rec.ID)),
		"cs4Label=Status",
		fmt.Sprintf("cs4=%s", rec.Status),
		"cn1Label=ConfidenceScore",
		fmt.Sprintf("cn1=%d", confidencePercent(rec.Confidence)),
		fmt.Sprintf("rt=%d", rec.CreatedAt.UnixMilli()),
	)

	return fmt.Sprintf("CEF:0|%s|%s|%s|%s|%s|%d|%s",
		vendor, product, version, signatureID, name, severity, strings.Join(extensions, " "))
}

// calculateSeverity maps a tier onto the CEF 0-10 scale
func calculateSeverity(tier domain.ThreatLevel) int {
	switch tier {
	case domain.LevelCritical:
		return 10
	case domain.LevelHigh:
		return 8
	case domain.LevelMedium:
		return 5
	default:
		return 3
	}
}

// escapeHeader escapes pipes and backslashes in header fields
func escapeHeader(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	return strings.ReplaceAll(s, "|", "\\|")
}

// escapeField escapes special characters in extension values
func escapeField(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "=", "\\=")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	return s
}
