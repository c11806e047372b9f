package exporter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
)

// STIXExporter renders scan records as a STIX 2.1 bundle of indicators
type STIXExporter struct{}

func NewSTIXExporter() *STIXExporter {
	return &STIXExporter{}
}

func (e *STIXExporter) Format() Format { return FormatSTIX }

func (e *STIXExporter) ContentType() string { return "application/stix+json;version=2.1" }

func (e *STIXExporter) Export(records []domain.ScanRecord) (string, error) {
	bundle := STIXBundle{
		Type:    "bundle",
		ID:      fmt.Sprintf("bundle--%s", uuid.New().String()),
		Objects: []STIXObject{},
	}

	for _, rec := range records {
		bundle.Objects = append(bundle.Objects, e.convertToSTIX(rec))
	}

	jsonData, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal STIX bundle: %w", err)
	}
	return string(jsonData), nil
}

func (e *STIXExporter) convertToSTIX(rec domain.ScanRecord) STIXObject {
	ts := rec.CreatedAt.UTC().Format(time.RFC3339)

	return STIXObject{
		Type:           "indicator",
		SpecVersion:    "2.1",
		ID:             fmt.Sprintf("indicator--%s", uuid.NewSHA1(uuid.NameSpaceURL, []byte("socia:"+rec.ID)).String()),
		Created:        ts,
		Modified:       ts,
		Name:           fmt.Sprintf("%s assessment of %s", kindName(rec.Kind), rec.Target),
		Pattern:        buildPattern(rec),
		PatternType:    "stix",
		ValidFrom:      ts,
		IndicatorTypes: indicatorTypes(rec),
		Confidence:     confidencePercent(rec.Confidence),
		Labels:         []string{string(rec.Kind), "threat-level:" + string(rec.Tier)},
		ExternalReferences: []ExternalReference{
			{SourceName: "socia", ExternalID: rec.ID},
		},
	}
}

// buildPattern picks an observable for the record target
func buildPattern(rec domain.ScanRecord) string {
	target := escapePattern(rec.Target)
	switch {
	case domain.IsIPv4Literal(rec.Target):
		return fmt.Sprintf("[ipv4-addr:value = '%s']", target)
	case rec.Kind == domain.KindPhishing && strings.Contains(rec.Target, "@"):
		return fmt.Sprintf("[email-message:from_ref.value = '%s']", target)
	case strings.HasPrefix(rec.Target, "http://") || strings.HasPrefix(rec.Target, "https://"):
		return fmt.Sprintf("[url:value = '%s']", target)
	case rec.Kind == domain.KindNetworkScan && rec.Target != "":
		return fmt.Sprintf("[domain-name:value = '%s']", target)
	default:
		return fmt.Sprintf("[x-socia-assessment:id = '%s']", escapePattern(rec.ID))
	}
}

func indicatorTypes(rec domain.ScanRecord) []string {
	if !rec.Tier.AtLeast(domain.LevelMedium) {
		return []string{"benign"}
	}
	switch rec.Kind {
	case domain.KindPhishing:
		return []string{"malicious-activity", "phishing"}
	case domain.KindAuthLog:
		return []string{"malicious-activity", "attribution"}
	case domain.KindCVEScan:
		return []string{"compromised"}
	default:
		return []string{"anomalous-activity"}
	}
}

func escapePattern(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	return strings.ReplaceAll(s, "'", "\\'")
}

// STIX 2.1 data structures

type STIXBundle struct {
	Type    string       `json:"type"`
	ID      string       `json:"id"`
	Objects []STIXObject `json:"objects"`
}

type STIXObject struct {
	Type               string              `json:"type"`
	SpecVersion        string              `json:"spec_version"`
	ID                 string              `json:"id"`
	Created            string              `json:"created"`
	Modified           string              `json:"modified"`
	Name               string              `json:"name"`
	Pattern            string              `json:"pattern"`
	PatternType        string              `json:"pattern_type"`
	ValidFrom          string              `json:"valid_from"`
	IndicatorTypes     []string            `json:"indicator_types"`
	Confidence         int                 `json:"confidence"`
	Labels             []string            `json:"labels,omitempty"`
	ExternalReferences []ExternalReference `json:"external_references,omitempty"`
}

type ExternalReference struct {
	SourceName string `json:"source_name"`
	ExternalID string `json:"external_id,omitempty"`
	URL        string `json:"url,omitempty"`
}
