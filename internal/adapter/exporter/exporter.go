// Package exporter renders stored scan records as JSON, CEF or STIX 2.1.
package exporter

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCEF  Format = "cef"
	FormatSTIX Format = "stix"
)

// ParseFormat accepts any casing. An empty string selects JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatCEF, FormatSTIX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unsupported report format %q (json, cef, stix)", domain.ErrInvalidInput, s)
	}
}

// Exporter renders a set of records in one output format.
type Exporter interface {
	Format() Format
	ContentType() string
	Export(records []domain.ScanRecord) (string, error)
}

// ForFormat returns the exporter for f.
func ForFormat(f Format) (Exporter, error) {
	switch f {
	case FormatJSON:
		return NewJSONExporter(), nil
	case FormatCEF:
		return NewCEFExporter(), nil
	case FormatSTIX:
		return NewSTIXExporter(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported report format %q", domain.ErrInvalidInput, f)
	}
}

// JSONExporter writes the records verbatim, payloads included.
type JSONExporter struct{}

func NewJSONExporter() *JSONExporter {
	return &JSONExporter{}
}

func (e *JSONExporter) Format() Format { return FormatJSON }

func (e *JSONExporter) ContentType() string { return "application/json" }

func (e *JSONExporter) Export(records []domain.ScanRecord) (string, error) {
	if records == nil {
		records = []domain.ScanRecord{}
	}
	data, err := json.MarshalIndent(struct {
		Count   int                 `json:"count"`
		Records []domain.ScanRecord `json:"records"`
	}{len(records), records}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal records: %w", err)
	}
	return string(data), nil
}

func confidencePercent(c float64) int {
	return int(math.Round(domain.Clamp(c, 0, 1) * 100))
}

func kindName(k domain.Kind) string {
	switch k {
	case domain.KindNetworkScan:
		return "Network scan"
	case domain.KindAuthLog:
		return "Auth log"
	case domain.KindPhishing:
		return "Phishing"
	case domain.KindCVEScan:
		return "Vulnerability"
	case domain.KindReport:
		return "Report"
	default:
		return string(k)
	}
}
