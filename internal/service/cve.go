package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Boukadre/appweb-SOC-IA/internal/adapter/metrics"
	"github.com/Boukadre/appweb-SOC-IA/internal/adapter/provider"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/fusion"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/ports"
)

// VulnerabilityReport is what a catalog lookup returns.
type VulnerabilityReport struct {
	Vulnerabilities []domain.CVEInfo   `json:"vulnerabilities"`
	TotalCVEs       int                `json:"total_cves"`
	OverallRisk     domain.ThreatLevel `json:"overall_risk"`
	MaxCVSS         float64            `json:"max_cvss"`
	Recommendations []string           `json:"recommendations"`
}

// CVEScan is the response of a website scan.
type CVEScan struct {
	ID           string              `json:"scan_id"`
	Status       domain.ScanStatus   `json:"status"`
	URL          string              `json:"url"`
	Technologies []domain.Technology `json:"technologies"`
	VulnerabilityReport
	Evidence  []domain.Evidence `json:"evidence"`
	Error     string            `json:"error,omitempty"`
	ScannedAt time.Time         `json:"timestamp"`
}

type CVEService struct {
	fingerprinter ports.Fingerprinter
	catalog       *fusion.Catalog
	recorder      *Recorder
	logger        *zap.Logger
}

func NewCVEService(fingerprinter ports.Fingerprinter, catalog *fusion.Catalog, recorder *Recorder, logger *zap.Logger) *CVEService {
	return &CVEService{
		fingerprinter: fingerprinter,
		catalog:       catalog,
		recorder:      recorder,
		logger:        logger,
	}
}

// Lookup matches technologies against the catalog. Nothing is stored.
func (s *CVEService) Lookup(technologies []domain.Technology) (*VulnerabilityReport, error) {
	if len(technologies) == 0 {
		return nil, fmt.Errorf("at least one technology is required: %w", domain.ErrInvalidInput)
	}
	for i, t := range technologies {
		if strings.TrimSpace(t.Name) == "" {
			return nil, fmt.Errorf("technology %d has no name: %w", i, domain.ErrInvalidInput)
		}
	}
	report := s.report(technologies)
	return &report, nil
}

func (s *CVEService) report(technologies []domain.Technology) VulnerabilityReport {
	cves := s.catalog.LookupVulnerabilities(technologies)
	return VulnerabilityReport{
		Vulnerabilities: cves,
		TotalCVEs:       len(cves),
		OverallRisk:     fusion.OverallRisk(cves),
		MaxCVSS:         fusion.MaxCVSS(cves),
		Recommendations: fusion.VulnerabilityRecommendations(cves),
	}
}

// Scan fingerprints the site at rawURL and looks its technologies up. A site
// that cannot be fetched yields a failed record rather than an error.
func (s *CVEService) Scan(ctx context.Context, rawURL string) (*CVEScan, error) {
	target, err := provider.NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	scan := &CVEScan{
		ID:        domain.NewID(domain.KindCVEScan.IDPrefix()),
		Status:    domain.StatusCompleted,
		URL:       target,
		ScannedAt: s.recorder.Now(),
	}

	techs, err := s.fingerprinter.Fingerprint(ctx, target)
	if err != nil {
		s.logger.Warn("fingerprint failed",
			zap.String("url", target),
			zap.String("cause", err.Error()),
		)
		metrics.RecordAbsent(string(domain.SourceFingerprint))
		scan.Status = domain.StatusFailed
		scan.Error = err.Error()
		scan.Technologies = []domain.Technology{}
		scan.VulnerabilityReport = VulnerabilityReport{
			Vulnerabilities: []domain.CVEInfo{},
			OverallRisk:     domain.LevelLow,
			Recommendations: []string{"Check that the site is reachable and retry the scan"},
		}
		scan.Evidence = []domain.Evidence{
			{Source: domain.SourceFingerprint, Cause: err.Error()},
			{Source: domain.SourceVulnLookup, Cause: "no technology detected"},
		}
	} else {
		scan.Technologies = techs
		scan.VulnerabilityReport = s.report(techs)
		scan.Evidence = []domain.Evidence{
			{Source: domain.SourceFingerprint, Present: true},
			{Source: domain.SourceVulnLookup, Present: true},
		}
	}

	s.logger.Info("cve scan completed",
		zap.String("id", scan.ID),
		zap.String("url", target),
		zap.String("status", string(scan.Status)),
		zap.Int("technologies", len(scan.Technologies)),
		zap.Int("cves", scan.TotalCVEs),
		zap.String("overall_risk", string(scan.OverallRisk)),
	)

	alertLines := make([]string, 0, len(scan.Vulnerabilities))
	for _, v := range scan.Vulnerabilities {
		alertLines = append(alertLines, fmt.Sprintf("%s %s (CVSS %.1f)", v.CVEID, v.Technology, v.CVSSScore))
	}
	s.recorder.Record(context.WithoutCancel(ctx), domain.ScanRecord{
		ID:         scan.ID,
		Kind:       domain.KindCVEScan,
		Target:     target,
		Status:     scan.Status,
		Tier:       scan.OverallRisk,
		Confidence: scan.MaxCVSS,
		CreatedAt:  scan.ScannedAt,
	}, scan, alertLines)

	return scan, nil
}
