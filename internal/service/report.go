package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Boukadre/appweb-SOC-IA/internal/adapter/exporter"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/ports"
)

const maxReportRecords = 100

// Report is a consolidated export of stored analyses.
type Report struct {
	ID          string             `json:"report_id"`
	Format      exporter.Format    `json:"format"`
	ContentType string             `json:"content_type"`
	AnalysisIDs []string           `json:"analysis_ids"`
	Tier        domain.ThreatLevel `json:"threat_level"`
	Content     string             `json:"content"`
	GeneratedAt time.Time          `json:"generated_at"`
}

type ReportService struct {
	repo     ports.ScanRepository
	recorder *Recorder
	logger   *zap.Logger
}

func NewReportService(repo ports.ScanRepository, recorder *Recorder, logger *zap.Logger) *ReportService {
	return &ReportService{repo: repo, recorder: recorder, logger: logger}
}

// Generate exports the records named by ids in the requested format and
// stores the result as a report record. Every id must exist.
func (s *ReportService) Generate(ctx context.Context, ids []string, format string) (*Report, error) {
	f, err := exporter.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	exp, err := exporter.ForFormat(f)
	if err != nil {
		return nil, err
	}

	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("analysis_ids must not be empty: %w", domain.ErrInvalidInput)
	}
	if len(ids) > maxReportRecords {
		return nil, fmt.Errorf("at most %d analyses per report: %w", maxReportRecords, domain.ErrInvalidInput)
	}

	records := make([]domain.ScanRecord, 0, len(ids))
	tier := domain.LevelLow
	confidence := 0.0
	for _, id := range ids {
		rec, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("analysis %s: %w", id, err)
		}
		records = append(records, *rec)
		if rec.Tier.AtLeast(tier) {
			tier = rec.Tier
		}
		confidence = max(confidence, rec.Confidence)
	}

	content, err := exp.Export(records)
	if err != nil {
		return nil, fmt.Errorf("export %s report: %w", f, err)
	}

	report := &Report{
		ID:          domain.NewID(domain.KindReport.IDPrefix()),
		Format:      f,
		ContentType: exp.ContentType(),
		AnalysisIDs: ids,
		Tier:        tier,
		Content:     content,
		GeneratedAt: s.recorder.Now(),
	}

	s.logger.Info("report generated",
		zap.String("id", report.ID),
		zap.String("format", string(f)),
		zap.Int("records", len(records)),
	)

	s.recorder.Record(context.WithoutCancel(ctx), domain.ScanRecord{
		ID:         report.ID,
		Kind:       domain.KindReport,
		Target:     strings.Join(ids, ","),
		Status:     domain.StatusCompleted,
		Tier:       tier,
		Confidence: confidence,
		CreatedAt:  report.GeneratedAt,
	}, report, nil)

	return report, nil
}

// Get loads a stored report. Records of other kinds are reported as missing.
func (s *ReportService) Get(ctx context.Context, id string) (*Report, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Kind != domain.KindReport {
		return nil, fmt.Errorf("report %s: %w", id, domain.ErrNotFound)
	}

	var report Report
	if err := json.Unmarshal(rec.Payload, &report); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", id, err)
	}
	return &report, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
