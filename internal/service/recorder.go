// Package service runs each analysis end to end: it fans out the collectors,
// fuses their evidence, stores the resulting record and raises alerts.
package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/Boukadre/appweb-SOC-IA/internal/adapter/metrics"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/ports"
)

// maxAlertSummary bounds the lines forwarded to alert publishers.
const maxAlertSummary = 10

// Recorder persists finished assessments and publishes the severe ones.
// Neither step can fail an assessment that has already been computed.
type Recorder struct {
	repo   ports.ScanRepository
	alerts ports.AlertPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewRecorder builds a Recorder. A nil publisher disables alerts.
func NewRecorder(repo ports.ScanRepository, alerts ports.AlertPublisher, logger *zap.Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		alerts: alerts,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Now returns the timestamp stamped on new records.
func (r *Recorder) Now() time.Time {
	return r.now()
}

// Record stores rec with payload as its body, updates the analysis metrics and
// publishes an alert when the tier is HIGH or worse. Reports never alert: the
// records they consolidate already did.
func (r *Recorder) Record(ctx context.Context, rec domain.ScanRecord, payload any, summary []string) {
	metrics.RecordAnalysis(string(rec.Kind), string(rec.Tier), rec.Confidence)

	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("failed to encode record payload", zap.String("id", rec.ID), zap.Error(err))
		return
	}
	rec.Payload = data

	if r.repo != nil {
		if err := r.repo.Put(ctx, rec); err != nil {
			r.logger.Error("failed to store record",
				zap.String("id", rec.ID),
				zap.String("kind", string(rec.Kind)),
				zap.Error(err),
			)
		}
	}

	if r.alerts == nil || rec.Kind == domain.KindReport || !rec.Tier.AtLeast(domain.LevelHigh) {
		return
	}

	if len(summary) > maxAlertSummary {
		summary = summary[:maxAlertSummary]
	}
	alert := ports.Alert{
		RecordID:   rec.ID,
		Kind:       rec.Kind,
		Target:     rec.Target,
		Tier:       rec.Tier,
		Confidence: rec.Confidence,
		Summary:    summary,
		Timestamp:  rec.CreatedAt,
	}
	if err := r.alerts.PublishAlert(ctx, alert); err != nil {
		r.logger.Warn("failed to publish alert",
			zap.String("id", rec.ID),
			zap.String("threat_level", string(rec.Tier)),
			zap.Error(err),
		)
		return
	}
	r.logger.Info("alert published",
		zap.String("id", rec.ID),
		zap.String("threat_level", string(rec.Tier)),
	)
}
