package ports

import (
	"context"
	"time"

	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
)

// AlertPublisher forwards high-severity assessments to external systems
type AlertPublisher interface {
	PublishAlert(ctx context.Context, alert Alert) error
}

// Alert is the message published for HIGH and CRITICAL results
type Alert struct {
	RecordID   string             `json:"record_id"`
	Kind       domain.Kind        `json:"kind"`
	Target     string             `json:"target"`
	Tier       domain.ThreatLevel `json:"threat_level"`
	Confidence float64            `json:"confidence"`
	Summary    []string           `json:"summary"`
	Timestamp  time.Time          `json:"timestamp"`
}
