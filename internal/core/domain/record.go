package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrNotFound        = errors.New("not found")
)

// Kind tells which analysis produced a stored record.
type Kind string

const (
	KindNetworkScan Kind = "network_scan"
	KindAuthLog     Kind = "auth_log"
	KindPhishing    Kind = "phishing"
	KindCVEScan     Kind = "cve_scan"
	KindReport      Kind = "report"
)

// IDPrefix returns the identifier prefix used for records of this kind.
func (k Kind) IDPrefix() string {
	switch k {
	case KindNetworkScan:
		return "scan"
	case KindAuthLog:
		return "ssh_audit"
	case KindPhishing:
		return "phish"
	case KindCVEScan:
		return "cve"
	case KindReport:
		return "report"
	default:
		return "rec"
	}
}

type ScanStatus string

const (
	StatusCompleted ScanStatus = "completed"
	StatusFailed    ScanStatus = "failed"
)

// ScanRecord is the envelope handed to the persistence layer.
type ScanRecord struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Target     string          `json:"target"`
	Status     ScanStatus      `json:"status"`
	Tier       ThreatLevel     `json:"threat_level"`
	Confidence float64         `json:"confidence"`
	CreatedAt  time.Time       `json:"created_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewID returns prefix + "_" + 8 hex characters, e.g. "scan_1a2b3c4d".
func NewID(prefix string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "_" + hex[:8]
}
