package ports

import (
	"context"
	"time"

	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
)

// PortScanner checks TCP reachability. It never fails; unreachable ports are
// simply left out of the result, which keeps input order.
type PortScanner interface {
	ScanPorts(ctx context.Context, address string, ports []int, timeout time.Duration) []int
}

type NameResolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// ReputationProvider looks up the abuse reputation of an IP address.
// Every failure is reported as an absent result.
type ReputationProvider interface {
	LookupReputation(ctx context.Context, address string) domain.Result[domain.ReputationRecord]
	Name() string
}

// Classification is the raw output of a text classifier.
type Classification struct {
	Label       string
	Probability float64
}

// Classifier wraps an external text classification model.
type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
	Name() string
	IsEnabled() bool
}

// Fingerprinter detects the technologies served at a URL.
type Fingerprinter interface {
	Fingerprint(ctx context.Context, url string) ([]domain.Technology, error)
}
