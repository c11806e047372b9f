package service

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Boukadre/appweb-SOC-IA/internal/adapter/collector"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/fusion"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/ports"
)

// TargetResolver turns a host, URL or address into the address to probe.
type TargetResolver interface {
	Resolve(ctx context.Context, target string) string
}

// AbuseReporter files abuse reports for an address.
type AbuseReporter interface {
	ReportIP(ctx context.Context, ip string, categories []int, comment string) error
}

// NetworkScan is the response of a quick network scan.
type NetworkScan struct {
	ID         string                   `json:"scan_id"`
	Status     domain.ScanStatus        `json:"status"`
	Target     string                   `json:"target"`
	ResolvedIP string                   `json:"resolved_ip"`
	OpenPorts  []int                    `json:"open_ports"`
	Findings   []domain.Finding         `json:"vulnerabilities"`
	Reputation *domain.ReputationRecord `json:"reputation"`
	domain.FusionResult
	Evidence  []domain.Evidence `json:"evidence"`
	ScannedAt time.Time         `json:"timestamp"`
}

type NetworkService struct {
	resolver    TargetResolver
	scanner     ports.PortScanner
	reputation  ports.ReputationProvider
	reporter    AbuseReporter
	portTimeout time.Duration
	recorder    *Recorder
	logger      *zap.Logger
}

// NewNetworkService wires the collectors. reputation and reporter may be nil.
func NewNetworkService(resolver TargetResolver, scanner ports.PortScanner, reputation ports.ReputationProvider, reporter AbuseReporter, portTimeout time.Duration, recorder *Recorder, logger *zap.Logger) *NetworkService {
	return &NetworkService{
		resolver:    resolver,
		scanner:     scanner,
		reputation:  reputation,
		reporter:    reporter,
		portTimeout: portTimeout,
		recorder:    recorder,
		logger:      logger,
	}
}

// QuickScan resolves target, probes ports and looks up the address
// reputation concurrently, then fuses the results. An empty port list means
// the common port set.
func (s *NetworkService) QuickScan(ctx context.Context, target, portList string) (*NetworkScan, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fmt.Errorf("target is required: %w", domain.ErrInvalidInput)
	}

	portsToScan := fusion.CommonPorts
	if strings.TrimSpace(portList) != "" {
		parsed, err := collector.ParsePortList(portList)
		if err != nil {
			return nil, err
		}
		portsToScan = parsed
	}

	address := s.resolver.Resolve(ctx, target)

	var (
		open        []int
		interrupted error
		rep         domain.Result[domain.ReputationRecord]
	)
	var g errgroup.Group
	g.Go(func() error {
		pctx, cancel := collectorContext(ctx)
		defer cancel()
		open = s.scanner.ScanPorts(pctx, address, portsToScan, s.portTimeout)
		interrupted = pctx.Err()
		return nil
	})
	g.Go(func() error {
		rctx, cancel := collectorContext(ctx)
		defer cancel()
		rep = s.lookup(rctx, address)
		return nil
	})
	_ = g.Wait()
	if open == nil {
		open = []int{}
	}

	result, findings := fusion.FuseNetworkSignals(open, rep)
	scan := &NetworkScan{
		ID:           domain.NewID(domain.KindNetworkScan.IDPrefix()),
		Status:       domain.StatusCompleted,
		Target:       target,
		ResolvedIP:   address,
		OpenPorts:    open,
		Findings:     findings,
		FusionResult: result,
		ScannedAt:    s.recorder.Now(),
	}

	// Ports still queued or dialing when the deadline hit were never checked,
	// so the port list is partial. What was found is kept.
	if interrupted != nil {
		msg := "Scan failed: port scan interrupted (" + interrupted.Error() + ")"
		scan.Status = domain.StatusFailed
		scan.Findings = append(scan.Findings, domain.Finding{Description: msg, Severity: domain.LevelLow})
		scan.Indicators = append([]string{msg}, scan.Indicators...)
	}

	if record, ok := rep.Get(); ok {
		scan.Reputation = &record
	}
	scan.Evidence = []domain.Evidence{
		domain.EvidenceOf(domain.SourcePortScan, domain.Present(open)),
		domain.EvidenceOf(domain.SourceReputation, rep),
	}

	s.logger.Info("network scan completed",
		zap.String("id", scan.ID),
		zap.String("target", target),
		zap.String("address", address),
		zap.String("status", string(scan.Status)),
		zap.Ints("open_ports", scan.OpenPorts),
		zap.String("threat_level", string(scan.Tier)),
	)

	// A detached context keeps the record even when the client went away
	s.recorder.Record(context.WithoutCancel(ctx), domain.ScanRecord{
		ID:         scan.ID,
		Kind:       domain.KindNetworkScan,
		Target:     target,
		Status:     scan.Status,
		Tier:       scan.Tier,
		Confidence: scan.Confidence,
		CreatedAt:  scan.ScannedAt,
	}, scan, scan.Indicators)

	return scan, nil
}

// lookup only queries reputation for literal IPv4 addresses.
func (s *NetworkService) lookup(ctx context.Context, address string) domain.Result[domain.ReputationRecord] {
	if s.reputation == nil {
		return domain.Absent[domain.ReputationRecord]("no reputation provider")
	}
	if !domain.IsIPv4Literal(address) {
		return domain.Absent[domain.ReputationRecord]("target did not resolve to an IPv4 address")
	}
	return s.reputation.LookupReputation(ctx, address)
}

// ReportAddress files an abuse report for ip with the reputation provider.
func (s *NetworkService) ReportAddress(ctx context.Context, ip string, categories []int, comment string) error {
	if net.ParseIP(strings.TrimSpace(ip)) == nil {
		return fmt.Errorf("invalid IP address %q: %w", ip, domain.ErrInvalidInput)
	}
	if s.reporter == nil {
		return fmt.Errorf("abuse reporting is not configured: %w", domain.ErrInvalidInput)
	}
	if err := s.reporter.ReportIP(ctx, strings.TrimSpace(ip), categories, comment); err != nil {
		return fmt.Errorf("report %s: %w", ip, err)
	}
	s.logger.Info("abuse report filed", zap.String("ip", ip), zap.Ints("categories", categories))
	return nil
}
