// Package collector gathers network evidence: TCP reachability and target
// name resolution.
package collector

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
)

// DefaultDialTimeout bounds each connection attempt when the caller passes none.
const DefaultDialTimeout = time.Second

const (
	// maxInFlight caps concurrent dials per scan so a long list cannot
	// exhaust file descriptors. Ports beyond it wait for a free slot.
	maxInFlight = 256

	// MaxPorts bounds a custom port list. A full list needs
	// MaxPorts/maxInFlight rounds of dials.
	MaxPorts = 1024
)

// TCPScanner checks reachability with plain TCP connects.
type TCPScanner struct {
	logger *zap.Logger
}

func NewTCPScanner(logger *zap.Logger) *TCPScanner {
	return &TCPScanner{logger: logger}
}

// ScanPorts returns the ports from the list that accepted a connection,
// in input order. Any dial error counts as closed.
func (s *TCPScanner) ScanPorts(ctx context.Context, address string, ports []int, timeout time.Duration) []int {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	open := make([]bool, len(ports))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight)

	for i, port := range ports {
		g.Go(func() error {
			open[i] = s.probe(gctx, address, port, timeout)
			return nil
		})
	}
	_ = g.Wait()

	result := make([]int, 0, len(ports))
	for i, port := range ports {
		if open[i] {
			result = append(result, port)
		}
	}

	s.logger.Debug("port scan finished",
		zap.String("address", address),
		zap.Int("probed", len(ports)),
		zap.Ints("open", result),
	)
	return result
}

func (s *TCPScanner) probe(ctx context.Context, address string, port int, timeout time.Duration) bool {
	if port < 1 || port > 65535 {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(address, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// ParsePortList parses a comma separated port list such as "22, 80,443".
// An empty string yields nil so callers fall back to their default set.
// Lists longer than MaxPorts distinct ports are rejected.
func ParsePortList(s string) ([]int, error) {
	var out []int
	seen := make(map[int]struct{})
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		port, err := strconv.Atoi(field)
		if err != nil || port < 1 || port > 65535 {
			return nil, fmt.Errorf("%w: invalid port %q", domain.ErrInvalidInput, field)
		}
		if _, dup := seen[port]; dup {
			continue
		}
		if len(out) == MaxPorts {
			return nil, fmt.Errorf("%w: more than %d ports", domain.ErrInvalidInput, MaxPorts)
		}
		seen[port] = struct{}{}
		out = append(out, port)
	}
	return out, nil
}
