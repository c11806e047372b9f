package collector

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/ports"
)

// SystemResolver resolves through the host's resolver configuration.
type SystemResolver struct {
	resolver *net.Resolver
}

func NewSystemResolver() *SystemResolver {
	return &SystemResolver{resolver: net.DefaultResolver}
}

func (r *SystemResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	return r.resolver.LookupHost(ctx, host)
}

// DNSResolver sends A queries straight to a configured server, e.g. "1.1.1.1:53".
type DNSResolver struct {
	server string
	client *dns.Client
}

func NewDNSResolver(server string, timeout time.Duration) *DNSResolver {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	return &DNSResolver{
		server: server,
		client: &dns.Client{Timeout: timeout},
	}
}

func (r *DNSResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)
	m.RecursionDesired = true

	resp, _, err := r.client.ExchangeContext(ctx, m, r.server)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.server, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("query %s: %s", host, dns.RcodeToString[resp.Rcode])
	}

	var addrs []string
	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			addrs = append(addrs, a.A.String())
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no A record for %s", host)
	}
	return addrs, nil
}

// TargetResolver turns a scan target (IP, host name or URL) into an address.
type TargetResolver struct {
	names  ports.NameResolver
	logger *zap.Logger
}

func NewTargetResolver(names ports.NameResolver, logger *zap.Logger) *TargetResolver {
	return &TargetResolver{names: names, logger: logger}
}

// Resolve returns an IPv4 literal unchanged. Other targets lose their scheme
// and path and are looked up; on failure the original target is returned.
func (r *TargetResolver) Resolve(ctx context.Context, target string) string {
	if domain.IsIPv4Literal(target) {
		return target
	}
	host := domain.HostFromTarget(target)
	if host == "" {
		return target
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if domain.IsIPv4Literal(host) {
		return host
	}

	addrs, err := r.names.LookupHost(ctx, host)
	if err != nil || len(addrs) == 0 {
		r.logger.Warn("target resolution failed",
			zap.String("target", target),
			zap.String("cause", causeOf(err)),
		)
		return target
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			return a
		}
	}
	return addrs[0]
}

func causeOf(err error) string {
	if err == nil {
		return "no address"
	}
	return strings.TrimSpace(err.Error())
}
