package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
)

const (
	scannerUserAgent = "Mozilla/5.0 (SOC-IA Scanner)"
	maxBodyBytes     = 2 << 20
)

var (
	versionPattern   = regexp.MustCompile(`(\d+\.[\d.]+)`)
	wordpressVersion = regexp.MustCompile(`wp-includes/js/[^/"']+\?ver=([\d.]+)`)
)

// HTTPFingerprinter detects server software from response headers and page markers.
type HTTPFingerprinter struct {
	client  Doer
	timeout time.Duration
	logger  *zap.Logger
}

// NewHTTPFingerprinter builds a fingerprinter whose fetch, retries and body
// read included, never outlives timeout. 0 leaves it to the caller's context.
func NewHTTPFingerprinter(client Doer, timeout time.Duration, logger *zap.Logger) *HTTPFingerprinter {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFingerprinter{client: client, timeout: timeout, logger: logger}
}

// NormalizeURL adds https:// to bare hosts and rejects anything that is not http(s).
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: url is required", domain.ErrInvalidInput)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: malformed url %q", domain.ErrInvalidInput, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", domain.ErrInvalidInput, u.Scheme)
	}
	return u.String(), nil
}

// Fingerprint fetches the page once and reports what it recognizes.
func (f *HTTPFingerprinter) Fingerprint(ctx context.Context, target string) ([]domain.Technology, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	req.Header.Set("User-Agent", scannerUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}

	techs := DetectTechnologies(resp.Header, string(body))
	f.logger.Debug("fingerprint finished",
		zap.String("url", target),
		zap.Int("technologies", len(techs)),
	)
	return techs, nil
}

// DetectTechnologies inspects the Server and X-Powered-By headers and
// looks for WordPress asset paths in the body.
func DetectTechnologies(h http.Header, body string) []domain.Technology {
	techs := []domain.Technology{}

	if server := h.Get("Server"); server != "" {
		if name := serverName(server); name != "" {
			techs = append(techs, domain.Technology{
				Name:       name,
				Version:    firstVersion(server),
				Category:   "Web Server",
				Confidence: 1.0,
			})
		}
	}

	if powered := h.Get("X-Powered-By"); strings.Contains(powered, "PHP") {
		techs = append(techs, domain.Technology{
			Name:       "PHP",
			Version:    firstVersion(powered),
			Category:   "Programming Language",
			Confidence: 1.0,
		})
	}

	if strings.Contains(body, "wp-content") || strings.Contains(body, "wp-includes") {
		version := ""
		if m := wordpressVersion.FindStringSubmatch(body); m != nil {
			version = m[1]
		}
		techs = append(techs, domain.Technology{
			Name:       "WordPress",
			Version:    version,
			Category:   "CMS",
			Confidence: 0.95,
		})
	}

	return techs
}

// serverName keeps the product token: "Apache/2.4.49 (Unix)" gives "Apache".
func serverName(server string) string {
	name := strings.TrimSpace(server)
	if i := strings.IndexAny(name, "/ ("); i != -1 {
		name = name[:i]
	}
	return name
}

func firstVersion(s string) string {
	if m := versionPattern.FindStringSubmatch(s); m != nil {
		return strings.TrimRight(m[1], ".")
	}
	return ""
}
