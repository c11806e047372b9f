package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/Boukadre/appweb-SOC-IA/internal/adapter/metrics"
	"github.com/Boukadre/appweb-SOC-IA/internal/adapter/resilient"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
)

const maxAgeInDays = 90

// Doer is satisfied by *http.Client and *resilient.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type AbuseIPDBProvider struct {
	client  Doer
	baseURL string
	apiKey  string
	timeout time.Duration
	cache   *expirable.LRU[string, domain.ReputationRecord]
	logger  *zap.Logger
}

// NewAbuseIPDBProvider builds a reputation provider. timeout bounds a whole
// call, retries included; 0 leaves it to the caller's context. A cacheSize
// of 0 disables caching.
func NewAbuseIPDBProvider(client Doer, baseURL, apiKey string, timeout time.Duration, cacheSize int, cacheTTL time.Duration, logger *zap.Logger) *AbuseIPDBProvider {
	if client == nil {
		client = http.DefaultClient
	}
	p := &AbuseIPDBProvider{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		logger:  logger,
	}
	if cacheSize > 0 {
		p.cache = expirable.NewLRU[string, domain.ReputationRecord](cacheSize, nil, cacheTTL)
	}
	return p
}

func (p *AbuseIPDBProvider) Name() string {
	return "abuseipdb"
}

type abuseCheckResponse struct {
	Data struct {
		IPAddress            string  `json:"ipAddress"`
		AbuseConfidenceScore float64 `json:"abuseConfidenceScore"`
		CountryCode          string  `json:"countryCode"`
		IsWhitelisted        bool    `json:"isWhitelisted"`
		TotalReports         int     `json:"totalReports"`
		ISP                  string  `json:"isp"`
		Domain               string  `json:"domain"`
	} `json:"data"`
}

// LookupReputation queries /check. Every failure degrades to an absent result.
func (p *AbuseIPDBProvider) LookupReputation(ctx context.Context, address string) domain.Result[domain.ReputationRecord] {
	if p.cache != nil {
		if rec, ok := p.cache.Get(address); ok {
			return domain.Present(rec)
		}
	}

	rec, err := p.check(ctx, address)
	if err != nil {
		cause := p.causeFor(err)
		p.logger.Warn("reputation lookup unavailable",
			zap.String("provider", p.Name()),
			zap.String("address", address),
			zap.String("cause", cause),
		)
		metrics.RecordAbsent(string(domain.SourceReputation))
		return domain.Absent[domain.ReputationRecord](cause)
	}

	if p.cache != nil {
		p.cache.Add(address, rec)
	}
	return domain.Present(rec)
}

var errMissingKey = errors.New("API key is missing")

func (p *AbuseIPDBProvider) check(ctx context.Context, address string) (domain.ReputationRecord, error) {
	if p.apiKey == "" {
		return domain.ReputationRecord{}, errMissingKey
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	params := url.Values{}
	params.Set("ipAddress", address)
	params.Set("maxAgeInDays", strconv.Itoa(maxAgeInDays))
	params.Set("verbose", "")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/check?"+params.Encode(), nil)
	if err != nil {
		return domain.ReputationRecord{}, err
	}
	req.Header.Set("Key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.ReputationRecord{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.ReputationRecord{}, &resilient.HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var data abuseCheckResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		metrics.RecordAPIError(p.Name(), "parse")
		return domain.ReputationRecord{}, fmt.Errorf("failed to decode AbuseIPDB json: %w", err)
	}

	country := data.Data.CountryCode
	if country == "" {
		country = "Unknown"
	}
	return domain.ReputationRecord{
		AbuseScore:    domain.Clamp(data.Data.AbuseConfidenceScore, 0, 100),
		Country:       country,
		IsWhitelisted: data.Data.IsWhitelisted,
		TotalReports:  data.Data.TotalReports,
		ISP:           data.Data.ISP,
		Domain:        data.Data.Domain,
	}, nil
}

func (p *AbuseIPDBProvider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

func (p *AbuseIPDBProvider) causeFor(err error) string {
	switch {
	case errors.Is(err, errMissingKey):
		return "missing API key"
	case errors.Is(err, context.DeadlineExceeded), strings.Contains(err.Error(), "Client.Timeout"):
		return "timeout"
	}
	switch resilient.StatusCode(err) {
	case 0:
		return err.Error()
	case http.StatusUnauthorized, http.StatusForbidden:
		return "invalid API key"
	case http.StatusTooManyRequests:
		return "rate limit exceeded"
	default:
		return fmt.Sprintf("HTTP %d", resilient.StatusCode(err))
	}
}

// ReportIP submits an abuse report for ip under the given AbuseIPDB category ids.
func (p *AbuseIPDBProvider) ReportIP(ctx context.Context, ip string, categories []int, comment string) error {
	if p.apiKey == "" {
		return errMissingKey
	}
	if len(categories) == 0 {
		return fmt.Errorf("%w: at least one category is required", domain.ErrInvalidInput)
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	cats := make([]string, len(categories))
	for i, c := range categories {
		cats[i] = strconv.Itoa(c)
	}
	form := url.Values{}
	form.Set("ip", ip)
	form.Set("categories", strings.Join(cats, ","))
	form.Set("comment", comment)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/report", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Key", p.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("report %s: %w", ip, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("report %s: AbuseIPDB status %d", ip, resp.StatusCode)
	}
	if p.cache != nil {
		p.cache.Remove(ip)
	}
	return nil
}
