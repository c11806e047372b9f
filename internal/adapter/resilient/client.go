// Package resilient provides the HTTP client used for every outbound call:
// a circuit breaker around exponential-backoff retries.
package resilient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/Boukadre/appweb-SOC-IA/internal/adapter/metrics"
	"github.com/Boukadre/appweb-SOC-IA/internal/config"
)

// Client wraps an HTTP client with circuit breaker and retry logic
type Client struct {
	name    string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	config  Config
	logger  *zap.Logger
}

// Config holds configuration for the resilient client
type Config struct {
	// Circuit breaker settings
	EnableCircuitBreaker bool
	MaxFailures          uint32
	CircuitTimeout       time.Duration

	// Retry settings
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultConfig returns default configuration values
func DefaultConfig() Config {
	return Config{
		EnableCircuitBreaker: true,
		MaxFailures:          5,
		CircuitTimeout:       30 * time.Second,
		MaxRetries:           3,
		InitialInterval:      500 * time.Millisecond,
		MaxInterval:          5 * time.Second,
	}
}

// FromSettings maps the service configuration onto client settings.
func FromSettings(c config.HTTPClientConfig) Config {
	return Config{
		EnableCircuitBreaker: c.CircuitBreakerEnabled,
		MaxFailures:          c.MaxFailures,
		CircuitTimeout:       c.CircuitTimeout,
		MaxRetries:           c.MaxRetries,
		InitialInterval:      c.InitialInterval,
		MaxInterval:          c.MaxInterval,
	}
}

// NewClient creates a resilient HTTP client. name labels the breaker and the error metrics.
func NewClient(name string, timeout time.Duration, config Config, logger *zap.Logger) *Client {
	client := &http.Client{
		Timeout: timeout,
	}

	var breaker *gobreaker.CircuitBreaker
	if config.EnableCircuitBreaker {
		settings := gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    0, // Don't reset counts automatically
			Timeout:     config.CircuitTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= config.MaxFailures
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.Warn("circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
				if to == gobreaker.StateOpen {
					metrics.RecordAPIError(name, "circuit_open")
				}
			},
		}
		breaker = gobreaker.NewCircuitBreaker(settings)
	}

	return &Client{
		name:    name,
		client:  client,
		breaker: breaker,
		config:  config,
		logger:  logger,
	}
}

// Name returns the label of this client.
func (c *Client) Name() string { return c.name }

// Do executes an HTTP request with circuit breaker and retry logic.
// Any status >= 400 is returned as an *HTTPError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	// If circuit breaker is disabled, just do the request with retry
	if c.breaker == nil {
		return c.doWithRetry(req)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doWithRetry(req)
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordAPIError(c.name, "circuit_open")
			return nil, fmt.Errorf("circuit breaker is open: %w", err)
		}
		return nil, err
	}

	return result.(*http.Response), nil
}

// HTTPError is returned for responses with an error status.
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// StatusCode extracts the HTTP status from an error returned by Do, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// doWithRetry executes an HTTP request with exponential backoff retry logic
func (c *Client) doWithRetry(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var lastErr error

	// If max retries is 0, just do a single attempt
	if c.config.MaxRetries == 0 {
		resp, err := c.client.Do(req)
		if err != nil {
			c.recordConnectionError(err)
			return nil, err
		}
		if resp.StatusCode >= 400 {
			c.recordErrorFromResponse(resp)
			resp.Body.Close()
			return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
		}
		return resp, nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.config.InitialInterval
	expBackoff.MaxInterval = c.config.MaxInterval
	expBackoff.Multiplier = 2.0
	expBackoff.MaxElapsedTime = 0 // No max elapsed time, only max retries

	retryBackoff := backoff.WithContext(
		backoff.WithMaxRetries(expBackoff, uint64(c.config.MaxRetries)),
		req.Context(),
	)

	// Buffer the body once so every attempt can replay it
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		req.Body.Close()
	}

	operation := func() error {
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		var err error
		resp, err = c.client.Do(req)
		if err != nil {
			lastErr = err
			c.recordConnectionError(err)
			if c.shouldRetry(err, nil) {
				return err
			}
			return backoff.Permanent(err)
		}

		if c.shouldRetry(nil, resp) {
			lastErr = &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
			c.recordErrorFromResponse(resp)
			resp.Body.Close()
			return lastErr
		}

		// Don't retry other 4xx
		if resp.StatusCode >= 400 {
			c.recordErrorFromResponse(resp)
			resp.Body.Close()
			lastErr = &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
			return backoff.Permanent(lastErr)
		}

		return nil
	}

	if err := backoff.Retry(operation, retryBackoff); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return nil, fmt.Errorf("request failed after retries: %w", lastErr)
	}

	return resp, nil
}

// shouldRetry determines if an error or response should trigger a retry
func (c *Client) shouldRetry(err error, resp *http.Response) bool {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return false
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return true
		}
		msg := err.Error()
		return strings.Contains(msg, "connection refused") ||
			strings.Contains(msg, "connection reset") ||
			strings.Contains(msg, "EOF")
	}

	if resp != nil {
		switch resp.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
			http.StatusBadGateway,
			http.StatusInternalServerError:
			return true
		}
	}

	return false
}

func (c *Client) recordConnectionError(err error) {
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
		metrics.RecordAPIError(c.name, "timeout")
		return
	}
	metrics.RecordAPIError(c.name, "connection")
}

// recordErrorFromResponse records the appropriate error metric based on response status
func (c *Client) recordErrorFromResponse(resp *http.Response) {
	if resp == nil {
		return
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		metrics.RecordAPIError(c.name, "auth")
	case http.StatusTooManyRequests:
		metrics.RecordAPIError(c.name, "rate_limit")
	case http.StatusRequestTimeout:
		metrics.RecordAPIError(c.name, "timeout")
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		metrics.RecordAPIError(c.name, "server_error")
	default:
		metrics.RecordAPIError(c.name, "http_error")
	}
}
