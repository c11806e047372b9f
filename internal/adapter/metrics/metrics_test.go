package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("Failed to read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestInitMetrics(t *testing.T) {
	// Should be idempotent (safe to call multiple times)
	InitMetrics()
	InitMetrics()
	InitMetrics()
}

func TestRecordAnalysis(t *testing.T) {
	InitMetrics()

	before := counterValue(t, analysesTotal.WithLabelValues("phishing", "medium"))
	RecordAnalysis("phishing", "medium", 0.58)
	after := counterValue(t, analysesTotal.WithLabelValues("phishing", "medium"))

	if after != before+1 {
		t.Errorf("Expected counter to increase by 1, got %v -> %v", before, after)
	}
}

func TestRecordAbsent(t *testing.T) {
	InitMetrics()

	tests := []string{"port_scan", "reputation", "classifier", "fingerprint"}

	for _, source := range tests {
		t.Run(source, func(t *testing.T) {
			before := counterValue(t, collectorAbsentTotal.WithLabelValues(source))
			RecordAbsent(source)
			if got := counterValue(t, collectorAbsentTotal.WithLabelValues(source)); got != before+1 {
				t.Errorf("Expected %v, got %v", before+1, got)
			}
		})
	}
}

func TestRecordAPIError(t *testing.T) {
	InitMetrics()

	tests := []struct {
		client    string
		errorType string
	}{
		{"abuseipdb", "timeout"},
		{"abuseipdb", "rate_limit"},
		{"classifier", "auth"},
		{"classifier", "circuit_open"},
		{"fingerprint", "connection"},
	}

	for _, tt := range tests {
		t.Run(tt.client+"_"+tt.errorType, func(t *testing.T) {
			// Should not panic
			RecordAPIError(tt.client, tt.errorType)
		})
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	InitMetrics()

	RecordHTTPRequest("POST", "/api/v1/phishing-detect/analyze", 200, 15*time.Millisecond)
	got := counterValue(t, httpRequestsTotal.WithLabelValues("POST", "/api/v1/phishing-detect/analyze", "200"))
	if got < 1 {
		t.Errorf("Expected at least one recorded request, got %v", got)
	}
}

func TestTimer(t *testing.T) {
	InitMetrics()

	timer := StartTimer()
	time.Sleep(5 * time.Millisecond)
	timer.ObserveClassifier()

	// nil timer should not panic
	var nilTimer *Timer
	nilTimer.ObserveClassifier()
}
