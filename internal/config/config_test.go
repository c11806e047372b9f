package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.RESTPort)
	assert.Equal(t, "localhost:50051", cfg.GRPCListenAddr)
	assert.Equal(t, DefaultAbuseIPDBBaseURL, cfg.AbuseIPDBBaseURL)
	assert.Equal(t, 30*time.Second, cfg.ExternalAPITimeout)
	assert.Equal(t, time.Second, cfg.PortScanTimeout)
	assert.Equal(t, 0.6, cfg.FusionModelWeight)
	assert.Equal(t, 0.4, cfg.FusionKeywordWeight)
	assert.True(t, cfg.CVEFailOpen)
	assert.False(t, cfg.ClassifierEnabled)
	assert.Equal(t, DefaultAlertSubject, cfg.NATSAlertSubject)
	assert.True(t, cfg.HTTP.CircuitBreakerEnabled)
	assert.Equal(t, uint32(5), cfg.HTTP.MaxFailures)
	assert.Equal(t, 500*time.Millisecond, cfg.HTTP.InitialInterval)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("REST_API_PORT", "9090")
	t.Setenv("CVE_FAIL_OPEN", "false")
	t.Setenv("FUSION_MODEL_WEIGHT", "0.7")
	t.Setenv("FUSION_KEYWORD_WEIGHT", "0.3")
	t.Setenv("PORT_SCAN_TIMEOUT_MS", "250")
	t.Setenv("ABUSEIPDB_BASE_URL", "http://localhost:9999/api/v2/")

	cfg, err := Load(zap.NewNop())
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "9090", cfg.RESTPort)
	assert.False(t, cfg.CVEFailOpen)
	assert.Equal(t, 0.7, cfg.FusionModelWeight)
	assert.Equal(t, 0.3, cfg.FusionKeywordWeight)
	assert.Equal(t, 250*time.Millisecond, cfg.PortScanTimeout)
	assert.Equal(t, "http://localhost:9999/api/v2", cfg.AbuseIPDBBaseURL)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			FusionModelWeight:   0.6,
			FusionKeywordWeight: 0.4,
			PortScanTimeout:     time.Second,
			ExternalAPITimeout:  30 * time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"negative model weight", func(c *Config) { c.FusionModelWeight = -0.1 }, true},
		{"zero weights", func(c *Config) { c.FusionModelWeight, c.FusionKeywordWeight = 0, 0 }, true},
		{"keyword only", func(c *Config) { c.FusionModelWeight = 0 }, false},
		{"zero scan timeout", func(c *Config) { c.PortScanTimeout = 0 }, true},
		{"scan timeout at the limit", func(c *Config) { c.PortScanTimeout = MaxPortScanTimeout }, false},
		{"scan timeout over the limit", func(c *Config) { c.PortScanTimeout = MaxPortScanTimeout + time.Millisecond }, true},
		{"zero api timeout", func(c *Config) { c.ExternalAPITimeout = 0 }, true},
		{"negative rate limit", func(c *Config) { c.RateLimitPerMinute = -1 }, true},
		{"negative retries", func(c *Config) { c.HTTP.MaxRetries = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
