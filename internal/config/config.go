// Package config loads service settings from an optional .env file, an
// optional configs/socia.yaml file and the process environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	DefaultAbuseIPDBBaseURL = "https://api.abuseipdb.com/api/v2"
	DefaultAlertSubject     = "socia.alerts"

	// MaxPortScanTimeout keeps a full custom port list, dialed in rounds,
	// inside the analysis deadline.
	MaxPortScanTimeout = 10 * time.Second
)

// Config holds every tunable of the API and the CLI.
type Config struct {
	Environment string

	RESTPort           string
	GRPCListenAddr     string
	AuthToken          string
	JWTSecret          string
	RateLimitPerMinute int

	DatabaseURL      string
	NATSURL          string
	NATSAlertSubject string

	SlackBotToken    string
	SlackChannel     string
	SlackMentionTeam string

	AbuseIPDBAPIKey     string
	AbuseIPDBBaseURL    string
	ExternalAPITimeout  time.Duration
	ReputationCacheSize int
	ReputationCacheTTL  time.Duration

	PortScanTimeout time.Duration
	DNSServer       string

	KeywordsFile   string
	CVECatalogFile string
	CVEFailOpen    bool

	FusionModelWeight   float64
	FusionKeywordWeight float64

	ClassifierEnabled bool
	ClassifierAPIURL  string
	ClassifierAPIKey  string
	ClassifierModel   string

	HTTP HTTPClientConfig
}

// HTTPClientConfig configures the circuit breaker and retries shared by outbound clients.
type HTTPClientConfig struct {
	CircuitBreakerEnabled bool
	MaxFailures           uint32
	CircuitTimeout        time.Duration
	MaxRetries            int
	InitialInterval       time.Duration
	MaxInterval           time.Duration
}

// IsDevelopment reports whether the service runs with development logging.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "production")

	v.SetDefault("rest_api_port", "8000")
	v.SetDefault("grpc_listen_addr", "localhost:50051")
	v.SetDefault("rest_api_auth_token", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("rate_limit_per_minute", 60)

	v.SetDefault("database_url", "")
	v.SetDefault("nats_url", "")
	v.SetDefault("nats_alert_subject", DefaultAlertSubject)

	v.SetDefault("slack_bot_token", "")
	v.SetDefault("slack_channel", "")
	v.SetDefault("slack_mention_team", "")

	v.SetDefault("abuseipdb_api_key", "")
	v.SetDefault("abuseipdb_base_url", DefaultAbuseIPDBBaseURL)
	v.SetDefault("external_api_timeout_seconds", 30)
	v.SetDefault("reputation_cache_size", 1024)
	v.SetDefault("reputation_cache_ttl_minutes", 60)

	v.SetDefault("port_scan_timeout_ms", 1000)
	v.SetDefault("dns_server", "")

	v.SetDefault("keywords_file", "")
	v.SetDefault("cve_catalog_file", "")
	v.SetDefault("cve_fail_open", true)

	v.SetDefault("fusion_model_weight", 0.6)
	v.SetDefault("fusion_keyword_weight", 0.4)

	v.SetDefault("classifier_enabled", false)
	v.SetDefault("classifier_api_url", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("classifier_api_key", "")
	v.SetDefault("classifier_model", "gpt-4o-mini")

	v.SetDefault("http_circuit_breaker_enabled", true)
	v.SetDefault("http_circuit_breaker_max_failures", 5)
	v.SetDefault("http_circuit_breaker_timeout_seconds", 30)
	v.SetDefault("http_retry_max_attempts", 3)
	v.SetDefault("http_retry_initial_interval_ms", 500)
	v.SetDefault("http_retry_max_interval_ms", 5000)
}

// Load reads the configuration. Missing .env and config files are not errors.
func Load(logger *zap.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded", zap.Error(err))
	}

	v := viper.New()
	v.SetConfigName("socia")
	v.SetConfigType("yaml")
	v.AddConfigPath("configs")
	v.AddConfigPath(".")
	setDefaults(v)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		logger.Debug("no config file found, using defaults and env vars")
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Environment: v.GetString("environment"),

		RESTPort:           v.GetString("rest_api_port"),
		GRPCListenAddr:     v.GetString("grpc_listen_addr"),
		AuthToken:          v.GetString("rest_api_auth_token"),
		JWTSecret:          v.GetString("jwt_secret"),
		RateLimitPerMinute: v.GetInt("rate_limit_per_minute"),

		DatabaseURL:      v.GetString("database_url"),
		NATSURL:          v.GetString("nats_url"),
		NATSAlertSubject: v.GetString("nats_alert_subject"),

		SlackBotToken:    v.GetString("slack_bot_token"),
		SlackChannel:     v.GetString("slack_channel"),
		SlackMentionTeam: v.GetString("slack_mention_team"),

		AbuseIPDBAPIKey:     v.GetString("abuseipdb_api_key"),
		AbuseIPDBBaseURL:    strings.TrimRight(v.GetString("abuseipdb_base_url"), "/"),
		ExternalAPITimeout:  time.Duration(v.GetInt("external_api_timeout_seconds")) * time.Second,
		ReputationCacheSize: v.GetInt("reputation_cache_size"),
		ReputationCacheTTL:  time.Duration(v.GetInt("reputation_cache_ttl_minutes")) * time.Minute,

		PortScanTimeout: time.Duration(v.GetInt("port_scan_timeout_ms")) * time.Millisecond,
		DNSServer:       v.GetString("dns_server"),

		KeywordsFile:   v.GetString("keywords_file"),
		CVECatalogFile: v.GetString("cve_catalog_file"),
		CVEFailOpen:    v.GetBool("cve_fail_open"),

		FusionModelWeight:   v.GetFloat64("fusion_model_weight"),
		FusionKeywordWeight: v.GetFloat64("fusion_keyword_weight"),

		ClassifierEnabled: v.GetBool("classifier_enabled"),
		ClassifierAPIURL:  v.GetString("classifier_api_url"),
		ClassifierAPIKey:  v.GetString("classifier_api_key"),
		ClassifierModel:   v.GetString("classifier_model"),

		HTTP: HTTPClientConfig{
			CircuitBreakerEnabled: v.GetBool("http_circuit_breaker_enabled"),
			MaxFailures:           uint32(v.GetInt("http_circuit_breaker_max_failures")),
			CircuitTimeout:        time.Duration(v.GetInt("http_circuit_breaker_timeout_seconds")) * time.Second,
			MaxRetries:            v.GetInt("http_retry_max_attempts"),
			InitialInterval:       time.Duration(v.GetInt("http_retry_initial_interval_ms")) * time.Millisecond,
			MaxInterval:           time.Duration(v.GetInt("http_retry_max_interval_ms")) * time.Millisecond,
		},
	}
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.FusionModelWeight < 0 || c.FusionKeywordWeight < 0 {
		return fmt.Errorf("fusion weights must not be negative (model=%v, keyword=%v)", c.FusionModelWeight, c.FusionKeywordWeight)
	}
	if c.FusionModelWeight+c.FusionKeywordWeight == 0 {
		return errors.New("fusion weights must not both be zero")
	}
	if c.PortScanTimeout <= 0 {
		return fmt.Errorf("PORT_SCAN_TIMEOUT_MS must be positive")
	}
	if c.PortScanTimeout > MaxPortScanTimeout {
		return fmt.Errorf("PORT_SCAN_TIMEOUT_MS must not exceed %d", MaxPortScanTimeout.Milliseconds())
	}
	if c.ExternalAPITimeout <= 0 {
		return fmt.Errorf("EXTERNAL_API_TIMEOUT_SECONDS must be positive")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("HTTP_RETRY_MAX_ATTEMPTS must not be negative")
	}
	return nil
}
