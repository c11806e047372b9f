package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Boukadre/appweb-SOC-IA/internal/adapter/collector"
	"github.com/Boukadre/appweb-SOC-IA/internal/adapter/handler"
	"github.com/Boukadre/appweb-SOC-IA/internal/adapter/llm"
	"github.com/Boukadre/appweb-SOC-IA/internal/adapter/metrics"
	"github.com/Boukadre/appweb-SOC-IA/internal/adapter/notifier"
	"github.com/Boukadre/appweb-SOC-IA/internal/adapter/provider"
	"github.com/Boukadre/appweb-SOC-IA/internal/adapter/repository"
	"github.com/Boukadre/appweb-SOC-IA/internal/adapter/resilient"
	"github.com/Boukadre/appweb-SOC-IA/internal/config"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/fusion"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/keyword"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/ports"
	"github.com/Boukadre/appweb-SOC-IA/internal/service"
)

func main() {
	var logger *zap.Logger
	if strings.EqualFold(os.Getenv("ENVIRONMENT"), "development") {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	if err := run(logger); err != nil {
		logger.Fatal("socia-api exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load(logger)
	if err != nil {
		return err
	}

	metrics.InitMetrics()
	logger.Info("prometheus metrics initialized")

	components := map[string]bool{}

	// Knowledge tables
	table, err := keyword.LoadTable(cfg.KeywordsFile)
	if err != nil {
		return fmt.Errorf("load keyword table: %w", err)
	}
	catalog, err := fusion.LoadCatalog(cfg.CVECatalogFile)
	if err != nil {
		return fmt.Errorf("load CVE catalog: %w", err)
	}
	catalog.FailOpen = cfg.CVEFailOpen
	logger.Info("knowledge tables loaded", zap.Int("cve_entries", catalog.Len()))

	// Persistence
	var repo ports.ScanRepository
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := pool.Ping(context.Background()); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		pg := repository.NewPostgresRepository(pool)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		repo = pg
		components["postgres"] = true
		logger.Info("connected to postgres")
	} else {
		repo = repository.NewMemoryRepository()
		components["postgres"] = false
		logger.Warn("DATABASE_URL not set - history kept in memory only")
	}

	// Alerting
	var publishers notifier.MultiPublisher
	components["nats"] = false
	if cfg.NATSURL != "" {
		nc, err := notifier.NewNATSPublisher(cfg.NATSURL, cfg.NATSAlertSubject, logger)
		if err != nil {
			// Alerts are best effort, the API works without them
			logger.Warn("nats publisher disabled", zap.Error(err))
		} else {
			defer nc.Close() //nolint:errcheck
			publishers = append(publishers, nc)
			components["nats"] = true
		}
	}
	components["slack"] = cfg.SlackBotToken != ""
	if cfg.SlackBotToken != "" {
		publishers = append(publishers, notifier.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackChannel, cfg.SlackMentionTeam))
		logger.Info("slack notifier enabled")
	}
	var alerts ports.AlertPublisher = notifier.NopPublisher{}
	if len(publishers) > 0 {
		alerts = publishers
	}

	// Outbound integrations
	httpCfg := resilient.FromSettings(cfg.HTTP)

	reputation := provider.NewAbuseIPDBProvider(
		resilient.NewClient("abuseipdb", cfg.ExternalAPITimeout, httpCfg, logger),
		cfg.AbuseIPDBBaseURL, cfg.AbuseIPDBAPIKey, cfg.ExternalAPITimeout,
		cfg.ReputationCacheSize, cfg.ReputationCacheTTL, logger,
	)
	components["reputation"] = cfg.AbuseIPDBAPIKey != ""
	var reporter service.AbuseReporter
	if cfg.AbuseIPDBAPIKey != "" {
		reporter = reputation
	} else {
		logger.Warn("ABUSEIPDB_API_KEY not set - reputation lookups will be absent")
	}

	classifier := llm.NewChatClassifier(llm.Options{
		Enabled: cfg.ClassifierEnabled,
		APIURL:  cfg.ClassifierAPIURL,
		APIKey:  cfg.ClassifierAPIKey,
		Model:   cfg.ClassifierModel,
		Timeout: cfg.ExternalAPITimeout,
	}, resilient.NewClient("classifier", cfg.ExternalAPITimeout, httpCfg, logger), logger)
	components["classifier"] = classifier.IsEnabled()
	if !classifier.IsEnabled() {
		logger.Warn("classifier disabled - phishing analysis uses the heuristic fallback")
	}

	fingerprinter := provider.NewHTTPFingerprinter(
		resilient.NewClient("fingerprint", cfg.ExternalAPITimeout, httpCfg, logger), cfg.ExternalAPITimeout, logger)

	var names ports.NameResolver = collector.NewSystemResolver()
	components["dns"] = cfg.DNSServer != ""
	if cfg.DNSServer != "" {
		names = collector.NewDNSResolver(cfg.DNSServer, cfg.ExternalAPITimeout)
		logger.Info("using dedicated DNS server", zap.String("server", cfg.DNSServer))
	}

	// Services
	recorder := service.NewRecorder(repo, alerts, logger)
	weights := fusion.Weights{Model: cfg.FusionModelWeight, Keyword: cfg.FusionKeywordWeight}

	services := handler.Services{
		Phishing: service.NewPhishingService(classifier, keyword.NewScanner(table), weights, recorder, logger),
		Network: service.NewNetworkService(
			collector.NewTargetResolver(names, logger),
			collector.NewTCPScanner(logger),
			reputation, reporter,
			cfg.PortScanTimeout, recorder, logger,
		),
		AuthLog:  service.NewAuthLogService(reputation, recorder, logger),
		CVE:      service.NewCVEService(fingerprinter, catalog, recorder, logger),
		Password: service.NewPasswordService(logger),
		History:  service.NewHistoryService(repo),
		Reports:  service.NewReportService(repo, recorder, logger),
	}

	// HTTP router
	router := mux.NewRouter()
	handler.NewRestHandler(services, components, logger).Register(router)

	// Metrics endpoint (requires authentication)
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.Use(handler.LoggingMiddleware(logger))
	router.Use(handler.NewRateLimiter(cfg.RateLimitPerMinute).Middleware)
	router.Use(handler.AuthMiddleware(cfg.AuthToken, cfg.JWTSecret, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.RESTPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// gRPC health
	lis, err := net.Listen("tcp", cfg.GRPCListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.GRPCListenAddr, err)
	}
	grpcServer := handler.NewGrpcServer(components, logger)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("grpc health server listening", zap.String("addr", cfg.GRPCListenAddr))
		if err := grpcServer.Server().Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go func() {
		logger.Info("REST API listening", zap.String("port", cfg.RESTPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		grpcServer.Stop()
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.Stop()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
