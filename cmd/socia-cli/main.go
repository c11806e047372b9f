package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Boukadre/appweb-SOC-IA/internal/adapter/collector"
	"github.com/Boukadre/appweb-SOC-IA/internal/adapter/llm"
	"github.com/Boukadre/appweb-SOC-IA/internal/adapter/notifier"
	"github.com/Boukadre/appweb-SOC-IA/internal/adapter/provider"
	"github.com/Boukadre/appweb-SOC-IA/internal/adapter/repository"
	"github.com/Boukadre/appweb-SOC-IA/internal/adapter/resilient"
	"github.com/Boukadre/appweb-SOC-IA/internal/config"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/fusion"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/keyword"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/ports"
	"github.com/Boukadre/appweb-SOC-IA/internal/service"
)

// errThreat makes the process exit with status 1 without printing an error.
var errThreat = errors.New("threat level at or above high")

var (
	verbose bool
	timeout time.Duration

	logger *zap.Logger
	cfg    *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errThreat) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "socia",
	Short: "SOC-IA threat triage from the command line",
	Long: `socia runs the SOC-IA analyses locally and prints the result as JSON.

The exit status is 1 when the assessed threat level is high or critical,
so the command can gate scripts and CI jobs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = zap.NewNop()
		if verbose {
			l, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			logger = l
		}
		c, err := config.Load(logger)
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 60*time.Second, "overall timeout of the analysis")

	portsCmd.Flags().String("ports", "", "comma separated ports (default: common ports)")
	phishingCmd.Flags().String("sender", "", "sender address")
	phishingCmd.Flags().String("subject", "", "subject line")
	phishingCmd.Flags().String("body", "", "message body, - reads stdin")
	phishingCmd.Flags().String("url", "", "link contained in the message")
	lookupCmd.Flags().StringSlice("tech", nil, "technology as name:version, repeatable")

	rootCmd.AddCommand(portsCmd, phishingCmd, keywordsCmd, authLogCmd, cveCmd, lookupCmd, passwordCmd)
}

// recorder keeps CLI analyses in memory only and never alerts.
func recorder() *service.Recorder {
	return service.NewRecorder(repository.NewMemoryRepository(), notifier.NopPublisher{}, logger)
}

func reputation() *provider.AbuseIPDBProvider {
	return provider.NewAbuseIPDBProvider(
		resilient.NewClient("abuseipdb", cfg.ExternalAPITimeout, resilient.FromSettings(cfg.HTTP), logger),
		cfg.AbuseIPDBBaseURL, cfg.AbuseIPDBAPIKey, cfg.ExternalAPITimeout, 0, 0, logger,
	)
}

func withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

// printResult writes v as indented JSON and turns a high tier into errThreat.
func printResult(cmd *cobra.Command, v any, tier domain.ThreatLevel) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	if tier.AtLeast(domain.LevelHigh) {
		return errThreat
	}
	return nil
}

// readInput returns arg, or stdin when arg is "-", or the file content when
// fromFile is set.
func readInput(cmd *cobra.Command, arg string, fromFile bool) (string, error) {
	switch {
	case arg == "-":
		data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), fusion.MaxAuthLogBytes+1))
		return string(data), err
	case fromFile:
		data, err := os.ReadFile(arg)
		return string(data), err
	default:
		return arg, nil
	}
}

var portsCmd = &cobra.Command{
	Use:   "ports <target>",
	Short: "Quick port and reputation scan of a host, IP or URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		portList, _ := cmd.Flags().GetString("ports")

		var names ports.NameResolver = collector.NewSystemResolver()
		if cfg.DNSServer != "" {
			names = collector.NewDNSResolver(cfg.DNSServer, cfg.ExternalAPITimeout)
		}

		rep := reputation()
		svc := service.NewNetworkService(
			collector.NewTargetResolver(names, logger),
			collector.NewTCPScanner(logger),
			rep, nil, cfg.PortScanTimeout, recorder(), logger,
		)

		ctx, cancel := withTimeout(cmd)
		defer cancel()

		scan, err := svc.QuickScan(ctx, args[0], portList)
		if err != nil {
			return err
		}
		return printResult(cmd, scan, scan.Tier)
	},
}

var phishingCmd = &cobra.Command{
	Use:   "phishing",
	Short: "Assess an email for phishing",
	RunE: func(cmd *cobra.Command, args []string) error {
		var e fusion.Email
		e.Sender, _ = cmd.Flags().GetString("sender")
		e.Subject, _ = cmd.Flags().GetString("subject")
		e.URL, _ = cmd.Flags().GetString("url")
		body, _ := cmd.Flags().GetString("body")
		body, err := readInput(cmd, body, false)
		if err != nil {
			return err
		}
		e.Body = body

		table, err := keyword.LoadTable(cfg.KeywordsFile)
		if err != nil {
			return err
		}
		classifier := llm.NewChatClassifier(llm.Options{
			Enabled: cfg.ClassifierEnabled,
			APIURL:  cfg.ClassifierAPIURL,
			APIKey:  cfg.ClassifierAPIKey,
			Model:   cfg.ClassifierModel,
			Timeout: cfg.ExternalAPITimeout,
		}, resilient.NewClient("classifier", cfg.ExternalAPITimeout, resilient.FromSettings(cfg.HTTP), logger), logger)

		svc := service.NewPhishingService(classifier, keyword.NewScanner(table),
			fusion.Weights{Model: cfg.FusionModelWeight, Keyword: cfg.FusionKeywordWeight}, recorder(), logger)

		ctx, cancel := withTimeout(cmd)
		defer cancel()

		analysis, err := svc.Analyze(ctx, e)
		if err != nil {
			return err
		}
		return printResult(cmd, analysis, analysis.Tier)
	},
}

var keywordsCmd = &cobra.Command{
	Use:   "keywords <text|->",
	Short: "Scan text against the phishing keyword table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(cmd, args[0], false)
		if err != nil {
			return err
		}
		table, err := keyword.LoadTable(cfg.KeywordsFile)
		if err != nil {
			return err
		}
		svc := service.NewPhishingService(nil, keyword.NewScanner(table), fusion.DefaultWeights(), recorder(), logger)
		result, err := svc.ScanKeywords(text)
		if err != nil {
			return err
		}
		return printResult(cmd, result, domain.LevelLow)
	},
}

var authLogCmd = &cobra.Command{
	Use:   "authlog <file|->",
	Short: "Summarize failed authentications in an auth.log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(cmd, args[0], args[0] != "-")
		if err != nil {
			return err
		}

		svc := service.NewAuthLogService(reputation(), recorder(), logger)

		ctx, cancel := withTimeout(cmd)
		defer cancel()

		analysis, err := svc.Analyze(ctx, text)
		if err != nil {
			return err
		}
		return printResult(cmd, analysis, analysis.Tier)
	},
}

func catalog() (*fusion.Catalog, error) {
	c, err := fusion.LoadCatalog(cfg.CVECatalogFile)
	if err != nil {
		return nil, err
	}
	c.FailOpen = cfg.CVEFailOpen
	return c, nil
}

var cveCmd = &cobra.Command{
	Use:   "cve <url>",
	Short: "Fingerprint a website and list known CVEs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := catalog()
		if err != nil {
			return err
		}
		fp := provider.NewHTTPFingerprinter(
			resilient.NewClient("fingerprint", cfg.ExternalAPITimeout, resilient.FromSettings(cfg.HTTP), logger), cfg.ExternalAPITimeout, logger)
		svc := service.NewCVEService(fp, c, recorder(), logger)

		ctx, cancel := withTimeout(cmd)
		defer cancel()

		scan, err := svc.Scan(ctx, args[0])
		if err != nil {
			return err
		}
		return printResult(cmd, scan, scan.OverallRisk)
	},
}

var lookupCmd = &cobra.Command{
	Use:   "lookup --tech nginx:1.18.0 [--tech ...]",
	Short: "List known CVEs for technologies without fetching anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetStringSlice("tech")
		techs := make([]domain.Technology, 0, len(raw))
		for _, t := range raw {
			name, version, _ := strings.Cut(t, ":")
			techs = append(techs, domain.Technology{Name: name, Version: version, Confidence: 1})
		}

		c, err := catalog()
		if err != nil {
			return err
		}
		svc := service.NewCVEService(nil, c, recorder(), logger)
		report, err := svc.Lookup(techs)
		if err != nil {
			return err
		}
		return printResult(cmd, report, report.OverallRisk)
	},
}

var passwordCmd = &cobra.Command{
	Use:   "password <password|->",
	Short: "Estimate password strength",
	Long:  "Estimate password strength. Pass - to read the password from stdin and keep it out of shell history.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := readInput(cmd, args[0], false)
		if err != nil {
			return err
		}
		pw = strings.TrimRight(pw, "\r\n")

		analysis, err := service.NewPasswordService(logger).Analyze(pw)
		if err != nil {
			return err
		}
		return printResult(cmd, analysis, domain.LevelLow)
	},
}
