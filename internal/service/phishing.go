package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Boukadre/appweb-SOC-IA/internal/adapter/llm"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/fusion"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/keyword"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/ports"
)

// PhishingAnalysis is the response of an email assessment.
type PhishingAnalysis struct {
	ID string `json:"detection_id"`
	domain.FusionResult
	Keywords   domain.KeywordScanResult `json:"keywords"`
	Evidence   []domain.Evidence        `json:"evidence"`
	AnalyzedAt time.Time                `json:"timestamp"`
}

// KeywordAnalysis is the response of a keyword-only scan.
type KeywordAnalysis struct {
	domain.KeywordScanResult
	Labels []string `json:"category_labels"`
}

type PhishingService struct {
	classifier ports.Classifier
	scanner    *keyword.Scanner
	weights    fusion.Weights
	recorder   *Recorder
	logger     *zap.Logger
}

// NewPhishingService wires the classifier and the keyword scanner. classifier may be nil.
func NewPhishingService(classifier ports.Classifier, scanner *keyword.Scanner, weights fusion.Weights, recorder *Recorder, logger *zap.Logger) *PhishingService {
	return &PhishingService{
		classifier: classifier,
		scanner:    scanner,
		weights:    weights,
		recorder:   recorder,
		logger:     logger,
	}
}

// ClassifierAvailable reports whether a model backs the analysis.
func (s *PhishingService) ClassifierAvailable() bool {
	return s.classifier != nil && s.classifier.IsEnabled()
}

// Analyze classifies the email and scans it for keywords concurrently, then
// fuses both signals. A missing classifier falls back to the heuristic path.
func (s *PhishingService) Analyze(ctx context.Context, e fusion.Email) (*PhishingAnalysis, error) {
	if strings.TrimSpace(e.Sender+e.Subject+e.Body+e.URL) == "" {
		return nil, fmt.Errorf("at least one of sender, subject, body or url is required: %w", domain.ErrInvalidInput)
	}

	var (
		model domain.Result[float64]
		kw    domain.KeywordScanResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		model = llm.ClassifyConfidence(gctx, s.classifier, e.ModelText(), s.logger)
		return nil
	})
	g.Go(func() error {
		kw = s.scanner.Scan(e.KeywordText())
		return nil
	})
	_ = g.Wait()

	modelName := ""
	if s.classifier != nil {
		modelName = s.classifier.Name()
	}
	result := fusion.AssessEmail(e, model, modelName, kw, s.scanner.Label, s.weights)

	analysis := &PhishingAnalysis{
		ID:           domain.NewID(domain.KindPhishing.IDPrefix()),
		FusionResult: result,
		Keywords:     kw,
		Evidence: []domain.Evidence{
			domain.EvidenceOf(domain.SourceClassifier, model),
			domain.EvidenceOf(domain.SourceKeywordScan, domain.Present(kw)),
		},
		AnalyzedAt: s.recorder.Now(),
	}

	s.logger.Info("phishing analysis completed",
		zap.String("id", analysis.ID),
		zap.String("threat_level", string(result.Tier)),
		zap.Float64("confidence", result.Confidence),
		zap.String("model", result.ModelUsed),
	)

	s.recorder.Record(ctx, domain.ScanRecord{
		ID:         analysis.ID,
		Kind:       domain.KindPhishing,
		Target:     phishingTarget(e),
		Status:     domain.StatusCompleted,
		Tier:       result.Tier,
		Confidence: result.Confidence,
		CreatedAt:  analysis.AnalyzedAt,
	}, analysis, result.Indicators)

	return analysis, nil
}

// ScanKeywords runs the lexical scanner alone. Nothing is stored.
func (s *PhishingService) ScanKeywords(text string) (*KeywordAnalysis, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is required: %w", domain.ErrInvalidInput)
	}
	kw := s.scanner.Scan(text)
	labels := make([]string, len(kw.Categories))
	for i, c := range kw.Categories {
		labels[i] = s.scanner.Label(c)
	}
	return &KeywordAnalysis{KeywordScanResult: kw, Labels: labels}, nil
}

func phishingTarget(e fusion.Email) string {
	switch {
	case e.Sender != "":
		return e.Sender
	case e.URL != "":
		return e.URL
	default:
		return e.Subject
	}
}
