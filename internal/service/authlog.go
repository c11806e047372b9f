package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/fusion"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/ports"
)

// authLogTarget names the stored record; logs have no natural target.
const authLogTarget = "auth.log"

// AuthLogAnalysis is the response of an auth log audit.
type AuthLogAnalysis struct {
	ID              string                 `json:"analysis_id"`
	TotalAttacks    int                    `json:"total_attacks"`
	UniqueAttackers int                    `json:"unique_attackers"`
	TopAttackers    []domain.Attacker      `json:"top_attackers"`
	Patterns        []domain.AttackPattern `json:"attack_patterns"`
	Tier            domain.ThreatLevel     `json:"threat_level"`
	Confidence      float64                `json:"confidence"`
	Recommendations []string               `json:"recommendations"`
	Evidence        []domain.Evidence      `json:"evidence"`
	AnalyzedAt      time.Time              `json:"timestamp"`
}

type AuthLogService struct {
	reputation ports.ReputationProvider
	recorder   *Recorder
	logger     *zap.Logger
}

// NewAuthLogService builds the auth log auditor. reputation may be nil.
func NewAuthLogService(reputation ports.ReputationProvider, recorder *Recorder, logger *zap.Logger) *AuthLogService {
	return &AuthLogService{reputation: reputation, recorder: recorder, logger: logger}
}

// Analyze extracts failed authentications from text, ranks the sources and
// enriches the top ones with reputation data.
func (s *AuthLogService) Analyze(ctx context.Context, text string) (*AuthLogAnalysis, error) {
	if len(text) > fusion.MaxAuthLogBytes {
		return nil, fmt.Errorf("auth log is %d bytes, limit is %d: %w", len(text), fusion.MaxAuthLogBytes, domain.ErrPayloadTooLarge)
	}

	summary := fusion.SummarizeAuthLog(text)
	top := fusion.TopAttackerRows(summary.Counts, summary.TotalAttacks)

	enriched := s.enrich(ctx, top)

	tier := fusion.AuthLogTier(summary.TotalAttacks, summary.UniqueAttackers, top)
	analysis := &AuthLogAnalysis{
		ID:              domain.NewID(domain.KindAuthLog.IDPrefix()),
		TotalAttacks:    summary.TotalAttacks,
		UniqueAttackers: summary.UniqueAttackers,
		TopAttackers:    top,
		Patterns:        summary.Patterns,
		Tier:            tier,
		Confidence:      fusion.AuthLogConfidence(tier),
		Recommendations: fusion.AuthLogRecommendations(summary.TotalAttacks, summary.UniqueAttackers, tier, top),
		Evidence: []domain.Evidence{
			{Source: domain.SourceAuthLog, Present: true},
			reputationEvidence(len(top), enriched),
		},
		AnalyzedAt: s.recorder.Now(),
	}

	s.logger.Info("auth log analysis completed",
		zap.String("id", analysis.ID),
		zap.Int("total_attacks", analysis.TotalAttacks),
		zap.Int("unique_attackers", analysis.UniqueAttackers),
		zap.Int("enriched", enriched),
		zap.String("threat_level", string(tier)),
	)

	alertLines := make([]string, 0, len(summary.Patterns))
	for _, p := range summary.Patterns {
		alertLines = append(alertLines, p.Description)
	}
	s.recorder.Record(context.WithoutCancel(ctx), domain.ScanRecord{
		ID:         analysis.ID,
		Kind:       domain.KindAuthLog,
		Target:     authLogTarget,
		Status:     domain.StatusCompleted,
		Tier:       tier,
		Confidence: analysis.Confidence,
		CreatedAt:  analysis.AnalyzedAt,
	}, analysis, alertLines)

	return analysis, nil
}

// enrich looks every attacker up concurrently and updates rows in place.
// A failed or late lookup leaves its row untouched. It returns the number
// enriched.
func (s *AuthLogService) enrich(ctx context.Context, top []domain.Attacker) int {
	if s.reputation == nil || len(top) == 0 {
		return 0
	}

	lctx, cancel := collectorContext(ctx)
	defer cancel()

	results := make([]domain.Result[domain.ReputationRecord], len(top))
	var g errgroup.Group
	for i := range top {
		g.Go(func() error {
			results[i] = s.reputation.LookupReputation(lctx, top[i].IP)
			return nil
		})
	}
	_ = g.Wait()

	enriched := 0
	for i, r := range results {
		if r.IsPresent() {
			enriched++
		}
		top[i] = fusion.Enrich(top[i], r)
	}
	return enriched
}

func reputationEvidence(total, enriched int) domain.Evidence {
	switch {
	case total == 0:
		return domain.Evidence{Source: domain.SourceReputation, Cause: "no attacker to enrich"}
	case enriched == 0:
		return domain.Evidence{Source: domain.SourceReputation, Cause: "no reputation lookup succeeded"}
	default:
		return domain.Evidence{Source: domain.SourceReputation, Present: true}
	}
}
