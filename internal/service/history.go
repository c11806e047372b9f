package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/ports"
)

const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 200
)

var knownKinds = map[domain.Kind]bool{
	domain.KindNetworkScan: true,
	domain.KindAuthLog:     true,
	domain.KindPhishing:    true,
	domain.KindCVEScan:     true,
	domain.KindReport:      true,
}

// ParseKind accepts an empty string, meaning every kind.
func ParseKind(s string) (domain.Kind, error) {
	k := domain.Kind(strings.ToLower(strings.TrimSpace(s)))
	if k == "" || knownKinds[k] {
		return k, nil
	}
	return "", fmt.Errorf("unknown analysis kind %q: %w", s, domain.ErrInvalidInput)
}

// HistoryService exposes stored records.
type HistoryService struct {
	repo ports.ScanRepository
}

func NewHistoryService(repo ports.ScanRepository) *HistoryService {
	return &HistoryService{repo: repo}
}

// List returns records newest first. A non-positive limit selects the
// default page size; larger limits are capped.
func (s *HistoryService) List(ctx context.Context, kind domain.Kind, limit, offset int) ([]domain.ScanRecord, error) {
	if offset < 0 {
		return nil, fmt.Errorf("offset must not be negative: %w", domain.ErrInvalidInput)
	}
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	records, err := s.repo.List(ctx, kind, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	if records == nil {
		records = []domain.ScanRecord{}
	}
	return records, nil
}

func (s *HistoryService) Get(ctx context.Context, id string) (*domain.ScanRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("id is required: %w", domain.ErrInvalidInput)
	}
	return s.repo.Get(ctx, id)
}

func (s *HistoryService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("id is required: %w", domain.ErrInvalidInput)
	}
	return s.repo.Delete(ctx, id)
}
