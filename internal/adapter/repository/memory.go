// Package repository persists scan records in memory or in PostgreSQL.
package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
)

// MemoryRepository keeps records in process. It is the default when no
// DATABASE_URL is configured.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]domain.ScanRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]domain.ScanRecord)}
}

func (r *MemoryRepository) Put(ctx context.Context, record domain.ScanRecord) error {
	if record.ID == "" {
		return fmt.Errorf("%w: record id is required", domain.ErrInvalidInput)
	}
	record.Payload = slices.Clone(record.Payload)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.ID] = record
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*domain.ScanRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
	}
	rec.Payload = slices.Clone(rec.Payload)
	return &rec, nil
}

// List mirrors PostgresRepository.List: newest first, empty kind matches all.
func (r *MemoryRepository) List(ctx context.Context, kind domain.Kind, limit, offset int) ([]domain.ScanRecord, error) {
	r.mu.RLock()
	out := make([]domain.ScanRecord, 0, len(r.records))
	for _, rec := range r.records {
		if kind == "" || rec.Kind == kind {
			out = append(out, rec)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.ScanRecord) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return []domain.ScanRecord{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
	}
	delete(r.records, id)
	return nil
}
