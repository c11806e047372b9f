package ports

import (
	"context"

	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
)

// ScanRepository stores finished assessments keyed by their generated ID.
// Get and Delete return domain.ErrNotFound for unknown IDs.
type ScanRepository interface {
	Put(ctx context.Context, record domain.ScanRecord) error
	Get(ctx context.Context, id string) (*domain.ScanRecord, error)
	List(ctx context.Context, kind domain.Kind, limit, offset int) ([]domain.ScanRecord, error)
	Delete(ctx context.Context, id string) error
}
