package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
)

var schema = []string{`
	CREATE TABLE IF NOT EXISTS scan_records (
		id           TEXT PRIMARY KEY,
		kind         TEXT NOT NULL,
		target       TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL,
		threat_level TEXT NOT NULL,
		confidence   DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at   TIMESTAMPTZ NOT NULL,
		payload      JSONB NOT NULL DEFAULT '{}'::jsonb
	)`,
	`CREATE INDEX IF NOT EXISTS scan_records_kind_created_idx ON scan_records (kind, created_at DESC)`,
}

// pgxQuerier is the subset of *pgxpool.Pool the repository needs.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresRepository struct {
	db pgxQuerier
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the scan_records table when it does not exist yet.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) Put(ctx context.Context, record domain.ScanRecord) error {
	query := `
		INSERT INTO scan_records (id, kind, target, status, threat_level, confidence, created_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			threat_level = EXCLUDED.threat_level,
			confidence = EXCLUDED.confidence,
			payload = EXCLUDED.payload
	`

	payload := record.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	_, err := r.db.Exec(ctx, query,
		record.ID,
		string(record.Kind),
		record.Target,
		string(record.Status),
		string(record.Tier),
		record.Confidence,
		record.CreatedAt,
		[]byte(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to save record %s: %w", record.ID, err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*domain.ScanRecord, error) {
	query := `
		SELECT id, kind, target, status, threat_level, confidence, created_at, payload
		FROM scan_records
		WHERE id = $1
	`

	rec, err := scanRecord(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record %s: %w", id, err)
	}
	return &rec, nil
}

// List returns records newest first. An empty kind matches every kind and a
// non-positive limit returns everything after offset.
func (r *PostgresRepository) List(ctx context.Context, kind domain.Kind, limit, offset int) ([]domain.ScanRecord, error) {
	query := `
		SELECT id, kind, target, status, threat_level, confidence, created_at, payload
		FROM scan_records
		WHERE ($1 = '' OR kind = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`

	var lim any
	if limit > 0 {
		lim = limit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.Query(ctx, query, string(kind), lim, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := []domain.ScanRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM scan_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanRecord(row pgx.Row) (domain.ScanRecord, error) {
	var rec domain.ScanRecord
	var kind, status, tier string
	var payload []byte
	err := row.Scan(
		&rec.ID,
		&kind,
		&rec.Target,
		&status,
		&tier,
		&rec.Confidence,
		&rec.CreatedAt,
		&payload,
	)
	if err != nil {
		return domain.ScanRecord{}, err
	}
	rec.Kind = domain.Kind(kind)
	rec.Status = domain.ScanStatus(status)
	rec.Tier = domain.ThreatLevel(tier)
	rec.Payload = payload
	return rec, nil
}
