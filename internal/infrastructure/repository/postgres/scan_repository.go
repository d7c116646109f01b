package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/lot-photo-reconciler/internal/core/domain"
)

const schemaLockID int64 = 2026101801

type ScanRepository struct {
	db *sql.DB
}

func NewScanRepository(db *sql.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

func (r *ScanRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS scans (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	image_count INTEGER NOT NULL DEFAULT 0,
	group_count INTEGER NOT NULL DEFAULT 0,
	storage_path TEXT NOT NULL,
	mode TEXT,
	result JSONB,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scans_status ON scans(status);
CREATE INDEX IF NOT EXISTS idx_scans_created_at ON scans(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ScanRepository) Create(ctx context.Context, scan *domain.Scan) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO scans (
	id, status, image_count, group_count, storage_path, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
		scan.ID, string(scan.Status), scan.ImageCount, scan.GroupCount, scan.StoragePath,
		scan.Error, scan.CreatedAt, scan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	return nil
}

func (r *ScanRepository) GetByID(ctx context.Context, id string) (*domain.Scan, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, status, image_count, group_count, storage_path, result, error_message, created_at, updated_at
FROM scans
WHERE id = $1
`, id)

	var scan domain.Scan
	var status string
	var resultRaw []byte

	err := row.Scan(
		&scan.ID, &status, &scan.ImageCount, &scan.GroupCount, &scan.StoragePath,
		&resultRaw, &scan.Error, &scan.CreatedAt, &scan.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrScanNotFound, "get scan", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan row: %w", err)
	}

	if len(resultRaw) > 0 {
		var result domain.ScanResult
		if err := json.Unmarshal(resultRaw, &result); err != nil {
			return nil, fmt.Errorf("unmarshal scan result: %w", err)
		}
		scan.Result = &result
	}
	scan.Status = domain.ScanStatus(status)
	return &scan, nil
}

func (r *ScanRepository) UpdateStatus(ctx context.Context, id string, status domain.ScanStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE scans
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update scan status: %w", err)
	}
	return requireAffected(res, "update scan status", id)
}

func (r *ScanRepository) SaveResult(ctx context.Context, id string, result domain.ScanResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal scan result: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE scans
SET result = $2, mode = $3, updated_at = $4
WHERE id = $1
`, id, resultJSON, string(result.Mode), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save scan result: %w", err)
	}
	return requireAffected(res, "save scan result", id)
}

func requireAffected(res sql.Result, operation, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrScanNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}
