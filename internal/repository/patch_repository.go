package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lewtec/mosaico/internal/domain"
)

const patchColumns = "id, image_path, parent_id, min_x, min_y, max_x, max_y, ingested_at"

// PatchRepository implements domain.PatchRepository on the export database
type PatchRepository struct {
	db DBTX
}

// NewPatchRepository creates a new PatchRepository
func NewPatchRepository(db *sql.DB) *PatchRepository {
	return &PatchRepository{db: db}
}

// NewPatchRepositoryWithTx creates a new PatchRepository with a transaction
func NewPatchRepositoryWithTx(tx *sql.Tx) *PatchRepository {
	return &PatchRepository{db: tx}
}

// Upsert creates a patch record or refreshes its path, parent and bounds
func (r *PatchRepository) Upsert(ctx context.Context, patch domain.ExportedPatch) (*domain.ExportedPatch, error) {
	row := r.db.QueryRowContext(ctx, `
INSERT INTO patches (id, image_path, parent_id, min_x, min_y, max_x, max_y)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  image_path = excluded.image_path,
  parent_id = excluded.parent_id,
  min_x = excluded.min_x,
  min_y = excluded.min_y,
  max_x = excluded.max_x,
  max_y = excluded.max_y
RETURNING `+patchColumns,
		patch.ID, patch.ImagePath, patch.ParentID,
		patch.Bounds.MinX, patch.Bounds.MinY, patch.Bounds.MaxX, patch.Bounds.MaxY,
	)
	return scanPatch(row)
}

// GetByID retrieves a patch by its row key
func (r *PatchRepository) GetByID(ctx context.Context, id string) (*domain.ExportedPatch, error) {
	p, err := scanPatch(r.db.QueryRowContext(ctx, "SELECT "+patchColumns+" FROM patches WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// List retrieves all patches
func (r *PatchRepository) List(ctx context.Context) ([]*domain.ExportedPatch, error) {
	return r.list(ctx, "SELECT "+patchColumns+" FROM patches ORDER BY id")
}

// ListByParent retrieves the patches cut from one parent image
func (r *PatchRepository) ListByParent(ctx context.Context, parentID string) ([]*domain.ExportedPatch, error) {
	return r.list(ctx, "SELECT "+patchColumns+" FROM patches WHERE parent_id = ? ORDER BY min_y, min_x", parentID)
}

func (r *PatchRepository) list(ctx context.Context, query string, args ...any) ([]*domain.ExportedPatch, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []*domain.ExportedPatch
	for rows.Next() {
		p, err := scanPatch(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// Count returns the total number of patches
func (r *PatchRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM patches").Scan(&count)
	return count, err
}

// Delete removes a patch and, by cascade, its annotations
func (r *PatchRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM patches WHERE id = ?", id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPatch(row scanner) (*domain.ExportedPatch, error) {
	var (
		p          domain.ExportedPatch
		ingestedAt timestamp
	)
	err := row.Scan(&p.ID, &p.ImagePath, &p.ParentID,
		&p.Bounds.MinX, &p.Bounds.MinY, &p.Bounds.MaxX, &p.Bounds.MaxY, &ingestedAt)
	if err != nil {
		return nil, err
	}
	p.IngestedAt = ingestedAt.Time
	return &p, nil
}

// Verify that PatchRepository implements domain.PatchRepository
var _ domain.PatchRepository = (*PatchRepository)(nil)
