package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lewtec/mosaico/internal/domain"
)

const annotationColumns = "id, patch_id, username, task, mode, label, annotated_at"

// AnnotationRepository implements domain.AnnotationRepository on the export database
type AnnotationRepository struct {
	db DBTX
}

// NewAnnotationRepository creates a new AnnotationRepository
func NewAnnotationRepository(db *sql.DB) *AnnotationRepository {
	return &AnnotationRepository{db: db}
}

// NewAnnotationRepositoryWithTx creates a new AnnotationRepository with a transaction
func NewAnnotationRepositoryWithTx(tx *sql.Tx) *AnnotationRepository {
	return &AnnotationRepository{db: tx}
}

// Upsert creates or updates an annotation: one label per patch, user, task and mode
func (r *AnnotationRepository) Upsert(ctx context.Context, ann domain.Annotation) (*domain.Annotation, error) {
	row := r.db.QueryRowContext(ctx, `
INSERT INTO annotations (patch_id, username, task, mode, label)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(patch_id, username, task, mode) DO UPDATE SET
  label = excluded.label,
  annotated_at = CURRENT_TIMESTAMP
RETURNING `+annotationColumns,
		ann.PatchID, ann.Username, ann.Task, string(ann.Mode), ann.Label,
	)
	return scanAnnotation(row)
}

// Get retrieves a specific annotation
func (r *AnnotationRepository) Get(ctx context.Context, patchID, username, task string, mode domain.Mode) (*domain.Annotation, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+annotationColumns+" FROM annotations WHERE patch_id = ? AND username = ? AND task = ? AND mode = ?",
		patchID, username, task, string(mode))
	ann, err := scanAnnotation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return ann, err
}

// GetForPatch retrieves all annotations for a specific patch
func (r *AnnotationRepository) GetForPatch(ctx context.Context, patchID string) ([]*domain.Annotation, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+annotationColumns+" FROM annotations WHERE patch_id = ? ORDER BY task, mode, username", patchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []*domain.Annotation
	for rows.Next() {
		ann, err := scanAnnotation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ann)
	}
	return result, rows.Err()
}

// ListByLabel retrieves the annotations of a task carrying label, with their patch paths
func (r *AnnotationRepository) ListByLabel(ctx context.Context, task string, mode domain.Mode, label string) ([]*domain.AnnotationWithPatch, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT a.id, a.patch_id, a.username, a.task, a.mode, a.label, a.annotated_at, p.image_path
FROM annotations a
JOIN patches p ON a.patch_id = p.id
WHERE a.task = ? AND a.mode = ? AND a.label = ?
ORDER BY a.patch_id, a.username`,
		task, string(mode), label)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []*domain.AnnotationWithPatch
	for rows.Next() {
		var (
			ann         domain.AnnotationWithPatch
			mode        string
			annotatedAt timestamp
		)
		err := rows.Scan(&ann.ID, &ann.PatchID, &ann.Username, &ann.Task, &mode, &ann.Label, &annotatedAt, &ann.ImagePath)
		if err != nil {
			return nil, err
		}
		ann.Mode = domain.Mode(mode)
		ann.AnnotatedAt = annotatedAt.Time
		result = append(result, &ann)
	}
	return result, rows.Err()
}

// CountByUser returns the total number of annotations by a user
func (r *AnnotationRepository) CountByUser(ctx context.Context, username string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM annotations WHERE username = ?", username).Scan(&count)
	return count, err
}

// Delete removes an annotation by ID
func (r *AnnotationRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM annotations WHERE id = ?", id)
	return err
}

// GetStats returns overall annotation statistics
func (r *AnnotationRepository) GetStats(ctx context.Context) (*domain.AnnotationStats, error) {
	var stats domain.AnnotationStats
	err := r.db.QueryRowContext(ctx, `
SELECT
  COUNT(DISTINCT patch_id),
  COUNT(*),
  COUNT(DISTINCT username)
FROM annotations`).Scan(&stats.AnnotatedPatches, &stats.TotalAnnotations, &stats.TotalUsers)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func scanAnnotation(row scanner) (*domain.Annotation, error) {
	var (
		ann         domain.Annotation
		mode        string
		annotatedAt timestamp
	)
	err := row.Scan(&ann.ID, &ann.PatchID, &ann.Username, &ann.Task, &mode, &ann.Label, &annotatedAt)
	if err != nil {
		return nil, err
	}
	ann.Mode = domain.Mode(mode)
	ann.AnnotatedAt = annotatedAt.Time
	return &ann, nil
}

// Verify that AnnotationRepository implements domain.AnnotationRepository
var _ domain.AnnotationRepository = (*AnnotationRepository)(nil)
