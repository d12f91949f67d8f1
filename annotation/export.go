package annotation

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/lewtec/mosaico/internal/domain"
	"github.com/lewtec/mosaico/internal/repository"
)

// ExportResult counts what ExportSession wrote
type ExportResult struct {
	Patches     int
	Annotations int
}

// ExportSession copies every row of the session and its patch and context
// labels into the export database, in one transaction
func ExportSession(ctx context.Context, s *Session, db *sql.DB) (*ExportResult, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	patches := repository.NewPatchRepositoryWithTx(tx)
	annotations := repository.NewAnnotationRepositoryWithTx(tx)
	ret := &ExportResult{}
	for _, key := range s.store.order {
		p := s.store.rows[key]
		_, err := patches.Upsert(ctx, domain.ExportedPatch{
			ID:        p.ID,
			ImagePath: p.ImagePath,
			ParentID:  p.ParentID,
			Bounds:    p.Bounds,
		})
		if err != nil {
			return nil, fmt.Errorf("while exporting patch '%s': %w", p.ID, err)
		}
		ret.Patches++
		for _, ann := range []struct {
			mode  domain.Mode
			label string
		}{{domain.ModePatch, p.Label}, {domain.ModeContext, p.ContextLabel}} {
			if ann.label == "" {
				continue
			}
			_, err := annotations.Upsert(ctx, domain.Annotation{
				PatchID:  p.ID,
				Username: s.cfg.Username,
				Task:     s.cfg.TaskName,
				Mode:     ann.mode,
				Label:    ann.label,
			})
			if err != nil {
				return nil, fmt.Errorf("while exporting annotation of '%s': %w", p.ID, err)
			}
			ret.Annotations++
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	log.Printf("Export: %d patches and %d annotations of %s/%s", ret.Patches, ret.Annotations, s.cfg.Username, s.cfg.TaskName)
	return ret, nil
}
