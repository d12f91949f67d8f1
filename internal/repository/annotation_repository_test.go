package repository

import (
	"context"
	"testing"

	"github.com/lewtec/mosaico/internal/domain"
)

func setupTestRepositories(t *testing.T) (*PatchRepository, *AnnotationRepository, context.Context) {
	t.Helper()
	db := SetupTestDB(t)
	t.Cleanup(func() { CleanupTestDB(t, db) })

	return NewPatchRepository(db), NewAnnotationRepository(db), context.Background()
}

func createTestPatch(t *testing.T, repo *PatchRepository, id string) *domain.ExportedPatch {
	t.Helper()
	p, err := repo.Upsert(context.Background(), domain.ExportedPatch{
		ID:        id,
		ImagePath: "/test/" + id,
		ParentID:  "map.png",
		Bounds:    domain.Bounds{MinX: 0, MinY: 0, MaxX: 256, MaxY: 256},
	})
	if err != nil {
		t.Fatalf("Failed to create test patch: %v", err)
	}
	return p
}

func annotation(patchID, username, label string) domain.Annotation {
	return domain.Annotation{PatchID: patchID, Username: username, Task: "railspace", Mode: domain.ModePatch, Label: label}
}

func TestAnnotationRepository_Upsert(t *testing.T) {
	patchRepo, annRepo, ctx := setupTestRepositories(t)
	patch := createTestPatch(t, patchRepo, "patch-0-0-256-256-#map.png#.png")

	t.Run("creates annotation successfully", func(t *testing.T) {
		ann, err := annRepo.Upsert(ctx, annotation(patch.ID, "testuser", "rail"))
		if err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}

		if ann.ID == 0 {
			t.Error("Expected non-zero ID")
		}
		if ann.PatchID != patch.ID {
			t.Errorf("PatchID = %v, want %v", ann.PatchID, patch.ID)
		}
		if ann.Username != "testuser" {
			t.Errorf("Username = %v, want %v", ann.Username, "testuser")
		}
		if ann.Mode != domain.ModePatch {
			t.Errorf("Mode = %v, want %v", ann.Mode, domain.ModePatch)
		}
		if ann.Label != "rail" {
			t.Errorf("Label = %v, want %v", ann.Label, "rail")
		}
		if ann.AnnotatedAt.IsZero() {
			t.Error("AnnotatedAt should not be zero")
		}
	})

	t.Run("upserts existing annotation", func(t *testing.T) {
		ann1, _ := annRepo.Upsert(ctx, annotation(patch.ID, "user2", "no"))

		ann2, err := annRepo.Upsert(ctx, annotation(patch.ID, "user2", "rail"))
		if err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}

		if ann2.ID != ann1.ID {
			t.Error("Upsert should keep same ID")
		}
		if ann2.Label != "rail" {
			t.Errorf("Label = %v, want rail", ann2.Label)
		}
	})

	t.Run("keeps context labels apart", func(t *testing.T) {
		ctxAnn := annotation(patch.ID, "testuser", "town")
		ctxAnn.Mode = domain.ModeContext
		ann, err := annRepo.Upsert(ctx, ctxAnn)
		if err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		patchAnn, _ := annRepo.Get(ctx, patch.ID, "testuser", "railspace", domain.ModePatch)
		if patchAnn == nil || patchAnn.ID == ann.ID {
			t.Error("context annotation should not replace the patch annotation")
		}
	})

	t.Run("rejects unknown patches", func(t *testing.T) {
		if _, err := annRepo.Upsert(ctx, annotation("missing", "testuser", "rail")); err == nil {
			t.Error("Expected foreign key error for unknown patch")
		}
	})
}

func TestAnnotationRepository_Get(t *testing.T) {
	patchRepo, annRepo, ctx := setupTestRepositories(t)
	patch := createTestPatch(t, patchRepo, "a.png")
	created, _ := annRepo.Upsert(ctx, annotation(patch.ID, "testuser", "rail"))

	t.Run("retrieves existing annotation", func(t *testing.T) {
		ann, err := annRepo.Get(ctx, patch.ID, "testuser", "railspace", domain.ModePatch)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}

		if ann == nil {
			t.Fatal("Expected annotation, got nil")
		}
		if ann.ID != created.ID {
			t.Errorf("ID = %v, want %v", ann.ID, created.ID)
		}
	})

	t.Run("returns nil for non-existent annotation", func(t *testing.T) {
		ann, err := annRepo.Get(ctx, patch.ID, "nonexistent", "railspace", domain.ModePatch)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if ann != nil {
			t.Error("Expected nil for non-existent annotation")
		}
	})
}

func TestAnnotationRepository_GetForPatch(t *testing.T) {
	patchRepo, annRepo, ctx := setupTestRepositories(t)
	patch := createTestPatch(t, patchRepo, "a.png")
	annRepo.Upsert(ctx, annotation(patch.ID, "user1", "rail"))
	annRepo.Upsert(ctx, annotation(patch.ID, "user2", "no"))
	other := annotation(patch.ID, "user1", "town")
	other.Task = "buildings"
	annRepo.Upsert(ctx, other)

	anns, err := annRepo.GetForPatch(ctx, patch.ID)
	if err != nil {
		t.Fatalf("GetForPatch() error = %v", err)
	}
	if len(anns) != 3 {
		t.Fatalf("Got %d annotations, want 3", len(anns))
	}
	if anns[0].Task != "buildings" {
		t.Errorf("Annotations should be ordered by task, got %v first", anns[0].Task)
	}
}

func TestAnnotationRepository_ListByLabel(t *testing.T) {
	patchRepo, annRepo, ctx := setupTestRepositories(t)
	a := createTestPatch(t, patchRepo, "a.png")
	b := createTestPatch(t, patchRepo, "b.png")
	annRepo.Upsert(ctx, annotation(a.ID, "user1", "rail"))
	annRepo.Upsert(ctx, annotation(b.ID, "user1", "no"))
	annRepo.Upsert(ctx, annotation(b.ID, "user2", "rail"))

	anns, err := annRepo.ListByLabel(ctx, "railspace", domain.ModePatch, "rail")
	if err != nil {
		t.Fatalf("ListByLabel() error = %v", err)
	}
	if len(anns) != 2 {
		t.Fatalf("Got %d annotations, want 2", len(anns))
	}
	for _, ann := range anns {
		if ann.Label != "rail" {
			t.Errorf("Got label %v, want rail", ann.Label)
		}
		if ann.ImagePath == "" {
			t.Error("ImagePath should not be empty")
		}
	}
}

func TestAnnotationRepository_CountByUser(t *testing.T) {
	patchRepo, annRepo, ctx := setupTestRepositories(t)
	a := createTestPatch(t, patchRepo, "a.png")
	b := createTestPatch(t, patchRepo, "b.png")
	annRepo.Upsert(ctx, annotation(a.ID, "testuser", "rail"))
	annRepo.Upsert(ctx, annotation(b.ID, "testuser", "no"))
	annRepo.Upsert(ctx, annotation(a.ID, "otheruser", "rail"))

	count, err := annRepo.CountByUser(ctx, "testuser")
	if err != nil {
		t.Fatalf("CountByUser() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Count = %v, want 2", count)
	}
}

func TestAnnotationRepository_Delete(t *testing.T) {
	patchRepo, annRepo, ctx := setupTestRepositories(t)
	patch := createTestPatch(t, patchRepo, "a.png")
	ann, _ := annRepo.Upsert(ctx, annotation(patch.ID, "testuser", "rail"))

	if err := annRepo.Delete(ctx, ann.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	got, _ := annRepo.Get(ctx, patch.ID, "testuser", "railspace", domain.ModePatch)
	if got != nil {
		t.Error("Annotation should be deleted")
	}
}

func TestAnnotationRepository_GetStats(t *testing.T) {
	patchRepo, annRepo, ctx := setupTestRepositories(t)
	a := createTestPatch(t, patchRepo, "a.png")
	b := createTestPatch(t, patchRepo, "b.png")
	annRepo.Upsert(ctx, annotation(a.ID, "user1", "rail"))
	annRepo.Upsert(ctx, annotation(a.ID, "user2", "no"))
	annRepo.Upsert(ctx, annotation(b.ID, "user1", "rail"))

	stats, err := annRepo.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.AnnotatedPatches != 2 {
		t.Errorf("AnnotatedPatches = %v, want 2", stats.AnnotatedPatches)
	}
	if stats.TotalAnnotations != 3 {
		t.Errorf("TotalAnnotations = %v, want 3", stats.TotalAnnotations)
	}
	if stats.TotalUsers != 2 {
		t.Errorf("TotalUsers = %v, want 2", stats.TotalUsers)
	}
}
