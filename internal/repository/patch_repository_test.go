package repository

import (
	"testing"

	"github.com/lewtec/mosaico/internal/domain"
)

func TestPatchRepository_Upsert(t *testing.T) {
	patchRepo, _, ctx := setupTestRepositories(t)

	t.Run("creates patch", func(t *testing.T) {
		p := createTestPatch(t, patchRepo, "a.png")
		if p.ParentID != "map.png" {
			t.Errorf("ParentID = %v, want map.png", p.ParentID)
		}
		if p.Bounds.MaxX != 256 {
			t.Errorf("Bounds = %+v", p.Bounds)
		}
		if p.IngestedAt.IsZero() {
			t.Error("IngestedAt should not be zero")
		}
	})

	t.Run("refreshes existing patch", func(t *testing.T) {
		p, err := patchRepo.Upsert(ctx, domain.ExportedPatch{
			ID:        "a.png",
			ImagePath: "/moved/a.png",
			ParentID:  "map.png",
			Bounds:    domain.Bounds{MaxX: 256, MaxY: 256},
		})
		if err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if p.ImagePath != "/moved/a.png" {
			t.Errorf("ImagePath = %v, want /moved/a.png", p.ImagePath)
		}
		count, _ := patchRepo.Count(ctx)
		if count != 1 {
			t.Errorf("Count = %v, want 1", count)
		}
	})
}

func TestPatchRepository_GetByID(t *testing.T) {
	patchRepo, _, ctx := setupTestRepositories(t)
	createTestPatch(t, patchRepo, "a.png")

	p, err := patchRepo.GetByID(ctx, "a.png")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if p == nil || p.ImagePath != "/test/a.png" {
		t.Errorf("GetByID() = %+v", p)
	}

	missing, err := patchRepo.GetByID(ctx, "missing.png")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if missing != nil {
		t.Error("Expected nil for non-existent patch")
	}
}

func TestPatchRepository_ListByParent(t *testing.T) {
	patchRepo, _, ctx := setupTestRepositories(t)
	createTestPatch(t, patchRepo, "a.png")
	createTestPatch(t, patchRepo, "b.png")
	_, err := patchRepo.Upsert(ctx, domain.ExportedPatch{ID: "c.png", ImagePath: "/c.png", ParentID: "other.png"})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	patches, err := patchRepo.ListByParent(ctx, "map.png")
	if err != nil {
		t.Fatalf("ListByParent() error = %v", err)
	}
	if len(patches) != 2 {
		t.Errorf("Got %d patches, want 2", len(patches))
	}
	all, _ := patchRepo.List(ctx)
	if len(all) != 3 {
		t.Errorf("Got %d patches, want 3", len(all))
	}
}

func TestPatchRepository_DeleteCascades(t *testing.T) {
	patchRepo, annRepo, ctx := setupTestRepositories(t)
	p := createTestPatch(t, patchRepo, "a.png")
	annRepo.Upsert(ctx, annotation(p.ID, "user1", "rail"))

	if err := patchRepo.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	anns, _ := annRepo.GetForPatch(ctx, p.ID)
	if len(anns) != 0 {
		t.Errorf("Expected annotations to be deleted with the patch, got %d", len(anns))
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)
	if err := Migrate(db); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}
