package domain

import (
	"context"
	"time"
)

// Mode tells which label column an annotation pass writes to
type Mode string

const (
	ModePatch   Mode = "patch"
	ModeContext Mode = "context"
)

// Annotation represents a label given to a patch by a user for a task
type Annotation struct {
	ID          int64
	PatchID     string
	Username    string
	Task        string
	Mode        Mode
	Label       string
	AnnotatedAt time.Time
}

// AnnotationWithPatch extends Annotation with patch information
type AnnotationWithPatch struct {
	Annotation
	ImagePath string
}

// AnnotationStats provides statistics about annotations
type AnnotationStats struct {
	AnnotatedPatches int64
	TotalAnnotations int64
	TotalUsers       int64
}

// AnnotationRepository defines the interface for annotation storage operations
type AnnotationRepository interface {
	// Upsert creates or updates an annotation
	Upsert(ctx context.Context, ann Annotation) (*Annotation, error)

	// Get retrieves a specific annotation
	Get(ctx context.Context, patchID, username, task string, mode Mode) (*Annotation, error)

	// GetForPatch retrieves all annotations for a specific patch
	GetForPatch(ctx context.Context, patchID string) ([]*Annotation, error)

	// ListByLabel retrieves annotations of a task carrying the given label
	ListByLabel(ctx context.Context, task string, mode Mode, label string) ([]*AnnotationWithPatch, error)

	// CountByUser returns the total number of annotations by a user
	CountByUser(ctx context.Context, username string) (int64, error)

	// Delete removes an annotation by ID
	Delete(ctx context.Context, id int64) error

	// GetStats returns overall annotation statistics
	GetStats(ctx context.Context) (*AnnotationStats, error)
}
