package domain

import (
	"context"
	"time"
)

// Bounds locates a patch inside its parent image, in parent pixel space.
type Bounds struct {
	MinX int
	MinY int
	MaxX int
	MaxY int
}

// Width of the rectangle in pixels
func (b Bounds) Width() int { return b.MaxX - b.MinX }

// Height of the rectangle in pixels
func (b Bounds) Height() int { return b.MaxY - b.MinY }

// Valid reports whether the bounds are non-negative and ordered
func (b Bounds) Valid() bool {
	return b.MinX >= 0 && b.MinY >= 0 && b.MaxX >= 0 && b.MaxY >= 0 &&
		b.MinX <= b.MaxX && b.MinY <= b.MaxY
}

// Shape is the recorded (height, width, channels) of a patch image
type Shape struct {
	Height   int
	Width    int
	Channels int
}

// Patch is one image tile being annotated
type Patch struct {
	ID             string
	ImagePath      string
	ParentID       string
	Bounds         Bounds
	Label          string
	Changed        bool
	ContextLabel   string
	ContextChanged bool
	URL            string
	// Shape is nil when the table did not record it
	Shape    *Shape
	Features map[string]float64
	Extra    map[string]string
}

// Clone returns a deep copy of the patch
func (p *Patch) Clone() *Patch {
	c := *p
	if p.Shape != nil {
		s := *p.Shape
		c.Shape = &s
	}
	c.Features = make(map[string]float64, len(p.Features))
	for k, v := range p.Features {
		c.Features[k] = v
	}
	c.Extra = make(map[string]string, len(p.Extra))
	for k, v := range p.Extra {
		c.Extra[k] = v
	}
	return &c
}

// Parent is the source image patches were cut from
type Parent struct {
	ID    string
	URL   string
	Extra map[string]string
}

// ExportedPatch is a patch row as stored in the export database
type ExportedPatch struct {
	ID         string
	ImagePath  string
	ParentID   string
	Bounds     Bounds
	IngestedAt time.Time
}

// PatchRepository defines the interface for patch storage operations
type PatchRepository interface {
	// Upsert creates or refreshes a patch record
	Upsert(ctx context.Context, patch ExportedPatch) (*ExportedPatch, error)

	// GetByID retrieves a patch by its row key
	GetByID(ctx context.Context, id string) (*ExportedPatch, error)

	// List retrieves all patches
	List(ctx context.Context) ([]*ExportedPatch, error)

	// ListByParent retrieves the patches of one parent image
	ListByParent(ctx context.Context, parentID string) ([]*ExportedPatch, error)

	// Count returns the total number of patches
	Count(ctx context.Context) (int64, error)

	// Delete removes a patch by row key
	Delete(ctx context.Context, id string) error
}
