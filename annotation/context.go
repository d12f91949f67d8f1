package annotation

import (
	"fmt"
	"image"
	"log"

	"golang.org/x/image/draw"

	"github.com/lewtec/mosaico/internal/domain"
)

// crowdedRadius is the largest radius that still displays well
const crowdedRadius = 3

var crowdedWarning = fmt.Sprintf("more than %d surrounding tiles may crowd the display and not display correctly", crowdedRadius)

// Compositor stitches a focal patch and its same-parent neighbours into one image
type Compositor struct {
	Store  *Store
	Images ImageOpener
	// Surrounding is the number of tiles shown on each side of the focal one
	Surrounding int
	MaxSize     int
	ResizeTo    int
	// NoDim shows every tile at full brightness (context-level annotation)
	NoDim bool
}

// Composite is the stitched image with the slot layout used to build it
type Composite struct {
	Image      image.Image
	TileWidth  int
	TileHeight int
	// Slots holds the row key of each grid cell in row-major order, "" for blanks
	Slots    []string
	Warnings []string
}

// tileSize is the focal tile's (width, height): the recorded shape, else the
// image header, else the pixel bounds
func (c *Compositor) tileSize(p *domain.Patch) (int, int, error) {
	if p.Shape != nil && p.Shape.Width > 0 && p.Shape.Height > 0 {
		return p.Shape.Width, p.Shape.Height, nil
	}
	cfg, err := c.Images.DecodeConfig(p.ImagePath)
	if err == nil && cfg.Width > 0 && cfg.Height > 0 {
		return cfg.Width, cfg.Height, nil
	}
	if p.Bounds.Width() > 0 && p.Bounds.Height() > 0 {
		return p.Bounds.Width(), p.Bounds.Height(), nil
	}
	if err == nil {
		err = fmt.Errorf("empty image")
	}
	return 0, 0, fmt.Errorf("while probing size of '%s': %w", p.ImagePath, err)
}

// neighbours maps the origins of rows sharing the parent to the first row found there
func (c *Compositor) neighbours(parentID string) map[image.Point]*domain.Patch {
	origins := map[image.Point]*domain.Patch{}
	for _, key := range c.Store.order {
		p := c.Store.rows[key]
		if p.ParentID != parentID {
			continue
		}
		origin := image.Pt(p.Bounds.MinX, p.Bounds.MinY)
		if _, ok := origins[origin]; ok {
			continue
		}
		origins[origin] = p
	}
	return origins
}

// Compose builds the (2s+1) x (2s+1) context grid centred on key
func (c *Compositor) Compose(key string) (*Composite, error) {
	focal := c.Store.row(key)
	if focal == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownRow, key)
	}
	s := c.Surrounding
	if s < 0 {
		return nil, &domain.ConfigurationError{Option: "surrounding", Reason: "must be a non-negative integer"}
	}
	ret := &Composite{}
	if s > crowdedRadius {
		log.Printf("warning: Compositor: %s", crowdedWarning)
		ret.Warnings = append(ret.Warnings, crowdedWarning)
	}

	width, height, err := c.tileSize(focal)
	if err != nil {
		return nil, err
	}
	ret.TileWidth, ret.TileHeight = width, height
	side := 2*s + 1
	canvas := blankTile(side*width, side*height)
	origins := c.neighbours(focal.ParentID)

	for row, dy := 0, -s; dy <= s; row, dy = row+1, dy+1 {
		for col, dx := 0, -s; dx <= s; col, dx = col+1, dx+1 {
			origin := image.Pt(focal.Bounds.MinX+dx*width, focal.Bounds.MinY+dy*height)
			slot := image.Rect(col*width, row*height, (col+1)*width, (row+1)*height)
			tile, slotKey, err := c.tile(origins[origin], focal, width, height)
			if err != nil {
				return nil, err
			}
			ret.Slots = append(ret.Slots, slotKey)
			draw.Draw(canvas, slot, tile, tile.Bounds().Min, draw.Src)
		}
	}

	ret.Image = fitForDisplay(canvas, c.ResizeTo, c.MaxSize)
	return ret, nil
}

// tile loads the image for one grid cell. A missing row or an unreadable
// neighbour file yields a blank tile; an unreadable focal file is an error.
func (c *Compositor) tile(p, focal *domain.Patch, width, height int) (image.Image, string, error) {
	if p == nil {
		return blankTile(width, height), "", nil
	}
	img, err := c.Images.Decode(p.ImagePath)
	if err != nil {
		if p == focal {
			return nil, "", fmt.Errorf("while loading focal patch '%s': %w", p.ImagePath, err)
		}
		log.Printf("Compositor: neighbour '%s' unavailable, using a blank tile: %s", p.ImagePath, err)
		return blankTile(width, height), "", nil
	}
	if p != focal && !c.NoDim {
		return lighten(img), p.ID, nil
	}
	return img, p.ID, nil
}

// PatchImage loads a single patch scaled the same way as composites
func (c *Compositor) PatchImage(key string) (image.Image, error) {
	p := c.Store.row(key)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownRow, key)
	}
	img, err := c.Images.Decode(p.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("while loading patch '%s': %w", p.ImagePath, err)
	}
	return fitForDisplay(img, c.ResizeTo, c.MaxSize), nil
}
