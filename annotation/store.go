package annotation

import (
	"fmt"
	"sort"

	"github.com/lewtec/mosaico/internal/domain"
)

const (
	columnParentID       = "parent_id"
	columnPixelBounds    = "pixel_bounds"
	columnChanged        = "changed"
	columnContextLabel   = "context_label"
	columnContextChanged = "context_changed"
	columnURL            = "url"
	columnShape          = "shape"
	columnImageID        = "image_id"
)

var boundColumns = []string{"min_x", "min_y", "max_x", "max_y"}

// Store owns the patch rows of one session, keyed by row key.
// It is not safe for concurrent use.
type Store struct {
	index    string
	pathCol  string
	labelCol string

	order []string
	rows  map[string]*domain.Patch

	// extra and feature columns, in table order
	columns []string
	numeric map[string]bool

	hasURL     bool
	hasShape   bool
	hasContext bool
}

func newStore(index, pathCol, labelCol string) *Store {
	return &Store{
		index:    index,
		pathCol:  pathCol,
		labelCol: labelCol,
		rows:     map[string]*domain.Patch{},
		numeric:  map[string]bool{},
	}
}

func (s *Store) add(p *domain.Patch) error {
	if _, ok := s.rows[p.ID]; ok {
		return &domain.SchemaError{Column: s.index, Reason: fmt.Sprintf("duplicate row key %q", p.ID)}
	}
	s.rows[p.ID] = p
	s.order = append(s.order, p.ID)
	return nil
}

func (s *Store) row(key string) *domain.Patch {
	return s.rows[key]
}

// Len returns the number of rows
func (s *Store) Len() int { return len(s.order) }

// Keys returns the row keys in table order
func (s *Store) Keys() []string {
	return append([]string(nil), s.order...)
}

// Get returns a copy of the row
func (s *Store) Get(key string) (*domain.Patch, bool) {
	p, ok := s.rows[key]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Update mutates a row in place and re-establishes the changed flags
func (s *Store) Update(key string, fn func(p *domain.Patch)) error {
	p, ok := s.rows[key]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownRow, key)
	}
	fn(p)
	p.ID = key
	p.Changed = p.Label != ""
	p.ContextChanged = p.ContextLabel != ""
	if p.ContextLabel != "" {
		s.hasContext = true
	}
	return nil
}

// PathColumn is the name of the image path column
func (s *Store) PathColumn() string { return s.pathCol }

// LabelColumn is the name of the patch label column
func (s *Store) LabelColumn() string { return s.labelCol }

// ensureContextColumns makes context_label/context_changed part of the table
func (s *Store) ensureContextColumns() {
	s.hasContext = true
}

// HasColumn reports whether col can be read as a value of every row
func (s *Store) HasColumn(col string) bool {
	switch col {
	case s.index, s.pathCol, s.labelCol, columnParentID, columnPixelBounds, columnChanged:
		return true
	case columnContextLabel, columnContextChanged:
		return s.hasContext
	case columnURL:
		return s.hasURL
	case columnShape:
		return s.hasShape
	}
	for _, c := range boundColumns {
		if c == col {
			return true
		}
	}
	for _, c := range s.columns {
		if c == col {
			return true
		}
	}
	return false
}

// Number returns the numeric value of col for the row
func (s *Store) Number(key, col string) (float64, bool) {
	p, ok := s.rows[key]
	if !ok {
		return 0, false
	}
	return numberOf(p, col)
}

func numberOf(p *domain.Patch, col string) (float64, bool) {
	switch col {
	case "min_x":
		return float64(p.Bounds.MinX), true
	case "min_y":
		return float64(p.Bounds.MinY), true
	case "max_x":
		return float64(p.Bounds.MaxX), true
	case "max_y":
		return float64(p.Bounds.MaxY), true
	}
	if v, ok := p.Features[col]; ok {
		return v, true
	}
	if raw, ok := p.Extra[col]; ok {
		return parseNumber(raw)
	}
	return 0, false
}

// text returns the cell of col as written to a table
func (s *Store) text(p *domain.Patch, col string) string {
	switch col {
	case s.index:
		return p.ID
	case s.pathCol:
		return p.ImagePath
	case s.labelCol:
		return p.Label
	case columnParentID:
		return p.ParentID
	case columnPixelBounds:
		return formatIntTuple(p.Bounds.MinX, p.Bounds.MinY, p.Bounds.MaxX, p.Bounds.MaxY)
	case columnChanged:
		return formatBool(p.Changed)
	case columnContextLabel:
		return p.ContextLabel
	case columnContextChanged:
		return formatBool(p.ContextChanged)
	case columnURL:
		return p.URL
	case columnShape:
		if p.Shape == nil {
			return p.Extra[columnShape]
		}
		if p.Shape.Channels == 0 {
			return formatIntTuple(p.Shape.Height, p.Shape.Width)
		}
		return formatIntTuple(p.Shape.Height, p.Shape.Width, p.Shape.Channels)
	}
	if v, ok := numberOf(p, col); ok && s.numeric[col] {
		return formatNumber(v)
	}
	for _, c := range boundColumns {
		if c == col {
			v, _ := numberOf(p, col)
			return formatNumber(v)
		}
	}
	return p.Extra[col]
}

// SortBy reorders the rows on a column, numerically when the column is numeric
func (s *Store) SortBy(col string, ascending bool) error {
	if !s.HasColumn(col) {
		return &domain.ConfigurationError{Option: "sortby", Reason: fmt.Sprintf("%s is not a column in the table", col)}
	}
	less := func(a, b *domain.Patch) bool {
		va, oka := numberOf(a, col)
		vb, okb := numberOf(b, col)
		if oka && okb {
			return va < vb
		}
		if oka != okb {
			return oka
		}
		return s.text(a, col) < s.text(b, col)
	}
	sort.SliceStable(s.order, func(i, j int) bool {
		a, b := s.rows[s.order[i]], s.rows[s.order[j]]
		if ascending {
			return less(a, b)
		}
		return less(b, a)
	})
	return nil
}

// columnsOut lists the columns written by Table, in order
func (s *Store) columnsOut() []string {
	cols := []string{s.pathCol, columnParentID, columnPixelBounds, s.labelCol, columnChanged}
	if s.hasContext {
		cols = append(cols, columnContextLabel, columnContextChanged)
	}
	if s.hasURL {
		cols = append(cols, columnURL)
	}
	if s.hasShape {
		cols = append(cols, columnShape)
	}
	cols = append(cols, s.columns...)
	return append(cols, boundColumns...)
}

// Table serialises the full store, derived columns included
func (s *Store) Table() *Table {
	t := &Table{Index: s.index, Columns: s.columnsOut()}
	for _, key := range s.order {
		p := s.rows[key]
		row := TableRow{Key: key, Cells: make(map[string]string, len(t.Columns))}
		for _, col := range t.Columns {
			row.Cells[col] = s.text(p, col)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}
