package annotation

import (
	"fmt"

	"github.com/lewtec/mosaico/internal/domain"
)

// NormalizeOptions names the columns the normalizer maps onto patch fields
type NormalizeOptions struct {
	PathColumn  string
	LabelColumn string
	Parents     []domain.Parent
}

func (o NormalizeOptions) withDefaults() NormalizeOptions {
	if o.PathColumn == "" {
		o.PathColumn = "image_path"
	}
	if o.LabelColumn == "" {
		o.LabelColumn = "label"
	}
	return o
}

// Normalize turns a raw item table into a Store: it checks the mandatory
// columns, parses stringified tuples and numbers back into values and derives
// the bound columns. Normalize(store.Table()) yields an equal store.
func Normalize(t *Table, opts NormalizeOptions) (*Store, error) {
	opts = opts.withDefaults()
	if !t.HasColumn(opts.PathColumn) {
		return nil, &domain.SchemaError{Column: opts.PathColumn, Reason: "the table does not have the image paths column"}
	}
	if !t.HasColumn(columnParentID) {
		return nil, &domain.SchemaError{Column: columnParentID, Reason: "the table does not have the parent id column"}
	}
	hasPixelBounds := t.HasColumn(columnPixelBounds)
	if !hasPixelBounds {
		for _, c := range boundColumns {
			if !t.HasColumn(c) {
				return nil, &domain.SchemaError{Column: columnPixelBounds, Reason: "the table has neither pixel bounds nor min/max columns"}
			}
		}
	}

	index := t.Index
	store := newStore(index, opts.PathColumn, opts.LabelColumn)
	store.hasContext = t.HasColumn(columnContextLabel)

	parentURL := map[string]string{}
	for _, parent := range opts.Parents {
		if parent.URL != "" {
			parentURL[parent.ID] = parent.URL
		}
	}
	store.hasURL = t.HasColumn(columnURL) || len(parentURL) > 0

	shapes := map[string]*domain.Shape{}
	if t.HasColumn(columnShape) {
		store.hasShape = true
		for _, row := range t.Rows {
			raw := row.Cells[columnShape]
			if raw == "" {
				continue
			}
			values, ok := parseIntTuple(raw)
			if !ok || len(values) < 2 || len(values) > 3 {
				// not a literal: the column is carried as text instead
				store.hasShape = false
				shapes = nil
				break
			}
			shape := &domain.Shape{Height: values[0], Width: values[1]}
			if len(values) == 3 {
				shape.Channels = values[2]
			}
			shapes[row.Key] = shape
		}
	}

	reserved := map[string]bool{
		opts.PathColumn: true, opts.LabelColumn: true, columnParentID: true,
		columnPixelBounds: true, columnChanged: true, columnContextLabel: true,
		columnContextChanged: true, columnURL: true,
	}
	if store.hasShape {
		reserved[columnShape] = true
	}
	for _, c := range boundColumns {
		reserved[c] = true
	}
	for _, col := range t.Columns {
		if reserved[col] {
			continue
		}
		store.columns = append(store.columns, col)
		store.numeric[col] = numericColumn(t, col)
	}

	for _, row := range t.Rows {
		p := &domain.Patch{
			ID:           row.Key,
			ImagePath:    row.Cells[opts.PathColumn],
			ParentID:     row.Cells[columnParentID],
			Label:        row.Cells[opts.LabelColumn],
			ContextLabel: row.Cells[columnContextLabel],
			URL:          row.Cells[columnURL],
			Shape:        shapes[row.Key],
			Features:     map[string]float64{},
			Extra:        map[string]string{},
		}
		if url, ok := parentURL[p.ParentID]; ok {
			p.URL = url
		}
		bounds, err := rowBounds(row, hasPixelBounds)
		if err != nil {
			return nil, err
		}
		p.Bounds = bounds
		p.Changed = p.Label != ""
		p.ContextChanged = p.ContextLabel != ""
		for _, col := range store.columns {
			raw, ok := row.Cells[col]
			if !ok {
				continue
			}
			if store.numeric[col] {
				if v, ok := parseNumber(raw); ok {
					p.Features[col] = v
				}
				continue
			}
			p.Extra[col] = raw
		}
		if err := store.add(p); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// numericColumn is true when every non-empty cell parses as a number
func numericColumn(t *Table, col string) bool {
	seen := false
	for _, row := range t.Rows {
		raw := row.Cells[col]
		if raw == "" {
			continue
		}
		if _, ok := parseNumber(raw); !ok {
			return false
		}
		seen = true
	}
	return seen
}

func rowBounds(row TableRow, fromPixelBounds bool) (domain.Bounds, error) {
	var values []int
	if fromPixelBounds {
		var ok bool
		values, ok = parseIntTuple(row.Cells[columnPixelBounds])
		if !ok || len(values) != 4 {
			return domain.Bounds{}, &domain.SchemaError{
				Column: columnPixelBounds,
				Reason: fmt.Sprintf("row %q: %q is not a (min_x, min_y, max_x, max_y) tuple", row.Key, row.Cells[columnPixelBounds]),
			}
		}
	} else {
		for _, c := range boundColumns {
			v, ok := parseNumber(row.Cells[c])
			if !ok || v != float64(int(v)) {
				return domain.Bounds{}, &domain.SchemaError{Column: c, Reason: fmt.Sprintf("row %q: %q is not an integer", row.Key, row.Cells[c])}
			}
			values = append(values, int(v))
		}
	}
	b := domain.Bounds{MinX: values[0], MinY: values[1], MaxX: values[2], MaxY: values[3]}
	if !b.Valid() {
		return domain.Bounds{}, &domain.SchemaError{Column: columnPixelBounds, Reason: fmt.Sprintf("row %q: invalid bounds %v", row.Key, values)}
	}
	return b, nil
}
