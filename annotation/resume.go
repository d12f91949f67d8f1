package annotation

import (
	"fmt"
	"io"
	"strconv"

	"github.com/lewtec/mosaico/internal/domain"
)

// SaveFormat is how a save file encodes its labels
type SaveFormat int

const (
	// FormatLabels stores the label text
	FormatLabels SaveFormat = iota
	// FormatIndices stores positions in the label vocabulary (legacy saves)
	FormatIndices
)

func (f SaveFormat) String() string {
	if f == FormatIndices {
		return "indices"
	}
	return "labels"
}

// SavedAnnotations is a previously written session file
type SavedAnnotations struct {
	Keys   []string
	Values map[string]string
}

// LoadSave reads a session file and keeps its label column
func LoadSave(r io.Reader, delimiter, labelCol string) (*SavedAnnotations, error) {
	t, err := ReadTable(r, delimiter)
	if err != nil {
		return nil, err
	}
	if !t.HasColumn(labelCol) {
		return nil, &domain.SchemaError{Column: labelCol, Reason: "your existing annotations do not have the label column"}
	}
	saved := &SavedAnnotations{Values: make(map[string]string, len(t.Rows))}
	for _, row := range t.Rows {
		saved.Keys = append(saved.Keys, row.Key)
		saved.Values[row.Key] = row.Cells[labelCol]
	}
	return saved, nil
}

// DetectFormat decides once for the whole file how labels are encoded.
// Integer cells that are also vocabulary entries make the file ambiguous.
func (s *SavedAnnotations) DetectFormat(labelFormat string, vocabulary []string) (SaveFormat, error) {
	switch labelFormat {
	case LabelFormatLabels:
		return FormatLabels, nil
	case LabelFormatIndices:
		return FormatIndices, nil
	}
	inVocabulary := map[string]bool{}
	for _, label := range vocabulary {
		inVocabulary[label] = true
	}
	seen, ambiguous := false, false
	for _, key := range s.Keys {
		v := s.Values[key]
		if v == "" {
			continue
		}
		if _, err := strconv.Atoi(v); err != nil {
			return FormatLabels, nil
		}
		seen = true
		if inVocabulary[v] {
			ambiguous = true
		}
	}
	if !seen {
		return FormatLabels, nil
	}
	if ambiguous {
		return FormatLabels, &domain.ConfigurationError{
			Option: "label_format",
			Reason: "existing annotations hold integers that are also labels; set label_format to labels or indices",
		}
	}
	return FormatIndices, nil
}

// Resolve migrates the saved values to label text
func (s *SavedAnnotations) Resolve(format SaveFormat, vocabulary []string) (map[string]string, error) {
	ret := make(map[string]string, len(s.Values))
	if format == FormatLabels {
		for k, v := range s.Values {
			ret[k] = v
		}
		return ret, nil
	}
	if len(vocabulary) == 0 {
		return nil, &domain.ConfigurationError{Option: "labels", Reason: "existing annotations hold label indices but no labels are configured"}
	}
	for _, key := range s.Keys {
		v := s.Values[key]
		if v == "" {
			ret[key] = ""
			continue
		}
		idx, err := strconv.Atoi(v)
		if err != nil {
			return nil, &domain.SchemaError{Column: "label", Reason: fmt.Sprintf("row %q: %q is not a label index", key, v)}
		}
		if idx < 0 || idx >= len(vocabulary) {
			return nil, &domain.IndexResolutionError{Row: key, Index: idx, Size: len(vocabulary)}
		}
		ret[key] = vocabulary[idx]
	}
	return ret, nil
}

// Merge left-joins saved labels onto the store: every store row is kept
// once, a non-empty saved label wins over the fresh one and the changed flag
// is recomputed from the resulting label. It returns the number of rows that
// took a saved label.
func Merge(store *Store, labels map[string]string, mode domain.Mode) int {
	merged := 0
	for _, key := range store.order {
		p := store.rows[key]
		label, ok := labels[key]
		if !ok {
			if imageID := store.text(p, columnImageID); imageID != "" {
				label, ok = labels[imageID]
			}
		}
		if ok && label != "" {
			if mode == domain.ModeContext {
				p.ContextLabel = label
			} else {
				p.Label = label
			}
			merged++
		}
		p.Changed = p.Label != ""
		p.ContextChanged = p.ContextLabel != ""
	}
	if mode == domain.ModeContext {
		store.ensureContextColumns()
	}
	return merged
}
