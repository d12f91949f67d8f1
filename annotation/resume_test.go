package annotation

import (
	"errors"
	"strings"
	"testing"

	"github.com/lewtec/mosaico/internal/domain"
)

func loadTestSave(t *testing.T, data string) *SavedAnnotations {
	t.Helper()
	saved, err := LoadSave(strings.NewReader(data), ",", "label")
	if err != nil {
		t.Fatalf("LoadSave() error = %v", err)
	}
	return saved
}

func TestSavedAnnotations_Legacy(t *testing.T) {
	vocabulary := []string{"a", "b"}

	t.Run("resolves label indices", func(t *testing.T) {
		saved := loadTestSave(t, "image_id,image_path,label\nx.png,/x.png,1\ny.png,/y.png,0\n")
		format, err := saved.DetectFormat(LabelFormatAuto, vocabulary)
		if err != nil {
			t.Fatal(err)
		}
		if format != FormatIndices {
			t.Fatalf("format = %s, want indices", format)
		}
		labels, err := saved.Resolve(format, vocabulary)
		if err != nil {
			t.Fatal(err)
		}
		if labels["x.png"] != "b" || labels["y.png"] != "a" {
			t.Errorf("labels = %v", labels)
		}
	})

	t.Run("out of range index", func(t *testing.T) {
		saved := loadTestSave(t, "image_id,label\nx.png,5\n")
		format, err := saved.DetectFormat(LabelFormatAuto, vocabulary)
		if err != nil {
			t.Fatal(err)
		}
		_, err = saved.Resolve(format, vocabulary)
		var indexErr *domain.IndexResolutionError
		if !errors.As(err, &indexErr) {
			t.Fatalf("error = %v, want IndexResolutionError", err)
		}
		if indexErr.Index != 5 || indexErr.Row != "x.png" || indexErr.Size != 2 {
			t.Errorf("IndexResolutionError = %+v", indexErr)
		}
	})

	t.Run("integers that are also labels are ambiguous", func(t *testing.T) {
		saved := loadTestSave(t, "image_id,label\nx.png,1\n")
		_, err := saved.DetectFormat(LabelFormatAuto, []string{"0", "1", "2"})
		var configErr *domain.ConfigurationError
		if !errors.As(err, &configErr) || configErr.Option != "label_format" {
			t.Fatalf("error = %v, want ConfigurationError on label_format", err)
		}
		format, err := saved.DetectFormat(LabelFormatLabels, []string{"0", "1", "2"})
		if err != nil || format != FormatLabels {
			t.Errorf("explicit label_format = %s, %v", format, err)
		}
	})

	t.Run("indices without vocabulary", func(t *testing.T) {
		saved := loadTestSave(t, "image_id,label\nx.png,1\n")
		_, err := saved.Resolve(FormatIndices, nil)
		var configErr *domain.ConfigurationError
		if !errors.As(err, &configErr) {
			t.Fatalf("error = %v, want ConfigurationError", err)
		}
	})

	t.Run("text labels", func(t *testing.T) {
		saved := loadTestSave(t, "image_id,label\nx.png,b\ny.png,\n")
		format, err := saved.DetectFormat(LabelFormatAuto, vocabulary)
		if err != nil || format != FormatLabels {
			t.Fatalf("format = %s, %v", format, err)
		}
	})
}

func TestLoadSave_MissingLabel(t *testing.T) {
	_, err := LoadSave(strings.NewReader("image_id,image_path\nx.png,/x.png\n"), ",", "label")
	var schemaErr *domain.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("error = %v, want SchemaError", err)
	}
}

func TestMerge(t *testing.T) {
	store := normalizeTestTable(t, gridTable)
	merged := Merge(store, map[string]string{
		"a.png":       "rail",
		"b.png":       "",
		"unknown.png": "rail",
	}, domain.ModePatch)
	if merged != 1 {
		t.Errorf("Merge() = %d, want 1", merged)
	}
	if store.Len() != 4 {
		t.Errorf("Len() = %d, every row should be kept once", store.Len())
	}
	a, _ := store.Get("a.png")
	if a.Label != "rail" || !a.Changed {
		t.Errorf("a.png = %q changed=%v", a.Label, a.Changed)
	}
	b, _ := store.Get("b.png")
	if b.Label != "rail" {
		t.Errorf("an empty saved label should not clear b.png, got %q", b.Label)
	}

	Merge(store, map[string]string{"c.png": "town"}, domain.ModeContext)
	c, _ := store.Get("c.png")
	if c.ContextLabel != "town" || !c.ContextChanged || c.Label != "" {
		t.Errorf("c.png = %+v", c)
	}
	if !store.HasColumn("context_label") {
		t.Error("context columns should exist after a context merge")
	}
}
