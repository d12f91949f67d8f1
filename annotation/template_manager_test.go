package annotation

import (
	"strings"
	"testing"
)

func TestTemplateManager(t *testing.T) {
	tm, err := NewTemplateManagerWithFuncMap(templateFS, TemplateFuncMap)
	if err != nil {
		t.Fatalf("NewTemplateManagerWithFuncMap() error = %v", err)
	}

	t.Run("pages render inside the layout", func(t *testing.T) {
		for _, page := range []string{"welcome", "help", "annotate"} {
			var out strings.Builder
			if err := tm.Render(&out, page, TemplateContent{Title: "Page " + page, Content: "# Heading"}); err != nil {
				t.Fatalf("Render(%s) error = %v", page, err)
			}
			body := out.String()
			if !strings.Contains(body, "<title>Page "+page+" - mosaico</title>") {
				t.Errorf("%s: layout title missing\n%s", page, body)
			}
			if !strings.Contains(body, "<h1>Heading</h1>") {
				t.Errorf("%s: markdown was not rendered\n%s", page, body)
			}
		}
	})

	t.Run("annotate form", func(t *testing.T) {
		var out strings.Builder
		err := tm.Render(&out, "annotate", TemplateContent{
			Title: "Annotate",
			Form:  &AnnotateForm{Key: "a.png", Labels: []string{"no", "rail"}, Current: "rail"},
		})
		if err != nil {
			t.Fatal(err)
		}
		body := out.String()
		for _, want := range []string{
			`name="key" value="a.png"`,
			`class="label current" type="submit" name="label" value="rail"`,
			`class="label" type="submit" name="label" value="no"`,
			`formaction="/annotate/next"`,
		} {
			if !strings.Contains(body, want) {
				t.Errorf("missing %s\n%s", want, body)
			}
		}
	})

	t.Run("completed form hides the labels", func(t *testing.T) {
		var out strings.Builder
		if err := tm.Render(&out, "annotate", TemplateContent{Title: "Done", Form: &AnnotateForm{Complete: true}}); err != nil {
			t.Fatal(err)
		}
		if strings.Contains(out.String(), "/annotate/label") || strings.Contains(out.String(), "/annotate/next") {
			t.Errorf("completed page still offers labelling\n%s", out.String())
		}
	})

	t.Run("unknown page", func(t *testing.T) {
		if err := tm.Render(&strings.Builder{}, "nope", TemplateContent{}); err == nil {
			t.Error("expected an error for a missing page")
		}
	})
}
