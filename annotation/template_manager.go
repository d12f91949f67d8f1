package annotation

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"

	"github.com/abiosoft/mold"
)

const (
	templateRoot   = "templates"
	templateLayout = "layouts/base.html"
)

// TemplateManager renders pages inside the base layout using mold
type TemplateManager struct {
	mold mold.Engine
}

// NewTemplateManagerWithFuncMap parses the layout and every page under
// templates/ in fsys, with funcMap available to all of them
func NewTemplateManagerWithFuncMap(fsys fs.FS, funcMap template.FuncMap) (*TemplateManager, error) {
	engine, err := mold.New(fsys,
		mold.WithRoot(templateRoot),
		mold.WithLayout(templateLayout),
		mold.WithFuncMap(funcMap),
	)
	if err != nil {
		return nil, fmt.Errorf("while loading templates: %w", err)
	}
	return &TemplateManager{mold: engine}, nil
}

// Render renders pages/{pageName}.html (mold wraps it in the layout)
func (tm *TemplateManager) Render(w io.Writer, pageName string, data any) error {
	return tm.mold.Render(w, "pages/"+pageName+".html", data)
}
