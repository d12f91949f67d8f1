package annotation

import (
	"embed"
	"html/template"
	"io"
	"log"

	"github.com/russross/blackfriday/v2"
)

// TemplateContent is one page: a markdown body and, on annotation pages, the action form
type TemplateContent struct {
	Title   string
	Content string
	Form    *AnnotateForm
}

// AnnotateForm holds the buttons of the annotation page
type AnnotateForm struct {
	Key      string
	Labels   []string
	Current  string
	Complete bool
}

var (
	//go:embed templates
	templateFS embed.FS

	templateManager *TemplateManager

	// TemplateFuncMap contains custom template functions available globally
	TemplateFuncMap = template.FuncMap{
		"markdown": func(text string) template.HTML {
			return template.HTML(blackfriday.Run([]byte(text)))
		},
	}
)

func init() {
	var err error
	templateManager, err = NewTemplateManagerWithFuncMap(templateFS, TemplateFuncMap)
	if err != nil {
		panic(err)
	}
}

// RenderPage renders one of the pages under templates/pages
func RenderPage(w io.Writer, pageName string, content TemplateContent) {
	if err := templateManager.Render(w, pageName, content); err != nil {
		log.Printf("error: while rendering page '%s': %s", pageName, err)
	}
}
