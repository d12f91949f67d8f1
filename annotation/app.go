package annotation

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/lewtec/mosaico/internal/domain"
)

// AnnotatorApp serves one Session over HTTP. Every handler holds the app
// lock, so session actions are serialised.
type AnnotatorApp struct {
	Session *Session
	// Context runs a context-level pass instead of a patch-level one
	Context bool
	Options AnnotateOptions

	mu      sync.Mutex
	started bool
}

func stringOr(str, or string) string {
	if str != "" {
		return str
	} else {
		return or
	}
}

func quote(text string) string {
	return "> " + strings.ReplaceAll(text, "\n", "\n> ")
}

// Start begins the annotation pass if it is not running yet
func (a *AnnotatorApp) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.start()
}

func (a *AnnotatorApp) start() error {
	if a.started {
		return nil
	}
	var err error
	if a.Context {
		_, err = a.Session.AnnotateContext(a.Options)
	} else {
		_, err = a.Session.Annotate(a.Options)
	}
	if err != nil {
		return err
	}
	a.started = true
	return nil
}

// locked runs handler with the app lock held and the pass started
func (a *AnnotatorApp) locked(handler func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		err := a.start()
		if err == nil {
			err = handler(w, r)
		}
		if err != nil {
			writeError(w, err)
		}
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var (
		schemaErr *domain.SchemaError
		configErr *domain.ConfigurationError
	)
	switch {
	case errors.Is(err, domain.ErrSessionComplete), errors.Is(err, domain.ErrNotFocal):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrUnknownRow), errors.As(err, &schemaErr):
		status = http.StatusBadRequest
	case errors.As(err, &configErr):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		log.Printf("error: http: %s", err)
	}
	http.Error(w, err.Error(), status)
}

func (a *AnnotatorApp) GetHTTPHandler() http.Handler {
	mux := http.NewServeMux()
	cfg := a.Session.Config()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		var markdownBuilder strings.Builder
		fmt.Fprintf(&markdownBuilder, "# Welcome to mosaico\n")
		fmt.Fprintf(&markdownBuilder, "%s\n\n", quote(stringOr(cfg.Meta.Description, "(No description provided)")))
		fmt.Fprintf(&markdownBuilder, "Annotating as **%s**, task **%s**.\n\n", cfg.Username, cfg.TaskName)
		fmt.Fprintf(&markdownBuilder, "[Annotation instructions](/help) ")
		fmt.Fprintf(&markdownBuilder, "[Continue annotations](/annotate)")
		RenderPage(w, "welcome", TemplateContent{Title: "Welcome", Content: markdownBuilder.String()})
	})

	mux.HandleFunc("GET /help", func(w http.ResponseWriter, r *http.Request) {
		var markdownBuilder strings.Builder
		fmt.Fprintf(&markdownBuilder, "# [<](/) Project help\n")
		fmt.Fprintf(&markdownBuilder, "## Description\n")
		fmt.Fprintf(&markdownBuilder, "%s\n\n", quote(stringOr(cfg.Meta.Description, "(No description provided)")))
		fmt.Fprintf(&markdownBuilder, "## Possible choices\n")
		for i, label := range cfg.Labels {
			fmt.Fprintf(&markdownBuilder, "%d. %s\n", i+1, label)
		}
		if len(cfg.MinValues) > 0 || len(cfg.MaxValues) > 0 {
			fmt.Fprintf(&markdownBuilder, "\n## Filters\n")
			for _, col := range sortedKeys(cfg.MinValues) {
				fmt.Fprintf(&markdownBuilder, "- `%s` >= %s\n", col, formatNumber(cfg.MinValues[col]))
			}
			for _, col := range sortedKeys(cfg.MaxValues) {
				fmt.Fprintf(&markdownBuilder, "- `%s` <= %s\n", col, formatNumber(cfg.MaxValues[col]))
			}
		}
		fmt.Fprintf(&markdownBuilder, "\nAnnotations are saved to `%s`.\n", a.Session.saves.Path(a.Session.Filename()))
		RenderPage(w, "help", TemplateContent{Title: "Help", Content: markdownBuilder.String()})
	})

	mux.HandleFunc("GET /annotate", a.locked(func(w http.ResponseWriter, r *http.Request) error {
		view := a.Session.View()
		var markdownBuilder strings.Builder
		fmt.Fprintf(&markdownBuilder, "# [<](/) Annotate ([help](/help))\n")
		form := &AnnotateForm{Labels: view.Labels, Complete: view.Complete}
		if view.Complete {
			fmt.Fprintf(&markdownBuilder, "## All annotations done with this subset!\n\n")
			fmt.Fprintf(&markdownBuilder, "%d of %d rows are annotated. Saved to `%s`.\n",
				len(a.Session.Filtered()), a.Session.Store().Len(), a.Session.Filename())
			RenderPage(w, "annotate", TemplateContent{Title: "Done", Content: markdownBuilder.String(), Form: form})
			return nil
		}
		form.Key = view.Key
		form.Current = view.Label
		fmt.Fprintf(&markdownBuilder, "**%d** of **%d** (%s)\n\n", view.Index+1, view.Total, a.Session.Mode())
		for _, warning := range view.Warnings {
			fmt.Fprintf(&markdownBuilder, "**Warning:** %s\n\n", warning)
		}
		fmt.Fprintf(&markdownBuilder, "![%s](/image/current.png?i=%d)\n\n", view.Key, view.Index)
		if view.Patch != nil {
			fmt.Fprintf(&markdownBuilder, "`%s` from `%s`", view.Patch.ImagePath, view.Patch.ParentID)
			if view.Patch.URL != "" {
				fmt.Fprintf(&markdownBuilder, " ([view the map](%s))", view.Patch.URL)
			}
			fmt.Fprintf(&markdownBuilder, "\n")
		}
		RenderPage(w, "annotate", TemplateContent{Title: "Annotate", Content: markdownBuilder.String(), Form: form})
		return nil
	}))

	mux.HandleFunc("POST /annotate/label", a.locked(func(w http.ResponseWriter, r *http.Request) error {
		if err := r.ParseForm(); err != nil {
			return &domain.SchemaError{Column: "form", Reason: err.Error()}
		}
		key, label := r.PostForm.Get("key"), r.PostForm.Get("label")
		if _, err := a.Session.Record(key, label); err != nil {
			return err
		}
		http.Redirect(w, r, "/annotate", http.StatusSeeOther)
		return nil
	}))

	mux.HandleFunc("POST /annotate/next", a.locked(func(w http.ResponseWriter, r *http.Request) error {
		if _, err := a.Session.Next(); err != nil {
			return err
		}
		http.Redirect(w, r, "/annotate", http.StatusSeeOther)
		return nil
	}))

	mux.HandleFunc("POST /annotate/prev", a.locked(func(w http.ResponseWriter, r *http.Request) error {
		if _, err := a.Session.Prev(); err != nil {
			return err
		}
		http.Redirect(w, r, "/annotate", http.StatusSeeOther)
		return nil
	}))

	mux.HandleFunc("POST /annotate/save", a.locked(func(w http.ResponseWriter, r *http.Request) error {
		if err := a.Session.Save(); err != nil {
			return err
		}
		http.Redirect(w, r, "/annotate", http.StatusSeeOther)
		return nil
	}))

	mux.HandleFunc("GET /image/current.png", a.locked(func(w http.ResponseWriter, r *http.Request) error {
		if a.Session.Current().Complete {
			http.NotFoundHandler().ServeHTTP(w, r)
			return nil
		}
		img, _, err := a.Session.Render()
		if err != nil {
			return err
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		return EncodePNG(w, img)
	}))

	var handler http.Handler = mux
	handler = HTTPLogger(handler)
	return handler
}
