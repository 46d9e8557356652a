// Package web serves a read-only HTML browser over stored analysis runs.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gopattern/app"
	"gopattern/domain/core"
	"gopattern/internal"
	"gopattern/internal/errors"
	"gopattern/internal/report"
	"gopattern/ports"
)

//go:embed templates/*.html
var embeddedFiles embed.FS

// App represents the report browser
type App struct {
	router  *chi.Mux
	service *app.DiscoveryService
	pages   map[string]*template.Template
	logger  *internal.Logger
}

// NewApp creates the browser and registers its routes
func NewApp(service *app.DiscoveryService, logger *internal.Logger) (*App, error) {
	if logger == nil {
		logger = internal.NopLogger()
	}
	funcMap := template.FuncMap{
		"short": func(s string) string {
			if len(s) > 12 {
				return s[:12]
			}
			return s
		},
	}

	pages := make(map[string]*template.Template)
	for _, name := range []string{"runs", "run"} {
		t, err := template.New(name).Funcs(funcMap).ParseFS(embeddedFiles, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse templates: %w", err)
		}
		pages[name] = t
	}

	a := &App{
		router:  chi.NewRouter(),
		service: service,
		pages:   pages,
		logger:  logger.Named("web"),
	}
	a.setupMiddleware()
	a.setupRoutes()
	return a, nil
}

// Router exposes the chi router so other handlers can be mounted next to the pages.
func (a *App) Router() *chi.Mux {
	return a.router
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *App) setupMiddleware() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

func (a *App) setupRoutes() {
	a.router.Get("/", a.handleRuns)
	a.router.Get("/runs/{id}", a.handleRun)
}

func (a *App) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := a.service.ListRuns(r.Context(), ports.RunFilters{Limit: 100})
	if err != nil {
		a.renderError(w, err)
		return
	}
	a.render(w, "runs", map[string]interface{}{
		"Title": "Analysis runs",
		"Runs":  runs,
	})
}

func (a *App) handleRun(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		a.renderError(w, errors.WithCode(errors.CodeInvalidInput, err))
		return
	}
	run, err := a.service.GetRun(r.Context(), id)
	if err != nil {
		a.renderError(w, err)
		return
	}
	a.render(w, "run", map[string]interface{}{
		"Title":  "Run " + run.ID.String(),
		"RunID":  run.ID.String(),
		"Report": template.HTML(report.HTML(run)),
	})
}

func (a *App) render(w http.ResponseWriter, page string, data interface{}) {
	var buf bytes.Buffer
	if err := a.pages[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		a.logger.Error("render %s: %v", page, err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (a *App) renderError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.CodeInvalidInput:
		status = http.StatusBadRequest
	case errors.CodeNotFound:
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		a.logger.Error("request failed: %v", err)
	}
	http.Error(w, http.StatusText(status), status)
}
