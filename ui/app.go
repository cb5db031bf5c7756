// Package ui serves the HTML pages and mounts the REST API.
package ui

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"kpiscout/adapters/export"
	"kpiscout/app"
)

//go:embed templates/*.html
var embeddedFiles embed.FS

// App is the root HTTP router
type App struct {
	router    *chi.Mux
	runs      *app.RunService
	exporter  *export.Exporter
	templates *template.Template
	logger    *zap.Logger
}

// NewApp builds the router. api is mounted at /api and may be nil.
func NewApp(runs *app.RunService, exporter *export.Exporter, api http.Handler, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if exporter == nil {
		exporter = export.NewExporter(logger.Named("export"))
	}

	funcMap := template.FuncMap{
		"short": func(s string) string {
			if len(s) > 12 {
				return s[:12]
			}
			return s
		},
	}
	templates, err := template.New("").Funcs(funcMap).ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	a := &App{
		router:    chi.NewRouter(),
		runs:      runs,
		exporter:  exporter,
		templates: templates,
		logger:    logger,
	}
	a.setupMiddleware()
	a.setupRoutes(api)
	return a, nil
}

func (a *App) setupMiddleware() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

func (a *App) setupRoutes(api http.Handler) {
	a.router.Get("/", a.handleIndex)
	a.router.Get("/healthz", a.handleHealth)
	a.router.Get("/reports/{id}", a.handleReport)
	if api != nil {
		a.router.Mount("/api", api)
	}
}

// ServeHTTP implements http.Handler
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}
