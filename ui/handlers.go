package ui

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"kpiscout/adapters/export"
	domainInsight "kpiscout/domain/insight"
	"kpiscout/internal/errors"
)

type indexPage struct {
	Runs   []domainInsight.RunSummary
	Offset int
	Next   int
	Error  string
}

const pageSize = 25

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	page := indexPage{Offset: offset}

	runs, err := a.runs.List(r.Context(), pageSize, offset)
	if err != nil {
		a.logger.Warn("failed to list runs", zap.Error(err))
		page.Error = err.Error()
	} else {
		page.Runs = runs
		if len(runs) == pageSize {
			page.Next = offset + pageSize
		}
	}

	var buf bytes.Buffer
	if err := a.templates.ExecuteTemplate(&buf, "index.html", page); err != nil {
		a.logger.Error("failed to render index", zap.Error(err))
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (a *App) handleReport(w http.ResponseWriter, r *http.Request) {
	results, err := a.runs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), errors.HTTPStatus(err))
		return
	}

	var buf bytes.Buffer
	if err := a.exporter.Write(&buf, results, export.FormatHTML); err != nil {
		a.logger.Error("failed to render report", zap.String("run_id", results.RunID.String()), zap.Error(err))
		http.Error(w, "Report error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", export.FormatHTML.ContentType())
	w.Write(buf.Bytes())
}
