package ui

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kpiscout/adapters/excel"
	"kpiscout/adapters/postgres"
	"kpiscout/app"
	"kpiscout/domain/core"
	"kpiscout/internal/config"
	"kpiscout/internal/factor"
	"kpiscout/internal/migration"
	"kpiscout/internal/testkit"
)

func newTestApp(t *testing.T, api http.Handler) (*App, *app.RunService) {
	t.Helper()
	ctx := context.Background()
	db, err := postgres.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "ui.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migration.NewRunner(nil).Run(ctx, db))

	h := config.DefaultHeuristics()
	analysis := app.NewAnalysisService(h, factor.NewCapability(h.Factor), nil, 3, nil)
	runs := app.NewRunService(analysis, excel.NewDataReader(excel.DefaultReaderConfig(), nil), postgres.NewResultsRepository(db), nil)

	a, err := NewApp(runs, nil, api, nil)
	require.NoError(t, err)
	return a, runs
}

func get(a *App, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	a, _ := newTestApp(t, nil)
	rec := get(a, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestIndexAndReport(t *testing.T) {
	a, runs := newTestApp(t, nil)

	rec := get(a, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No runs yet.")

	var buf bytes.Buffer
	require.NoError(t, testkit.NewSalesGenerator(testkit.DefaultSalesConfig()).WriteCSV(&buf))
	results, err := runs.RunUpload(context.Background(), "sales.csv", &buf, app.Options{})
	require.NoError(t, err)

	rec = get(a, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/reports/"+results.RunID.String())

	rec = get(a, "/reports/"+results.RunID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sales.csv")
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	rec = get(a, "/reports/"+core.NewRunID().String())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMountsAPI(t *testing.T) {
	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("api:" + r.URL.Path))
	})
	a, _ := newTestApp(t, api)

	rec := get(a, "/api/runs")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "api:/api/runs", rec.Body.String())
}
