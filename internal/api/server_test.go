package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kpiscout/adapters/excel"
	"kpiscout/adapters/postgres"
	"kpiscout/app"
	domainInsight "kpiscout/domain/insight"
	"kpiscout/internal/config"
	"kpiscout/internal/factor"
	"kpiscout/internal/migration"
	"kpiscout/internal/testkit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, maxUpload int64) *Server {
	t.Helper()
	ctx := context.Background()
	db, err := postgres.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migration.NewRunner(nil).Run(ctx, db))

	h := config.DefaultHeuristics()
	analysis := app.NewAnalysisService(h, factor.NewCapability(h.Factor), nil, 3, nil)
	runs := app.NewRunService(analysis, excel.NewDataReader(excel.DefaultReaderConfig(), nil), postgres.NewResultsRepository(db), nil)
	return NewServer(Config{MaxConcurrentAnalyses: 2, MaxUploadBytes: maxUpload}, runs, nil, nil, nil)
}

func uploadRequest(t *testing.T, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func salesCSV(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, testkit.NewSalesGenerator(testkit.DefaultSalesConfig()).WriteCSV(&buf))
	return buf.Bytes()
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeUploadThenFetchAndExport(t *testing.T) {
	s := newTestServer(t, 10<<20)
	events, unsubscribe := s.Hub().Subscribe()
	defer unsubscribe()

	rec := serve(s, uploadRequest(t, "sales.csv", salesCSV(t), map[string]string{
		"factors":        "2",
		"dimension_cols": "store_city, category",
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var results domainInsight.Results
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	assert.Equal(t, "sales.csv", results.DatasetName)
	assert.Equal(t, []string{"store_city", "category"}, results.Insights.Selection.Dimensions)

	select {
	case ev := <-events:
		assert.Equal(t, EventRunCompleted, ev.Type)
		assert.Equal(t, results.RunID.String(), ev.RunID)
	case <-time.After(time.Second):
		t.Fatal("no run event published")
	}

	id := results.RunID.String()
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/runs/"+id, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Runs  []domainInsight.RunSummary `json:"runs"`
		Count int                        `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, 1, listing.Count)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/runs/"+id+"/export?format=csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "path,value"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/runs/"+id+"/export?format=html", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/runs/"+id+"/export?format=pdf", nil))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = serve(s, httptest.NewRequest(http.MethodDelete, "/api/runs/"+id, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/runs/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyzeUploadErrors(t *testing.T) {
	s := newTestServer(t, 1<<20)

	rec := serve(s, uploadRequest(t, "sales.pdf", []byte("%PDF"), nil))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = serve(s, uploadRequest(t, "sales.csv", salesCSV(t), map[string]string{"factors": "zero"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader("no multipart"))
	rec = serve(s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(s, uploadRequest(t, "empty.csv", []byte("a,b\n"), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "EMPTY_DATASET")

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/runs/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeUploadTooLarge(t *testing.T) {
	s := newTestServer(t, 1024)
	rec := serve(s, uploadRequest(t, "sales.csv", salesCSV(t), nil))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAnalyzeRecords(t *testing.T) {
	s := newTestServer(t, 1<<20)
	body := `{
		"name": "regions",
		"options": {"measure_col": "revenue"},
		"payload": {"rows": [
			{"region": "north", "revenue": 120.5, "units": 3},
			{"region": "south", "revenue": 80.25, "units": 2},
			{"region": "north", "revenue": 99.1, "units": 4},
			{"region": "east", "revenue": 45.0, "units": 1}
		]}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/analyze/records?data_path=payload.rows", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var results domainInsight.Results
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	assert.Equal(t, "regions", results.DatasetName)
	assert.Equal(t, []string{"region", "revenue", "units"}, results.Columns)
	assert.Equal(t, "revenue", results.Insights.Selection.Measure)

	rec = serve(s, httptest.NewRequest(http.MethodPost, "/api/analyze/records", strings.NewReader(`{"records": []}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(s, httptest.NewRequest(http.MethodPost, "/api/analyze/records", strings.NewReader(`{"records": [`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventHubSubscribers(t *testing.T) {
	hub := NewEventHub(nil)
	a, unsubA := hub.Subscribe()
	_, unsubB := hub.Subscribe()
	assert.Equal(t, 2, hub.ClientCount())

	hub.Publish(RunEvent{Type: EventRunFailed, DatasetName: "x"})
	ev := <-a
	assert.Equal(t, EventRunFailed, ev.Type)

	unsubB()
	unsubB()
	assert.Equal(t, 1, hub.ClientCount())
	unsubA()
	_, ok := <-a
	assert.False(t, ok)
}
