package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kpiscout/internal/errors"
)

func TestExtractRecordsKeepsDocumentOrder(t *testing.T) {
	body := []byte(`{"data":{"items":[
		{"order_id":"A1","sales_amount":10.5,"region":"north"},
		{"order_id":"A2","sales_amount":7,"channel":"web"}
	]}}`)

	recs, err := ExtractRecords(body, "data.items")
	require.NoError(t, err)
	assert.Equal(t, []string{"order_id", "sales_amount", "region", "channel"}, recs.Headers)
	require.Len(t, recs.Rows, 2)
	assert.Equal(t, 10.5, recs.Rows[0]["sales_amount"])
	assert.Equal(t, "web", recs.Rows[1]["channel"])
}

func TestExtractRecordsShapes(t *testing.T) {
	recs, err := ExtractRecords([]byte(`{"a":1}`), "")
	require.NoError(t, err)
	assert.Len(t, recs.Rows, 1)

	cases := map[string]struct {
		body, path string
	}{
		"invalid json":   {`{"a":`, ""},
		"missing path":   {`{"a":[]}`, "b"},
		"scalar":         {`{"a":3}`, "a"},
		"non-object row": {`[{"a":1},2]`, ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ExtractRecords([]byte(tc.body), tc.path)
			assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
		})
	}
}

func TestRecordSourceFollowsCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("after") {
		case "":
			fmt.Fprint(w, `{"rows":[{"x":1},{"x":2}],"next_cursor":"p2"}`)
		case "p2":
			fmt.Fprint(w, `{"rows":[{"x":3,"y":"b"}]}`)
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("after"))
		}
	}))
	defer srv.Close()

	cfg := DefaultSourceConfig(srv.URL)
	cfg.DataPath = "rows"
	cfg.CursorParam = "after"
	cfg.MaxPages = 5
	cfg.AuthMethod = "bearer"
	cfg.AuthToken = "secret"

	src, err := NewRecordSource(cfg, nil)
	require.NoError(t, err)
	recs, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs.Rows, 3)
	assert.Equal(t, []string{"x", "y"}, recs.Headers)
}

func TestRecordSourceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	src, err := NewRecordSource(DefaultSourceConfig(srv.URL), nil)
	require.NoError(t, err)
	_, err = src.Fetch(context.Background())
	assert.Equal(t, errors.CodeExternalService, errors.GetCode(err))
}

func TestSourceConfigValidate(t *testing.T) {
	_, err := NewRecordSource(SourceConfig{}, nil)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))

	cfg := DefaultSourceConfig("http://example.test")
	cfg.AuthMethod = "basic"
	assert.Error(t, cfg.Validate())
}
