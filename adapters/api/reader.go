// Package api reads dataset records from JSON documents and HTTP endpoints.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"kpiscout/internal/errors"
)

// Records is a batch of JSON objects with the column order they first
// appeared in
type Records struct {
	Headers []string
	Rows    []map[string]interface{}
}

// ExtractRecords pulls the records at dataPath out of a JSON document. The
// path may point at an array of objects or a single object.
func ExtractRecords(body []byte, dataPath string) (*Records, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.InvalidInput("body is not valid JSON")
	}
	data := gjson.ParseBytes(body)
	if dataPath != "" {
		data = data.Get(dataPath)
	}
	if !data.Exists() {
		return nil, errors.InvalidInput(fmt.Sprintf("data path '%s' not found in document", dataPath))
	}

	out := &Records{}
	seen := map[string]bool{}
	collect := func(obj gjson.Result) error {
		var row map[string]interface{}
		if err := json.Unmarshal([]byte(obj.Raw), &row); err != nil {
			return err
		}
		obj.ForEach(func(key, _ gjson.Result) bool {
			if k := key.String(); !seen[k] {
				seen[k] = true
				out.Headers = append(out.Headers, k)
			}
			return true
		})
		out.Rows = append(out.Rows, row)
		return nil
	}

	switch {
	case data.IsArray():
		var err error
		data.ForEach(func(_, item gjson.Result) bool {
			if !item.IsObject() {
				err = fmt.Errorf("record %s is not an object", item.Raw)
				return false
			}
			err = collect(item)
			return err == nil
		})
		if err != nil {
			return nil, errors.WithCode(errors.CodeInvalidInput, err)
		}
	case data.IsObject():
		if err := collect(data); err != nil {
			return nil, errors.WithCode(errors.CodeInvalidInput, err)
		}
	default:
		return nil, errors.InvalidInput(fmt.Sprintf("data path '%s' is not an array or object", dataPath))
	}
	return out, nil
}

// RecordSource fetches records from a JSON endpoint
type RecordSource struct {
	config     SourceConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewRecordSource creates a source for the configured endpoint
func NewRecordSource(config SourceConfig, logger *zap.Logger) (*RecordSource, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordSource{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}, nil
}

// Fetch retrieves every page of records
func (s *RecordSource) Fetch(ctx context.Context) (*Records, error) {
	start := time.Now()
	all := &Records{}
	seen := map[string]bool{}
	cursor := ""

	for page := 0; page < s.config.MaxPages; page++ {
		body, err := s.get(ctx, cursor)
		if err != nil {
			return nil, err
		}
		recs, err := ExtractRecords(body, s.config.DataPath)
		if err != nil {
			return nil, err
		}
		for _, h := range recs.Headers {
			if !seen[h] {
				seen[h] = true
				all.Headers = append(all.Headers, h)
			}
		}
		all.Rows = append(all.Rows, recs.Rows...)

		if s.config.CursorParam == "" {
			break
		}
		if cursor = nextCursor(body); cursor == "" {
			break
		}
	}

	s.logger.Info("records fetched",
		zap.String("url", s.config.URL),
		zap.Int("records", len(all.Rows)),
		zap.Duration("elapsed", time.Since(start)))
	return all, nil
}

func (s *RecordSource) get(ctx context.Context, cursor string) ([]byte, error) {
	u, err := url.Parse(s.config.URL)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	if cursor != "" {
		q := u.Query()
		q.Set(s.config.CursorParam, cursor)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range s.config.Headers {
		req.Header.Set(k, v)
	}
	switch s.config.AuthMethod {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+s.config.AuthToken)
	case "api_key":
		req.Header.Set("X-API-Key", s.config.AuthToken)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.ExternalServiceError("records endpoint", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.ExternalServiceError("records endpoint", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.ExternalServiceError("records endpoint", fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200)))
	}
	return body, nil
}

// nextCursor extracts the cursor for the next page
func nextCursor(body []byte) string {
	for _, field := range []string{"next_cursor", "cursor", "next", "continuation_token", "meta.next_cursor"} {
		if c := gjson.GetBytes(body, field); c.Exists() && c.String() != "" {
			return c.String()
		}
	}
	return ""
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
