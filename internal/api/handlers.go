package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	jsonsource "kpiscout/adapters/api"
	"kpiscout/adapters/export"
	"kpiscout/app"
	domainInsight "kpiscout/domain/insight"
	"kpiscout/internal/errors"
)

// handleAnalyze accepts a multipart upload in field "file" plus optional
// form overrides
func (s *Server) handleAnalyze(c *gin.Context) {
	if c.Request.ContentLength > s.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large", "code": "PAYLOAD_TOO_LARGE"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)

	header, err := c.FormFile("file")
	if err != nil {
		if isTooLarge(err) {
			respondError(c, err)
			return
		}
		respondError(c, errors.InvalidInput("multipart field 'file' is required"))
		return
	}
	if !s.runs.Supports(header.Filename) {
		respondError(c, errors.UnsupportedFormat(header.Filename))
		return
	}
	opts, err := optionsFromForm(c)
	if err != nil {
		respondError(c, err)
		return
	}

	file, err := header.Open()
	if err != nil {
		respondError(c, errors.Wrap(err, "failed to open upload"))
		return
	}
	defer file.Close()

	results, err := s.analyzeWithSlot(c.Request.Context(), header.Filename, func(ctx context.Context) (*domainInsight.Results, error) {
		return s.runs.RunUpload(ctx, header.Filename, file, opts)
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// handleAnalyzeRecords accepts a JSON document. Records are read from the
// gjson path in ?data_path= (default "records"); "name" and "options" are
// read from the top level.
func (s *Server) handleAnalyzeRecords(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload))
	if err != nil {
		respondError(c, err)
		return
	}

	dataPath := c.DefaultQuery("data_path", "records")
	recs, err := jsonsource.ExtractRecords(body, dataPath)
	if err != nil {
		respondError(c, err)
		return
	}

	name := gjson.GetBytes(body, "name").String()
	if name == "" {
		name = c.DefaultQuery("name", "records")
	}
	var opts app.Options
	if raw := gjson.GetBytes(body, "options"); raw.Exists() {
		if err := json.Unmarshal([]byte(raw.Raw), &opts); err != nil {
			respondError(c, errors.WithCode(errors.CodeInvalidInput, fmt.Errorf("invalid options: %w", err)))
			return
		}
	}

	results, err := s.analyzeWithSlot(c.Request.Context(), name, func(ctx context.Context) (*domainInsight.Results, error) {
		return s.runs.RunRecords(ctx, name, recs.Headers, recs.Rows, opts)
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (s *Server) handleListRuns(c *gin.Context) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		respondError(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		respondError(c, err)
		return
	}

	runs, err := s.runs.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

func (s *Server) handleGetRun(c *gin.Context) {
	results, err := s.runs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (s *Server) handleDeleteRun(c *gin.Context) {
	if err := s.runs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleExportRun(c *gin.Context) {
	format, err := export.ParseFormat(c.DefaultQuery("format", "csv"))
	if err != nil {
		respondError(c, err)
		return
	}
	results, err := s.runs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := s.exporter.Write(&buf, results, format); err != nil {
		respondError(c, err)
		return
	}
	if format != export.FormatHTML {
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, format.FileName(results)))
	}
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

// optionsFromForm reads factors, measure_col, time_col and dimension_cols.
// dimension_cols may repeat or hold a comma-separated list.
func optionsFromForm(c *gin.Context) (app.Options, error) {
	opts := app.Options{
		MeasureCol: strings.TrimSpace(c.PostForm("measure_col")),
		TimeCol:    strings.TrimSpace(c.PostForm("time_col")),
	}
	if raw := strings.TrimSpace(c.PostForm("factors")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return opts, errors.InvalidInput(fmt.Sprintf("factors must be a positive integer, got %q", raw))
		}
		opts.Factors = n
	}
	for _, v := range c.PostFormArray("dimension_cols") {
		for _, col := range strings.Split(v, ",") {
			if col = strings.TrimSpace(col); col != "" {
				opts.DimensionCols = append(opts.DimensionCols, col)
			}
		}
	}
	return opts, nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.InvalidInput(fmt.Sprintf("%s must be an integer, got %q", key, raw))
	}
	return n, nil
}
