package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainInsight "kpiscout/domain/insight"
	"kpiscout/internal/testkit"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAnalyzeCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, testkit.NewSalesGenerator(testkit.DefaultSalesConfig()).WriteCSV(f))
	require.NoError(t, f.Close())

	out, err := execute(t, "analyze", path, "--pretty=false", "--dims", "category")
	require.NoError(t, err)

	var results domainInsight.Results
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.Equal(t, "sales.csv", results.DatasetName)
	assert.Equal(t, []string{"category"}, results.Insights.Selection.Dimensions)
}

func TestAnalyzeCommandNeedsOneSource(t *testing.T) {
	_, err := execute(t, "analyze")
	assert.Error(t, err)

	_, err = execute(t, "analyze", "a.csv", "--url", "http://example.test")
	assert.Error(t, err)
}

func TestDemoCommand(t *testing.T) {
	csvPath := filepath.Join(t.TempDir(), "demo.csv")
	out, err := execute(t, "demo", "--orders", "200", "--csv", csvPath)
	require.NoError(t, err)

	assert.Contains(t, out, "Measure: sales_amount")
	assert.FileExists(t, csvPath)
}

func TestExportCommandRejectsFormat(t *testing.T) {
	_, err := execute(t, "export", "some-id", "--format", "pdf")
	assert.Error(t, err)
}
