package export

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashita-ai/tsuiseki/internal/config"
)

func sampleSpans(t *testing.T) []sdktrace.ReadOnlySpan {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("0123456789abcdef")
	require.NoError(t, err)

	start := time.Now().Add(-time.Second)
	stubs := tracetest.SpanStubs{{
		Name: "openai.ChatCompletions.Create",
		SpanContext: trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: traceID,
			SpanID:  spanID,
		}),
		StartTime: start,
		EndTime:   start.Add(120 * time.Millisecond),
		Attributes: []attribute.KeyValue{
			attribute.String("span.type", "inference"),
			attribute.Int("entity.count", 2),
		},
		Events: []sdktrace.Event{{
			Name: "data.output",
			Time: start.Add(100 * time.Millisecond),
			Attributes: []attribute.KeyValue{
				attribute.String("response", `{"assistant": "hi"}`),
			},
		}},
	}}
	return stubs.Snapshots()
}

func TestFileExporterWritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	exp := NewFile(dir, "test-app")

	require.NoError(t, exp.ExportSpans(context.Background(), sampleSpans(t)))
	require.NoError(t, exp.Shutdown(context.Background()))

	matches, err := filepath.Glob(filepath.Join(dir, "tsuiseki_trace_test-app_*.ndjson"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	f, err := os.Open(matches[0])
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())

	var rec map[string]any
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
	assert.Equal(t, "openai.ChatCompletions.Create", rec["name"])
	assert.Equal(t, "0123456789abcdef0123456789abcdef", rec["trace_id"])
	attrs, _ := rec["attributes"].(map[string]any)
	assert.Equal(t, "inference", attrs["span.type"])
}

func TestFileExporterCreatesNothingWithoutSpans(t *testing.T) {
	dir := t.TempDir()
	exp := NewFile(dir, "idle")
	require.NoError(t, exp.Shutdown(context.Background()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSQLiteExporterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.db")
	exp, err := NewSQLite(context.Background(), path)
	require.NoError(t, err)

	require.NoError(t, exp.ExportSpans(context.Background(), sampleSpans(t)))

	var name, status string
	var attrs string
	row := exp.db.QueryRow(`SELECT name, status, attributes FROM spans WHERE trace_id = ?`,
		"0123456789abcdef0123456789abcdef")
	require.NoError(t, row.Scan(&name, &status, &attrs))
	assert.Equal(t, "openai.ChatCompletions.Create", name)
	assert.Contains(t, attrs, `"span.type":"inference"`)

	require.NoError(t, exp.Shutdown(context.Background()))
}

func TestBuildUnknownNameFallsBackToFile(t *testing.T) {
	cfg := config.Config{
		Exporters:       []string{"kafka"},
		FileExporterDir: t.TempDir(),
		WorkflowName:    "test-app",
	}
	exps := Build(context.Background(), nil, cfg)
	require.Len(t, exps, 1)
	_, ok := exps[0].(*FileExporter)
	assert.True(t, ok)
}

func TestBuildMemorySharesSingleton(t *testing.T) {
	cfg := config.Config{Exporters: []string{NameMemory}}
	exps := Build(context.Background(), nil, cfg)
	require.Len(t, exps, 1)
	assert.Same(t, Memory(), exps[0])
}

func TestBuildDeduplicatesNames(t *testing.T) {
	cfg := config.Config{
		Exporters:       []string{NameMemory, NameMemory, NameMemory},
		FileExporterDir: t.TempDir(),
	}
	exps := Build(context.Background(), nil, cfg)
	assert.Len(t, exps, 1)
}
