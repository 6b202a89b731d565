package export

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ashita-ai/tsuiseki/internal/config"
)

// Exporter names accepted in TSUISEKI_EXPORTERS.
const (
	NameFile    = "file"
	NameConsole = "console"
	NameMemory  = "memory"
	NameOTLP    = "otlp"
	NameSQLite  = "sqlite"
)

// memory is process-wide so tests and the instrumented code observe the
// same spans.
var memory = tracetest.NewInMemoryExporter()

// Memory returns the shared in-memory exporter.
func Memory() *tracetest.InMemoryExporter { return memory }

// Build resolves the configured exporter names into span exporters.
// Unknown names warn and fall back to the file exporter; a constructor
// failure degrades that slot to console. Build never returns an empty
// slice.
func Build(ctx context.Context, logger *slog.Logger, cfg config.Config) []sdktrace.SpanExporter {
	if logger == nil {
		logger = slog.Default()
	}
	names := cfg.Exporters
	if len(names) == 0 {
		names = []string{NameFile}
	}

	var out []sdktrace.SpanExporter
	seen := map[string]bool{}
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		if exp := build(ctx, logger, cfg, name); exp != nil {
			out = append(out, exp)
		}
	}
	if len(out) == 0 {
		out = append(out, NewFile(cfg.FileExporterDir, cfg.WorkflowName))
	}
	return out
}

func build(ctx context.Context, logger *slog.Logger, cfg config.Config, name string) sdktrace.SpanExporter {
	switch name {
	case NameFile:
		return NewFile(cfg.FileExporterDir, cfg.WorkflowName)

	case NameConsole:
		return console(logger)

	case NameMemory:
		return memory

	case NameOTLP:
		opts := []otlptracehttp.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			logger.Warn("export: otlp exporter unavailable, using console", "error", err)
			return console(logger)
		}
		return exp

	case NameSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = "tsuiseki_traces.db"
		}
		exp, err := NewSQLite(ctx, path)
		if err != nil {
			logger.Warn("export: sqlite exporter unavailable, using console", "error", err, "path", path)
			return console(logger)
		}
		return exp

	default:
		logger.Warn("export: unknown exporter, using file", "exporter", name)
		return NewFile(cfg.FileExporterDir, cfg.WorkflowName)
	}
}

func console(logger *slog.Logger) sdktrace.SpanExporter {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(os.Stdout))
	if err != nil {
		logger.Warn("export: console exporter unavailable", "error", err)
		return memory
	}
	return exp
}
