package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// FileExporter writes spans as JSON lines to one file per process run,
// named after the workflow. The file is created lazily on the first batch
// so an instrumented process that never traces leaves nothing behind.
type FileExporter struct {
	dir      string
	workflow string

	mu      sync.Mutex
	file    *os.File
	enc     *json.Encoder
	stopped bool
}

// NewFile builds a file exporter writing under dir; an empty dir means the
// OS temp directory.
func NewFile(dir, workflow string) *FileExporter {
	if dir == "" {
		dir = os.TempDir()
	}
	if workflow == "" {
		workflow = "default"
	}
	return &FileExporter{dir: dir, workflow: workflow}
}

// Path returns the output file path, empty until the first export.
func (e *FileExporter) Path() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.file == nil {
		return ""
	}
	return e.file.Name()
}

// ExportSpans implements sdktrace.SpanExporter.
func (e *FileExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return nil
	}
	if e.file == nil {
		if err := e.open(); err != nil {
			return err
		}
	}
	for _, s := range spans {
		if err := e.enc.Encode(toRecord(s)); err != nil {
			return fmt.Errorf("export: write span: %w", err)
		}
	}
	return nil
}

func (e *FileExporter) open() error {
	name := fmt.Sprintf("tsuiseki_trace_%s_%s_%s.ndjson",
		e.workflow, time.Now().UTC().Format("20060102T150405"), uuid.NewString()[:8])
	f, err := os.OpenFile(filepath.Join(e.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("export: open trace file: %w", err)
	}
	e.file = f
	e.enc = json.NewEncoder(f)
	return nil
}

// Shutdown implements sdktrace.SpanExporter.
func (e *FileExporter) Shutdown(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	if e.file == nil {
		return nil
	}
	err := e.file.Close()
	e.file = nil
	return err
}
