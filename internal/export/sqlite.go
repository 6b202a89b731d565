package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS spans (
	trace_id       TEXT NOT NULL,
	span_id        TEXT NOT NULL,
	parent_span_id TEXT,
	name           TEXT NOT NULL,
	start_ns       INTEGER NOT NULL,
	end_ns         INTEGER NOT NULL,
	status         TEXT NOT NULL,
	status_message TEXT,
	attributes     TEXT,
	events         TEXT,
	PRIMARY KEY (trace_id, span_id)
);
CREATE INDEX IF NOT EXISTS idx_spans_trace_id ON spans(trace_id);
CREATE INDEX IF NOT EXISTS idx_spans_start ON spans(start_ns);`

// SQLiteExporter archives spans into a local SQLite database. WAL mode
// keeps writers from blocking a reader inspecting the archive while the
// instrumented process runs.
type SQLiteExporter struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the archive database at path.
func NewSQLite(ctx context.Context, path string) (*SQLiteExporter, error) {
	if path == "" {
		return nil, fmt.Errorf("export: sqlite path is required")
	}
	connStr := path
	if path != ":memory:" {
		connStr += "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("export: open sqlite archive: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("export: connect sqlite archive: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("export: create archive schema: %w", err)
	}
	return &SQLiteExporter{db: db}, nil
}

// ExportSpans implements sdktrace.SpanExporter. The batch is written in
// one transaction; a span re-exported after a retry replaces its row.
func (e *SQLiteExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if len(spans) == 0 {
		return nil
	}
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("export: begin archive tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO spans
		(trace_id, span_id, parent_span_id, name, start_ns, end_ns, status, status_message, attributes, events)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("export: prepare archive insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range spans {
		rec := toRecord(s)
		attrs, err := json.Marshal(rec.Attributes)
		if err != nil {
			return fmt.Errorf("export: marshal attributes: %w", err)
		}
		events, err := json.Marshal(rec.Events)
		if err != nil {
			return fmt.Errorf("export: marshal events: %w", err)
		}
		var parent any
		if rec.ParentSpanID != "" {
			parent = rec.ParentSpanID
		}
		if _, err := stmt.ExecContext(ctx,
			rec.TraceID, rec.SpanID, parent, rec.Name,
			rec.StartTime.UnixNano(), rec.EndTime.UnixNano(),
			rec.Status, rec.StatusMessage, string(attrs), string(events),
		); err != nil {
			return fmt.Errorf("export: insert span: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("export: commit archive tx: %w", err)
	}
	return nil
}

// Shutdown implements sdktrace.SpanExporter.
func (e *SQLiteExporter) Shutdown(context.Context) error {
	return e.db.Close()
}
