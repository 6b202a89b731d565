// Package pgvector traces similarity search over a Postgres table with a
// pgvector embedding column. Importing the package links its interception
// target into the default catalog.
package pgvector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/ashita-ai/tsuiseki/internal/model"
)

// Config identifies the table the retriever searches.
type Config struct {
	Table         string
	IDColumn      string
	ContentColumn string
	VectorColumn  string

	// EmbedModel names the embedding model, recorded on retrieval spans.
	EmbedModel string
}

func (c *Config) applyDefaults() {
	if c.IDColumn == "" {
		c.IDColumn = "id"
	}
	if c.ContentColumn == "" {
		c.ContentColumn = "content"
	}
	if c.VectorColumn == "" {
		c.VectorColumn = "embedding"
	}
}

// Document is one retrieved row.
type Document struct {
	ID      string
	Content string
	Score   float64
}

// Retriever performs traced cosine-similarity search.
type Retriever struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRetriever wraps an existing pool. The pool stays owned by the
// caller; Retriever never closes it.
func NewRetriever(pool *pgxpool.Pool, cfg Config) (*Retriever, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("pgvector: table is required")
	}
	cfg.applyDefaults()
	return &Retriever{pool: pool, cfg: cfg}, nil
}

// Search runs a similarity query through the tracing pipeline.
func (r *Retriever) Search(ctx context.Context, embedding []float32, limit int) ([]Document, error) {
	m := searchMethod()
	rec := &model.CallRecord{
		Instance: r,
		Kwargs: map[string]any{
			"table": r.cfg.Table,
			"limit": limit,
			"input": embedding,
		},
		Method: m,
	}
	result, err := searchHook.Trace(ctx, m, rec, func(ctx context.Context) (any, error) {
		return r.query(ctx, embedding, limit)
	})
	docs, _ := result.([]Document)
	return docs, err
}

func (r *Retriever) query(ctx context.Context, embedding []float32, limit int) ([]Document, error) {
	// Cosine distance; score is flipped so higher means closer.
	q := fmt.Sprintf(
		`SELECT %s, %s, 1 - (%s <=> $1) AS score FROM %s ORDER BY %s <=> $1 LIMIT $2`,
		r.cfg.IDColumn, r.cfg.ContentColumn, r.cfg.VectorColumn, r.cfg.Table, r.cfg.VectorColumn,
	)

	rows, err := r.pool.Query(ctx, q, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("pgvector: query %s: %w", r.cfg.Table, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Content, &d.Score); err != nil {
			return nil, fmt.Errorf("pgvector: scan row: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector: read rows: %w", err)
	}
	return docs, nil
}
