// Package qdrant traces vector retrieval against a Qdrant index.
// Importing the package links its interception target into the default
// catalog.
package qdrant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"github.com/ashita-ai/tsuiseki/internal/model"
)

// Config holds connection settings for the retriever.
type Config struct {
	// URL accepts "https://host:6333", "http://host:6333", or "host:6334".
	URL        string
	APIKey     string
	Collection string

	// EmbedModel names the embedding model the query vectors came from,
	// recorded on retrieval spans.
	EmbedModel string
}

// Document is one retrieved point.
type Document struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// Retriever performs traced similarity search over one collection.
type Retriever struct {
	client   *qdrant.Client
	cfg      Config
	endpoint string
}

// parseURL extracts host, port, and TLS flag from a Qdrant URL. The REST
// port 6333 is rewritten to the gRPC port 6334.
func parseURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", 0, false, fmt.Errorf("qdrant: invalid URL: %q", rawURL)
	}

	useTLS = u.Scheme == "https"
	host = u.Hostname()

	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("qdrant: invalid port in URL: %q", portStr)
		}
		if p == 6333 {
			port = 6334
		} else {
			port = p
		}
	} else {
		port = 6334
	}

	return host, port, useTLS, nil
}

// NewRetriever connects to the Qdrant server via gRPC.
func NewRetriever(cfg Config) (*Retriever, error) {
	host, port, useTLS, err := parseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: connect to %s:%d: %w", host, port, err)
	}

	return &Retriever{
		client:   client,
		cfg:      cfg,
		endpoint: fmt.Sprintf("%s:%d", host, port),
	}, nil
}

// Search runs a similarity query through the tracing pipeline.
func (r *Retriever) Search(ctx context.Context, embedding []float32, limit uint64) ([]Document, error) {
	m := searchMethod()
	rec := &model.CallRecord{
		Instance: r,
		Kwargs: map[string]any{
			"collection": r.cfg.Collection,
			"limit":      limit,
			"input":      embedding,
		},
		Method: m,
	}
	result, err := searchHook.Trace(ctx, m, rec, func(ctx context.Context) (any, error) {
		return r.query(ctx, embedding, limit)
	})
	docs, _ := result.([]Document)
	return docs, err
}

func (r *Retriever) query(ctx context.Context, embedding []float32, limit uint64) ([]Document, error) {
	scored, err := r.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: r.cfg.Collection,
		Query:          qdrant.NewQueryDense(embedding),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: query %s: %w", r.cfg.Collection, err)
	}

	docs := make([]Document, 0, len(scored))
	for _, sp := range scored {
		doc := Document{Score: sp.Score}
		if id := sp.Id.GetUuid(); id != "" {
			doc.ID = id
		} else {
			doc.ID = strconv.FormatUint(sp.Id.GetNum(), 10)
		}
		if len(sp.Payload) > 0 {
			doc.Payload = make(map[string]any, len(sp.Payload))
			for k, v := range sp.Payload {
				doc.Payload[k] = v.String()
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Close releases the underlying gRPC connection.
func (r *Retriever) Close() error {
	return r.client.Close()
}
