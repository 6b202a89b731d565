package qdrant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/tsuiseki/internal/model"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		host    string
		port    int
		useTLS  bool
		wantErr bool
	}{
		{name: "rest port rewritten to grpc", url: "http://localhost:6333", host: "localhost", port: 6334},
		{name: "grpc port kept", url: "http://localhost:6334", host: "localhost", port: 6334},
		{name: "custom port kept", url: "http://localhost:7000", host: "localhost", port: 7000},
		{name: "https sets tls", url: "https://qdrant.example.com:6333", host: "qdrant.example.com", port: 6334, useTLS: true},
		{name: "missing port defaults", url: "http://qdrant.internal", host: "qdrant.internal", port: 6334},
		{name: "empty url", url: "", wantErr: true},
		{name: "no host", url: "http://", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, useTLS, err := parseURL(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.port, port)
			assert.Equal(t, tt.useTLS, useTLS)
		})
	}
}

func TestNewRetrieverInvalidURL(t *testing.T) {
	_, err := NewRetriever(Config{URL: "", Collection: "docs"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid URL")
}

func TestSearchProcessorAccessors(t *testing.T) {
	r := &Retriever{
		cfg:      Config{Collection: "docs", EmbedModel: "text-embedding-3-small"},
		endpoint: "localhost:6334",
	}
	rec := &model.CallRecord{
		Instance: r,
		Kwargs: map[string]any{
			"collection": "docs",
			"limit":      uint64(5),
			"input":      []float32{0.1, 0.2, 0.3},
		},
		Result: []Document{
			{ID: "11", Score: 0.92},
			{ID: "7a9c", Score: 0.81},
		},
	}

	ep, err := endpoint(rec)
	require.NoError(t, err)
	assert.Equal(t, "localhost:6334", ep)

	name, err := embedModel(rec)
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", name)

	typ, err := embedModelType(rec)
	require.NoError(t, err)
	assert.Equal(t, "model.embedding.text-embedding-3-small", typ)

	query, err := querySummary(rec)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"dimensions": int64(3), "limit": uint64(5)}, query)

	result, err := resultSummary(rec)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"count": int64(2), "ids": []string{"11", "7a9c"}}, result)
}

func TestSearchProcessorAccessorsWithoutEmbedModel(t *testing.T) {
	rec := &model.CallRecord{Instance: &Retriever{cfg: Config{Collection: "docs"}}}

	name, err := embedModel(rec)
	require.NoError(t, err)
	assert.Nil(t, name)

	typ, err := embedModelType(rec)
	require.NoError(t, err)
	assert.Nil(t, typ)
}
