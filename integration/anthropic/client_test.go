package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/tsuiseki/internal/model"
)

func newMessagesServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req MessagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := MessagesResponse{
			ID:         "msg_01",
			Model:      req.Model,
			Role:       "assistant",
			Content:    []ContentBlock{{Type: "text", Text: "Hello there."}},
			StopReason: "end_turn",
			Usage:      Usage{InputTokens: 12, OutputTokens: 5},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCreateMessage(t *testing.T) {
	srv := newMessagesServer(t)
	client := NewClient("test-key", WithBaseURL(srv.URL))

	resp, err := client.CreateMessage(context.Background(), MessagesRequest{
		Model:     "claude-sonnet-4-20250514",
		MaxTokens: 1024,
		Messages:  []Message{{Role: "user", Content: "Say hello"}},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, 12, resp.Usage.InputTokens)
}

func TestCreateMessageAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer srv.Close()

	client := NewClient("bad-key", WithBaseURL(srv.URL))
	_, err := client.CreateMessage(context.Background(), MessagesRequest{
		Model:    "claude-sonnet-4-20250514",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "authentication_error", apiErr.Type)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestInputMessagesPrependsSystem(t *testing.T) {
	rec := &model.CallRecord{
		Kwargs: map[string]any{
			"system":   "You are terse.",
			"messages": []Message{{Role: "user", Content: "hi"}},
		},
	}
	got, err := inputMessages(rec)
	require.NoError(t, err)

	msgs, ok := got.([]string)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.JSONEq(t, `{"system":"You are terse."}`, msgs[0])
	assert.JSONEq(t, `{"user":"hi"}`, msgs[1])
}

func TestOutputTextJoinsBlocks(t *testing.T) {
	rec := &model.CallRecord{Result: &MessagesResponse{
		Content: []ContentBlock{
			{Type: "text", Text: "first"},
			{Type: "tool_use"},
			{Type: "text", Text: "second"},
		},
	}}
	got, err := outputText(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"assistant":"first\nsecond"}`, got.(string))
}

func TestUsageTotalsTokens(t *testing.T) {
	rec := &model.CallRecord{Result: &MessagesResponse{
		Usage: Usage{InputTokens: 9, OutputTokens: 4},
	}}
	got, err := usage(rec)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		model.AttrPromptTokens:     int64(9),
		model.AttrCompletionTokens: int64(4),
		model.AttrTotalTokens:      int64(13),
	}, got)
}

func TestFinishClassification(t *testing.T) {
	rec := &model.CallRecord{Result: &MessagesResponse{StopReason: "max_tokens"}}

	reason, err := finishReason(rec)
	require.NoError(t, err)
	assert.Equal(t, "max_tokens", reason)

	ftype, err := finishType(rec)
	require.NoError(t, err)
	assert.Equal(t, "truncated", ftype)
}
