package finish

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ashita-ai/tsuiseki/internal/model"
)

func TestMap(t *testing.T) {
	cases := []struct {
		reason string
		want   Type
	}{
		// exact, case-insensitive
		{"STOP", Success},
		{"Stop", Success},
		{"stop", Success},
		{"end_turn", Success},
		{"stop_sequence", Success},
		{"MAX_TOKENS", Truncated},
		{"length", Truncated},
		{"content_filter", ContentFilter},
		{"SAFETY", ContentFilter},
		{"recitation", ContentFilter},
		{"responsible_ai_policy", ContentFilter},
		{"refusal", Refusal},
		{"tool_calls", ToolCall},
		{"tool_use", ToolCall},

		// substring heuristics
		{"completion_stopped", Success},
		{"token_limit_reached", Truncated},
		{"safety_filter_applied", ContentFilter},
		{"unexpected_error", Error},
		{"request_timeout", Error},
		{"backend_unavailable", Error},

		// unknown stays unknown
		{"unknown_reason", Unknown},
		{"", Unknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Map(tc.reason), "reason %q", tc.reason)
	}
}

func TestClassifyErrorShortCircuits(t *testing.T) {
	rec := &model.CallRecord{Err: errors.New("boom"), Result: map[string]any{"finish_reason": "stop"}}
	reason, ft := Classify(rec, "stop")
	assert.Equal(t, "error", reason)
	assert.Equal(t, Error, ft)
}

func TestClassifyDefaultSuccessBias(t *testing.T) {
	// A result with no finish-reason field at all defaults to stop/success.
	rec := &model.CallRecord{Result: struct{}{}}
	reason, ft := Classify(rec, "")
	assert.Equal(t, "stop", reason)
	assert.Equal(t, Success, ft)

	// No result and no reason stays unclassified.
	reason, ft = Classify(&model.CallRecord{}, "")
	assert.Equal(t, "", reason)
	assert.Equal(t, Unknown, ft)
}

func TestClassifyPassesReasonThrough(t *testing.T) {
	rec := &model.CallRecord{Result: struct{}{}}
	reason, ft := Classify(rec, "MAX_TOKENS")
	assert.Equal(t, "MAX_TOKENS", reason)
	assert.Equal(t, Truncated, ft)
}
