package tsuiseki

import (
	"context"

	"github.com/ashita-ai/tsuiseki/internal/handler"
)

// SpanHandler customizes the tracing lifecycle for a family of wrapper
// methods. Register implementations under a key with WithSpanHandlers and
// reference the key from WrapperMethod.SpanHandler. The built-in keys are
// "default" and "non_framework".
type SpanHandler = handler.SpanHandler

// DefaultSpanHandler is the standard lifecycle; embed it to override
// individual hooks.
type DefaultSpanHandler = handler.Default

// TokenRecorder receives token usage extracted from inference calls.
// The built-in implementation feeds the genai.token.* counters; replace it
// only in tests.
type TokenRecorder interface {
	RecordTokens(ctx context.Context, provider, modelName string, prompt, completion, total int64)
}
