// Package finish classifies provider-specific completion reasons onto a
// small closed taxonomy used for the finish_type span attribute and span
// status. Provider vocabularies differ wildly (stop, end_turn, MAX_TOKENS,
// safety_filter_applied, ...); the classifier tries an exact canonical
// table first and falls back to substring heuristics, returning Unknown
// rather than guessing when nothing matches.
package finish

import (
	"strings"

	"github.com/ashita-ai/tsuiseki/internal/model"
)

// Type is the normalized finish classification.
type Type string

const (
	// Unknown means "not classified"; callers must not treat it as an
	// error.
	Unknown Type = ""

	Success       Type = "success"
	Truncated     Type = "truncated"
	ContentFilter Type = "content_filter"
	Refusal       Type = "refusal"
	Error         Type = "error"
	ToolCall      Type = "tool_call"
)

// String returns the attribute value; empty for Unknown.
func (t Type) String() string { return string(t) }

// exact holds case-insensitive canonical finish reasons across the
// providers the catalog covers.
var exact = map[string]Type{
	// natural completion
	"stop":          Success,
	"end_turn":      Success,
	"stop_sequence": Success,
	"complete":      Success,
	"completed":     Success,
	"finished":      Success,
	"endoftext":     Success,
	"pause_turn":    Success,

	// token limits
	"length":      Truncated,
	"max_tokens":  Truncated,
	"token_limit": Truncated,
	"truncated":   Truncated,

	// tool and function dispatch
	"tool_calls":    ToolCall,
	"tool_use":      ToolCall,
	"function_call": ToolCall,

	// safety
	"content_filter":        ContentFilter,
	"content_filtered":      ContentFilter,
	"safety":                ContentFilter,
	"recitation":            ContentFilter,
	"guardrails":            ContentFilter,
	"blocked":               ContentFilter,
	"responsible_ai_policy": ContentFilter,

	"refusal": Refusal,

	// hard failures
	"error":               Error,
	"failed":              Error,
	"exception":           Error,
	"timeout":             Error,
	"model_error":         Error,
	"service_unavailable": Error,
	"throttled":           Error,
	"rate_limit":          Error,
}

// Map classifies a raw finish reason. Empty input and unrecognized values
// both yield Unknown.
func Map(reason string) Type {
	if reason == "" {
		return Unknown
	}
	lower := strings.ToLower(reason)
	if t, ok := exact[lower]; ok {
		return t
	}
	// Heuristics over the raw string, most specific first. Order matters:
	// "token_limit_reached" must classify as truncated before the error
	// keywords get a look at it.
	switch {
	case strings.Contains(lower, "truncat"),
		strings.Contains(lower, "token") && strings.Contains(lower, "limit"):
		return Truncated
	case strings.Contains(lower, "error"),
		strings.Contains(lower, "fail"),
		strings.Contains(lower, "timeout"),
		strings.Contains(lower, "unavailable"),
		strings.Contains(lower, "rate_limit"):
		return Error
	case strings.Contains(lower, "filter"),
		strings.Contains(lower, "policy"),
		strings.Contains(lower, "safety"),
		strings.Contains(lower, "block"):
		return ContentFilter
	case strings.Contains(lower, "complet"),
		strings.Contains(lower, "stop"),
		strings.Contains(lower, "success"),
		strings.Contains(lower, "done"):
		return Success
	}
	return Unknown
}

// Classify resolves the final (reason, type) pair for a call. An explicit
// call error short-circuits everything; a well-formed result that exposes
// no finish reason at all defaults to stop/success — assume success unless
// told otherwise.
func Classify(rec *model.CallRecord, rawReason string) (string, Type) {
	if rec != nil && rec.Err != nil {
		return "error", Error
	}
	if rawReason == "" {
		if rec != nil && rec.Result != nil {
			return "stop", Success
		}
		return "", Unknown
	}
	return rawReason, Map(rawReason)
}
