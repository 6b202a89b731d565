package tsuiseki

import (
	"log/slog"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option configures Setup.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	workflowName    string
	logger          *slog.Logger
	exporters       []string
	spanProcessors  []sdktrace.SpanProcessor
	wrapperMethods  []WrapperMethod
	spanHandlers    map[string]SpanHandler
	unionDefaults   *bool
	metricsEnabled  *bool
	scopeConfigPath string
}

// WithWorkflowName sets the workflow identity stamped on every span.
// Overrides the TSUISEKI_WORKFLOW_NAME env var.
func WithWorkflowName(name string) Option {
	return func(o *resolvedOptions) { o.workflowName = name }
}

// WithLogger sets the structured logger for the instrumentor.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithExporters overrides the exporter names from config
// (TSUISEKI_EXPORTERS env var): file, console, memory, otlp, sqlite.
func WithExporters(names ...string) Option {
	return func(o *resolvedOptions) { o.exporters = names }
}

// WithSpanProcessors adds span processors alongside the configured
// exporters, for callers that bring their own export path.
func WithSpanProcessors(procs ...sdktrace.SpanProcessor) Option {
	return func(o *resolvedOptions) { o.spanProcessors = append(o.spanProcessors, procs...) }
}

// WithWrapperMethods adds interception targets beyond the default catalog.
func WithWrapperMethods(methods ...WrapperMethod) Option {
	return func(o *resolvedOptions) { o.wrapperMethods = append(o.wrapperMethods, methods...) }
}

// WithSpanHandlers registers custom span handlers by key. Entries merge
// over the built-in "default" and "non_framework" handlers; a duplicate
// key replaces the built-in.
func WithSpanHandlers(handlers map[string]SpanHandler) Option {
	return func(o *resolvedOptions) {
		if o.spanHandlers == nil {
			o.spanHandlers = map[string]SpanHandler{}
		}
		for k, h := range handlers {
			o.spanHandlers[k] = h
		}
	}
}

// WithUnionDefaultMethods controls whether user wrapper methods are merged
// with the default catalog (true, the default) or replace it (false).
func WithUnionDefaultMethods(union bool) Option {
	return func(o *resolvedOptions) { o.unionDefaults = &union }
}

// WithMetrics enables or disables the token-usage meter provider,
// overriding the TSUISEKI_METRICS env var.
func WithMetrics(enabled bool) Option {
	return func(o *resolvedOptions) { o.metricsEnabled = &enabled }
}

// WithScopeConfigPath points at the scope-config JSON file, overriding
// TSUISEKI_SCOPE_CONFIG_PATH.
func WithScopeConfigPath(path string) Option {
	return func(o *resolvedOptions) { o.scopeConfigPath = path }
}
