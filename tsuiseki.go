// Package tsuiseki is the public API for instrumenting LLM and agent
// calls with OpenTelemetry spans in a fixed entity/event schema.
//
// Applications set up once and trace through the bundled integration
// clients (or their own wrapper methods):
//
//	inst, err := tsuiseki.Setup(
//	    tsuiseki.WithWorkflowName("support-bot"),
//	    tsuiseki.WithLogger(logger),
//	)
//	if err != nil { ... }
//	defer inst.Shutdown(ctx)
//
// Importing an integration package (integration/openai, integration/mcp,
// ...) links its interception targets into the default catalog; an
// integration that is never imported costs nothing and is skipped at
// setup.
//
// The import graph enforces a strict no-cycle rule: tsuiseki (root)
// imports internal/*, but internal/* never imports tsuiseki (root).
package tsuiseki

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/joho/godotenv"

	"github.com/ashita-ai/tsuiseki/internal/catalog"
	"github.com/ashita-ai/tsuiseki/internal/config"
	"github.com/ashita-ai/tsuiseki/internal/export"
	"github.com/ashita-ai/tsuiseki/internal/handler"
	"github.com/ashita-ai/tsuiseki/internal/metrics"
	"github.com/ashita-ai/tsuiseki/internal/model"
	"github.com/ashita-ai/tsuiseki/internal/registry"
	"github.com/ashita-ai/tsuiseki/internal/scopes"
	"github.com/ashita-ai/tsuiseki/internal/telemetry"
)

// current is the last instrumentor Setup produced, used by WrapFunc and
// the package-level scope helpers that need a pipeline.
var current atomic.Pointer[Instrumentor]

// Instrumentor is the installed tracing instrumentation. Construct with
// Setup(), tear down with Shutdown().
type Instrumentor struct {
	cfg      config.Config
	logger   *slog.Logger
	state    *registry.State
	pipeline *handler.Pipeline
}

// Setup builds the telemetry providers, merges the wrapper-method catalog,
// and installs every interception target. Calling Setup again while
// instrumented returns the existing instrumentor without double-patching
// any target.
func Setup(opts ...Option) (*Instrumentor, error) {
	if inst := current.Load(); inst != nil && inst.state.Instrumented() {
		inst.logger.Debug("tsuiseki: already instrumented, reusing installed state")
		return inst, nil
	}

	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg := config.Load()
	if o.workflowName != "" {
		cfg.WorkflowName = o.workflowName
	}
	if cfg.WorkflowName == "" {
		cfg.WorkflowName = filepath.Base(os.Args[0])
	}
	if o.exporters != nil {
		cfg.Exporters = o.exporters
	}
	if o.metricsEnabled != nil {
		cfg.MetricsEnabled = *o.metricsEnabled
	}
	if o.scopeConfigPath != "" {
		cfg.ScopeConfigPath = o.scopeConfigPath
	}

	logger.Debug("tsuiseki starting", "workflow", cfg.WorkflowName, "exporters", cfg.Exporters)

	// Scope config: missing or malformed files degrade to no scopes.
	scopeCfg, err := config.LoadScopeConfig(cfg.ScopeConfigPath)
	if err != nil {
		logger.Debug("tsuiseki: scope config not loaded", "error", err)
	}
	scopes.SetHTTPHeaderScopes(scopeCfg.HeaderScopes)

	methods := resolveMethods(o, scopeCfg)

	ctx := context.Background()
	exporters := export.Build(ctx, logger, cfg)
	providers, err := telemetry.Init(ctx, cfg, exporters, o.spanProcessors)
	if err != nil {
		return nil, fmt.Errorf("tsuiseki: init telemetry: %w", err)
	}

	handlers := handler.DefaultHandlers()
	for k, h := range o.spanHandlers {
		handlers[k] = h
	}

	tokens := metrics.NewTokens(providers.Meter(), logger)
	pipeline := handler.New(providers.Tracer(), logger, cfg.WorkflowName, handlers, tokens)

	state := registry.New(logger, providers)
	state.Install(methods, pipeline.Trace)

	inst := &Instrumentor{
		cfg:      cfg,
		logger:   logger,
		state:    state,
		pipeline: pipeline,
	}
	current.Store(inst)
	return inst, nil
}

// resolveMethods merges the default catalog with user methods and applies
// scope-config entries. A scope-config method matching an existing target
// by qualified name marks that target scope-producing; an unmatched one
// becomes a standalone entry that installs only if user code supplies a
// hook for it.
func resolveMethods(o resolvedOptions, scopeCfg config.ScopeConfig) []*model.WrapperMethod {
	var merged []model.WrapperMethod
	if o.unionDefaults == nil || *o.unionDefaults {
		merged = catalog.Default()
	}
	merged = append(merged, o.wrapperMethods...)

	out := make([]*model.WrapperMethod, 0, len(merged)+len(scopeCfg.Methods))
	byName := make(map[string]*model.WrapperMethod, len(merged))
	for i := range merged {
		m := &merged[i]
		out = append(out, m)
		byName[m.QualifiedName()] = m
	}

	for _, sm := range scopeCfg.Methods {
		entry := model.WrapperMethod{
			Package:   sm.Package,
			Object:    sm.Object,
			Method:    sm.Method,
			ScopeName: sm.ScopeName,
			Async:     sm.Async,
			SkipSpan:  true,
		}
		if existing, ok := byName[entry.QualifiedName()]; ok {
			existing.ScopeName = sm.ScopeName
			continue
		}
		out = append(out, &entry)
	}
	return out
}

// IsInstrumented reports whether interception targets are installed.
func (i *Instrumentor) IsInstrumented() bool {
	return i.state.Instrumented()
}

// Uninstrument restores every installed target in reverse order. The
// telemetry providers keep running; call Shutdown to stop them too.
func (i *Instrumentor) Uninstrument() error {
	i.state.Uninstall()
	return nil
}

// ForceFlush drains pending spans to the exporters.
func (i *Instrumentor) ForceFlush(ctx context.Context) error {
	return i.state.Providers().ForceFlush(ctx)
}

// Shutdown uninstruments and stops the telemetry providers, flushing
// whatever spans are still buffered.
func (i *Instrumentor) Shutdown(ctx context.Context) error {
	i.state.Uninstall()
	if p := current.Load(); p == i {
		current.Store(nil)
	}
	return i.state.Providers().Shutdown(ctx)
}

// StartScope attaches a scope to the context. An empty value generates a
// random id. The returned token removes exactly this attachment.
func StartScope(ctx context.Context, name, value string) (context.Context, ScopeToken) {
	return scopes.Set(ctx, name, value)
}

// StopScope removes the attachment the token stands for, restoring
// whatever value the scope had before. Unrelated scopes are unaffected.
func StopScope(ctx context.Context, tok ScopeToken) context.Context {
	return scopes.Remove(ctx, tok)
}

// WithScope runs fn with the scope attached and guarantees release on all
// exit paths.
func WithScope(ctx context.Context, name, value string, fn func(context.Context) error) error {
	return scopes.With(ctx, name, value, fn)
}

// Scopes returns the scopes active on the context.
func Scopes(ctx context.Context) map[string]string {
	return scopes.All(ctx)
}

// ExtractHTTPHeaders continues the upstream trace from W3C headers,
// attaches the configured header scopes, and marks the context so the
// next traced call opens a fresh workflow root for this request.
func ExtractHTTPHeaders(ctx context.Context, headers http.Header) (context.Context, ScopeToken) {
	return scopes.ExtractHTTPHeaders(ctx, headers)
}

// InjectHTTPHeaders writes the current trace context and scope baggage
// into outbound request headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	scopes.InjectHTTPHeaders(ctx, headers)
}

// HTTPMiddleware applies ExtractHTTPHeaders around an HTTP handler.
func HTTPMiddleware(next http.Handler) http.Handler {
	return scopes.Middleware(next)
}

// Detach copies the span context and scope baggage, by value, onto a
// fresh context detached from the caller's cancellation. Use it to hand
// tracing state to a goroutine that outlives the request.
func Detach(ctx context.Context) context.Context {
	return scopes.Detach(ctx)
}

// RunDetached runs fn on a dedicated goroutine under a detached copy of
// the caller's tracing state and waits for it. A panic in fn is re-raised
// in the caller.
func RunDetached(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	return scopes.Run(ctx, fn)
}

// WrapFunc traces a plain function through the installed pipeline. Before
// Setup (or after Shutdown) the returned function calls fn directly.
func WrapFunc[T any](spanName string, cfg WrapperMethod, fn func(context.Context) (T, error)) func(context.Context) (T, error) {
	m := cfg
	if spanName != "" {
		m.SpanName = spanName
	}
	return func(ctx context.Context) (T, error) {
		inst := current.Load()
		if inst == nil {
			return fn(ctx)
		}
		rec := &model.CallRecord{Method: &m}
		result, err := inst.pipeline.Trace(ctx, &m, rec, func(ctx context.Context) (any, error) {
			return fn(ctx)
		})
		out, _ := result.(T)
		return out, err
	}
}
