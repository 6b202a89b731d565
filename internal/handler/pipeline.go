package handler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashita-ai/tsuiseki/internal/finish"
	"github.com/ashita-ai/tsuiseki/internal/hydrate"
	"github.com/ashita-ai/tsuiseki/internal/model"
	"github.com/ashita-ai/tsuiseki/internal/scopes"
)

// TokenRecorder receives token usage after metadata extraction. The metrics
// package implements it; a nil recorder disables usage metrics.
type TokenRecorder interface {
	RecordTokens(ctx context.Context, provider, modelName string, prompt, completion, total int64)
}

// Pipeline is the wrapper installed on every interception target. One
// Pipeline serves all targets; per-call behavior comes from the resolved
// WrapperMethod and its span handler.
type Pipeline struct {
	tracer       trace.Tracer
	logger       *slog.Logger
	workflowName string
	handlers     map[string]SpanHandler
	metrics      TokenRecorder
}

// New builds a Pipeline. handlers falls back to DefaultHandlers when nil;
// metrics may be nil.
func New(tracer trace.Tracer, logger *slog.Logger, workflowName string, handlers map[string]SpanHandler, metrics TokenRecorder) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if handlers == nil {
		handlers = DefaultHandlers()
	}
	return &Pipeline{
		tracer:       tracer,
		logger:       logger,
		workflowName: workflowName,
		handlers:     handlers,
		metrics:      metrics,
	}
}

func (p *Pipeline) handlerFor(key string) SpanHandler {
	if key == "" {
		key = KeyDefault
	}
	if h, ok := p.handlers[key]; ok {
		return h
	}
	p.logger.Warn("handler: unknown span handler key, using default", "handler", key)
	if h, ok := p.handlers[KeyDefault]; ok {
		return h
	}
	return Default{}
}

// Trace is the model.TraceFunc wired into every install hook. The wrapped
// call's result and error pass through unchanged; tracing failures never
// surface to the caller.
func (p *Pipeline) Trace(ctx context.Context, m *model.WrapperMethod, rec *model.CallRecord, invoke model.InvokeFunc) (any, error) {
	if invoke == nil {
		return nil, fmt.Errorf("handler: nil invoke")
	}
	if m == nil {
		return invoke(ctx)
	}

	ctx = p.applyScopes(ctx, m, rec)

	h := p.handlerFor(m.SpanHandler)
	if m.SkipSpan || h.SkipSpan(ctx, rec) || p.shouldSkip(m, rec) {
		return invoke(ctx)
	}

	ctx = h.PreTracing(ctx, rec)
	defer h.PostTracing(ctx, rec)

	if p.needsWorkflowRoot(ctx) {
		return p.traceWorkflowRoot(ctx, m, rec, invoke, h)
	}
	return p.traceCall(ctx, m, rec, invoke, h)
}

// applyScopes activates the method's declared scopes for the call. The
// scopes ride on the returned context, which never escapes Trace, so they
// end with the wrapped call; the caller's context is untouched.
func (p *Pipeline) applyScopes(ctx context.Context, m *model.WrapperMethod, rec *model.CallRecord) context.Context {
	var values map[string]string
	switch {
	case m.ScopeValues != nil:
		values = m.ScopeValues(rec)
	case m.ScopeName != "":
		values = map[string]string{m.ScopeName: ""}
	default:
		return ctx
	}
	next, _ := scopes.SetAll(ctx, values)
	return next
}

func (p *Pipeline) shouldSkip(m *model.WrapperMethod, rec *model.CallRecord) bool {
	proc := m.OutputProcessor
	return proc != nil && proc.ShouldSkip != nil && proc.ShouldSkip(rec)
}

// needsWorkflowRoot reports whether this call opens a new trace: no live
// span above it, or an inbound HTTP request explicitly asked for a fresh
// workflow root.
func (p *Pipeline) needsWorkflowRoot(ctx context.Context) bool {
	if scopes.NewWorkflowRequested(ctx) {
		return true
	}
	return !trace.SpanFromContext(ctx).SpanContext().IsValid()
}

// traceWorkflowRoot opens the outer workflow span, then runs the actual
// call span inside it.
func (p *Pipeline) traceWorkflowRoot(ctx context.Context, m *model.WrapperMethod, rec *model.CallRecord, invoke model.InvokeFunc, h SpanHandler) (any, error) {
	wtype := model.WorkflowTypeForPackage(m.Package)
	ctx = scopes.ClearNewWorkflow(ctx)

	wctx, wspan := p.tracer.Start(ctx, model.SpanTypeWorkflow)
	defer wspan.End()

	p.stampCommon(wctx, wspan)
	hydrate.Populate(p.logger, wspan, rec, workflowProcessor(p.workflowName, wtype), 0)
	wspan.SetStatus(codes.Ok, "")

	wctx = scopes.WithWorkflowType(wctx, wtype)
	return p.traceCall(wctx, m, rec, invoke, h)
}

// traceCall opens the span for the wrapped call itself. The span is ended
// on every path, including a panic in the wrapped call, which is re-raised
// after the span closes.
func (p *Pipeline) traceCall(ctx context.Context, m *model.WrapperMethod, rec *model.CallRecord, invoke model.InvokeFunc, h SpanHandler) (result any, err error) {
	ctx, span := p.tracer.Start(ctx, m.DisplayName())

	p.stampCommon(ctx, span)
	h.PreTask(ctx, span, rec)

	defer func() {
		if r := recover(); r != nil {
			span.SetStatus(codes.Error, fmt.Sprintf("panic: %v", r))
			span.End()
			panic(r)
		}
	}()

	result, err = invoke(ctx)
	rec.Result, rec.Err = result, err

	p.close(ctx, span, m, rec, h)
	span.End()
	return result, err
}

// close populates, classifies, and sets the final status. Internal
// failures here must never affect the wrapped call's outcome.
func (p *Pipeline) close(ctx context.Context, span trace.Span, m *model.WrapperMethod, rec *model.CallRecord, h SpanHandler) {
	proc := m.OutputProcessor

	if h.SkipProcessors(ctx, rec) {
		if proc != nil && proc.SpanType != "" {
			span.SetAttributes(attribute.String(model.AttrSpanType, proc.SpanType+".modelapi"))
		}
		p.setStatus(span, rec, nil, hydrate.Result{}, finish.Unknown)
		h.PostTask(ctx, span, rec)
		return
	}

	var res hydrate.Result
	if proc != nil {
		res = hydrate.Populate(p.logger, span, rec, proc, 0)
	}

	rawReason, _ := res.Metadata[model.AttrFinishReason].(string)
	_, ftype := finish.Classify(rec, rawReason)

	p.setStatus(span, rec, proc, res, ftype)
	p.recordUsage(ctx, m, rec, res)
	h.PostTask(ctx, span, rec)
}

// setStatus applies the tie-break: explicit error, then detected embedded
// error, then the processor's own status hook, then the finish
// classification, else OK.
func (p *Pipeline) setStatus(span trace.Span, rec *model.CallRecord, proc *model.OutputProcessor, res hydrate.Result, ftype finish.Type) {
	switch {
	case rec.Err != nil:
		span.RecordError(rec.Err)
		span.SetStatus(codes.Error, rec.Err.Error())
	case res.DetectedError:
		span.SetAttributes(attribute.Bool(model.AttrDetectedSpanError, true))
		span.SetStatus(codes.Error, res.ErrorMessage)
	case proc != nil && proc.Status != nil:
		v, err := proc.Status(rec)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return
		}
		if s, ok := v.(string); ok && s != "" && s != "success" {
			span.SetStatus(codes.Error, s)
			return
		}
		span.SetStatus(codes.Ok, "")
	case ftype == finish.Error:
		span.SetStatus(codes.Error, "finish_type=error")
	default:
		span.SetStatus(codes.Ok, "")
	}
}

func (p *Pipeline) recordUsage(ctx context.Context, m *model.WrapperMethod, rec *model.CallRecord, res hydrate.Result) {
	if p.metrics == nil || len(res.Metadata) == 0 {
		return
	}
	prompt := asInt64(res.Metadata[model.AttrPromptTokens])
	completion := asInt64(res.Metadata[model.AttrCompletionTokens])
	total := asInt64(res.Metadata[model.AttrTotalTokens])
	if prompt == 0 && completion == 0 && total == 0 {
		return
	}
	p.metrics.RecordTokens(ctx, m.Package, rec.KwargString("model"), prompt, completion, total)
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	case uint64:
		return int64(t)
	case float64:
		return int64(t)
	}
	return 0
}

// stampCommon writes the attributes every span carries: workflow identity,
// active scopes, SDK identification, and the call site.
func (p *Pipeline) stampCommon(ctx context.Context, span trace.Span) {
	span.SetAttributes(
		attribute.String(model.AttrWorkflowName, p.workflowName),
		attribute.String(model.AttrSDKVersion, model.SDKVersion),
		attribute.String(model.AttrSDKLanguage, "go"),
	)
	if src := spanSource(); src != "" {
		span.SetAttributes(attribute.String(model.AttrSpanSource, src))
	}
	for name, value := range scopes.All(ctx) {
		span.SetAttributes(attribute.String(model.ScopeAttrPrefix+name, value))
	}
}

// workflowProcessor declares the workflow root span's entities: the
// workflow itself, then the hosting environment when one is detected.
func workflowProcessor(workflowName, workflowType string) *model.OutputProcessor {
	return &model.OutputProcessor{
		SpanType: model.SpanTypeWorkflow,
		Entities: []model.EntitySpec{
			{Attributes: []model.AttributeSpec{
				{Key: "name", Accessor: hydrate.Const(workflowName)},
				{Key: "type", Accessor: hydrate.Const(workflowType)},
			}},
			{Attributes: hostingAttributes()},
		},
	}
}

// hostingAttributes detects the app-hosting environment from well-known
// env vars. Returns nil when running outside any recognized host, which
// omits the hosting entity entirely.
func hostingAttributes() []model.AttributeSpec {
	for envVar, serviceType := range model.ServiceTypeEnv {
		if os.Getenv(envVar) == "" {
			continue
		}
		name := os.Getenv(model.ServiceNameEnv[serviceType])
		return []model.AttributeSpec{
			{Key: "type", Accessor: hydrate.Const("app_hosting." + serviceType)},
			{Key: "name", Accessor: hydrate.Const(name)},
		}
	}
	return nil
}

const internalPrefix = "github.com/ashita-ai/tsuiseki/internal"

// spanSource walks the stack past the tracing machinery to the wrapped
// call site.
func spanSource() string {
	pcs := make([]uintptr, 24)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if f.Function != "" && !strings.HasPrefix(f.Function, internalPrefix) {
			return fmt.Sprintf("%s:%d", f.File, f.Line)
		}
		if !more {
			return ""
		}
	}
}
