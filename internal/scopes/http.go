package scopes

import (
	"context"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel/propagation"
)

var propagator = propagation.NewCompositeTextMapPropagator(
	propagation.TraceContext{},
	propagation.Baggage{},
)

var (
	headerMu     sync.RWMutex
	headerScopes map[string]string // HTTP header name -> scope name
)

// SetHTTPHeaderScopes installs the header-to-scope mapping loaded from the
// scope config file. Called once during setup.
func SetHTTPHeaderScopes(m map[string]string) {
	headerMu.Lock()
	defer headerMu.Unlock()
	headerScopes = m
}

// ExtractHTTPHeaders handles an inbound request boundary: it extracts any
// upstream trace context so the local trace continues it rather than
// starting a new root, converts configured headers into scopes, and marks
// the context so the next traced call opens a workflow span for this
// request. The token removes the header scopes on completion.
func ExtractHTTPHeaders(ctx context.Context, headers http.Header) (context.Context, Token) {
	if headers == nil {
		return ctx, Token{}
	}
	ctx = propagator.Extract(ctx, propagation.HeaderCarrier(headers))
	ctx = MarkNewWorkflow(ctx)

	headerMu.RLock()
	mapping := headerScopes
	headerMu.RUnlock()

	values := map[string]string{}
	for header, scope := range mapping {
		if v := headers.Get(header); v != "" {
			values[scope] = v
		}
	}
	return SetAll(ctx, values)
}

// InjectHTTPHeaders propagates the current trace context and scopes onto an
// outbound request.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	propagator.Inject(ctx, propagation.HeaderCarrier(headers))
}

// Middleware wraps an http.Handler so every request runs with upstream
// trace context continued and configured header scopes active. The scopes
// ride on the request context and end with the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, _ := ExtractHTTPHeaders(r.Context(), r.Header)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
