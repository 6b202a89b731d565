package catalog

import (
	"context"
	"sync/atomic"

	"github.com/ashita-ai/tsuiseki/internal/model"
)

// Hook is the patch point an integration exposes: the one place its call
// surface is routed through the tracing pipeline. Uninstalled hooks pass
// calls straight through.
type Hook struct {
	current atomic.Pointer[installed]
}

// installed pairs the wrapper with the catalog entry resolved at install
// time, so setup-time overrides on the entry survive to call time.
type installed struct {
	method *model.WrapperMethod
	fn     model.TraceFunc
}

// Installer returns the InstallFunc for a catalog entry backed by this
// hook. Restoring puts back whatever was installed before, so nested
// install/restore pairs unwind correctly.
func (h *Hook) Installer() model.InstallFunc {
	return func(m *model.WrapperMethod, tf model.TraceFunc) (model.RestoreFunc, error) {
		prev := h.current.Swap(&installed{method: m, fn: tf})
		return func() { h.current.Store(prev) }, nil
	}
}

// Trace routes a call through the installed pipeline, or straight to
// invoke when nothing is installed. The entry resolved at install time
// wins over the caller-built one: integrations rebuild their WrapperMethod
// per call, and only the installed copy carries scope-config and handler
// overrides applied during setup.
func (h *Hook) Trace(ctx context.Context, m *model.WrapperMethod, rec *model.CallRecord, invoke model.InvokeFunc) (any, error) {
	in := h.current.Load()
	if in == nil {
		return invoke(ctx)
	}
	if in.method != nil {
		m = in.method
		if rec != nil {
			rec.Method = in.method
		}
	}
	return in.fn(ctx, m, rec, invoke)
}

// Installed reports whether a pipeline is currently routed through the
// hook.
func (h *Hook) Installed() bool {
	return h.current.Load() != nil
}
