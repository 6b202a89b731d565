// Package registry tracks what the instrumentor has installed: the
// interception targets currently routed through the tracing pipeline and
// the telemetry providers backing them. All mutation happens through
// Install and Uninstall; everything else only reads.
package registry

import (
	"log/slog"
	"sync"

	"github.com/ashita-ai/tsuiseki/internal/model"
	"github.com/ashita-ai/tsuiseki/internal/telemetry"
)

// State is the instrumentor's mutable state.
type State struct {
	mu           sync.Mutex
	logger       *slog.Logger
	providers    *telemetry.Providers
	installed    []target
	instrumented bool
}

type target struct {
	name    string
	restore model.RestoreFunc
}

// New builds an empty State.
func New(logger *slog.Logger, providers *telemetry.Providers) *State {
	if logger == nil {
		logger = slog.Default()
	}
	return &State{logger: logger, providers: providers}
}

// Providers returns the telemetry providers installed with this state.
func (s *State) Providers() *telemetry.Providers {
	return s.providers
}

// Instrumented reports whether Install has run and Uninstall has not.
func (s *State) Instrumented() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instrumented
}

// Install routes every method with an install hook through the pipeline.
// A second Install while instrumented is a no-op: targets are never
// double-patched. Individual install failures are logged and skipped;
// the remaining targets still install. Returns the number of targets
// installed by this call.
func (s *State) Install(methods []*model.WrapperMethod, tf model.TraceFunc) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.instrumented {
		s.logger.Debug("registry: already instrumented, skipping install")
		return 0
	}

	count := 0
	for _, m := range methods {
		if m == nil {
			continue
		}
		name := m.QualifiedName()
		if m.Install == nil {
			s.logger.Debug("registry: integration not linked, skipping", "target", name)
			continue
		}
		restore, err := m.Install(m, tf)
		if err != nil {
			s.logger.Warn("registry: install failed, target left untraced", "target", name, "error", err)
			continue
		}
		if restore == nil {
			restore = func() {}
		}
		s.installed = append(s.installed, target{name: name, restore: restore})
		count++
	}

	s.instrumented = true
	s.logger.Debug("registry: instrumentation installed", "targets", count)
	return count
}

// Uninstall restores every installed target in reverse order. A restore
// that panics is contained and logged; the rest still run.
func (s *State) Uninstall() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.installed) - 1; i >= 0; i-- {
		s.restore(s.installed[i])
	}
	s.installed = nil
	s.instrumented = false
}

func (s *State) restore(t target) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("registry: restore panicked", "target", t.name, "panic", r)
		}
	}()
	t.restore()
}
