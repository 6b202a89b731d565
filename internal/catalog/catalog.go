// Package catalog holds the default wrapper-method catalog. Integration
// packages register their methods from init, driver-style: importing the
// integration links its targets into the default catalog, and an
// integration that is never imported simply has nothing to install.
package catalog

import (
	"sync"

	"github.com/ashita-ai/tsuiseki/internal/model"
)

var (
	mu      sync.Mutex
	entries []model.WrapperMethod
)

// Register adds an integration's methods to the default catalog. Called
// from integration package init; safe to call concurrently.
func Register(methods ...model.WrapperMethod) {
	mu.Lock()
	defer mu.Unlock()
	entries = append(entries, methods...)
}

// Default returns a copy of the registered catalog.
func Default() []model.WrapperMethod {
	mu.Lock()
	defer mu.Unlock()
	out := make([]model.WrapperMethod, len(entries))
	copy(out, entries)
	return out
}
