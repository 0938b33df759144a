// File: internal/healing/interfaces.go

// Package healing resolves locators against a live page and repairs the
// ones that broke, using the selector cache first and a repair oracle as
// the last resort.
package healing

import (
	"context"

	"github.com/xkilldash9x/healbeacon/internal/locator"
)

// ExecutionBackend abstracts the browser the selectors run against.
type ExecutionBackend interface {
	// Resolve reports whether the predicate matches at least one element on
	// the current page.
	Resolve(ctx context.Context, pred locator.Predicate) (bool, error)

	// Snapshot returns the current page markup.
	Snapshot(ctx context.Context) (string, error)
}

// RepairOracle proposes a replacement selector for a broken locator given
// a reduced page snapshot and a description of the target element.
type RepairOracle interface {
	ProposeSelector(ctx context.Context, snapshot, description string) (string, error)
}

// ContextProvider supplies the structural context recorded for a locator
// when it last resolved. Implementations may return nil when no context is
// available.
type ContextProvider interface {
	ElementContext(raw string) *locator.ElementContext
}
