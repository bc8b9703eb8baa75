package entitystore

import (
	"sync"
)

// ErrorHandler is notified about errors of remote-facing operations before they are returned to the caller.
type ErrorHandler func(err error)

// ErrorRegistry holds the shared fallback ErrorHandler that is notified after the per-query handler.
// A nil *ErrorRegistry is valid and notifies nobody.
type ErrorRegistry struct {
	mu      sync.RWMutex
	handler ErrorHandler
}

// NewErrorRegistry creates an ErrorRegistry with the given handler, which may be nil.
func NewErrorRegistry(handler ErrorHandler) *ErrorRegistry {
	return &ErrorRegistry{handler: handler}
}

// SetHandler replaces the registered handler.
func (r *ErrorRegistry) SetHandler(handler ErrorHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handler = handler
}

// Reset removes the registered handler.
func (r *ErrorRegistry) Reset() {
	r.SetHandler(nil)
}

// Handle passes err to the registered handler, if any.
func (r *ErrorRegistry) Handle(err error) {
	if r == nil || err == nil {
		return
	}

	r.mu.RLock()
	handler := r.handler
	r.mu.RUnlock()

	if handler != nil {
		handler(err)
	}
}

// routeError notifies the per-query handler, then the registry, and returns err unchanged.
func routeError(err error, handler ErrorHandler, registry *ErrorRegistry) error {
	if err == nil {
		return nil
	}

	if handler != nil {
		handler(err)
	}

	registry.Handle(err)

	return err
}
