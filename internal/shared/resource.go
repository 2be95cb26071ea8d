// Package shared holds the process-wide handles around mutable engine state.
package shared

import "sync"

// Resource guards a value with a reader/writer lock. Handles are created once at
// start-up and passed explicitly to every component that touches the value.
//
// Callbacks must not retain the pointer past their return, and must not acquire
// another Resource.
type Resource[T any] struct {
	mu sync.RWMutex
	v  *T
}

// NewResource wraps v.
func NewResource[T any](v *T) *Resource[T] {
	return &Resource[T]{v: v}
}

// Write runs fn with exclusive access.
func (r *Resource[T]) Write(fn func(v *T)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.v)
}

// Read runs fn with shared access. fn must not mutate v.
func (r *Resource[T]) Read(fn func(v *T)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn(r.v)
}
