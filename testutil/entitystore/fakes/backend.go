package fakes

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/AntonStoeckl/odata-entitystore-go/entitystore/tracking"
)

// Call is one Queryable method invocation recorded by the fake.
type Call struct {
	Method string
	Arg    any
}

// Backend holds the rows served by the fake and records every ToArray and persistence call.
type Backend struct {
	mu             sync.Mutex
	rows           []map[string]any
	err            error
	persistErr     error
	omitTotalCount bool
	nextID         int
	fetches        [][]Call
	persisted      []string
}

// NewBackend creates a Backend serving copies of rows.
func NewBackend(rows ...map[string]any) *Backend {
	return &Backend{rows: rows, nextID: 1000}
}

// FailWith makes every ToArray fail with err.
func (b *Backend) FailWith(err error) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.err = err

	return b
}

// FailPersistenceWith makes every Insert, Update, and Delete fail with err.
func (b *Backend) FailPersistenceWith(err error) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.persistErr = err

	return b
}

// OmitTotalCount makes ToArray never report a total count.
func (b *Backend) OmitTotalCount() *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.omitTotalCount = true

	return b
}

// Fetches returns the recorded call chains, one per ToArray.
func (b *Backend) Fetches() [][]Call {
	b.mu.Lock()
	defer b.mu.Unlock()

	return slices.Clone(b.fetches)
}

// FetchCount returns how often ToArray was called.
func (b *Backend) FetchCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.fetches)
}

// Persisted returns the recorded persistence operations, e.g. "insert Person".
func (b *Backend) Persisted() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return slices.Clone(b.persisted)
}

func (b *Backend) fetch(calls []Call) ([]map[string]any, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.fetches = append(b.fetches, calls)

	if b.err != nil {
		return nil, false, b.err
	}

	rows := make([]map[string]any, 0, len(b.rows))
	for _, row := range b.rows {
		rows = append(rows, maps.Clone(row))
	}

	return rows, !b.omitTotalCount, nil
}

// Insert implements tracking.Persister and assigns an "id" when the entity has none.
func (b *Backend) Insert(_ context.Context, entity *tracking.Entity) (map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.persistErr != nil {
		return nil, b.persistErr
	}

	b.persisted = append(b.persisted, "insert "+entity.Type())

	values := entity.Values()
	if _, hasID := values["id"]; !hasID {
		b.nextID++
		values["id"] = b.nextID
	}

	b.rows = append(b.rows, values)

	return values, nil
}

// Update implements tracking.Persister.
func (b *Backend) Update(_ context.Context, entity *tracking.Entity, _ map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.persistErr != nil {
		return b.persistErr
	}

	b.persisted = append(b.persisted, "update "+entity.Type())

	return nil
}

// Delete implements tracking.Persister.
func (b *Backend) Delete(_ context.Context, entity *tracking.Entity) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.persistErr != nil {
		return b.persistErr
	}

	b.persisted = append(b.persisted, "delete "+entity.Type())

	return nil
}
