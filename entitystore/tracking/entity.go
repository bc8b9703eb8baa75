package tracking

import (
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/odata-entitystore-go/entitystore"
)

// Entity is a map-backed entitystore.Entity that remembers which properties changed since it was attached.
type Entity struct {
	mu       sync.RWMutex
	id       uuid.UUID
	typeName string
	values   map[string]any
	changed  map[string]struct{}
	state    entitystore.EntityState
}

// NewEntity creates a detached entity of the given type holding a copy of values.
func NewEntity(typeName string, values map[string]any) *Entity {
	return &Entity{
		id:       uuid.New(),
		typeName: typeName,
		values:   maps.Clone(nonNil(values)),
		changed:  make(map[string]struct{}),
		state:    entitystore.StateDetached,
	}
}

// ID returns the tracking id, unique per Entity instance.
func (e *Entity) ID() uuid.UUID {
	return e.id
}

// Type returns the entity type name.
func (e *Entity) Type() string {
	return e.typeName
}

// Get returns the value of a property.
func (e *Entity) Get(name string) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	value, ok := e.values[name]

	return value, ok
}

// Set changes a property. An Unchanged entity becomes Modified.
func (e *Entity) Set(name string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.values[name] = value
	e.changed[name] = struct{}{}

	if e.state == entitystore.StateUnchanged {
		e.state = entitystore.StateModified
	}
}

// State returns the lifecycle state.
func (e *Entity) State() entitystore.EntityState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.state
}

// Values returns a copy of all properties.
func (e *Entity) Values() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return maps.Clone(e.values)
}

// ChangedValues returns a copy of the properties changed since the entity was attached or last saved.
func (e *Entity) ChangedValues() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()

	changed := make(map[string]any, len(e.changed))
	for name := range e.changed {
		changed[name] = e.values[name]
	}

	return changed
}

func (e *Entity) setState(state entitystore.EntityState) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = state
}

// accept merges persisted values, clears the change set, and moves the entity to state.
func (e *Entity) accept(persisted map[string]any, state entitystore.EntityState) {
	e.mu.Lock()
	defer e.mu.Unlock()

	maps.Copy(e.values, persisted)
	clear(e.changed)
	e.state = state
}

// AsEntity returns entity as a tracking Entity, failing for entities of other implementations.
func AsEntity(entity entitystore.Entity) (*Entity, error) {
	tracked, ok := entity.(*Entity)
	if !ok || tracked == nil {
		return nil, ErrForeignEntity
	}

	return tracked, nil
}

func nonNil(values map[string]any) map[string]any {
	if values == nil {
		return map[string]any{}
	}

	return values
}

var _ entitystore.Entity = (*Entity)(nil)
