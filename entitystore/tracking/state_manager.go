package tracking

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/AntonStoeckl/odata-entitystore-go/entitystore"
)

var (
	ErrForeignEntity     = errors.New("entity was not created by a tracking state manager")
	ErrSaveChangesFailed = errors.New("saving changes failed")
)

// Persister writes tracked changes to the underlying storage.
type Persister interface {
	// Insert persists an Added entity and returns the stored values, e.g. including generated keys.
	Insert(ctx context.Context, entity *Entity) (map[string]any, error)
	Update(ctx context.Context, entity *Entity, changed map[string]any) error
	Delete(ctx context.Context, entity *Entity) error
}

// StateManager tracks entities and their lifecycle states until their changes are saved.
type StateManager struct {
	mu      sync.Mutex
	tracked []*Entity
}

// NewStateManager creates an empty StateManager.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// Add tracks a new entity of the given type in state Added.
func (m *StateManager) Add(typeName string, values map[string]any) *Entity {
	entity := NewEntity(typeName, values)
	entity.setState(entitystore.StateAdded)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.tracked = append(m.tracked, entity)

	return entity
}

// Attach tracks entity in state Unchanged. Attaching an already tracked entity is a no-op.
func (m *StateManager) Attach(entity *Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.indexOf(entity) >= 0 {
		return
	}

	entity.accept(nil, entitystore.StateUnchanged)
	m.tracked = append(m.tracked, entity)
}

// AttachOrGet returns the live tracked entity of the given type whose key properties match values,
// or attaches a new Unchanged entity built from values.
func (m *StateManager) AttachOrGet(typeName string, key []string, values map[string]any) *Entity {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entity := range m.tracked {
		if entity.Type() == typeName && isLive(entity) && keyEquals(entity, key, values) {
			return entity
		}
	}

	entity := NewEntity(typeName, values)
	entity.setState(entitystore.StateUnchanged)
	m.tracked = append(m.tracked, entity)

	return entity
}

// Remove marks entity Deleted. An Added entity is detached and untracked instead.
func (m *StateManager) Remove(entity *Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()

	index := m.indexOf(entity)

	if entity.State() == entitystore.StateAdded {
		if index >= 0 {
			m.tracked = slices.Delete(m.tracked, index, index+1)
		}

		entity.setState(entitystore.StateDetached)

		return
	}

	if index < 0 {
		m.tracked = append(m.tracked, entity)
	}

	entity.setState(entitystore.StateDeleted)
}

// TrackedEntities returns the tracked entities in the order they were tracked.
func (m *StateManager) TrackedEntities() []*Entity {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.tracked)
}

// Reset untracks all entities without saving them.
func (m *StateManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tracked = nil
}

// SaveChanges persists Added, Modified, and Deleted entities in tracking order.
// Every persisted entity is untracked, becoming Unchanged, or Detached when it was deleted.
// On failure the remaining entities stay tracked.
func (m *StateManager) SaveChanges(ctx context.Context, persister Persister) error {
	for _, entity := range m.TrackedEntities() {
		if err := ctx.Err(); err != nil {
			return errors.Join(ErrSaveChangesFailed, err)
		}

		if err := m.save(ctx, persister, entity); err != nil {
			return errors.Join(ErrSaveChangesFailed, fmt.Errorf("%s %s: %w", entity.State(), entity.Type(), err))
		}

		m.untrack(entity)
	}

	return nil
}

func (m *StateManager) save(ctx context.Context, persister Persister, entity *Entity) error {
	switch entity.State() {
	case entitystore.StateAdded:
		persisted, err := persister.Insert(ctx, entity)
		if err != nil {
			return err
		}

		entity.accept(persisted, entitystore.StateUnchanged)

	case entitystore.StateModified:
		if err := persister.Update(ctx, entity, entity.ChangedValues()); err != nil {
			return err
		}

		entity.accept(nil, entitystore.StateUnchanged)

	case entitystore.StateDeleted:
		if err := persister.Delete(ctx, entity); err != nil {
			return err
		}

		entity.accept(nil, entitystore.StateDetached)

	default:
		entity.accept(nil, entity.State())
	}

	return nil
}

func (m *StateManager) untrack(entity *Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index := m.indexOf(entity); index >= 0 {
		m.tracked = slices.Delete(m.tracked, index, index+1)
	}
}

func (m *StateManager) indexOf(entity *Entity) int {
	return slices.IndexFunc(m.tracked, func(tracked *Entity) bool {
		return tracked.ID() == entity.ID()
	})
}

func isLive(entity *Entity) bool {
	state := entity.State()
	return state != entitystore.StateDeleted && state != entitystore.StateDetached
}

func keyEquals(entity *Entity, key []string, values map[string]any) bool {
	if len(key) == 0 {
		return false
	}

	for _, field := range key {
		actual, _ := entity.Get(field)
		if fmt.Sprint(actual) != fmt.Sprint(values[field]) {
			return false
		}
	}

	return true
}
