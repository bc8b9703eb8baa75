package tracking

import (
	"context"

	"github.com/AntonStoeckl/odata-entitystore-go/entitystore"
)

// Context is an entitystore.EntityContext backed by a StateManager and a Persister.
type Context struct {
	manager   *StateManager
	persister Persister
}

// NewContext creates a Context with an empty StateManager.
func NewContext(persister Persister) *Context {
	return &Context{manager: NewStateManager(), persister: persister}
}

// Manager returns the StateManager of the Context.
func (c *Context) Manager() *StateManager {
	return c.manager
}

// TrackedEntities returns the tracked entities.
func (c *Context) TrackedEntities() []entitystore.Entity {
	tracked := c.manager.TrackedEntities()

	entities := make([]entitystore.Entity, 0, len(tracked))
	for _, entity := range tracked {
		entities = append(entities, entity)
	}

	return entities
}

// SaveChanges persists all tracked changes.
func (c *Context) SaveChanges(ctx context.Context) error {
	return c.manager.SaveChanges(ctx, c.persister)
}

var _ entitystore.EntityContext = (*Context)(nil)
