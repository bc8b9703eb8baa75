package entitystore

import (
	"context"
)

// Queryable is the fluent query API of an underlying query provider.
//
// Every method except ToArray returns a new Queryable and leaves the receiver untouched.
// Predicates handed to Filter are written in the predicate language produced by CompileCriteria.
// Order takes a field name, prefixed with "-" for descending order.
type Queryable interface {
	Filter(predicate string) Queryable
	Order(fieldSpec string) Queryable
	Skip(n int) Queryable
	Take(n int) Queryable
	Include(path string) Queryable
	Map(projection Projection) Queryable
	WithInlineCount() Queryable
	ToArray(ctx context.Context) (ResultSet, error)
}

// ResultSet is what a Queryable materializes into.
// TotalCount is nil unless WithInlineCount was applied and the provider reported a count.
type ResultSet struct {
	Entities   []Entity
	TotalCount *int
}

// EntitySet is a Queryable root bound to one entity type, able to track entities for persistence.
type EntitySet interface {
	Queryable
	ElementType() ElementType
	EntityContext() EntityContext
	Add(values map[string]any) (Entity, error)
	Attach(entity Entity) error
	Remove(entity Entity) error
	AttachOrGet(values map[string]any) (Entity, error)
}

// EntityContext owns the tracked entities of one or more entity sets and persists their changes.
type EntityContext interface {
	TrackedEntities() []Entity
	SaveChanges(ctx context.Context) error
}

// ElementType describes the entity type served by an EntitySet.
type ElementType struct {
	Name          string
	KeyProperties []string
}

// Entity is a single record, either materialized by a query or tracked by an EntityContext.
type Entity interface {
	Type() string
	Get(name string) (any, bool)
	Set(name string, value any)
	State() EntityState
	Values() map[string]any
}

// EntityState is the change-tracking lifecycle state of an Entity.
type EntityState int

const (
	StateDetached EntityState = iota
	StateUnchanged
	StateAdded
	StateModified
	StateDeleted
)

func (s EntityState) String() string {
	switch s {
	case StateDetached:
		return "Detached"
	case StateUnchanged:
		return "Unchanged"
	case StateAdded:
		return "Added"
	case StateModified:
		return "Modified"
	case StateDeleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}
