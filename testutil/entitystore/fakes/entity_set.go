package fakes

import (
	"context"
	"slices"

	"github.com/AntonStoeckl/odata-entitystore-go/entitystore"
	"github.com/AntonStoeckl/odata-entitystore-go/entitystore/tracking"
)

// Queryable records the applied methods and serves the Backend's rows on ToArray.
// Predicates are not evaluated, skip and take are.
type Queryable struct {
	backend  *Backend
	typeName string
	calls    []Call
}

func (q Queryable) with(method string, arg any) entitystore.Queryable {
	calls := slices.Clone(q.calls)
	calls = append(calls, Call{Method: method, Arg: arg})

	return Queryable{backend: q.backend, typeName: q.typeName, calls: calls}
}

// Calls returns the methods applied so far.
func (q Queryable) Calls() []Call {
	return slices.Clone(q.calls)
}

func (q Queryable) Filter(predicate string) entitystore.Queryable {
	return q.with("filter", predicate)
}

func (q Queryable) Order(fieldSpec string) entitystore.Queryable {
	return q.with("order", fieldSpec)
}

func (q Queryable) Skip(n int) entitystore.Queryable {
	return q.with("skip", n)
}

func (q Queryable) Take(n int) entitystore.Queryable {
	return q.with("take", n)
}

func (q Queryable) Include(path string) entitystore.Queryable {
	return q.with("include", path)
}

func (q Queryable) Map(projection entitystore.Projection) entitystore.Queryable {
	return q.with("map", projection)
}

func (q Queryable) WithInlineCount() entitystore.Queryable {
	return q.with("withInlineCount", nil)
}

func (q Queryable) ToArray(ctx context.Context) (entitystore.ResultSet, error) {
	if err := ctx.Err(); err != nil {
		return entitystore.ResultSet{}, err
	}

	rows, reportsCount, err := q.backend.fetch(q.Calls())
	if err != nil {
		return entitystore.ResultSet{}, err
	}

	total := len(rows)
	inlineCount := false

	for _, call := range q.calls {
		switch call.Method {
		case "skip":
			rows = rows[min(call.Arg.(int), len(rows)):]
		case "take":
			rows = rows[:min(call.Arg.(int), len(rows))]
		case "withInlineCount":
			inlineCount = true
		}
	}

	result := entitystore.ResultSet{Entities: make([]entitystore.Entity, 0, len(rows))}
	for _, row := range rows {
		result.Entities = append(result.Entities, tracking.NewEntity(q.typeName, row))
	}

	if inlineCount && reportsCount {
		result.TotalCount = &total
	}

	return result, nil
}

// EntitySet is an in-memory entitystore.EntitySet whose changes are persisted into its Backend.
type EntitySet struct {
	Queryable
	elementType entitystore.ElementType
	context     *tracking.Context
}

// NewEntitySet creates an EntitySet for typeName with the given key properties over backend.
func NewEntitySet(backend *Backend, typeName string, keys ...string) *EntitySet {
	return &EntitySet{
		Queryable:   Queryable{backend: backend, typeName: typeName},
		elementType: entitystore.ElementType{Name: typeName, KeyProperties: keys},
		context:     tracking.NewContext(backend),
	}
}

// ShareContext makes s track its entities in the same context as other.
func (s *EntitySet) ShareContext(other *EntitySet) *EntitySet {
	s.context = other.context
	return s
}

func (s *EntitySet) ElementType() entitystore.ElementType {
	return s.elementType
}

func (s *EntitySet) EntityContext() entitystore.EntityContext {
	return s.context
}

func (s *EntitySet) Add(values map[string]any) (entitystore.Entity, error) {
	return s.context.Manager().Add(s.elementType.Name, values), nil
}

func (s *EntitySet) Attach(entity entitystore.Entity) error {
	tracked, err := tracking.AsEntity(entity)
	if err != nil {
		return err
	}

	s.context.Manager().Attach(tracked)

	return nil
}

func (s *EntitySet) Remove(entity entitystore.Entity) error {
	tracked, err := tracking.AsEntity(entity)
	if err != nil {
		return err
	}

	s.context.Manager().Remove(tracked)

	return nil
}

func (s *EntitySet) AttachOrGet(values map[string]any) (entitystore.Entity, error) {
	return s.context.Manager().AttachOrGet(s.elementType.Name, s.elementType.KeyProperties, values), nil
}

var _ entitystore.EntitySet = (*EntitySet)(nil)
