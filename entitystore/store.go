package entitystore

import (
	"context"
	"fmt"
	"slices"
	"strconv"
)

// Store exposes load, byKey, insert, update, and remove over an EntitySet.
//
// Failures of remote-facing operations are passed to the per-store ErrorHandler, then to the
// ErrorRegistry, and finally returned. Precondition errors (missing key, invalid criteria) are
// returned without notifying any handler.
type Store struct {
	entitySet     EntitySet
	autoCommit    bool
	key           []string
	errorHandler  ErrorHandler
	errorRegistry *ErrorRegistry
	obs           Observability
}

// NewStore creates a Store over entitySet with optional configuration.
func NewStore(entitySet EntitySet, options ...Option) (*Store, error) {
	if entitySet == nil {
		return nil, ErrNilEntitySet
	}

	s := &Store{entitySet: entitySet}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Queryable returns the entity set the Store queries by default.
func (s *Store) Queryable() Queryable {
	return s.entitySet
}

// EntityType returns the name of the entity type served by the Store.
func (s *Store) EntityType() string {
	return s.entitySet.ElementType().Name
}

// EntityContext returns the entity context tracking the Store's entities.
func (s *Store) EntityContext() EntityContext {
	return s.entitySet.EntityContext()
}

// Key returns the key properties declared by the element type, falling back to the static key.
func (s *Store) Key() []string {
	if declared := s.entitySet.ElementType().KeyProperties; len(declared) > 0 {
		return slices.Clone(declared)
	}

	return slices.Clone(s.key)
}

// KeyOf returns the key value of entity: the single key property's value,
// or a map of key property to value for a composite key. Without a key it returns nil.
func (s *Store) KeyOf(entity Entity) any {
	key := s.Key()

	switch len(key) {
	case 0:
		return nil
	case 1:
		value, _ := entity.Get(key[0])
		return value
	default:
		composite := make(map[string]any, len(key))
		for _, field := range key {
			composite[field], _ = entity.Get(field)
		}

		return composite
	}
}

// CreateQuery creates a root Query carrying the Store's error handlers and observability.
func (s *Store) CreateQuery(loadOptions LoadOptions) (Query, error) {
	source := loadOptions.Queryable
	if source == nil {
		source = s.entitySet
	}

	query, err := NewQuery(source, QueryOptions{
		RequireTotalCount: loadOptions.RequireTotalCount,
		ErrorHandler:      s.errorHandler,
		ErrorRegistry:     s.errorRegistry,
		Observability:     s.obs,
	})
	if err != nil {
		return Query{}, err
	}

	return query.Expand(loadOptions.Expand...), nil
}

// Load enumerates the entities described by loadOptions.
func (s *Store) Load(ctx context.Context, loadOptions LoadOptions) ([]Entity, Extra, error) {
	query, err := s.CreateQuery(loadOptions)
	if err != nil {
		return nil, Extra{}, err
	}

	query, err = loadOptions.applyTo(query)
	if err != nil {
		return nil, Extra{}, err
	}

	return query.Enumerate(ctx)
}

// TotalCount counts the entities matching the filter of loadOptions.
func (s *Store) TotalCount(ctx context.Context, loadOptions LoadOptions) (int, error) {
	query, err := s.CreateQuery(LoadOptions{Queryable: loadOptions.Queryable, Expand: loadOptions.Expand})
	if err != nil {
		return 0, err
	}

	if len(loadOptions.Filter) > 0 {
		if query, err = query.Filter(loadOptions.Filter); err != nil {
			return 0, err
		}
	}

	return query.Count(ctx)
}

// ByKey returns the entity with the given key value.
//
// Tracked entities of the Store's type that are neither deleted nor detached are searched first.
// Otherwise the entity set is filtered by key equality, including the given navigation paths.
// A composite key value is a map of key property to value, a list of values in key order,
// or a single value used for every key property.
// When no entity matches, ByKey returns a nil Entity and no error.
func (s *Store) ByKey(ctx context.Context, keyValue any, expand ...string) (Entity, error) {
	keyValues, err := s.normalizeKey(keyValue)
	if err != nil {
		return nil, err
	}

	observer, ctx := newInstrumentation(s.obs).start(ctx, operationByKey, s.spanAttrs())

	entity, err := s.lookup(ctx, keyValues, expand)
	if err != nil {
		observer.finishError(err)
		return nil, s.route(err)
	}

	if entity == nil {
		observer.finishSuccess(0)
		return nil, nil
	}

	observer.finishSuccess(1)

	return entity, nil
}

// Update sets values on the entity with the given key and returns the key and values.
func (s *Store) Update(ctx context.Context, keyValue any, values map[string]any) (any, map[string]any, error) {
	keyValues, err := s.normalizeKey(keyValue)
	if err != nil {
		return nil, nil, err
	}

	observer, ctx := newInstrumentation(s.obs).start(ctx, operationUpdate, s.spanAttrs())

	if err = s.update(ctx, keyValues, values); err != nil {
		observer.finishError(err)
		return nil, nil, s.route(err)
	}

	observer.finishSuccess(-1)

	return keyValue, values, nil
}

func (s *Store) update(ctx context.Context, keyValues map[string]any, values map[string]any) error {
	entity, err := s.byKey(ctx, keyValues, nil)
	if err != nil {
		return err
	}

	if err = s.entitySet.Attach(entity); err != nil {
		return err
	}

	for _, name := range sortedNames(values) {
		entity.Set(name, values[name])
	}

	return s.commit(ctx)
}

// Insert adds a new entity with the given values and returns the values and the new entity's key.
func (s *Store) Insert(ctx context.Context, values map[string]any) (map[string]any, any, error) {
	observer, ctx := newInstrumentation(s.obs).start(ctx, operationInsert, s.spanAttrs())

	entity, err := s.entitySet.Add(values)
	if err == nil {
		err = s.commit(ctx)
	}

	if err != nil {
		observer.finishError(err)
		return nil, nil, s.route(err)
	}

	observer.finishSuccess(-1)

	return values, s.KeyOf(entity), nil
}

// Remove deletes the entity with the given key and returns the key.
func (s *Store) Remove(ctx context.Context, keyValue any) (any, error) {
	keyValues, err := s.normalizeKey(keyValue)
	if err != nil {
		return nil, err
	}

	observer, ctx := newInstrumentation(s.obs).start(ctx, operationRemove, s.spanAttrs())

	if err = s.remove(ctx, keyValues); err != nil {
		observer.finishError(err)
		return nil, s.route(err)
	}

	observer.finishSuccess(-1)

	return keyValue, nil
}

func (s *Store) remove(ctx context.Context, keyValues map[string]any) error {
	entity, err := s.byKey(ctx, keyValues, nil)
	if err != nil {
		return err
	}

	if err = s.entitySet.Remove(entity); err != nil {
		return err
	}

	return s.commit(ctx)
}

// byKey resolves the entity to change, failing with ErrEntityNotFound when there is none.
func (s *Store) byKey(ctx context.Context, keyValues map[string]any, expand []string) (Entity, error) {
	entity, err := s.lookup(ctx, keyValues, expand)
	if err != nil {
		return nil, err
	}

	if entity == nil {
		return nil, fmt.Errorf("%w: %s with key %v", ErrEntityNotFound, s.EntityType(), keyValues)
	}

	return entity, nil
}

// lookup returns the tracked or remote entity with the given key values, or nil if none matches.
func (s *Store) lookup(ctx context.Context, keyValues map[string]any, expand []string) (Entity, error) {
	if tracked := s.findTracked(keyValues); tracked != nil {
		return tracked, nil
	}

	predicate, err := s.keyPredicate(keyValues)
	if err != nil {
		return nil, err
	}

	queryable := s.entitySet.Filter(predicate)
	for _, path := range expand {
		queryable = queryable.Include(path)
	}

	result, err := queryable.ToArray(ctx)
	if err != nil {
		return nil, err
	}

	if len(result.Entities) == 0 {
		return nil, nil
	}

	return result.Entities[0], nil
}

// findTracked returns the first live tracked entity of the Store's type with matching key values.
func (s *Store) findTracked(keyValues map[string]any) Entity {
	entityType := s.EntityType()

	for _, entity := range s.EntityContext().TrackedEntities() {
		if entity.Type() != entityType {
			continue
		}

		if state := entity.State(); state == StateDeleted || state == StateDetached {
			continue
		}

		if s.keyMatches(entity, keyValues) {
			return entity
		}
	}

	return nil
}

func (s *Store) keyMatches(entity Entity, keyValues map[string]any) bool {
	for field, expected := range keyValues {
		actual, ok := entity.Get(field)
		if !ok || formatValue(actual) != formatValue(expected) {
			return false
		}
	}

	return true
}

// keyPredicate compiles an equality predicate over all key properties, ANDed for composite keys.
func (s *Store) keyPredicate(keyValues map[string]any) (string, error) {
	key := s.Key()

	criteria := make([]any, 0, len(key))
	for _, field := range key {
		criteria = append(criteria, []any{field, "=", keyValues[field]})
	}

	return CompileCriteria(criteria)
}

// normalizeKey maps a key value onto the key properties.
func (s *Store) normalizeKey(keyValue any) (map[string]any, error) {
	key := s.Key()
	if len(key) == 0 {
		return nil, ErrKeyRequired
	}

	if keyValue == nil {
		return nil, fmt.Errorf("%w: nil", ErrInvalidKey)
	}

	keyValues := make(map[string]any, len(key))

	if named, ok := keyValue.(map[string]any); ok {
		for _, field := range key {
			value, exists := named[field]
			if !exists {
				return nil, fmt.Errorf("%w: missing key property %q", ErrInvalidKey, field)
			}

			keyValues[field] = value
		}

		return keyValues, nil
	}

	if positional, isList := toList(keyValue); isList {
		if len(positional) != len(key) {
			return nil, fmt.Errorf("%w: expected %d key values, got %d", ErrInvalidKey, len(key), len(positional))
		}

		for i, field := range key {
			keyValues[field] = positional[i]
		}

		return keyValues, nil
	}

	for _, field := range key {
		keyValues[field] = keyValue
	}

	return keyValues, nil
}

func (s *Store) commit(ctx context.Context) error {
	if !s.autoCommit {
		return nil
	}

	return s.EntityContext().SaveChanges(ctx)
}

func (s *Store) route(err error) error {
	return routeError(err, s.errorHandler, s.errorRegistry)
}

func (s *Store) spanAttrs() map[string]string {
	return map[string]string{
		spanAttrEntityType: s.EntityType(),
		spanAttrAutoCommit: strconv.FormatBool(s.autoCommit),
	}
}

func sortedNames(values map[string]any) []string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}
