// Package entitystore provides a uniform data store contract over a fluent query provider.
//
// The package translates a small serializable vocabulary of query operations (filtering, sorting,
// paging, field projection, relation expansion, counting) into calls against a provider's Queryable,
// and normalizes results and errors back into a common shape.
//
// Key types:
//   - Query: an immutable, chainable query builder recording deferred tasks
//   - Store: load, byKey, insert, update, and remove over an EntitySet
//   - Queryable, EntitySet, EntityContext: the capabilities a provider must offer
//
// Filters are given as nested criteria lists and compiled by CompileCriteria into the predicate
// language every provider understands:
//
//	[]any{"name", "contains", "foo"}                        // it.name.contains('foo')
//	[]any{[]any{"id", 1}, "or", []any{"id", 2}}             // (it.id == 1 || it.id == 2)
//	[]any{"!", []any{"id", ">", 10}}                        // !(it.id > 10)
//
// Common usage pattern:
//
//	store, err := entitystore.NewStore(people, entitystore.WithAutoCommit(true))
//	if err != nil {
//		// handle error
//	}
//
//	entities, extra, err := store.Load(ctx, entitystore.LoadOptions{
//		Filter:            []any{"age", ">=", 18},
//		Sort:              []entitystore.SortOption{{Field: "name"}},
//		Take:              20,
//		RequireTotalCount: true,
//	})
//
//	_, key, err := store.Insert(ctx, map[string]any{"name": "Ada"})
package entitystore
