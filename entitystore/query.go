package entitystore

import (
	"context"
	"slices"
	"strconv"
)

// QueryOptions are set at the root Query and propagated unchanged to every derived Query.
type QueryOptions struct {
	// RequireTotalCount makes Enumerate request and report the total count of matching entities.
	RequireTotalCount bool

	// ErrorHandler is notified first about failed remote operations.
	ErrorHandler ErrorHandler

	// ErrorRegistry is notified after ErrorHandler.
	ErrorRegistry *ErrorRegistry

	Observability Observability
}

// Extra carries metadata of an Enumerate result.
type Extra struct {
	totalCount    int
	hasTotalCount bool
}

// TotalCount returns the total count and whether it was requested.
// A requested but unreported count is -1.
func (e Extra) TotalCount() (int, bool) {
	return e.totalCount, e.hasTotalCount
}

// Query is an immutable, chainable description of a query against a Queryable.
//
// Every builder method returns a new Query that shares the task prefix of its receiver, so a Query
// can be branched and reused freely. Nothing is sent to the provider until Enumerate or Count.
//
// Example:
//
//	query, err := entitystore.NewQuery(people, entitystore.QueryOptions{RequireTotalCount: true})
//	if err != nil {
//		// handle error
//	}
//
//	query, err = query.Filter([]any{[]any{"age", ">", 18}, "or", []any{"name", "startswith", "A"}})
//	if err != nil {
//		// handle error
//	}
//
//	entities, extra, err := query.SortBy("name", false).Slice(20, 10).Enumerate(ctx)
type Query struct {
	source  Queryable
	options QueryOptions
	tasks   *taskList
}

// NewQuery creates a root Query over source.
func NewQuery(source Queryable, options QueryOptions) (Query, error) {
	if source == nil {
		return Query{}, ErrNilQueryable
	}

	return Query{source: source, options: options}, nil
}

// Source returns the root Queryable of the Query.
func (q Query) Source() Queryable {
	return q.source
}

// Options returns the QueryOptions of the Query.
func (q Query) Options() QueryOptions {
	return q.options
}

// Tasks returns the recorded tasks in the order they were added.
func (q Query) Tasks() []Task {
	return q.tasks.slice()
}

func (q Query) derive(tasks ...Task) Query {
	list := q.tasks
	for _, task := range tasks {
		list = list.append(task)
	}

	return Query{source: q.source, options: q.options, tasks: list}
}

// Filter compiles the criteria and records a filter task.
// A single list argument is the criteria literal itself, otherwise the arguments form a binary criteria:
//
//	query.Filter("id", "<>", 1)
//	query.Filter([]any{"id", "<>", 1})
func (q Query) Filter(criteria ...any) (Query, error) {
	literal := criteria
	if len(criteria) == 1 {
		if list, isList := toList(criteria[0]); isList {
			literal = list
		}
	}

	predicate, err := CompileCriteria(literal)
	if err != nil {
		return Query{}, err
	}

	return q.derive(filterTask(predicate)), nil
}

// SortBy records an order task.
func (q Query) SortBy(field string, desc bool) Query {
	return q.derive(orderTask(field, desc))
}

// ThenBy records a subsequent order task and fails unless the last task is an order task.
func (q Query) ThenBy(field string, desc bool) (Query, error) {
	last, ok := q.tasks.lastTask()
	if !ok || last.action != ActionOrder {
		return Query{}, ErrThenByWithoutSortBy
	}

	return q.SortBy(field, desc), nil
}

// Select records a map task projecting each entity onto the given fields.
func (q Query) Select(fields ...string) Query {
	if len(fields) == 0 {
		return q
	}

	return q.derive(mapTask(ProjectionOf(fields...)))
}

// Expand records one include task per navigation path.
func (q Query) Expand(paths ...string) Query {
	tasks := make([]Task, 0, len(paths))
	for _, path := range paths {
		if path != "" {
			tasks = append(tasks, includeTask(path))
		}
	}

	return q.derive(tasks...)
}

// Slice records a skip task when skip is positive and a take task when take is positive.
func (q Query) Slice(skip, take int) Query {
	var tasks []Task

	if skip > 0 {
		tasks = append(tasks, skipTask(skip))
	}

	if take > 0 {
		tasks = append(tasks, takeTask(take))
	}

	return q.derive(tasks...)
}

// Enumerate applies all tasks, with skip and take moved to the end, and fetches the entities.
// Failures are routed to the configured handlers before they are returned.
func (q Query) Enumerate(ctx context.Context) ([]Entity, Extra, error) {
	observer, ctx := newInstrumentation(q.options.Observability).start(ctx, operationEnumerate, q.spanAttrs())

	entities, extra, err := q.enumerate(ctx)
	if err != nil {
		observer.finishError(err)
		return nil, Extra{}, routeError(err, q.options.ErrorHandler, q.options.ErrorRegistry)
	}

	observer.finishSuccess(len(entities))

	return entities, extra, nil
}

func (q Query) enumerate(ctx context.Context) ([]Entity, Extra, error) {
	queryable := q.source
	if q.options.RequireTotalCount {
		queryable = queryable.WithInlineCount()
	}

	queryable = applyTasks(queryable, pagingLast(q.tasks.slice()))

	result, err := queryable.ToArray(ctx)
	if err != nil {
		return nil, Extra{}, err
	}

	if !q.options.RequireTotalCount {
		return result.Entities, Extra{}, nil
	}

	totalCount := -1
	if result.TotalCount != nil {
		totalCount = *result.TotalCount
	}

	return result.Entities, Extra{totalCount: totalCount, hasTotalCount: true}, nil
}

// Count returns the number of entities matching the filter and include tasks.
// Map, order, skip and take tasks are ignored.
func (q Query) Count(ctx context.Context) (int, error) {
	observer, ctx := newInstrumentation(q.options.Observability).start(ctx, operationCount, q.spanAttrs())

	count, err := q.count(ctx)
	if err != nil {
		observer.finishError(err)
		return 0, routeError(err, q.options.ErrorHandler, q.options.ErrorRegistry)
	}

	observer.finishSuccess(count)

	return count, nil
}

func (q Query) count(ctx context.Context) (int, error) {
	var tasks []Task
	for _, task := range q.tasks.slice() {
		if !task.isIgnoredByCount() {
			tasks = append(tasks, task)
		}
	}

	result, err := applyTasks(q.source, tasks).WithInlineCount().Take(0).ToArray(ctx)
	if err != nil {
		return 0, err
	}

	if result.TotalCount == nil {
		return 0, ErrTotalCountMissing
	}

	return *result.TotalCount, nil
}

// Sum is not supported by the store.
func (q Query) Sum(_ context.Context, _ string) (any, error) {
	return nil, ErrNotImplemented
}

// Min is not supported by the store.
func (q Query) Min(_ context.Context, _ string) (any, error) {
	return nil, ErrNotImplemented
}

// Max is not supported by the store.
func (q Query) Max(_ context.Context, _ string) (any, error) {
	return nil, ErrNotImplemented
}

// Avg is not supported by the store.
func (q Query) Avg(_ context.Context, _ string) (any, error) {
	return nil, ErrNotImplemented
}

// GroupBy is not supported by the store.
func (q Query) GroupBy(_ string) (Query, error) {
	return Query{}, ErrNotImplemented
}

// Aggregate is not supported by the store.
func (q Query) Aggregate(_ context.Context, _ any, _ func(accumulator any, entity Entity) any) (any, error) {
	return nil, ErrNotImplemented
}

func (q Query) spanAttrs() map[string]string {
	return map[string]string{
		spanAttrTaskCount:         strconv.Itoa(q.tasks.len()),
		spanAttrRequireTotalCount: strconv.FormatBool(q.options.RequireTotalCount),
	}
}

func applyTasks(queryable Queryable, tasks []Task) Queryable {
	for _, task := range tasks {
		queryable = task.apply(queryable)
	}

	return queryable
}

// pagingLast returns a copy of tasks with skip and take tasks moved to the end, keeping relative order otherwise.
func pagingLast(tasks []Task) []Task {
	ordered := slices.Clone(tasks)

	slices.SortStableFunc(ordered, func(a, b Task) int {
		switch {
		case !a.isPaging() && b.isPaging():
			return -1
		case a.isPaging() && !b.isPaging():
			return 1
		default:
			return 0
		}
	})

	return ordered
}
