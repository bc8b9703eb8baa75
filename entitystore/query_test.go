package entitystore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/odata-entitystore-go/entitystore"
	"github.com/AntonStoeckl/odata-entitystore-go/testutil/entitystore/fakes"
)

func newPeople(rows ...map[string]any) (*fakes.Backend, *fakes.EntitySet) {
	backend := fakes.NewBackend(rows...)
	return backend, fakes.NewEntitySet(backend, "Person", "id")
}

func threePeople() []map[string]any {
	return []map[string]any{
		{"id": 1, "name": "foo"},
		{"id": 2, "name": "bar"},
		{"id": 3, "name": "baz"},
	}
}

func Test_NewQuery_FailsWithoutQueryable(t *testing.T) {
	// act
	_, err := entitystore.NewQuery(nil, entitystore.QueryOptions{})

	// assert
	assert.ErrorIs(t, err, entitystore.ErrNilQueryable)
}

func Test_Query_Filter_RecordsCompiledPredicate(t *testing.T) {
	// arrange
	backend, people := newPeople()
	query, err := entitystore.NewQuery(people, entitystore.QueryOptions{})
	require.NoError(t, err)

	// act
	query, err = query.Filter("id", "<>", 1)
	require.NoError(t, err)
	_, _, err = query.Enumerate(context.Background())

	// assert
	require.NoError(t, err)
	require.Equal(t, 1, backend.FetchCount())
	assert.Equal(t, []fakes.Call{{Method: "filter", Arg: "it.id != 1"}}, backend.Fetches()[0])
}

func Test_Query_Filter_AcceptsCriteriaList(t *testing.T) {
	// arrange
	_, people := newPeople()
	query, err := entitystore.NewQuery(people, entitystore.QueryOptions{})
	require.NoError(t, err)

	// act
	query, err = query.Filter([]any{[]any{"id", 1}, "or", []any{"id", 2}})

	// assert
	require.NoError(t, err)
	require.Len(t, query.Tasks(), 1)
	assert.Equal(t, entitystore.ActionFilter, query.Tasks()[0].Action())
	assert.Equal(t, "(it.id == 1 || it.id == 2)", query.Tasks()[0].Text())
}

func Test_Query_Filter_ReturnsCompileErrorsSynchronously(t *testing.T) {
	// arrange
	handled := 0
	_, people := newPeople()
	query, err := entitystore.NewQuery(people, entitystore.QueryOptions{
		ErrorHandler: func(error) { handled++ },
	})
	require.NoError(t, err)

	// act
	_, err = query.Filter([]any{[]any{"id", 1}, "and", []any{"id", 2}, "or", []any{"id", 3}})

	// assert
	assert.ErrorIs(t, err, entitystore.ErrMixedConnectors)
	assert.Zero(t, handled, "precondition errors must not be routed")
}

func Test_Query_IsImmutable(t *testing.T) {
	// arrange
	_, people := newPeople()
	root, err := entitystore.NewQuery(people, entitystore.QueryOptions{})
	require.NoError(t, err)

	// act
	sorted := root.SortBy("name", false)
	branchA := sorted.Slice(0, 10)
	branchB := sorted.Select("id")

	// assert
	assert.Empty(t, root.Tasks())
	assert.Len(t, sorted.Tasks(), 1)
	require.Len(t, branchA.Tasks(), 2)
	require.Len(t, branchB.Tasks(), 2)
	assert.Equal(t, entitystore.ActionTake, branchA.Tasks()[1].Action())
	assert.Equal(t, entitystore.ActionMap, branchB.Tasks()[1].Action())
}

func Test_Query_SortBy_FormatsDescendingOrder(t *testing.T) {
	// arrange
	_, people := newPeople()
	query, err := entitystore.NewQuery(people, entitystore.QueryOptions{})
	require.NoError(t, err)

	// act
	query, err = query.SortBy("name", true).ThenBy("id", false)

	// assert
	require.NoError(t, err)
	require.Len(t, query.Tasks(), 2)
	assert.Equal(t, "-name", query.Tasks()[0].Text())
	assert.Equal(t, "id", query.Tasks()[1].Text())
}

func Test_Query_ThenBy_FailsWithoutPrecedingSort(t *testing.T) {
	tests := []struct {
		name  string
		build func(query entitystore.Query) entitystore.Query
	}{
		{
			name:  "no_tasks",
			build: func(query entitystore.Query) entitystore.Query { return query },
		},
		{
			name:  "last_task_is_not_an_order",
			build: func(query entitystore.Query) entitystore.Query { return query.SortBy("name", false).Slice(1, 2) },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			_, people := newPeople()
			query, err := entitystore.NewQuery(people, entitystore.QueryOptions{})
			require.NoError(t, err)

			// act
			_, err = tc.build(query).ThenBy("id", false)

			// assert
			assert.ErrorIs(t, err, entitystore.ErrThenByWithoutSortBy)
		})
	}
}

func Test_Query_Slice_OmitsNonPositiveBounds(t *testing.T) {
	// arrange
	_, people := newPeople()
	query, err := entitystore.NewQuery(people, entitystore.QueryOptions{})
	require.NoError(t, err)

	// act
	onlyTake := query.Slice(0, 5)
	onlySkip := query.Slice(3, 0)
	none := query.Slice(0, 0)

	// assert
	require.Len(t, onlyTake.Tasks(), 1)
	assert.Equal(t, entitystore.ActionTake, onlyTake.Tasks()[0].Action())
	require.Len(t, onlySkip.Tasks(), 1)
	assert.Equal(t, entitystore.ActionSkip, onlySkip.Tasks()[0].Action())
	assert.Equal(t, 3, onlySkip.Tasks()[0].Count())
	assert.Empty(t, none.Tasks())
}

func Test_Query_Enumerate_AppliesPagingLast(t *testing.T) {
	// arrange
	backend, people := newPeople(threePeople()...)
	query, err := entitystore.NewQuery(people, entitystore.QueryOptions{})
	require.NoError(t, err)

	// act
	entities, _, err := query.Slice(1, 1).SortBy("name", false).Expand("parent").Enumerate(context.Background())

	// assert
	require.NoError(t, err)
	assert.Equal(t, []fakes.Call{
		{Method: "order", Arg: "name"},
		{Method: "include", Arg: "parent"},
		{Method: "skip", Arg: 1},
		{Method: "take", Arg: 1},
	}, backend.Fetches()[0])
	require.Len(t, entities, 1)
	id, _ := entities[0].Get("id")
	assert.Equal(t, 2, id)
}

func Test_Query_Enumerate_ReportsTotalCount(t *testing.T) {
	// arrange
	backend, people := newPeople(threePeople()...)
	query, err := entitystore.NewQuery(people, entitystore.QueryOptions{RequireTotalCount: true})
	require.NoError(t, err)

	// act
	entities, extra, err := query.Slice(0, 2).Enumerate(context.Background())

	// assert
	require.NoError(t, err)
	assert.Len(t, entities, 2)
	totalCount, requested := extra.TotalCount()
	assert.True(t, requested)
	assert.Equal(t, 3, totalCount)
	assert.Equal(t, fakes.Call{Method: "withInlineCount"}, backend.Fetches()[0][0])
}

func Test_Query_Enumerate_ReportsMissingTotalCountAsMinusOne(t *testing.T) {
	// arrange
	backend, people := newPeople(threePeople()...)
	backend.OmitTotalCount()
	query, err := entitystore.NewQuery(people, entitystore.QueryOptions{RequireTotalCount: true})
	require.NoError(t, err)

	// act
	_, extra, err := query.Enumerate(context.Background())

	// assert
	require.NoError(t, err)
	totalCount, requested := extra.TotalCount()
	assert.True(t, requested)
	assert.Equal(t, -1, totalCount)
}

func Test_Query_Enumerate_WithoutTotalCountRequest(t *testing.T) {
	// arrange
	backend, people := newPeople(threePeople()...)
	query, err := entitystore.NewQuery(people, entitystore.QueryOptions{})
	require.NoError(t, err)

	// act
	_, extra, err := query.Enumerate(context.Background())

	// assert
	require.NoError(t, err)
	_, requested := extra.TotalCount()
	assert.False(t, requested)
	assert.Empty(t, backend.Fetches()[0])
}

func Test_Query_Count_IgnoresMapOrderAndPaging(t *testing.T) {
	// arrange
	backend, people := newPeople(threePeople()...)
	query, err := entitystore.NewQuery(people, entitystore.QueryOptions{})
	require.NoError(t, err)
	query, err = query.Filter("name", "contains", "a")
	require.NoError(t, err)

	// act
	count, err := query.SortBy("name", false).Select("id").Slice(1, 1).Expand("parent").Count(context.Background())

	// assert
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, []fakes.Call{
		{Method: "filter", Arg: "it.name.contains('a')"},
		{Method: "include", Arg: "parent"},
		{Method: "withInlineCount"},
		{Method: "take", Arg: 0},
	}, backend.Fetches()[0])
}

func Test_Query_Count_FailsWhenCountIsMissing(t *testing.T) {
	// arrange
	var routed []error
	backend, people := newPeople(threePeople()...)
	backend.OmitTotalCount()
	query, err := entitystore.NewQuery(people, entitystore.QueryOptions{
		ErrorHandler: func(err error) { routed = append(routed, err) },
	})
	require.NoError(t, err)

	// act
	_, err = query.Count(context.Background())

	// assert
	assert.ErrorIs(t, err, entitystore.ErrTotalCountMissing)
	assert.Len(t, routed, 1)
}

func Test_Query_Enumerate_RoutesRemoteErrors(t *testing.T) {
	// arrange
	remoteErr := errors.New("service unavailable")
	var order []string

	backend, people := newPeople()
	backend.FailWith(remoteErr)

	registry := entitystore.NewErrorRegistry(func(err error) {
		assert.ErrorIs(t, err, remoteErr)
		order = append(order, "registry")
	})

	query, err := entitystore.NewQuery(people, entitystore.QueryOptions{
		ErrorHandler: func(err error) {
			assert.ErrorIs(t, err, remoteErr)
			order = append(order, "query")
		},
		ErrorRegistry: registry,
	})
	require.NoError(t, err)

	// act
	_, _, err = query.Enumerate(context.Background())

	// assert
	assert.ErrorIs(t, err, remoteErr)
	assert.Equal(t, []string{"query", "registry"}, order)
}

func Test_Query_Enumerate_PropagatesErrorsWithoutHandlers(t *testing.T) {
	// arrange
	remoteErr := errors.New("boom")
	backend, people := newPeople()
	backend.FailWith(remoteErr)
	query, err := entitystore.NewQuery(people, entitystore.QueryOptions{})
	require.NoError(t, err)

	// act
	_, _, err = query.Enumerate(context.Background())

	// assert
	assert.ErrorIs(t, err, remoteErr)
}

func Test_Query_Select_ProjectsDottedPathsToCamelCase(t *testing.T) {
	// arrange
	_, people := newPeople()
	query, err := entitystore.NewQuery(people, entitystore.QueryOptions{})
	require.NoError(t, err)

	// act
	query = query.Select("name", "referenceToAnotherEntity.name")

	// assert
	require.Len(t, query.Tasks(), 1)
	assert.Equal(t, entitystore.Projection{
		{OutputKey: "name", SourcePath: "name"},
		{OutputKey: "referenceToAnotherEntityName", SourcePath: "referenceToAnotherEntity.name"},
	}, query.Tasks()[0].Projection())
}

func Test_Query_Aggregates_AreNotImplemented(t *testing.T) {
	// arrange
	ctx := context.Background()
	_, people := newPeople()
	query, err := entitystore.NewQuery(people, entitystore.QueryOptions{})
	require.NoError(t, err)

	// act
	_, sumErr := query.Sum(ctx, "age")
	_, minErr := query.Min(ctx, "age")
	_, maxErr := query.Max(ctx, "age")
	_, avgErr := query.Avg(ctx, "age")
	_, groupErr := query.GroupBy("age")
	_, aggregateErr := query.Aggregate(ctx, 0, func(acc any, _ entitystore.Entity) any { return acc })

	// assert
	for _, err := range []error{sumErr, minErr, maxErr, avgErr, groupErr, aggregateErr} {
		assert.ErrorIs(t, err, entitystore.ErrNotImplemented)
	}
}
