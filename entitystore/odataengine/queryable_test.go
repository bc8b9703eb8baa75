package odataengine_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/odata-entitystore-go/entitystore"
	"github.com/AntonStoeckl/odata-entitystore-go/entitystore/internal/predicate"
	"github.com/AntonStoeckl/odata-entitystore-go/entitystore/odataengine"
)

const (
	serviceHost = "http://odata.test"
	serviceRoot = serviceHost + "/Service"
)

func newService(t *testing.T, options ...odataengine.Option) *odataengine.Service {
	t.Helper()

	client := &http.Client{}
	gock.InterceptClient(client)

	t.Cleanup(func() {
		gock.RestoreClient(client)
		gock.OffAll()
	})

	service, err := odataengine.NewService(serviceRoot, append([]odataengine.Option{odataengine.WithHTTPClient(client)}, options...)...)
	require.NoError(t, err)

	return service
}

func newEntities(t *testing.T, service *odataengine.Service) *odataengine.EntitySet {
	t.Helper()

	entities, err := service.EntitySet("Entities", "id")
	require.NoError(t, err)

	return entities
}

// expectGet registers a GET on the entity set and records its decoded query string into captured.
func expectGet(set string, captured *string, status int, body any) {
	gock.New(serviceHost).
		Get("/Service/" + set).
		AddMatcher(func(request *http.Request, _ *gock.Request) (bool, error) {
			decoded, err := url.PathUnescape(request.URL.RawQuery)
			*captured = decoded

			return true, err
		}).
		Reply(status).
		JSON(body)
}

func emptyFeed() map[string]any {
	return map[string]any{"d": map[string]any{"results": []any{}}}
}

func newQuery(t *testing.T, source entitystore.Queryable, options entitystore.QueryOptions) entitystore.Query {
	t.Helper()

	query, err := entitystore.NewQuery(source, options)
	require.NoError(t, err)

	return query
}

func Test_Query_Enumerate_DecodesVerboseFeed(t *testing.T) {
	// arrange
	var captured string
	entities := newEntities(t, newService(t))
	expectGet("Entities", &captured, http.StatusOK, map[string]any{"d": map[string]any{"results": []any{
		map[string]any{"id": 1, "name": "foo", "__metadata": map[string]any{"uri": "Entities(1)"}},
		map[string]any{"id": 2, "name": "bar", "ref": map[string]any{"__deferred": map[string]any{"uri": "x"}}},
	}}})

	// act
	results, extra, err := newQuery(t, entities, entitystore.QueryOptions{}).Enumerate(context.Background())

	// assert
	require.NoError(t, err)
	assert.Empty(t, captured)
	require.Len(t, results, 2)
	assert.Equal(t, map[string]any{"id": int64(1), "name": "foo"}, results[0].Values())
	assert.Equal(t, map[string]any{"id": int64(2), "name": "bar"}, results[1].Values())
	assert.Equal(t, "Entities", results[0].Type())
	_, requested := extra.TotalCount()
	assert.False(t, requested)
}

func Test_Query_Enumerate_WithRequireTotalCount(t *testing.T) {
	// arrange
	var captured string
	entities := newEntities(t, newService(t))
	expectGet("Entities", &captured, http.StatusOK, map[string]any{"d": map[string]any{
		"results": []any{map[string]any{"id": 1}, map[string]any{"id": 2}},
		"__count": "2",
	}})

	// act
	results, extra, err := newQuery(t, entities, entitystore.QueryOptions{RequireTotalCount: true}).
		Enumerate(context.Background())

	// assert
	require.NoError(t, err)
	assert.Equal(t, "$inlinecount=allpages", captured)
	assert.Len(t, results, 2)
	totalCount, requested := extra.TotalCount()
	assert.True(t, requested)
	assert.Equal(t, 2, totalCount)
}

//nolint:funlen
func Test_Query_RendersSystemQueryOptions(t *testing.T) {
	tests := []struct {
		name     string
		build    func(entitystore.Query) (entitystore.Query, error)
		expected string
	}{
		{
			name: "sort_by_then_by",
			build: func(q entitystore.Query) (entitystore.Query, error) {
				q, err := q.SortBy("name", true).ThenBy("description", false)
				if err != nil {
					return q, err
				}

				return q.ThenBy("referenceToAnotherEntity.name", false)
			},
			expected: "$orderby=name desc,description,referenceToAnotherEntity/name",
		},
		{
			name: "select",
			build: func(q entitystore.Query) (entitystore.Query, error) {
				return q.Select("name"), nil
			},
			expected: "$select=name",
		},
		{
			name: "expand",
			build: func(q entitystore.Query) (entitystore.Query, error) {
				return q.Expand("referenceToAnotherEntity"), nil
			},
			expected: "$expand=referenceToAnotherEntity",
		},
		{
			name: "select_with_implicit_expand",
			build: func(q entitystore.Query) (entitystore.Query, error) {
				return q.Select("name", "referenceToAnotherEntity.id", "referenceToAnotherEntity.name"), nil
			},
			expected: "$expand=referenceToAnotherEntity&$select=name,referenceToAnotherEntity/id,referenceToAnotherEntity/name",
		},
		{
			name: "slice_renders_top_before_skip",
			build: func(q entitystore.Query) (entitystore.Query, error) {
				return q.Slice(1, 2), nil
			},
			expected: "$top=2&$skip=1",
		},
		{
			name: "slice_before_sort_still_pages_last",
			build: func(q entitystore.Query) (entitystore.Query, error) {
				return q.Slice(1, 2).SortBy("name", true), nil
			},
			expected: "$orderby=name desc&$top=2&$skip=1",
		},
		{
			name: "filter_simple",
			build: func(q entitystore.Query) (entitystore.Query, error) {
				return q.Filter("id", "<>", 1)
			},
			expected: "$filter=(id ne 1)",
		},
		{
			name: "filter_complex_1",
			build: func(q entitystore.Query) (entitystore.Query, error) {
				return q.Filter([]any{
					[]any{[]any{"id", "<>", 1}, "or", []any{[]any{"id", 2}, []any{"name", "bar"}}},
					"and",
					[]any{"name", "foo"},
				})
			},
			expected: "$filter=(((id ne 1) or ((id eq 2) and (name eq 'bar'))) and (name eq 'foo'))",
		},
		{
			name: "filter_complex_2",
			build: func(q entitystore.Query) (entitystore.Query, error) {
				return q.Filter([]any{
					[]any{"id", "=", 1},
					"and",
					[]any{[]any{"name", "contains", "a"}, "or", []any{"description", "contains", "b"}},
				})
			},
			expected: "$filter=((id eq 1) and (substringof('a',name) or substringof('b',description)))",
		},
		{
			name: "filter_complex_3",
			build: func(q entitystore.Query) (entitystore.Query, error) {
				return q.Filter([]any{[]any{"id", 1}, "or", []any{"id", 2}, "or", []any{"id", 3}})
			},
			expected: "$filter=(((id eq 1) or (id eq 2)) or (id eq 3))",
		},
		{
			name: "filter_all_operations",
			build: func(q entitystore.Query) (entitystore.Query, error) {
				return q.Filter([]any{
					[]any{"name", "=", "bar"},
					[]any{"name", ">", "bar"},
					[]any{"name", "<", "bar"},
					[]any{"name", "<>", "bar"},
					[]any{"name", ">=", "bar"},
					[]any{"name", "<=", "bar"},
					[]any{"name", "endswith", "bar"},
					[]any{"name", "startswith", "bar"},
					[]any{"name", "contains", "bar"},
					[]any{"name", "notcontains", "bar"},
				})
			},
			expected: "$filter=((((((((((name eq 'bar') and (name gt 'bar')) and (name lt 'bar')) and (name ne 'bar'))" +
				" and (name ge 'bar')) and (name le 'bar')) and endswith(name,'bar')) and startswith(name,'bar'))" +
				" and substringof('bar',name)) and not(substringof('bar',name)))",
		},
		{
			name: "filter_negated_group",
			build: func(q entitystore.Query) (entitystore.Query, error) {
				return q.Filter("!", []any{[]any{"id", ">", 10}, "or", []any{"name", nil}})
			},
			expected: "$filter=not((id gt 10) or (name eq null))",
		},
		{
			name: "filter_escapes_quotes_and_ampersands",
			build: func(q entitystore.Query) (entitystore.Query, error) {
				return q.Filter("name", "=", "Tom & O'Hara")
			},
			expected: "$filter=(name eq 'Tom & O''Hara')",
		},
		{
			name: "filter_datetime_literal",
			build: func(q entitystore.Query) (entitystore.Query, error) {
				return q.Filter("createdAt", ">=", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
			},
			expected: "$filter=(createdAt ge datetime'2025-01-02T03:04:05')",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			var captured string
			entities := newEntities(t, newService(t))
			expectGet("Entities", &captured, http.StatusOK, emptyFeed())

			query, err := tc.build(newQuery(t, entities, entitystore.QueryOptions{}))
			require.NoError(t, err)

			// act
			_, _, err = query.Enumerate(context.Background())

			// assert
			require.NoError(t, err)
			assert.Equal(t, tc.expected, captured)
		})
	}
}

func Test_Query_Filter_ExtendsUserQueryable(t *testing.T) {
	// arrange
	var captured string
	entities := newEntities(t, newService(t))
	expectGet("Entities", &captured, http.StatusOK, emptyFeed())

	query, err := newQuery(t, entities.Order("id").Filter("it.id == 1"), entitystore.QueryOptions{}).Filter([]any{"id", 2})
	require.NoError(t, err)

	// act
	_, _, err = query.Slice(1, 2).Enumerate(context.Background())

	// assert
	require.NoError(t, err)
	assert.Equal(t, "$orderby=id&$filter=((id eq 1) and (id eq 2))&$top=2&$skip=1", captured)
}

func Test_Query_Select_ProjectsEntries(t *testing.T) {
	// arrange
	var captured string
	entities := newEntities(t, newService(t))
	expectGet("Entities", &captured, http.StatusOK, map[string]any{"d": map[string]any{"results": []any{
		map[string]any{"name": "foo", "referenceToAnotherEntity": map[string]any{"id": 7, "name": "bar"}},
	}}})

	// act
	results, _, err := newQuery(t, entities, entitystore.QueryOptions{}).
		Select("name", "referenceToAnotherEntity.name").
		Enumerate(context.Background())

	// assert
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, map[string]any{"name": "foo", "referenceToAnotherEntityName": "bar"}, results[0].Values())
}

func Test_Query_Count(t *testing.T) {
	// arrange
	var captured string
	entities := newEntities(t, newService(t))
	expectGet("Entities", &captured, http.StatusOK, map[string]any{"d": map[string]any{"__count": 42}})

	// act
	count, err := newQuery(t, entities, entitystore.QueryOptions{}).
		SortBy("name", false).
		Slice(5, 10).
		Count(context.Background())

	// assert
	require.NoError(t, err)
	assert.Equal(t, 42, count)
	assert.Equal(t, "$inlinecount=allpages&$top=0", captured)
}

func Test_Query_Version4(t *testing.T) {
	// arrange
	var captured string
	entities := newEntities(t, newService(t, odataengine.WithProtocolVersion(odataengine.V4)))
	expectGet("Entities", &captured, http.StatusOK, map[string]any{
		"@odata.context": "$metadata#Entities",
		"@odata.count":   5,
		"value": []any{
			map[string]any{"@odata.etag": "W/\"1\"", "id": 1, "name": "foo"},
		},
	})

	query, err := newQuery(t, entities, entitystore.QueryOptions{RequireTotalCount: true}).
		Filter([]any{"name", "contains", "o"})
	require.NoError(t, err)

	// act
	results, extra, err := query.Enumerate(context.Background())

	// assert
	require.NoError(t, err)
	assert.Equal(t, "$count=true&$filter=contains(name,'o')", captured)
	require.Len(t, results, 1)
	assert.Equal(t, map[string]any{"id": int64(1), "name": "foo"}, results[0].Values())
	totalCount, _ := extra.TotalCount()
	assert.Equal(t, 5, totalCount)
}

func Test_Queryable_InvalidPredicateFailsToArray(t *testing.T) {
	// arrange
	entities := newEntities(t, newService(t))

	// act
	_, err := entities.Filter("name == 'x'").ToArray(context.Background())

	// assert
	assert.ErrorIs(t, err, predicate.ErrSyntax)
}

func Test_Queryable_IsImmutable(t *testing.T) {
	// arrange
	entities := newEntities(t, newService(t))
	base := entities.Order("id")

	// act
	filtered := base.Filter("it.id == 1").(odataengine.Queryable)
	paged := base.Take(3).(odataengine.Queryable)

	// assert
	assert.Equal(t, "$orderby=id", base.(odataengine.Queryable).RawQuery())
	assert.Equal(t, "$orderby=id&$filter=%28id%20eq%201%29", filtered.RawQuery())
	assert.Equal(t, "$orderby=id&$top=3", paged.RawQuery())
}

func Test_Queryable_RequestFailure(t *testing.T) {
	// arrange
	var captured string
	entities := newEntities(t, newService(t))
	expectGet("Entities", &captured, http.StatusInternalServerError, map[string]any{"error": "boom"})

	// act
	_, err := entities.ToArray(context.Background())

	// assert
	require.ErrorIs(t, err, odataengine.ErrRequestFailed)
	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "boom")
}

func Test_Queryable_UndecodablePayload(t *testing.T) {
	// arrange
	entities := newEntities(t, newService(t))
	gock.New(serviceHost).Get("/Service/Entities").Reply(http.StatusOK).BodyString(`{"d":{"results":"nope"}}`)

	// act
	_, err := entities.ToArray(context.Background())

	// assert
	assert.ErrorIs(t, err, odataengine.ErrDecodingPayloadFailed)
}
