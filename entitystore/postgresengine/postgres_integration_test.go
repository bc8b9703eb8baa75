package postgresengine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/odata-entitystore-go/entitystore"
	"github.com/AntonStoeckl/odata-entitystore-go/testutil/postgresengine/pgtest"
)

func Test_Integration_Store_Lifecycle(t *testing.T) {
	// arrange
	wrapper := pgtest.Open(t)
	wrapper.CreateTable(t, "it_people", "id SERIAL PRIMARY KEY, name TEXT NOT NULL, age INTEGER")

	people, err := wrapper.Database.EntitySet("it_people", "id")
	require.NoError(t, err)

	store, err := entitystore.NewStore(people, entitystore.WithAutoCommit(true))
	require.NoError(t, err)

	ctx := context.Background()

	// act
	_, annKey, annErr := store.Insert(ctx, map[string]any{"name": "Ann", "age": 30})
	_, _, bobErr := store.Insert(ctx, map[string]any{"name": "Bob_50%", "age": 17})
	_, _, carlErr := store.Insert(ctx, map[string]any{"name": "Carl", "age": nil})

	// assert
	require.NoError(t, annErr)
	require.NoError(t, bobErr)
	require.NoError(t, carlErr)
	assert.Equal(t, int64(1), annKey)

	t.Run("load_filters_sorts_and_counts", func(t *testing.T) {
		entities, extra, loadErr := store.Load(ctx, entitystore.LoadOptions{
			Filter:            []any{[]any{"age", "<>", nil}, "and", []any{"name", "contains", "_50%"}},
			Sort:              []entitystore.SortOption{{Field: "name", Desc: true}},
			RequireTotalCount: true,
		})

		require.NoError(t, loadErr)
		require.Len(t, entities, 1)
		assert.Equal(t, map[string]any{"id": int64(2), "name": "Bob_50%", "age": int64(17)}, entities[0].Values())

		totalCount, requested := extra.TotalCount()
		assert.True(t, requested)
		assert.Equal(t, 1, totalCount)
	})

	t.Run("total_count", func(t *testing.T) {
		count, countErr := store.TotalCount(ctx, entitystore.LoadOptions{Filter: []any{"age", ">=", 18}})

		require.NoError(t, countErr)
		assert.Equal(t, 1, count)
	})

	t.Run("update_then_by_key", func(t *testing.T) {
		_, _, updateErr := store.Update(ctx, annKey, map[string]any{"age": 31})
		require.NoError(t, updateErr)

		entity, byKeyErr := store.ByKey(ctx, annKey)
		require.NoError(t, byKeyErr)

		age, _ := entity.Get("age")
		assert.Equal(t, int64(31), age)
	})

	t.Run("remove", func(t *testing.T) {
		_, removeErr := store.Remove(ctx, annKey)
		require.NoError(t, removeErr)

		removed, byKeyErr := store.ByKey(ctx, annKey)
		require.NoError(t, byKeyErr)
		assert.Nil(t, removed)

		_, removeAgainErr := store.Remove(ctx, int64(999))
		assert.ErrorIs(t, removeAgainErr, entitystore.ErrEntityNotFound)
	})
}
