package entitystore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/odata-entitystore-go/entitystore"
)

func Test_ProjectionOf_CamelizesDottedPaths(t *testing.T) {
	// act
	projection := entitystore.ProjectionOf("id", "referenceToAnotherEntity.name", "a.b.c")

	// assert
	assert.Equal(t, entitystore.Projection{
		{OutputKey: "id", SourcePath: "id"},
		{OutputKey: "referenceToAnotherEntityName", SourcePath: "referenceToAnotherEntity.name"},
		{OutputKey: "aBC", SourcePath: "a.b.c"},
	}, projection)
	assert.Equal(t, []string{"id", "referenceToAnotherEntity.name", "a.b.c"}, projection.SourcePaths())
}

func Test_Projection_Apply(t *testing.T) {
	// arrange
	projection := entitystore.ProjectionOf("name", "ref.name", "ref.missing", "name.length")
	values := map[string]any{
		"id":   1,
		"name": "foo",
		"ref":  map[string]any{"name": "bar"},
	}

	// act
	projected := projection.Apply(values)

	// assert
	assert.Equal(t, map[string]any{
		"name":       "foo",
		"refName":    "bar",
		"refMissing": nil,
		"nameLength": nil,
	}, projected)
}

func Test_Projection_RootPaths(t *testing.T) {
	tests := []struct {
		name     string
		paths    []string
		expected []string
	}{
		{name: "plain_fields_have_no_roots", paths: []string{"id", "name"}, expected: nil},
		{name: "distinct_roots_in_order", paths: []string{"b.x", "id", "a.y", "b.z"}, expected: []string{"b", "a"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// act
			roots := entitystore.ProjectionOf(tc.paths...).RootPaths()

			// assert
			assert.Equal(t, tc.expected, roots)
		})
	}
}
