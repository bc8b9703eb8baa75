package entitystore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/odata-entitystore-go/entitystore"
)

//nolint:funlen
func Test_CompileCriteria_ValidCriteria(t *testing.T) {
	tests := []struct {
		name     string
		criteria []any
		expected string
	}{
		{
			name:     "implicit_equality",
			criteria: []any{"id", 1},
			expected: "it.id == 1",
		},
		{
			name:     "not_equal",
			criteria: []any{"id", "<>", 1},
			expected: "it.id != 1",
		},
		{
			name:     "relational_operators_pass_through",
			criteria: []any{"age", ">=", 18},
			expected: "it.age >= 18",
		},
		{
			name:     "string_values_are_quoted",
			criteria: []any{"name", "=", "foo"},
			expected: "it.name == 'foo'",
		},
		{
			name:     "embedded_quotes_are_doubled",
			criteria: []any{"name", "=", "O'Hara"},
			expected: "it.name == 'O''Hara'",
		},
		{
			name:     "numeric_strings_stay_quoted",
			criteria: []any{"code", "=", "42"},
			expected: "it.code == '42'",
		},
		{
			name:     "floats_are_unquoted",
			criteria: []any{"price", "<", 9.5},
			expected: "it.price < 9.5",
		},
		{
			name:     "booleans_are_unquoted",
			criteria: []any{"active", true},
			expected: "it.active == true",
		},
		{
			name:     "nil_renders_as_null",
			criteria: []any{"deletedAt", nil},
			expected: "it.deletedAt == null",
		},
		{
			name:     "time_values_are_datetime_literals",
			criteria: []any{"createdAt", ">", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)},
			expected: "it.createdAt > datetime'2025-01-02T03:04:05Z'",
		},
		{
			name:     "time_values_are_converted_to_utc",
			criteria: []any{"createdAt", "<", time.Date(2025, 1, 2, 5, 4, 5, 0, time.FixedZone("CEST", 2*60*60))},
			expected: "it.createdAt < datetime'2025-01-02T03:04:05Z'",
		},
		{
			name:     "operators_are_case_insensitive",
			criteria: []any{"name", "StartsWith", "a"},
			expected: "it.name.startsWith('a')",
		},
		{
			name:     "endswith_renders_as_method",
			criteria: []any{"name", "endswith", "bar"},
			expected: "it.name.endsWith('bar')",
		},
		{
			name:     "contains_renders_as_method",
			criteria: []any{"name", "contains", "a"},
			expected: "it.name.contains('a')",
		},
		{
			name:     "notcontains_renders_as_negated_contains",
			criteria: []any{"name", "notcontains", "bar"},
			expected: "!(it.name.contains('bar'))",
		},
		{
			name:     "dotted_paths_are_preserved",
			criteria: []any{"referenceToAnotherEntity.name", "=", "x"},
			expected: "it.referenceToAnotherEntity.name == 'x'",
		},
		{
			name:     "identifier_characters_in_paths",
			criteria: []any{"$meta_2.Value_X", "=", 1},
			expected: "it.$meta_2.Value_X == 1",
		},
		{
			name:     "unary_negation",
			criteria: []any{"!", []any{"id", ">", 10}},
			expected: "!(it.id > 10)",
		},
		{
			name:     "single_operand_group_is_unwrapped",
			criteria: []any{[]any{"id", 1}},
			expected: "it.id == 1",
		},
		{
			name:     "adjacent_operands_default_to_and",
			criteria: []any{[]any{"id", 1}, []any{"name", "foo"}},
			expected: "(it.id == 1 && it.name == 'foo')",
		},
		{
			name:     "explicit_or_group",
			criteria: []any{[]any{"id", 1}, "or", []any{"id", 2}, "or", []any{"id", 3}},
			expected: "(it.id == 1 || it.id == 2 || it.id == 3)",
		},
		{
			name:     "ampersand_and_pipe_connectors",
			criteria: []any{[]any{"id", 1}, "&", []any{"id", 2}},
			expected: "(it.id == 1 && it.id == 2)",
		},
		{
			name:     "connectors_are_case_insensitive",
			criteria: []any{[]any{"id", 1}, "OR", []any{"id", 2}},
			expected: "(it.id == 1 || it.id == 2)",
		},
		{
			name:     "nested_groups",
			criteria: []any{[]any{[]any{"a", 1}, "or", []any{"b", 2}}, "and", []any{"c", 3}},
			expected: "((it.a == 1 || it.b == 2) && it.c == 3)",
		},
		{
			name:     "typed_string_slices_are_lists",
			criteria: []any{[]string{"name", "foo"}, "or", []string{"name", "bar"}},
			expected: "(it.name == 'foo' || it.name == 'bar')",
		},
		{
			name:     "trailing_connector_is_ignored",
			criteria: []any{[]any{"id", 1}, "or"},
			expected: "it.id == 1",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// act
			predicate, err := entitystore.CompileCriteria(tc.criteria)

			// assert
			require.NoError(t, err)
			assert.Equal(t, tc.expected, predicate)
		})
	}
}

func Test_CompileCriteria_InvalidCriteria(t *testing.T) {
	tests := []struct {
		name        string
		criteria    []any
		expectedErr error
	}{
		{
			name:        "empty_criteria",
			criteria:    []any{},
			expectedErr: entitystore.ErrEmptyCriteria,
		},
		{
			name:        "mixed_connectors",
			criteria:    []any{[]any{"id", 1}, "and", []any{"id", 2}, "or", []any{"id", 3}},
			expectedErr: entitystore.ErrMixedConnectors,
		},
		{
			name:        "implicit_and_mixed_with_or",
			criteria:    []any{[]any{"id", 1}, "or", []any{"id", 2}, []any{"id", 3}},
			expectedErr: entitystore.ErrMixedConnectors,
		},
		{
			name:        "unknown_operator",
			criteria:    []any{"id", "like", 1},
			expectedErr: entitystore.ErrUnknownOperator,
		},
		{
			name:        "unknown_connector",
			criteria:    []any{[]any{"id", 1}, "xor", []any{"id", 2}},
			expectedErr: entitystore.ErrUnknownConnector,
		},
		{
			name:        "non_string_connector",
			criteria:    []any{[]any{"id", 1}, 42, []any{"id", 2}},
			expectedErr: entitystore.ErrInvalidCriteria,
		},
		{
			name:        "too_many_elements",
			criteria:    []any{"id", "=", 1, 2},
			expectedErr: entitystore.ErrInvalidCriteria,
		},
		{
			name:        "non_string_field",
			criteria:    []any{1, "=", 1},
			expectedErr: entitystore.ErrInvalidCriteria,
		},
		{
			name:        "field_with_injected_operator",
			criteria:    []any{[]any{"id == 1 || it.x", "=", 2}, "and", []any{"tenant", "=", 7}},
			expectedErr: entitystore.ErrInvalidCriteria,
		},
		{
			name:        "field_with_parenthesis",
			criteria:    []any{"name)", "=", "a"},
			expectedErr: entitystore.ErrInvalidCriteria,
		},
		{
			name:        "field_with_empty_path_segment",
			criteria:    []any{"address..city", "=", "a"},
			expectedErr: entitystore.ErrInvalidCriteria,
		},
		{
			name:        "field_starting_with_digit",
			criteria:    []any{"1st", "=", "a"},
			expectedErr: entitystore.ErrInvalidCriteria,
		},
		{
			name:        "field_with_hyphen",
			criteria:    []any{"first-name", "=", "a"},
			expectedErr: entitystore.ErrInvalidCriteria,
		},
		{
			name:        "field_with_non_ascii_letter",
			criteria:    []any{"straße", "=", "a"},
			expectedErr: entitystore.ErrInvalidCriteria,
		},
		{
			name:        "unary_without_list_operand",
			criteria:    []any{"!", "id"},
			expectedErr: entitystore.ErrInvalidCriteria,
		},
		{
			name:        "error_in_nested_group",
			criteria:    []any{[]any{"id", 1}, "and", []any{[]any{"a", 1}, "or", []any{"b", "~", 2}}},
			expectedErr: entitystore.ErrUnknownOperator,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// act
			_, err := entitystore.CompileCriteria(tc.criteria)

			// assert
			assert.ErrorIs(t, err, tc.expectedErr)
		})
	}
}
