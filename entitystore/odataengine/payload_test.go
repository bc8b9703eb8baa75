package odataengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_decodeFeed(t *testing.T) {
	tests := []struct {
		name               string
		body               string
		expectedEntries    []map[string]any
		expectedTotalCount int
	}{
		{
			name:               "empty_body",
			body:               " ",
			expectedTotalCount: noTotalCount,
		},
		{
			name:               "verbose_array",
			body:               `{"d":[{"id":1},{"id":2.5}]}`,
			expectedEntries:    []map[string]any{{"id": int64(1)}, {"id": 2.5}},
			expectedTotalCount: noTotalCount,
		},
		{
			name:               "verbose_results_with_string_count",
			body:               `{"d":{"results":[{"id":1,"__metadata":{"uri":"x"}}],"__count":"7"}}`,
			expectedEntries:    []map[string]any{{"id": int64(1)}},
			expectedTotalCount: 7,
		},
		{
			name:               "verbose_count_only",
			body:               `{"d":{"__count":42}}`,
			expectedTotalCount: 42,
		},
		{
			name:               "verbose_single_entry",
			body:               `{"d":{"id":3,"tags":{"results":["a","b"]},"owner":{"__deferred":{"uri":"y"}}}}`,
			expectedEntries:    []map[string]any{{"id": int64(3), "tags": []any{"a", "b"}}},
			expectedTotalCount: noTotalCount,
		},
		{
			name:               "version_4_collection",
			body:               `{"@odata.context":"c","@odata.count":2,"value":[{"@odata.etag":"e","id":1,"ref":{"id":9}}]}`,
			expectedEntries:    []map[string]any{{"id": int64(1), "ref": map[string]any{"id": int64(9)}}},
			expectedTotalCount: 2,
		},
		{
			name:               "version_4_single_entry",
			body:               `{"@odata.context":"c","id":1,"name":"foo"}`,
			expectedEntries:    []map[string]any{{"id": int64(1), "name": "foo"}},
			expectedTotalCount: noTotalCount,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// act
			decoded, err := decodeFeed([]byte(tc.body))

			// assert
			require.NoError(t, err)
			assert.Equal(t, tc.expectedEntries, decoded.entries)
			assert.Equal(t, tc.expectedTotalCount, decoded.totalCount)
		})
	}
}

func Test_decodeFeed_Fails(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed_json", body: `{"d":`},
		{name: "scalar_root", body: `{"d":1}`},
		{name: "results_not_an_array", body: `{"d":{"results":{}}}`},
		{name: "entry_not_an_object", body: `{"d":[1]}`},
		{name: "count_not_a_number", body: `{"d":{"__count":"many"}}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// act
			_, err := decodeFeed([]byte(tc.body))

			// assert
			assert.ErrorIs(t, err, ErrDecodingPayloadFailed)
		})
	}
}

func Test_encodeEntry_SortsMembers(t *testing.T) {
	// act
	payload, err := encodeEntry(map[string]any{"name": "<b>", "id": 1})

	// assert
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"name":"<b>"}`, string(payload))
	assert.Equal(t, `{"id":1,"name":"<b>"}`, string(payload))
}

func Test_renderLiteral(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected string
	}{
		{name: "null", value: nil, expected: "null"},
		{name: "string_with_quote", value: "O'Hara", expected: "'O''Hara'"},
		{name: "bool", value: true, expected: "true"},
		{name: "int", value: 42, expected: "42"},
		{name: "whole_float", value: 3.0, expected: "3"},
		{name: "fraction", value: 2.5, expected: "2.5"},
		{name: "time", value: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), expected: "'2024-01-02T03:04:05Z'"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, renderLiteral(tc.value))
		})
	}
}

func Test_renderValue(t *testing.T) {
	createdAt := time.Date(2025, 1, 2, 5, 4, 5, 250000000, time.FixedZone("CEST", 2*60*60))

	tests := []struct {
		name     string
		value    any
		version  ProtocolVersion
		expected string
	}{
		{name: "version_2_time", value: createdAt, version: V2, expected: "datetime'2025-01-02T03:04:05.25'"},
		{name: "version_4_time", value: createdAt, version: V4, expected: "2025-01-02T03:04:05.25Z"},
		{name: "other_values_as_literals", value: "a", version: V4, expected: "'a'"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, renderValue(tc.value, tc.version))
		})
	}
}

func Test_renderKey(t *testing.T) {
	values := map[string]any{"id1": int64(1), "id2": "b", "name": "x"}

	assert.Equal(t, "1", renderKey([]string{"id1"}, values))
	assert.Equal(t, "id1=1,id2='b'", renderKey([]string{"id1", "id2"}, values))
}
