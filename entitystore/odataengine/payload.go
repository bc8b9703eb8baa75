package odataengine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

const (
	memberVerboseRoot = "d"
	memberResults     = "results"
	memberCount       = "__count"
	memberMetadata    = "__metadata"
	memberDeferred    = "__deferred"
	memberValue       = "value"
	memberODataCount  = "@odata.count"
	annotationInfix   = "@odata."
	noTotalCount      = -1
)

var payloadJSON = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// feed is a decoded OData response: its entries and the inline count, which is -1 when absent.
type feed struct {
	entries    []map[string]any
	totalCount int
}

// decodeFeed decodes a collection response, a count-only response, or a single-entry response.
//
// Accepted shapes are {"d":{"results":[…],"__count":"2"}}, {"d":[…]}, {"d":{…}}, {"d":{"__count":"2"}},
// {"value":[…],"@odata.count":2}, and a bare entry {…}.
func decodeFeed(body []byte) (feed, error) {
	result := feed{totalCount: noTotalCount}

	if len(bytes.TrimSpace(body)) == 0 {
		return result, nil
	}

	var document map[string]any
	if err := payloadJSON.Unmarshal(body, &document); err != nil {
		return feed{}, errors.Join(ErrDecodingPayloadFailed, err)
	}

	root := any(document)
	if verbose, ok := document[memberVerboseRoot]; ok {
		root = verbose
	}

	switch node := root.(type) {
	case []any:
		entries, err := toEntries(node)
		if err != nil {
			return feed{}, err
		}

		result.entries = entries

	case map[string]any:
		count, hasCount, err := totalCountOf(node)
		if err != nil {
			return feed{}, err
		}

		if hasCount {
			result.totalCount = count
		}

		collection, isCollection := node[memberResults]
		if !isCollection {
			collection, isCollection = node[memberValue].([]any)
		}

		switch {
		case isCollection:
			list, ok := collection.([]any)
			if !ok {
				return feed{}, fmt.Errorf("%w: %q is not an array", ErrDecodingPayloadFailed, memberResults)
			}

			entries, err := toEntries(list)
			if err != nil {
				return feed{}, err
			}

			result.entries = entries

		case hasCount && len(node) == 1:
			// count-only response

		default:
			result.entries = []map[string]any{normalizeEntry(node)}
		}

	default:
		return feed{}, fmt.Errorf("%w: unexpected document root %T", ErrDecodingPayloadFailed, root)
	}

	return result, nil
}

// decodeEntry decodes a single-entry response. An empty body yields nil.
func decodeEntry(body []byte) (map[string]any, error) {
	decoded, err := decodeFeed(body)
	if err != nil {
		return nil, err
	}

	if len(decoded.entries) == 0 {
		return nil, nil
	}

	return decoded.entries[0], nil
}

// encodeEntry encodes entity values as a request payload.
func encodeEntry(values map[string]any) ([]byte, error) {
	payload, err := payloadJSON.Marshal(values)
	if err != nil {
		return nil, errors.Join(ErrEncodingPayloadFailed, err)
	}

	return payload, nil
}

func toEntries(list []any) ([]map[string]any, error) {
	entries := make([]map[string]any, 0, len(list))

	for i, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: entry %d is %T, not an object", ErrDecodingPayloadFailed, i, item)
		}

		entries = append(entries, normalizeEntry(entry))
	}

	return entries, nil
}

func totalCountOf(node map[string]any) (int, bool, error) {
	raw, ok := node[memberCount]
	if !ok {
		raw, ok = node[memberODataCount]
	}

	if !ok {
		return 0, false, nil
	}

	var text string

	switch v := raw.(type) {
	case json.Number:
		text = v.String()
	case string:
		text = v
	default:
		return 0, false, fmt.Errorf("%w: total count is %T", ErrDecodingPayloadFailed, raw)
	}

	count, err := strconv.Atoi(text)
	if err != nil {
		return 0, false, errors.Join(ErrDecodingPayloadFailed, err)
	}

	return count, true, nil
}

// normalizeEntry drops OData bookkeeping members, unwraps expanded collections, and converts numbers.
func normalizeEntry(entry map[string]any) map[string]any {
	normalized := make(map[string]any, len(entry))

	for name, value := range entry {
		if name == memberMetadata || name == memberCount || strings.Contains(name, annotationInfix) {
			continue
		}

		if members, ok := value.(map[string]any); ok {
			if _, deferred := members[memberDeferred]; deferred {
				continue
			}
		}

		normalized[name] = normalizeValue(value)
	}

	return normalized
}

func normalizeValue(value any) any {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}

		f, _ := v.Float64()

		return f

	case map[string]any:
		if results, ok := v[memberResults].([]any); ok {
			return normalizeValue(results)
		}

		return normalizeEntry(v)

	case []any:
		list := make([]any, 0, len(v))
		for _, item := range v {
			list = append(list, normalizeValue(item))
		}

		return list

	default:
		return v
	}
}
