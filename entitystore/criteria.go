package entitystore

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/AntonStoeckl/odata-entitystore-go/entitystore/internal/predicate"
)

const (
	predicateSubject  = "it."
	predicateAnd      = "&&"
	predicateOr       = "||"
	predicateNot      = "!"
	predicateNull     = "null"
	predicateDateTime = "datetime"
)

type operatorKind int

const (
	operatorInfix operatorKind = iota
	operatorMethod
	operatorNegatedMethod
)

type operatorMapping struct {
	kind   operatorKind
	symbol string
}

var operatorMap = map[string]operatorMapping{
	"=":           {kind: operatorInfix, symbol: "=="},
	"<>":          {kind: operatorInfix, symbol: "!="},
	">":           {kind: operatorInfix, symbol: ">"},
	">=":          {kind: operatorInfix, symbol: ">="},
	"<":           {kind: operatorInfix, symbol: "<"},
	"<=":          {kind: operatorInfix, symbol: "<="},
	"startswith":  {kind: operatorMethod, symbol: "startsWith"},
	"endswith":    {kind: operatorMethod, symbol: "endsWith"},
	"contains":    {kind: operatorMethod, symbol: "contains"},
	"notcontains": {kind: operatorNegatedMethod, symbol: "contains"},
}

// CompileCriteria compiles a criteria literal into the predicate language understood by a Queryable.
//
// A criteria literal is one of:
//   - binary:  [field, value] (implicit "=") or [field, operator, value]
//   - unary:   ["!", criteria]
//   - group:   criteria interleaved with "and"/"&" or "or"/"|" connectors, adjacent criteria are ANDed
//
// Supported operators are =, <>, >, >=, <, <=, startswith, endswith, contains and notcontains.
// Explicit connectors inside one group must agree, otherwise ErrMixedConnectors is returned.
//
// Examples:
//
//	CompileCriteria([]any{"id", "<>", 1})                           // it.id != 1
//	CompileCriteria([]any{"name", "contains", "a"})                 // it.name.contains('a')
//	CompileCriteria([]any{[]any{"id", 1}, "or", []any{"id", 2}})    // (it.id == 1 || it.id == 2)
//	CompileCriteria([]any{"!", []any{"name", "endswith", "bar"}})   // !(it.name.endsWith('bar'))
func CompileCriteria(criteria []any) (string, error) {
	if len(criteria) == 0 {
		return "", ErrEmptyCriteria
	}

	if isUnaryCriteria(criteria) {
		return compileUnary(criteria)
	}

	if _, isList := toList(criteria[0]); isList {
		return compileGroup(criteria)
	}

	return compileBinary(criteria)
}

func isUnaryCriteria(criteria []any) bool {
	op, ok := criteria[0].(string)

	return ok && op == predicateNot
}

func compileUnary(criteria []any) (string, error) {
	if len(criteria) != 2 {
		return "", fmt.Errorf("%w: unary criteria needs exactly one operand, got %d", ErrInvalidCriteria, len(criteria)-1)
	}

	operand, isList := toList(criteria[1])
	if !isList {
		return "", fmt.Errorf("%w: operand of %q must be a criteria list", ErrInvalidCriteria, predicateNot)
	}

	compiled, err := CompileCriteria(operand)
	if err != nil {
		return "", err
	}

	return predicateNot + "(" + compiled + ")", nil
}

func compileGroup(criteria []any) (string, error) {
	operands := make([]string, 0, len(criteria))
	groupOperator := ""
	nextOperator := predicateAnd

	for _, entry := range criteria {
		list, isList := toList(entry)
		if !isList {
			connector, err := parseConnector(entry)
			if err != nil {
				return "", err
			}

			nextOperator = connector

			continue
		}

		if len(operands) > 1 && nextOperator != groupOperator {
			return "", ErrMixedConnectors
		}

		compiled, err := CompileCriteria(list)
		if err != nil {
			return "", err
		}

		operands = append(operands, compiled)
		groupOperator = nextOperator
		nextOperator = predicateAnd
	}

	if len(operands) == 1 {
		return operands[0], nil
	}

	return "(" + strings.Join(operands, " "+groupOperator+" ") + ")", nil
}

func parseConnector(entry any) (string, error) {
	connector, ok := entry.(string)
	if !ok {
		return "", fmt.Errorf("%w: group connector must be a string, got %T", ErrInvalidCriteria, entry)
	}

	switch strings.ToLower(strings.TrimSpace(connector)) {
	case "and", "&":
		return predicateAnd, nil
	case "or", "|":
		return predicateOr, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownConnector, connector)
	}
}

func compileBinary(criteria []any) (string, error) {
	var field, operator any
	var value any

	switch len(criteria) {
	case 2:
		field, operator, value = criteria[0], "=", criteria[1]
	case 3:
		field, operator, value = criteria[0], criteria[1], criteria[2]
	default:
		return "", fmt.Errorf("%w: binary criteria needs 2 or 3 elements, got %d", ErrInvalidCriteria, len(criteria))
	}

	fieldName, ok := field.(string)
	if !ok || fieldName == "" {
		return "", fmt.Errorf("%w: field must be a non-empty string, got %v", ErrInvalidCriteria, field)
	}

	if err := checkFieldPath(fieldName); err != nil {
		return "", err
	}

	operatorName, ok := operator.(string)
	if !ok {
		return "", fmt.Errorf("%w: operator must be a string, got %T", ErrInvalidCriteria, operator)
	}

	mapping, known := operatorMap[strings.ToLower(operatorName)]
	if !known {
		return "", fmt.Errorf("%w: %q", ErrUnknownOperator, operatorName)
	}

	left := predicateSubject + fieldName
	right := formatValue(value)

	switch mapping.kind {
	case operatorMethod:
		return left + "." + mapping.symbol + "(" + right + ")", nil
	case operatorNegatedMethod:
		return predicateNot + "(" + left + "." + mapping.symbol + "(" + right + "))", nil
	default:
		return left + " " + mapping.symbol + " " + right, nil
	}
}

// checkFieldPath accepts dot-separated identifiers made of ASCII letters, digits, '_' and '$'.
func checkFieldPath(path string) error {
	for _, segment := range strings.Split(path, ".") {
		if !predicate.IsIdentifier(segment) {
			return fmt.Errorf("%w: field %q is not a dotted identifier path", ErrInvalidCriteria, path)
		}
	}

	return nil
}

// formatValue renders a right-hand operand: numbers and booleans unquoted, nil as null,
// times as datetime'<RFC 3339 in UTC>', all else single-quoted.
func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return predicateNull
	case string:
		return quote(v)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.FormatInt(int64(v), 10)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return predicateDateTime + quote(v.UTC().Format(time.RFC3339Nano))
	case fmt.Stringer:
		return quote(v.String())
	default:
		return quote(fmt.Sprint(v))
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// toList reports whether value is a list in the criteria grammar and returns its elements.
// Any slice or array kind except []byte qualifies.
func toList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []byte, nil:
		return nil, false
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}

	list := make([]any, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}

	return list, true
}
