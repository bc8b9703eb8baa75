package odataengine

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/AntonStoeckl/odata-entitystore-go/entitystore/internal/predicate"
)

const dateTimeV2Layout = "2006-01-02T15:04:05.9999999"

var compareOperators = map[predicate.CompareOp]string{
	predicate.Eq: "eq",
	predicate.Ne: "ne",
	predicate.Gt: "gt",
	predicate.Ge: "ge",
	predicate.Lt: "lt",
	predicate.Le: "le",
}

// renderFilter renders a predicate as an OData $filter expression.
// Comparisons and logical operations are parenthesized, function calls are not: (id eq 1), startswith(name,'a').
func renderFilter(node predicate.Node, version ProtocolVersion) string {
	switch n := node.(type) {
	case predicate.Logical:
		op := "and"
		if n.Op == predicate.Or {
			op = "or"
		}

		return "(" + renderFilter(n.Left, version) + " " + op + " " + renderFilter(n.Right, version) + ")"

	case predicate.Not:
		inner := renderFilter(n.Operand, version)
		if _, isCall := n.Operand.(predicate.MethodCall); !isCall && !isNot(n.Operand) {
			inner = strings.TrimSuffix(strings.TrimPrefix(inner, "("), ")")
		}

		return "not(" + inner + ")"

	case predicate.Comparison:
		return "(" + renderPath(n.Path) + " " + compareOperators[n.Op] + " " + renderValue(n.Value, version) + ")"

	case predicate.MethodCall:
		field, arg := renderPath(n.Path), renderValue(n.Arg, version)

		switch n.Method {
		case predicate.StartsWith:
			return "startswith(" + field + "," + arg + ")"
		case predicate.EndsWith:
			return "endswith(" + field + "," + arg + ")"
		default:
			if version == V4 {
				return "contains(" + field + "," + arg + ")"
			}

			return "substringof(" + arg + "," + field + ")"
		}

	default:
		panic(fmt.Sprintf("odataengine: unexpected predicate node %T", node))
	}
}

func isNot(node predicate.Node) bool {
	_, ok := node.(predicate.Not)
	return ok
}

// renderPath joins navigation segments with "/".
func renderPath(segments []string) string {
	return strings.Join(segments, "/")
}

// renderFieldPath converts a dotted field path to an OData property path.
func renderFieldPath(path string) string {
	return strings.ReplaceAll(path, ".", "/")
}

// renderValue renders a filter operand. Times become datetime'…' literals in UTC without offset for
// version 2 and bare DateTimeOffset literals for version 4.
func renderValue(value any, version ProtocolVersion) string {
	timestamp, ok := value.(time.Time)
	if !ok {
		return renderLiteral(value)
	}

	if version == V4 {
		return timestamp.UTC().Format(time.RFC3339Nano)
	}

	return "datetime'" + timestamp.UTC().Format(dateTimeV2Layout) + "'"
}

// renderLiteral renders a Go value as an OData literal.
func renderLiteral(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float32:
		return renderFloat(float64(v))
	case float64:
		return renderFloat(v)
	case time.Time:
		return "'" + v.UTC().Format(time.RFC3339Nano) + "'"
	case fmt.Stringer:
		return renderLiteral(v.String())
	default:
		return renderLiteral(fmt.Sprint(v))
	}
}

func renderFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}

	return strconv.FormatFloat(f, 'f', -1, 64)
}

// renderKey renders the key segment of an entity URL: 1, 'a', or id1=1,id2=2 for composite keys.
func renderKey(keys []string, values map[string]any) string {
	if len(keys) == 1 {
		return renderLiteral(values[keys[0]])
	}

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+"="+renderLiteral(values[key]))
	}

	return strings.Join(parts, ",")
}
