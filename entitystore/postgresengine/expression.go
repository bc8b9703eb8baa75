package postgresengine

import (
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/AntonStoeckl/odata-entitystore-go/entitystore/internal/predicate"
)

const (
	literalNot = "NOT ?"
	likeAny    = "%"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// toExpression converts a parsed predicate into a goqu expression.
func toExpression(node predicate.Node) (exp.Expression, error) {
	switch n := node.(type) {
	case predicate.Logical:
		left, err := toExpression(n.Left)
		if err != nil {
			return nil, err
		}

		right, err := toExpression(n.Right)
		if err != nil {
			return nil, err
		}

		if n.Op == predicate.Or {
			return goqu.Or(left, right), nil
		}

		return goqu.And(left, right), nil

	case predicate.Not:
		operand, err := toExpression(n.Operand)
		if err != nil {
			return nil, err
		}

		return goqu.L(literalNot, operand), nil

	case predicate.Comparison:
		col, err := column(n.Path)
		if err != nil {
			return nil, err
		}

		return compare(col, n.Op, n.Value), nil

	case predicate.MethodCall:
		col, err := column(n.Path)
		if err != nil {
			return nil, err
		}

		return col.Like(likePattern(n.Method, n.Arg)), nil

	default:
		return nil, fmt.Errorf("%w: unexpected predicate node %T", ErrBuildingQueryFailed, node)
	}
}

// column resolves a property path to a column. Navigation paths have no column.
func column(path []string) (exp.IdentifierExpression, error) {
	if len(path) != 1 {
		return nil, fmt.Errorf("%w: %s", ErrNavigationNotSupported, strings.Join(path, "."))
	}

	return goqu.C(path[0]), nil
}

func compare(col exp.IdentifierExpression, op predicate.CompareOp, value any) exp.Expression {
	switch op {
	case predicate.Ne:
		if value == nil {
			return col.IsNotNull()
		}

		return col.Neq(value)
	case predicate.Gt:
		return col.Gt(value)
	case predicate.Ge:
		return col.Gte(value)
	case predicate.Lt:
		return col.Lt(value)
	case predicate.Le:
		return col.Lte(value)
	default:
		if value == nil {
			return col.IsNull()
		}

		return col.Eq(value)
	}
}

// likePattern builds a LIKE pattern matching the argument literally at the position the method asks for.
func likePattern(method predicate.Method, arg any) string {
	text := fmt.Sprint(arg)
	if s, ok := arg.(string); ok {
		text = s
	}

	escaped := likeEscaper.Replace(text)

	switch method {
	case predicate.StartsWith:
		return escaped + likeAny
	case predicate.EndsWith:
		return likeAny + escaped
	default:
		return likeAny + escaped + likeAny
	}
}
