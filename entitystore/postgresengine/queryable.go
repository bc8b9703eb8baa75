package postgresengine

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/AntonStoeckl/odata-entitystore-go/entitystore"
	"github.com/AntonStoeckl/odata-entitystore-go/entitystore/internal/predicate"
	"github.com/AntonStoeckl/odata-entitystore-go/entitystore/tracking"
)

// Queryable is an immutable query against one table.
// Every method returns a new Queryable. Failures of the builder methods surface from ToArray.
type Queryable struct {
	database *Database
	table    string

	filter      exp.Expression
	order       []exp.OrderedExpression
	offset      *uint
	limit       *uint
	projection  entitystore.Projection
	inlineCount bool
	err         error
}

func (q Queryable) clone() Queryable {
	c := q
	c.order = slices.Clone(q.order)
	c.projection = slices.Clone(q.projection)

	return c
}

func (q *Queryable) fail(err error) {
	if q.err == nil {
		q.err = err
	}
}

// Filter ANDs the parsed predicate with the filters applied so far.
func (q Queryable) Filter(predicateText string) entitystore.Queryable {
	c := q.clone()

	node, err := predicate.Parse(predicateText)
	if err != nil {
		c.fail(err)
		return c
	}

	expression, err := toExpression(node)
	if err != nil {
		c.fail(err)
		return c
	}

	if c.filter == nil {
		c.filter = expression
	} else {
		c.filter = goqu.And(c.filter, expression)
	}

	return c
}

// Order appends a sort column; a leading "-" sorts descending.
func (q Queryable) Order(fieldSpec string) entitystore.Queryable {
	c := q.clone()

	field, descending := strings.CutPrefix(fieldSpec, "-")

	col, err := column(strings.Split(field, "."))
	if err != nil {
		c.fail(err)
		return c
	}

	if descending {
		c.order = append(c.order, col.Desc())
	} else {
		c.order = append(c.order, col.Asc())
	}

	return c
}

func (q Queryable) Skip(n int) entitystore.Queryable {
	c := q.clone()
	offset := uint(max(n, 0))
	c.offset = &offset

	return c
}

func (q Queryable) Take(n int) entitystore.Queryable {
	c := q.clone()
	limit := uint(max(n, 0))
	c.limit = &limit

	return c
}

// Include always fails: rows have no navigation properties.
func (q Queryable) Include(path string) entitystore.Queryable {
	c := q.clone()
	c.fail(fmt.Errorf("%w: include %s", ErrNavigationNotSupported, path))

	return c
}

// Map selects the projection's columns, aliased to their output keys.
func (q Queryable) Map(projection entitystore.Projection) entitystore.Queryable {
	c := q.clone()

	if roots := projection.RootPaths(); len(roots) > 0 {
		c.fail(fmt.Errorf("%w: select %s", ErrNavigationNotSupported, strings.Join(roots, ",")))
		return c
	}

	c.projection = slices.Clone(projection)

	return c
}

func (q Queryable) WithInlineCount() entitystore.Queryable {
	c := q.clone()
	c.inlineCount = true

	return c
}

func (q Queryable) dataset() *goqu.SelectDataset {
	dataset := q.database.dialect().From(q.database.tableIdentifier(q.table))
	if q.filter != nil {
		dataset = dataset.Where(q.filter)
	}

	return dataset
}

// SelectSQL renders the SELECT statement of the rows.
func (q Queryable) SelectSQL() (string, error) {
	if q.err != nil {
		return "", q.err
	}

	dataset := q.dataset()

	if len(q.projection) > 0 {
		columns := make([]any, 0, len(q.projection))
		for _, selector := range q.projection {
			columns = append(columns, goqu.C(selector.SourcePath).As(selector.OutputKey))
		}

		dataset = dataset.Select(columns...)
	}

	if len(q.order) > 0 {
		dataset = dataset.Order(q.order...)
	}

	if q.offset != nil {
		dataset = dataset.Offset(*q.offset)
	}

	if q.limit != nil {
		dataset = dataset.Limit(*q.limit)
	}

	return q.database.toSQL(context.Background(), q.table, dataset)
}

// CountSQL renders the SELECT COUNT(*) statement sharing the filter of the rows.
func (q Queryable) CountSQL() (string, error) {
	if q.err != nil {
		return "", q.err
	}

	return q.database.toSQL(context.Background(), q.table, q.dataset().Select(goqu.COUNT(goqu.Star())))
}

// ToArray queries the rows as detached entities and, with inline count, the number of matching rows.
// A limit of zero skips the row query.
func (q Queryable) ToArray(ctx context.Context) (entitystore.ResultSet, error) {
	if q.err != nil {
		return entitystore.ResultSet{}, q.err
	}

	result := entitystore.ResultSet{Entities: make([]entitystore.Entity, 0)}

	if q.limit == nil || *q.limit > 0 {
		sqlQuery, err := q.SelectSQL()
		if err != nil {
			return entitystore.ResultSet{}, err
		}

		rows, err := q.database.queryRows(ctx, sqlQuery, logActionSelect)
		if err != nil {
			return entitystore.ResultSet{}, err
		}

		for _, row := range rows {
			result.Entities = append(result.Entities, tracking.NewEntity(q.table, row))
		}
	}

	if q.inlineCount {
		sqlQuery, err := q.CountSQL()
		if err != nil {
			return entitystore.ResultSet{}, err
		}

		count, err := q.database.queryCount(ctx, sqlQuery)
		if err != nil {
			return entitystore.ResultSet{}, err
		}

		result.TotalCount = &count
	}

	return result, nil
}

// EntitySet is a table of a Database. Its entities are tracked by the entity context of the Database.
type EntitySet struct {
	Queryable
	elementType entitystore.ElementType
}

func (s *EntitySet) ElementType() entitystore.ElementType {
	return s.elementType
}

func (s *EntitySet) EntityContext() entitystore.EntityContext {
	return s.database.context
}

func (s *EntitySet) Add(values map[string]any) (entitystore.Entity, error) {
	return s.database.context.Manager().Add(s.elementType.Name, values), nil
}

func (s *EntitySet) Attach(entity entitystore.Entity) error {
	tracked, err := tracking.AsEntity(entity)
	if err != nil {
		return err
	}

	s.database.context.Manager().Attach(tracked)

	return nil
}

func (s *EntitySet) Remove(entity entitystore.Entity) error {
	tracked, err := tracking.AsEntity(entity)
	if err != nil {
		return err
	}

	s.database.context.Manager().Remove(tracked)

	return nil
}

func (s *EntitySet) AttachOrGet(values map[string]any) (entitystore.Entity, error) {
	return s.database.context.Manager().AttachOrGet(s.elementType.Name, s.elementType.KeyProperties, values), nil
}

var (
	_ entitystore.Queryable = Queryable{}
	_ entitystore.EntitySet = (*EntitySet)(nil)
)
