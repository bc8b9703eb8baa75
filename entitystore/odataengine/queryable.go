package odataengine

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/AntonStoeckl/odata-entitystore-go/entitystore"
	"github.com/AntonStoeckl/odata-entitystore-go/entitystore/internal/predicate"
	"github.com/AntonStoeckl/odata-entitystore-go/entitystore/tracking"
)

const (
	paramFilter      = "$filter"
	paramOrderBy     = "$orderby"
	paramTop         = "$top"
	paramSkip        = "$skip"
	paramExpand      = "$expand"
	paramSelect      = "$select"
	paramInlineCount = "$inlinecount"
	paramCount       = "$count"

	// paging stands for $top and $skip, which are always rendered together in that order.
	paging = "paging"

	inlineCountAllPages = "allpages"
	orderDescending     = " desc"
)

// Queryable is an immutable OData query against one entity set.
// Every method returns a new Queryable; the system query options render in the order they were first applied.
type Queryable struct {
	service *Service
	set     string

	params      []string
	filter      predicate.Node
	orderBy     []string
	top         *int
	skip        *int
	expand      []string
	selects     []string
	projection  entitystore.Projection
	inlineCount bool
	err         error
}

func (q Queryable) clone() Queryable {
	c := q
	c.params = slices.Clone(q.params)
	c.orderBy = slices.Clone(q.orderBy)
	c.expand = slices.Clone(q.expand)
	c.selects = slices.Clone(q.selects)
	c.projection = slices.Clone(q.projection)

	return c
}

func (q *Queryable) touch(param string) {
	if !slices.Contains(q.params, param) {
		q.params = append(q.params, param)
	}
}

// Filter ANDs the parsed predicate with the filters applied so far.
// A predicate that cannot be parsed fails the later ToArray.
func (q Queryable) Filter(predicateText string) entitystore.Queryable {
	c := q.clone()

	node, err := predicate.Parse(predicateText)
	if err != nil {
		if c.err == nil {
			c.err = err
		}

		return c
	}

	if c.filter == nil {
		c.filter = node
	} else {
		c.filter = predicate.Logical{Op: predicate.And, Left: c.filter, Right: node}
	}

	c.touch(paramFilter)

	return c
}

// Order appends a sort key; a leading "-" sorts descending.
func (q Queryable) Order(fieldSpec string) entitystore.Queryable {
	c := q.clone()

	if field, descending := strings.CutPrefix(fieldSpec, "-"); descending {
		c.orderBy = append(c.orderBy, renderFieldPath(field)+orderDescending)
	} else {
		c.orderBy = append(c.orderBy, renderFieldPath(fieldSpec))
	}

	c.touch(paramOrderBy)

	return c
}

func (q Queryable) Skip(n int) entitystore.Queryable {
	c := q.clone()
	c.skip = &n
	c.touch(paging)

	return c
}

func (q Queryable) Take(n int) entitystore.Queryable {
	c := q.clone()
	c.top = &n
	c.touch(paging)

	return c
}

// Include expands a navigation path.
func (q Queryable) Include(path string) entitystore.Queryable {
	c := q.clone()
	c.addExpand(path)

	return c
}

func (q *Queryable) addExpand(path string) {
	rendered := renderFieldPath(path)
	if !slices.Contains(q.expand, rendered) {
		q.expand = append(q.expand, rendered)
	}

	q.touch(paramExpand)
}

// Map selects the projection's source paths, expanding the navigation roots of dotted paths.
// The projection itself is applied to the returned entries.
func (q Queryable) Map(projection entitystore.Projection) entitystore.Queryable {
	c := q.clone()

	for _, root := range projection.RootPaths() {
		c.addExpand(root)
	}

	c.selects = c.selects[:0]
	for _, path := range projection.SourcePaths() {
		c.selects = append(c.selects, renderFieldPath(path))
	}

	c.projection = slices.Clone(projection)
	c.touch(paramSelect)

	return c
}

func (q Queryable) WithInlineCount() entitystore.Queryable {
	c := q.clone()
	c.inlineCount = true

	if q.service.version == V4 {
		c.touch(paramCount)
	} else {
		c.touch(paramInlineCount)
	}

	return c
}

// RawQuery renders the system query options, percent-encoding their values.
func (q Queryable) RawQuery() string {
	parts := make([]string, 0, len(q.params)+1)

	for _, param := range q.params {
		switch param {
		case paramFilter:
			parts = append(parts, encodeParam(paramFilter, renderFilter(q.filter, q.service.version)))
		case paramOrderBy:
			parts = append(parts, encodeParam(paramOrderBy, strings.Join(q.orderBy, ",")))
		case paging:
			if q.top != nil {
				parts = append(parts, encodeParam(paramTop, strconv.Itoa(*q.top)))
			}

			if q.skip != nil {
				parts = append(parts, encodeParam(paramSkip, strconv.Itoa(*q.skip)))
			}
		case paramExpand:
			parts = append(parts, encodeParam(paramExpand, strings.Join(q.expand, ",")))
		case paramSelect:
			parts = append(parts, encodeParam(paramSelect, strings.Join(q.selects, ",")))
		case paramInlineCount:
			parts = append(parts, encodeParam(paramInlineCount, inlineCountAllPages))
		case paramCount:
			parts = append(parts, encodeParam(paramCount, "true"))
		}
	}

	return strings.Join(parts, "&")
}

// ToArray requests the entity set and returns the entries as detached entities.
func (q Queryable) ToArray(ctx context.Context) (entitystore.ResultSet, error) {
	if q.err != nil {
		return entitystore.ResultSet{}, q.err
	}

	body, err := q.service.do(ctx, http.MethodGet, q.service.resourceURL(q.set, "", q.RawQuery()), nil)
	if err != nil {
		return entitystore.ResultSet{}, err
	}

	decoded, err := decodeFeed(body)
	if err != nil {
		q.service.logError(ctx, logMsgDecodeFailed, logAttrError, err.Error())
		return entitystore.ResultSet{}, err
	}

	result := entitystore.ResultSet{Entities: make([]entitystore.Entity, 0, len(decoded.entries))}

	for _, entry := range decoded.entries {
		if q.projection != nil {
			entry = q.projection.Apply(entry)
		}

		result.Entities = append(result.Entities, tracking.NewEntity(q.set, entry))
	}

	if q.inlineCount && decoded.totalCount != noTotalCount {
		totalCount := decoded.totalCount
		result.TotalCount = &totalCount
	}

	return result, nil
}

func encodeParam(name, value string) string {
	return name + "=" + strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}

// EntitySet is an OData entity set. Its entities are tracked by the entity context of its Service.
type EntitySet struct {
	Queryable
	elementType entitystore.ElementType
}

func (s *EntitySet) ElementType() entitystore.ElementType {
	return s.elementType
}

func (s *EntitySet) EntityContext() entitystore.EntityContext {
	return s.service.context
}

func (s *EntitySet) Add(values map[string]any) (entitystore.Entity, error) {
	return s.service.context.Manager().Add(s.elementType.Name, values), nil
}

func (s *EntitySet) Attach(entity entitystore.Entity) error {
	tracked, err := tracking.AsEntity(entity)
	if err != nil {
		return err
	}

	s.service.context.Manager().Attach(tracked)

	return nil
}

func (s *EntitySet) Remove(entity entitystore.Entity) error {
	tracked, err := tracking.AsEntity(entity)
	if err != nil {
		return err
	}

	s.service.context.Manager().Remove(tracked)

	return nil
}

func (s *EntitySet) AttachOrGet(values map[string]any) (entitystore.Entity, error) {
	return s.service.context.Manager().AttachOrGet(s.elementType.Name, s.elementType.KeyProperties, values), nil
}

var (
	_ entitystore.Queryable = Queryable{}
	_ entitystore.EntitySet = (*EntitySet)(nil)
)
