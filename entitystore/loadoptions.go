package entitystore

// SortOption is one sort key of LoadOptions.
type SortOption struct {
	Field string
	Desc  bool
}

// LoadOptions describe a load request against a Store.
type LoadOptions struct {
	Filter            []any
	Sort              []SortOption
	Select            []string
	Expand            []string
	Skip              int
	Take              int
	RequireTotalCount bool

	// Queryable replaces the Store's entity set as the root of the query.
	Queryable Queryable
}

// applyTo records filter, sort, select, and slice on query, in that order.
func (o LoadOptions) applyTo(query Query) (Query, error) {
	var err error

	if len(o.Filter) > 0 {
		if query, err = query.Filter(o.Filter); err != nil {
			return Query{}, err
		}
	}

	for i, sort := range o.Sort {
		if i == 0 {
			query = query.SortBy(sort.Field, sort.Desc)
			continue
		}

		if query, err = query.ThenBy(sort.Field, sort.Desc); err != nil {
			return Query{}, err
		}
	}

	return query.Select(o.Select...).Slice(o.Skip, o.Take), nil
}
