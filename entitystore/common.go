package entitystore

import (
	"errors"
)

// Criteria compilation errors.
var (
	ErrEmptyCriteria    = errors.New("empty criteria supplied")
	ErrInvalidCriteria  = errors.New("invalid criteria")
	ErrUnknownOperator  = errors.New("unknown criteria operator")
	ErrUnknownConnector = errors.New("unknown group connector")
	ErrMixedConnectors  = errors.New("mixing of and/or operations inside a single group is prohibited")
)

// Query builder errors.
var (
	ErrNilQueryable        = errors.New("nil queryable supplied")
	ErrThenByWithoutSortBy = errors.New("ThenBy can only be used after SortBy or ThenBy")
	ErrNotImplemented      = errors.New("operation is not implemented by this store")
	ErrTotalCountMissing   = errors.New("total count is missing from the query result")
)

// Store adapter errors.
var (
	ErrNilEntitySet   = errors.New("nil entity set supplied")
	ErrKeyRequired    = errors.New("entity key is not defined")
	ErrInvalidKey     = errors.New("invalid key value supplied")
	ErrEntityNotFound = errors.New("entity not found")
)
