package postgresengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/AntonStoeckl/odata-entitystore-go/entitystore/postgresengine/internal/adapters"
)

// fakeDB records the rendered statements and answers them from queued responses in call order.
type fakeDB struct {
	queries []string
	execs   []string

	queryResponses []*fakeRows
	queryErr       error
	rowsAffected   []int64
	execErr        error
}

func (f *fakeDB) Query(_ context.Context, query string) (adapters.DBRows, error) {
	f.queries = append(f.queries, query)

	if f.queryErr != nil {
		return nil, f.queryErr
	}

	if len(f.queryResponses) == 0 {
		return &fakeRows{}, nil
	}

	rows := f.queryResponses[0]
	f.queryResponses = f.queryResponses[1:]

	return rows, nil
}

func (f *fakeDB) Exec(_ context.Context, query string) (adapters.DBResult, error) {
	f.execs = append(f.execs, query)

	if f.execErr != nil {
		return nil, f.execErr
	}

	affected := int64(1)
	if len(f.rowsAffected) > 0 {
		affected = f.rowsAffected[0]
		f.rowsAffected = f.rowsAffected[1:]
	}

	return fakeResult(affected), nil
}

func (f *fakeDB) respond(columns []string, values ...[]any) *fakeDB {
	f.queryResponses = append(f.queryResponses, &fakeRows{columns: columns, values: values, current: -1})
	return f
}

func (f *fakeDB) respondCount(count int64) *fakeDB {
	return f.respond([]string{"count"}, []any{count})
}

type fakeRows struct {
	columns []string
	values  [][]any
	current int
	closed  bool
}

func (r *fakeRows) Columns() ([]string, error) {
	return r.columns, nil
}

func (r *fakeRows) Next() bool {
	if r.current+1 >= len(r.values) {
		return false
	}

	r.current++

	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.values[r.current]
	if len(dest) != len(row) {
		return fmt.Errorf("expected %d destinations, got %d", len(row), len(dest))
	}

	for i, target := range dest {
		switch t := target.(type) {
		case *any:
			*t = row[i]
		case *int64:
			value, ok := row[i].(int64)
			if !ok {
				return errors.New("value is not an int64")
			}

			*t = value
		default:
			return fmt.Errorf("unsupported scan destination %T", target)
		}
	}

	return nil
}

func (r *fakeRows) Err() error {
	return nil
}

func (r *fakeRows) Close() error {
	r.closed = true
	return nil
}

type fakeResult int64

func (r fakeResult) RowsAffected() (int64, error) {
	return int64(r), nil
}
