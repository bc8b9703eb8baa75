package pgtest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/odata-entitystore-go/entitystore/postgresengine"
	"github.com/AntonStoeckl/odata-entitystore-go/example/config"
)

const (
	typePGXPool = "pgx.pool"
	typeSQLDB   = "sql.db"
	typeSQLXDB  = "sqlx.db"

	envAdapterType = "ADAPTER_TYPE"
	envDSN         = "ENTITYSTORE_TEST_DSN"
)

// Wrapper holds a Database together with the raw connection used to prepare fixtures.
type Wrapper struct {
	Database *postgresengine.Database
	exec     func(ctx context.Context, statement string) error
	close    func()
}

// Open connects with the adapter selected by ADAPTER_TYPE and closes the connection when the test ends.
func Open(t testing.TB, options ...postgresengine.Option) *Wrapper {
	t.Helper()

	ctx := context.Background()
	dsn := os.Getenv(envDSN)
	if dsn == "" {
		dsn = config.DefaultDSN
	}

	var (
		wrapper *Wrapper
		err     error
	)

	switch adapterType := strings.ToLower(os.Getenv(envAdapterType)); adapterType {
	case typePGXPool, "":
		wrapper, err = openPGXPool(ctx, dsn, options)
	case typeSQLDB:
		wrapper, err = openSQLDB(ctx, dsn, options)
	case typeSQLXDB:
		wrapper, err = openSQLX(ctx, dsn, options)
	default:
		panic(fmt.Sprintf("unsupported adapter type from env: %s", adapterType))
	}

	if err != nil {
		t.Skipf("postgres is not reachable: %v", err)
	}

	t.Cleanup(wrapper.close)

	return wrapper
}

// CreateTable runs the create statement and drops the table when the test ends.
func (w *Wrapper) CreateTable(t testing.TB, table, columns string) {
	t.Helper()

	ctx := context.Background()
	drop := fmt.Sprintf("DROP TABLE IF EXISTS %q", table)

	require.NoError(t, w.exec(ctx, drop), "error dropping the %s table", table)
	require.NoError(t, w.exec(ctx, fmt.Sprintf("CREATE TABLE %q (%s)", table, columns)), "error creating the %s table", table)

	t.Cleanup(func() {
		_ = w.exec(context.Background(), drop)
	})
}

func openPGXPool(ctx context.Context, dsn string, options []postgresengine.Option) (*Wrapper, error) {
	pool, err := config.NewPGXPool(ctx, dsn)
	if err != nil {
		return nil, err
	}

	database, err := postgresengine.NewDatabaseFromPGXPool(pool, options...)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &Wrapper{
		Database: database,
		exec: func(ctx context.Context, statement string) error {
			_, execErr := pool.Exec(ctx, statement)
			return execErr
		},
		close: pool.Close,
	}, nil
}

func openSQLDB(ctx context.Context, dsn string, options []postgresengine.Option) (*Wrapper, error) {
	db, err := config.NewSQLDB(ctx, dsn)
	if err != nil {
		return nil, err
	}

	database, err := postgresengine.NewDatabaseFromSQLDB(db, options...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Wrapper{
		Database: database,
		exec: func(ctx context.Context, statement string) error {
			_, execErr := db.ExecContext(ctx, statement)
			return execErr
		},
		close: func() { _ = db.Close() },
	}, nil
}

func openSQLX(ctx context.Context, dsn string, options []postgresengine.Option) (*Wrapper, error) {
	db, err := config.NewSQLX(ctx, dsn)
	if err != nil {
		return nil, err
	}

	database, err := postgresengine.NewDatabaseFromSQLX(db, options...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Wrapper{
		Database: database,
		exec: func(ctx context.Context, statement string) error {
			_, execErr := db.ExecContext(ctx, statement)
			return execErr
		},
		close: func() { _ = db.Close() },
	}, nil
}
