package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/odata-entitystore-go/entitystore"
	"github.com/AntonStoeckl/odata-entitystore-go/entitystore/postgresengine/internal/adapters"
	"github.com/AntonStoeckl/odata-entitystore-go/entitystore/tracking"
)

var (
	ErrNilDatabaseConnection     = errors.New("database connection must not be nil")
	ErrEmptyTableName            = errors.New("table name must not be empty")
	ErrEmptySchemaName           = errors.New("schema name must not be empty")
	ErrUnknownTable              = errors.New("entity type is not served by a table of this database")
	ErrNavigationNotSupported    = errors.New("navigation paths are not supported by the postgres engine")
	ErrBuildingQueryFailed       = errors.New("building query failed")
	ErrQueryingFailed            = errors.New("querying rows failed")
	ErrScanningDBRowFailed       = errors.New("scanning db row failed")
	ErrExecutingFailed           = errors.New("executing statement failed")
	ErrGettingRowsAffectedFailed = errors.New("getting rows affected failed")
)

const (
	logMsgDBQueryFailed      = "database query execution failed"
	logMsgDBExecFailed       = "database statement execution failed"
	logMsgCloseRowsFailed    = "failed to close database rows"
	logMsgScanRowFailed      = "failed to scan database row"
	logMsgRowsAffectedFailed = "failed to get rows affected count"
	logMsgBuildQueryFailed   = "failed to build sql"
	logMsgSQLExecuted        = "executed sql for: "
	logMsgOperation          = "postgres entity set operation: "
	logAttrError             = "error"
	logAttrQuery             = "query"
	logAttrTable             = "table"
	logAttrRowCount          = "row_count"
	logAttrRowsAffected      = "rows_affected"
	logAttrDurationMS        = "duration_ms"
	logActionSelect          = "select"
	logActionCount           = "count"
	logActionInsert          = "insert"
	logActionUpdate          = "update"
	logActionDelete          = "delete"
	dialectPostgres          = "postgres"
)

// Database serves the tables of one PostgreSQL database as entity sets.
// All entity sets created by the same Database share its entity context, so their changes are saved together.
type Database struct {
	db               adapters.DBAdapter
	schema           string
	logger           entitystore.Logger
	contextualLogger entitystore.ContextualLogger
	context          *tracking.Context

	mu     sync.RWMutex
	tables map[string]entitystore.ElementType
}

// NewDatabaseFromPGXPool creates a new Database using a pgx Pool with optional configuration.
func NewDatabaseFromPGXPool(db *pgxpool.Pool, options ...Option) (*Database, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newDatabase(adapters.NewPGXAdapter(db), options...)
}

// NewDatabaseFromSQLDB creates a new Database using a sql.DB with optional configuration.
func NewDatabaseFromSQLDB(db *sql.DB, options ...Option) (*Database, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newDatabase(adapters.NewSQLAdapter(db), options...)
}

// NewDatabaseFromSQLX creates a new Database using a sqlx.DB with optional configuration.
func NewDatabaseFromSQLX(db *sqlx.DB, options ...Option) (*Database, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newDatabase(adapters.NewSQLXAdapter(db), options...)
}

func newDatabase(db adapters.DBAdapter, options ...Option) (*Database, error) {
	d := &Database{
		db:     db,
		tables: make(map[string]entitystore.ElementType),
	}

	for _, option := range options {
		if err := option(d); err != nil {
			return nil, err
		}
	}

	d.context = tracking.NewContext(persister{database: d})

	return d, nil
}

// Context returns the entity context shared by all entity sets of the Database.
func (d *Database) Context() *tracking.Context {
	return d.context
}

// EntitySet returns the entity set backed by the given table, identified by the given key columns.
// The table name doubles as the entity type name of its entities.
func (d *Database) EntitySet(table string, keys ...string) (*EntitySet, error) {
	if table == "" {
		return nil, ErrEmptyTableName
	}

	elementType := entitystore.ElementType{Name: table, KeyProperties: append([]string(nil), keys...)}

	d.mu.Lock()
	d.tables[table] = elementType
	d.mu.Unlock()

	return &EntitySet{
		Queryable:   Queryable{database: d, table: table},
		elementType: elementType,
	}, nil
}

func (d *Database) elementType(typeName string) (entitystore.ElementType, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	elementType, ok := d.tables[typeName]
	if !ok {
		return entitystore.ElementType{}, fmt.Errorf("%w: %s", ErrUnknownTable, typeName)
	}

	return elementType, nil
}

// tableIdentifier returns the table, qualified with the schema if one is configured.
func (d *Database) tableIdentifier(table string) exp.IdentifierExpression {
	if d.schema != "" {
		return goqu.S(d.schema).Table(table)
	}

	return goqu.T(table)
}

func (d *Database) dialect() goqu.DialectWrapper {
	return goqu.Dialect(dialectPostgres)
}

// toSQL renders a goqu dataset with interpolated values.
func (d *Database) toSQL(ctx context.Context, table string, dataset interface{ ToSQL() (string, []any, error) }) (string, error) {
	sqlQuery, _, err := dataset.ToSQL()
	if err != nil {
		d.logError(ctx, logMsgBuildQueryFailed, logAttrError, err.Error(), logAttrTable, table)
		return "", errors.Join(ErrBuildingQueryFailed, err)
	}

	return sqlQuery, nil
}

// queryRows executes the SQL query and reads all rows as column name to value maps.
func (d *Database) queryRows(ctx context.Context, sqlQuery, action string) ([]map[string]any, error) {
	start := time.Now()
	rows, err := d.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	d.logQueryWithDuration(ctx, sqlQuery, action, duration)

	if err != nil {
		d.logError(ctx, logMsgDBQueryFailed, logAttrError, err.Error(), logAttrQuery, sqlQuery)
		return nil, errors.Join(ErrQueryingFailed, err)
	}
	defer d.closeRows(ctx, rows)

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Join(ErrScanningDBRowFailed, err)
	}

	entries := make([]map[string]any, 0)

	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}

		if err = rows.Scan(targets...); err != nil {
			d.logError(ctx, logMsgScanRowFailed, logAttrError, err.Error())
			return nil, errors.Join(ErrScanningDBRowFailed, err)
		}

		entry := make(map[string]any, len(columns))
		for i, name := range columns {
			entry[name] = normalizeValue(values[i])
		}

		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		d.logError(ctx, logMsgDBQueryFailed, logAttrError, err.Error(), logAttrQuery, sqlQuery)
		return nil, errors.Join(ErrQueryingFailed, err)
	}

	d.logOperation(ctx, action, logAttrRowCount, len(entries), logAttrDurationMS, durationToMilliseconds(duration))

	return entries, nil
}

// queryCount executes a COUNT query and returns its single value.
func (d *Database) queryCount(ctx context.Context, sqlQuery string) (int, error) {
	start := time.Now()
	rows, err := d.db.Query(ctx, sqlQuery)
	d.logQueryWithDuration(ctx, sqlQuery, logActionCount, time.Since(start))

	if err != nil {
		d.logError(ctx, logMsgDBQueryFailed, logAttrError, err.Error(), logAttrQuery, sqlQuery)
		return 0, errors.Join(ErrQueryingFailed, err)
	}
	defer d.closeRows(ctx, rows)

	var count int64

	if rows.Next() {
		if err = rows.Scan(&count); err != nil {
			d.logError(ctx, logMsgScanRowFailed, logAttrError, err.Error())
			return 0, errors.Join(ErrScanningDBRowFailed, err)
		}
	}

	if err = rows.Err(); err != nil {
		return 0, errors.Join(ErrQueryingFailed, err)
	}

	return int(count), nil
}

// execute runs a statement and returns the number of affected rows.
func (d *Database) execute(ctx context.Context, sqlQuery, action string) (int64, error) {
	start := time.Now()
	result, err := d.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	d.logQueryWithDuration(ctx, sqlQuery, action, duration)

	if err != nil {
		d.logError(ctx, logMsgDBExecFailed, logAttrError, err.Error(), logAttrQuery, sqlQuery)
		return 0, errors.Join(ErrExecutingFailed, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		d.logError(ctx, logMsgRowsAffectedFailed, logAttrError, err.Error())
		return 0, errors.Join(ErrGettingRowsAffectedFailed, err)
	}

	d.logOperation(ctx, action, logAttrRowsAffected, rowsAffected, logAttrDurationMS, durationToMilliseconds(duration))

	return rowsAffected, nil
}

// closeRows safely closes database rows and logs any errors.
func (d *Database) closeRows(ctx context.Context, rows adapters.DBRows) {
	if err := rows.Close(); err != nil {
		if d.logger != nil {
			d.logger.Warn(logMsgCloseRowsFailed, logAttrError, err.Error())
		}

		if d.contextualLogger != nil {
			d.contextualLogger.WarnContext(ctx, logMsgCloseRowsFailed, logAttrError, err.Error())
		}
	}
}

// logQueryWithDuration logs SQL statements with execution time at debug level.
func (d *Database) logQueryWithDuration(ctx context.Context, sqlQuery, action string, duration time.Duration) {
	args := []any{logAttrDurationMS, durationToMilliseconds(duration), logAttrQuery, sqlQuery}

	if d.logger != nil {
		d.logger.Debug(logMsgSQLExecuted+action, args...)
	}

	if d.contextualLogger != nil {
		d.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, args...)
	}
}

// logOperation logs operational information at info level.
func (d *Database) logOperation(ctx context.Context, action string, args ...any) {
	if d.logger != nil {
		d.logger.Info(logMsgOperation+action, args...)
	}

	if d.contextualLogger != nil {
		d.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
	}
}

func (d *Database) logError(ctx context.Context, msg string, args ...any) {
	if d.logger != nil {
		d.logger.Error(msg, args...)
	}

	if d.contextualLogger != nil {
		d.contextualLogger.ErrorContext(ctx, msg, args...)
	}
}

// normalizeValue converts driver values to the value types used by entities.
func normalizeValue(value any) any {
	switch v := value.(type) {
	case []byte:
		return string(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case float32:
		return float64(v)
	default:
		return v
	}
}

// durationToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
