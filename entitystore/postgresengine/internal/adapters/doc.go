// Package adapters wraps the supported PostgreSQL client libraries behind one DBAdapter interface.
//
// pgxpool.Pool, sql.DB and sqlx.DB are supported. Queries are handed over as fully rendered SQL text,
// rows are read column by column into untyped values, so an entity set never needs to know its row type
// up front.
package adapters
