// Package pgtest opens postgresengine databases against a real PostgreSQL server for integration tests.
//
// The driver adapter is chosen with the ADAPTER_TYPE environment variable (pgx.pool, sql.db or sqlx.db,
// pgx.pool by default) and the server with ENTITYSTORE_TEST_DSN. Tests are skipped when no server is reachable.
package pgtest
