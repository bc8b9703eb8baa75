// Package postgresengine provides a PostgreSQL implementation of the entitystore provider contract.
//
// A Database serves tables as entity sets. Their Queryable operations render as SQL with goqu:
// predicates become WHERE clauses, Order becomes ORDER BY, Skip and Take become OFFSET and LIMIT,
// and projections become aliased columns. The inline count is read with a separate COUNT(*) statement
// sharing the WHERE clause. Navigation paths (Include and dotted field paths) are not supported.
//
// Saving the entity context runs INSERT … RETURNING *, UPDATE of the changed columns, and DELETE
// statements, each matching rows by the key columns of the entity set.
//
// It supports pgx.Pool, sql.DB, and sqlx.DB connections:
//
//	pool, err := pgxpool.New(ctx, dsn)
//	if err != nil {
//		// handle error
//	}
//
//	database, err := postgresengine.NewDatabaseFromPGXPool(pool, postgresengine.WithSchema("crm"))
//	if err != nil {
//		// handle error
//	}
//
//	people, err := database.EntitySet("people", "id")
//	if err != nil {
//		// handle error
//	}
//
//	store, err := entitystore.NewStore(people, entitystore.WithAutoCommit(true))
package postgresengine
