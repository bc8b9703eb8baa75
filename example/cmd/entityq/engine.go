package main

import (
	"context"

	"github.com/AntonStoeckl/odata-entitystore-go/entitystore"
	"github.com/AntonStoeckl/odata-entitystore-go/entitystore/odataengine"
	"github.com/AntonStoeckl/odata-entitystore-go/entitystore/oteladapters"
	"github.com/AntonStoeckl/odata-entitystore-go/entitystore/postgresengine"
	"github.com/AntonStoeckl/odata-entitystore-go/example/config"
)

// openStore creates the store over the configured engine. The returned release function closes
// the database connection, if any.
func (s *session) openStore(ctx context.Context) (*entitystore.Store, func(), error) {
	var (
		set     entitystore.EntitySet
		release = func() {}
		err     error
	)

	switch s.cfg.Engine {
	case config.EngineOData:
		set, err = s.odataEntitySet()
	case config.EnginePostgres:
		set, release, err = s.postgresEntitySet(ctx)
	}

	if err != nil {
		return nil, nil, err
	}

	options := append(s.storeOptions(), entitystore.WithAutoCommit(true))

	store, err := entitystore.NewStore(set, options...)
	if err != nil {
		release()
		return nil, nil, err
	}

	return store, release, nil
}

func (s *session) odataEntitySet() (entitystore.EntitySet, error) {
	options := []odataengine.Option{
		odataengine.WithProtocolVersion(odataengine.ProtocolVersion(s.cfg.ODataVersion)),
		odataengine.WithLogger(s.logger),
	}

	headers, err := s.cfg.HeaderPairs()
	if err != nil {
		return nil, err
	}

	for _, header := range headers {
		options = append(options, odataengine.WithHeader(header[0], header[1]))
	}

	if s.cfg.Retries > 1 {
		options = append(options, odataengine.WithRetry(odataengine.WithMaxAttempts(s.cfg.Retries)))
	}

	service, err := odataengine.NewService(s.cfg.URL, options...)
	if err != nil {
		return nil, err
	}

	return service.EntitySet(s.cfg.Set, s.cfg.Keys...)
}

func (s *session) postgresEntitySet(ctx context.Context) (entitystore.EntitySet, func(), error) {
	options := []postgresengine.Option{
		postgresengine.WithContextualLogger(oteladapters.NewSlogBridgeLoggerWithHandler(serviceName, s.logger.Handler())),
	}

	if s.cfg.Schema != "" {
		options = append(options, postgresengine.WithSchema(s.cfg.Schema))
	}

	database, release, err := s.openDatabase(ctx, options)
	if err != nil {
		return nil, nil, err
	}

	set, err := database.EntitySet(s.cfg.Table, s.cfg.Keys...)
	if err != nil {
		release()
		return nil, nil, err
	}

	return set, release, nil
}

func (s *session) openDatabase(ctx context.Context, options []postgresengine.Option) (*postgresengine.Database, func(), error) {
	switch s.cfg.Adapter {
	case config.AdapterSQL:
		db, err := config.NewSQLDB(ctx, s.cfg.DSN)
		if err != nil {
			return nil, nil, err
		}

		return withRelease(postgresengine.NewDatabaseFromSQLDB(db, options...))(func() { _ = db.Close() })

	case config.AdapterSQLX:
		db, err := config.NewSQLX(ctx, s.cfg.DSN)
		if err != nil {
			return nil, nil, err
		}

		return withRelease(postgresengine.NewDatabaseFromSQLX(db, options...))(func() { _ = db.Close() })

	default:
		pool, err := config.NewPGXPool(ctx, s.cfg.DSN)
		if err != nil {
			return nil, nil, err
		}

		return withRelease(postgresengine.NewDatabaseFromPGXPool(pool, options...))(pool.Close)
	}
}

// withRelease pairs a created database with the release function of its connection.
// If creating the database failed, the connection is released right away.
func withRelease(database *postgresengine.Database, err error) func(release func()) (*postgresengine.Database, func(), error) {
	return func(release func()) (*postgresengine.Database, func(), error) {
		if err != nil {
			release()
			return nil, nil, err
		}

		return database, release, nil
	}
}
