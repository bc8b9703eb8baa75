// Package config provides the configuration of the entityq example command.
//
// Settings are read with viper from command line flags, ENTITYQ_ prefixed environment variables
// and an optional config file, in that order of precedence. The package also contains factory
// functions for PostgreSQL connections using the supported drivers (pgx.Pool, sql.DB, sqlx.DB)
// and the OpenTelemetry providers used when tracing is switched on.
package config
