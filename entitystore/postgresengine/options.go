package postgresengine

import (
	"github.com/AntonStoeckl/odata-entitystore-go/entitystore"
)

// Option defines a functional option for configuring a Database.
type Option func(*Database) error

// WithSchema qualifies all tables of the Database with the given schema.
func WithSchema(schema string) Option {
	return func(d *Database) error {
		if schema == "" {
			return ErrEmptySchemaName
		}

		d.schema = schema

		return nil
	}
}

// WithLogger sets the logger for the Database.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL statements with execution timing (development use)
// Info level: Row counts and durations (production-safe)
// Warn level: Non-critical issues like cleanup failures
// Error level: Critical failures that cause operation failures.
func WithLogger(logger entitystore.Logger) Option {
	return func(d *Database) error {
		d.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Database.
// It receives the same messages as the Logger, together with the context of the operation.
func WithContextualLogger(logger entitystore.ContextualLogger) Option {
	return func(d *Database) error {
		d.contextualLogger = logger
		return nil
	}
}
