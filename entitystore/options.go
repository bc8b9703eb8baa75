package entitystore

// Option defines a functional option for configuring a Store.
type Option func(*Store) error

// WithAutoCommit makes Insert, Update, and Remove save the entity context's changes right away.
func WithAutoCommit(autoCommit bool) Option {
	return func(s *Store) error {
		s.autoCommit = autoCommit
		return nil
	}
}

// WithKey sets the static key used when the entity set's element type does not declare key properties.
func WithKey(fields ...string) Option {
	return func(s *Store) error {
		for _, field := range fields {
			if field == "" {
				return ErrInvalidKey
			}
		}

		s.key = append([]string(nil), fields...)

		return nil
	}
}

// WithErrorHandler sets the per-store ErrorHandler, handed to every Query created by the Store.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(s *Store) error {
		s.errorHandler = handler
		return nil
	}
}

// WithErrorRegistry sets the shared ErrorRegistry notified after the per-store ErrorHandler.
func WithErrorRegistry(registry *ErrorRegistry) Option {
	return func(s *Store) error {
		s.errorRegistry = registry
		return nil
	}
}

// WithLogger sets the logger for the Store.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Info level: operation summaries with row counts and durations
// Error level: failures of remote-facing operations.
func WithLogger(logger Logger) Option {
	return func(s *Store) error {
		s.obs.Logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Store.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(s *Store) error {
		s.obs.ContextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Store.
// It receives query and commit durations, fetched row counts, and error counters.
func WithMetrics(collector MetricsCollector) Option {
	return func(s *Store) error {
		s.obs.MetricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Store.
func WithTracing(collector TracingCollector) Option {
	return func(s *Store) error {
		s.obs.TracingCollector = collector
		return nil
	}
}
