// Package oteladapters implements the observability interfaces of the entitystore package on top of OpenTelemetry.
//
// Store, Query and the storage engines only know the dependency-free interfaces
// (entitystore.Logger, entitystore.ContextualLogger, entitystore.MetricsCollector
// and entitystore.TracingCollector). This package plugs them into an OpenTelemetry setup:
//
//	tracer := otel.Tracer("entityq")
//	meter := otel.Meter("entityq")
//
//	store, err := entitystore.NewStore(people,
//		entitystore.WithContextualLogger(oteladapters.NewSlogBridgeLogger("entityq")),
//		entitystore.WithMetrics(oteladapters.NewMetricsCollector(meter)),
//		entitystore.WithTracing(oteladapters.NewTracingCollector(tracer)),
//	)
package oteladapters
