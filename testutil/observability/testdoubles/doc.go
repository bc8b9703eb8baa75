// Package testdoubles provides spies for the entitystore observability interfaces.
//
//   - MetricsCollectorSpy: captures duration, counter, and value metrics
//   - TracingCollectorSpy: captures spans with their start and end attributes
//   - ContextualLoggerSpy: captures context-aware log calls
//   - LogHandlerSpy: a slog.Handler capturing records, for use with slog.New as a plain Logger
package testdoubles
