package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/odata-entitystore-go/entitystore"
	"github.com/AntonStoeckl/odata-entitystore-go/entitystore/oteladapters"
	"github.com/AntonStoeckl/odata-entitystore-go/example/config"
)

const (
	serviceName     = "entityq"
	shutdownTimeout = 5 * time.Second
)

var ErrUnknownLogLevel = errors.New("unknown log level")

// session is what every subcommand needs: the resolved config, a logger and a way to open the store.
type session struct {
	cfg       config.Config
	logger    *slog.Logger
	providers *config.ObservabilityProviders
	out       io.Writer
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          serviceName,
		Short:        "Query entity sets of an OData service or a PostgreSQL database",
		SilenceUsage: true,
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newLoadCommand())
	cmd.AddCommand(newCountCommand())
	cmd.AddCommand(newGetCommand())

	return cmd
}

// newSession resolves the configuration of cmd and sets up logging, plus tracing when requested.
func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}

	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	logger := slog.New(tint.NewHandler(cmd.ErrOrStderr(), &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    cfg.NoColor,
	}))

	s := &session{cfg: cfg, logger: logger, out: cmd.OutOrStdout()}

	if cfg.Trace {
		s.providers = config.NewObservabilityProviders(serviceName, logger)
	}

	return s, nil
}

func (s *session) close(ctx context.Context) {
	if s.providers == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := s.providers.Shutdown(ctx); err != nil {
		s.logger.WarnContext(ctx, "shutting down observability providers failed", "error", err)
	}
}

// storeOptions returns the observability options of the store.
func (s *session) storeOptions() []entitystore.Option {
	contextualLogger := oteladapters.NewSlogBridgeLoggerWithHandler(serviceName, s.logger.Handler())
	options := []entitystore.Option{entitystore.WithContextualLogger(contextualLogger)}

	if s.providers != nil {
		options = append(options,
			entitystore.WithMetrics(oteladapters.NewMetricsCollector(s.providers.MeterProvider.Meter(serviceName))),
			entitystore.WithTracing(oteladapters.NewTracingCollector(s.providers.TracerProvider.Tracer(serviceName))),
		)
	}

	return options
}

func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(name))); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLogLevel, name)
	}

	return level, nil
}
