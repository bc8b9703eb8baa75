package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	ErrUnknownEngine       = errors.New("unknown engine")
	ErrMissingServiceURL   = errors.New("the odata engine needs a service url")
	ErrMissingEntitySet    = errors.New("the odata engine needs an entity set")
	ErrMissingDSN          = errors.New("the postgres engine needs a dsn")
	ErrMissingTable        = errors.New("the postgres engine needs a table")
	ErrUnknownAdapter      = errors.New("unknown postgres adapter")
	ErrInvalidHeader       = errors.New("headers must have the form name:value")
	ErrReadingConfigFailed = errors.New("reading config file failed")
)

const (
	EnvPrefix = "ENTITYQ"

	EngineOData    = "odata"
	EnginePostgres = "postgres"

	AdapterPGX  = "pgx"
	AdapterSQL  = "sql"
	AdapterSQLX = "sqlx"

	KeyConfigFile   = "config"
	KeyEngine       = "engine"
	KeyKeys         = "keys"
	KeyURL          = "url"
	KeySet          = "set"
	KeyODataVersion = "odata-version"
	KeyHeaders      = "headers"
	KeyRetries      = "retries"
	KeyDSN          = "dsn"
	KeyTable        = "table"
	KeySchema       = "schema"
	KeyAdapter      = "adapter"
	KeyLogLevel     = "log-level"
	KeyNoColor      = "no-color"
	KeyTrace        = "trace"
)

// Config is the resolved configuration of one entityq invocation.
type Config struct {
	Engine string   `mapstructure:"engine"`
	Keys   []string `mapstructure:"keys"`

	URL          string   `mapstructure:"url"`
	Set          string   `mapstructure:"set"`
	ODataVersion int      `mapstructure:"odata-version"`
	Headers      []string `mapstructure:"headers"`
	Retries      int      `mapstructure:"retries"`

	DSN     string `mapstructure:"dsn"`
	Table   string `mapstructure:"table"`
	Schema  string `mapstructure:"schema"`
	Adapter string `mapstructure:"adapter"`

	LogLevel string `mapstructure:"log-level"`
	NoColor  bool   `mapstructure:"no-color"`
	Trace    bool   `mapstructure:"trace"`
}

// RegisterFlags adds the configuration flags with their defaults to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String(KeyConfigFile, "", "optional config file (yaml, json or toml)")
	flags.String(KeyEngine, EngineOData, "storage engine (odata|postgres)")
	flags.StringSlice(KeyKeys, []string{"id"}, "key properties of the entity set")
	flags.String(KeyURL, "", "odata service root url")
	flags.String(KeySet, "", "odata entity set name")
	flags.Int(KeyODataVersion, 2, "odata protocol version (2|4)")
	flags.StringSlice(KeyHeaders, nil, "extra request headers as name:value")
	flags.Int(KeyRetries, 1, "attempts per odata read, retrying transient failures")
	flags.String(KeyDSN, DefaultDSN, "postgres connection string")
	flags.String(KeyTable, "", "postgres table name")
	flags.String(KeySchema, "", "postgres schema name")
	flags.String(KeyAdapter, AdapterPGX, "postgres driver adapter (pgx|sql|sqlx)")
	flags.String(KeyLogLevel, "warn", "log level (debug|info|warn|error)")
	flags.Bool(KeyNoColor, false, "disable colored log output")
	flags.Bool(KeyTrace, false, "log finished spans and recorded metrics")
}

// Load resolves the configuration from flags, environment and the optional config file.
func Load(flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return Config{}, err
	}

	if file := v.GetString(KeyConfigFile); file != "" {
		v.SetConfigFile(file)

		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Join(ErrReadingConfigFailed, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate checks that the settings needed by the selected engine are present.
func (c Config) Validate() error {
	switch c.Engine {
	case EngineOData:
		if c.URL == "" {
			return ErrMissingServiceURL
		}

		if c.Set == "" {
			return ErrMissingEntitySet
		}

		if _, err := c.HeaderPairs(); err != nil {
			return err
		}

	case EnginePostgres:
		if c.DSN == "" {
			return ErrMissingDSN
		}

		if c.Table == "" {
			return ErrMissingTable
		}

		if !slices.Contains([]string{AdapterPGX, AdapterSQL, AdapterSQLX}, c.Adapter) {
			return fmt.Errorf("%w: %q", ErrUnknownAdapter, c.Adapter)
		}

	default:
		return fmt.Errorf("%w: %q", ErrUnknownEngine, c.Engine)
	}

	return nil
}

// HeaderPairs splits the configured headers into name and value.
func (c Config) HeaderPairs() ([][2]string, error) {
	pairs := make([][2]string, 0, len(c.Headers))

	for _, header := range c.Headers {
		name, value, found := strings.Cut(header, ":")
		if !found || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidHeader, header)
		}

		pairs = append(pairs, [2]string{strings.TrimSpace(name), strings.TrimSpace(value)})
	}

	return pairs, nil
}
