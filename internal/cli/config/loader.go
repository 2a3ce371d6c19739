package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nesting levels: LEAPDICT_SERVER__TCP_PORT sets server.tcp_port.
const EnvPrefix = "LEAPDICT_"

// loggerKey is used to store logger in context.
type loggerKey struct{}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"tcp-port":   "server.tcp_port",
	"http-port":  "server.http_port",
	"engine":     "engine.type",
	"database":   "engine.database",
	"workers":    "reload.workers",
	"interval":   "reload.interval",
	"log-level":  "logging.level",
	"log-format": "logging.format",
	"state":      "state.path",
}

// Package-level config file tracking
var (
	configFileUsed string
	currentConfig  *Config
)

// findConfigFile finds the config file to use.
// Priority: explicit path > leapdict.yaml > leapdict.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"leapdict.yaml", "leapdict.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// ResetConfig clears the loaded state. Used for testing.
func ResetConfig() {
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]any{
		"server.tcp_port":       DefaultTCPPort,
		"server.http_port":      DefaultHTTPPort,
		"engine.type":           DefaultEngineType,
		"engine.database":       DefaultDatabase,
		"engine.max_block_size": DefaultMaxBlockSize,
		"reload.workers":        DefaultWorkers,
		"reload.interval":       DefaultInterval.String(),
		"logging.level":         DefaultLogLevel,
		"logging.format":        DefaultLogFormat,
		"state.path":            "",
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	path := findConfigFile(cfgFile)
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// 3. Environment variables
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags, only those explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	expandSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configFileUsed = path
	currentConfig = &cfg
	return &cfg, nil
}

// envKey turns LEAPDICT_RELOAD__WORKERS into reload.workers.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the most recently loaded configuration.
func GetCurrentConfig() *Config {
	return currentConfig
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// NewLogger builds the process logger described by lc.
func NewLogger(lc LoggingConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		return nil, fmt.Errorf("invalid logging.level %q: %w", lc.Level, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(lc.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid logging.format %q: must be text or json", lc.Format)
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}

// expandSecrets expands environment variables in connection fields.
func expandSecrets(cfg *Config) {
	cfg.Engine.Host = expandEnvVars(cfg.Engine.Host)
	cfg.Engine.User = expandEnvVars(cfg.Engine.User)
	cfg.Engine.Password = expandEnvVars(cfg.Engine.Password)

	for _, dc := range cfg.Dictionaries {
		for _, params := range dc.Source {
			for _, key := range []string{"host", "user", "password"} {
				if s, ok := params[key].(string); ok {
					params[key] = expandEnvVars(s)
				}
			}
		}
	}
}
