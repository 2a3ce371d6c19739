package node

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/leapdict/pkg/dictsource"
)

// Config holds the source.node section of a dictionary.
type Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DB       string `mapstructure:"db"`
	Table    string `mapstructure:"table"`
}

// ParseConfig decodes raw params into a Config and validates it.
// Unknown keys are rejected.
func ParseConfig(params map[string]any) (Config, error) {
	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return cfg, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(params); err != nil {
		return cfg, &dictsource.ConfigError{Key: "source." + Kind, Reason: err.Error()}
	}
	return cfg, cfg.Validate()
}

// Validate checks that the required keys are set.
func (c Config) Validate() error {
	switch {
	case c.Host == "":
		return &dictsource.ConfigError{Key: "host", Reason: "required"}
	case c.Port <= 0 || c.Port > 65535:
		return &dictsource.ConfigError{Key: "port", Reason: fmt.Sprintf("must be between 1 and 65535, got %d", c.Port)}
	case c.Table == "":
		return &dictsource.ConfigError{Key: "table", Reason: "required"}
	}
	return nil
}
