package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TERMCORE"

// Load reads the settings file at path over the defaults and applies
// environment overrides. An empty path selects DefaultPath. A missing
// file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	default:
		if err := decode(path, data, cfg); err != nil {
			return nil, err
		}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes TOML settings over the defaults without consulting the
// environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := decode("<reader>", data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(source string, data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(cfg); err != nil {
		pe := &ParseError{Path: source, Err: err}
		var de *toml.DecodeError
		if errors.As(err, &de) {
			pe.Line, pe.Column = de.Position()
		}
		return pe
	}
	if cfg.Terminal.EnvironmentVariables == nil {
		cfg.Terminal.EnvironmentVariables = map[string]string{}
	}
	return nil
}

// ApplyEnv overrides cfg from TERMCORE_* environment variables.
func ApplyEnv(cfg *Config) error {
	sections := []struct {
		name string
		spec any
	}{
		{"terminal", &cfg.Terminal},
		{"session", &cfg.Session},
		{"log", &cfg.Log},
		{"theme", &cfg.Theme},
	}
	for _, s := range sections {
		if err := envconfig.Process(EnvPrefix, s.spec); err != nil {
			return fmt.Errorf("environment overrides for %s: %w", s.name, err)
		}
	}
	return nil
}

// Encode renders cfg as TOML.
func Encode(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return buf.Bytes(), nil
}
