package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills in the documented defaults for fields left empty
// (§6.3).
func applyDefaults(cfg *Config) {
	if cfg.Models.TranslationModel == "" {
		cfg.Models.TranslationModel = DefaultTranslationModel
	}
	if cfg.Models.AdviceModel == "" {
		cfg.Models.AdviceModel = cfg.Models.TranslationModel
	}
	if cfg.Storage.TokenRatiosPath == "" {
		cfg.Storage.TokenRatiosPath = DefaultTokenRatiosPath
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogLevelInfo
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every problem found, rather than failing on the
// first.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, &ConfigError{Msg: fmt.Sprintf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel)})
	}
	if cfg.Storage.PostgresDSN == "" {
		errs = append(errs, &ConfigError{Msg: "storage.postgres_dsn is required"})
	}
	if cfg.Registry.Path == "" {
		errs = append(errs, &ConfigError{Msg: "registry.path is required"})
	}
	if cfg.Models.MaxChars < 0 {
		errs = append(errs, &ConfigError{Msg: "models.max_chars must not be negative"})
	}
	if cfg.Models.MaxOutputTokens < 0 {
		errs = append(errs, &ConfigError{Msg: "models.max_output_tokens must not be negative"})
	}

	return errors.Join(errs...)
}
