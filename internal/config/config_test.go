package config_test

import (
	"strings"
	"testing"

	"github.com/arcveil/inkbridge/internal/config"
)

func TestLoadFromReader_EmptyAppliesDefaults(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(`
storage:
  postgres_dsn: "postgres://localhost/inkbridge"
registry:
  path: "registry.json"
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Models.TranslationModel != config.DefaultTranslationModel {
		t.Errorf("expected default translation model, got %q", cfg.Models.TranslationModel)
	}
	if cfg.Models.AdviceModel != cfg.Models.TranslationModel {
		t.Errorf("expected advice model to default to translation model, got %q", cfg.Models.AdviceModel)
	}
	if cfg.Storage.TokenRatiosPath != config.DefaultTokenRatiosPath {
		t.Errorf("expected default token ratios path, got %q", cfg.Storage.TokenRatiosPath)
	}
	if cfg.Server.LogLevel != config.LogLevelInfo {
		t.Errorf("expected default log level info, got %q", cfg.Server.LogLevel)
	}
}

func TestLoadFromReader_FullConfig(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(`
server:
  log_level: debug
  debug_mode: true
models:
  translation_model: "claude-sonnet-4"
  advice_model: "oai:gpt-4.1"
  max_chars: 8000
  max_output_tokens: 4096
storage:
  postgres_dsn: "postgres://localhost/inkbridge"
  token_ratios_path: "/tmp/ratios.json"
registry:
  path: "/etc/inkbridge/registry.json"
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Models.TranslationModel != "claude-sonnet-4" {
		t.Errorf("got %q", cfg.Models.TranslationModel)
	}
	if cfg.Models.AdviceModel != "oai:gpt-4.1" {
		t.Errorf("got %q", cfg.Models.AdviceModel)
	}
	if cfg.Models.MaxChars != 8000 {
		t.Errorf("got %d", cfg.Models.MaxChars)
	}
	if !cfg.Server.DebugMode {
		t.Error("expected debug_mode true")
	}
}

func TestLoadFromReader_RejectsUnknownFields(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader(`
storage:
  postgres_dsn: "x"
registry:
  path: "x"
bogus_field: true
`))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadFromReader_MissingStorageDSN(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader(`
registry:
  path: "registry.json"
`))
	if err == nil {
		t.Fatal("expected error for missing postgres_dsn")
	}
}

func TestLoadFromReader_MissingRegistryPath(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader(`
storage:
  postgres_dsn: "postgres://localhost/inkbridge"
`))
	if err == nil {
		t.Fatal("expected error for missing registry.path")
	}
}

func TestLoadFromReader_InvalidLogLevel(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader(`
server:
  log_level: "verbose"
storage:
  postgres_dsn: "postgres://localhost/inkbridge"
registry:
  path: "registry.json"
`))
	if err == nil {
		t.Fatal("expected error for invalid log level")
	}
}

func TestLogLevel_IsValid(t *testing.T) {
	valid := []config.LogLevel{config.LogLevelDebug, config.LogLevelInfo, config.LogLevelWarn, config.LogLevelError}
	for _, l := range valid {
		if !l.IsValid() {
			t.Errorf("expected %q to be valid", l)
		}
	}
	if config.LogLevel("trace").IsValid() {
		t.Error("expected unknown log level to be invalid")
	}
}
