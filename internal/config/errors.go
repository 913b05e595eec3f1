package config

// ConfigError reports a problem with the loaded configuration or provider
// registry: an invalid setting, a model spec naming an unknown provider,
// or a missing API key environment variable (§7).
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "config: " + e.Msg }
