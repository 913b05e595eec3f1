package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/arcveil/inkbridge/pkg/provider/llm"
)

// ErrProviderNotRegistered is returned by [Registry.Create] when no factory
// has been registered for the resolved provider class.
var ErrProviderNotRegistered = errors.New("config: provider class not registered")

// ProviderDefinition describes one entry in the provider registry document
// (§6.4): the adapter class it selects, the environment variable holding
// its API key, and per-provider overrides.
type ProviderDefinition struct {
	Class           string   `json:"class"`
	APIKeyEnv       string   `json:"api_key_env"`
	BaseURL         string   `json:"base_url,omitempty"`
	DefaultModel    string   `json:"default_model"`
	Models          []string `json:"models"`
	MaxChars        int      `json:"max_chars,omitempty"`
	MaxOutputTokens int      `json:"max_output_tokens,omitempty"`
}

// RegistryDocument is the on-disk JSON shape of the provider registry
// (§6.4): a map of provider name to [ProviderDefinition], plus an alias
// map (e.g. "ds" -> "deepseek", "oai" -> "openai").
type RegistryDocument struct {
	Providers map[string]ProviderDefinition `json:"providers"`
	Aliases   map[string]string             `json:"aliases"`
}

// LoadRegistryDocument reads and decodes a provider registry JSON file.
func LoadRegistryDocument(path string) (*RegistryDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read registry %q: %w", path, err)
	}
	var doc RegistryDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parse registry %q: %w", path, err)
	}
	return &doc, nil
}

// resolve canonicalizes a provider name through the alias map.
func (d *RegistryDocument) resolve(name string) string {
	if canon, ok := d.Aliases[name]; ok {
		return canon
	}
	return name
}

// ParseModelSpec splits a "provider:model" spec into its parts, defaulting
// to "oai" when no provider prefix is present (§6.3), matching
// original_source/config.py's parse_model_spec.
func ParseModelSpec(spec string) (provider, model string) {
	if idx := strings.Index(spec, ":"); idx != -1 {
		return strings.ToLower(spec[:idx]), spec[idx+1:]
	}
	return "oai", spec
}

// ProviderFactory constructs an llm.Provider for a resolved registry
// definition, given the chosen model, the environment-sourced API key (may
// be empty if the definition has no api_key_env), and resolved
// maxChars/maxOutputTokens overrides.
type ProviderFactory func(def ProviderDefinition, model, apiKey string, maxChars, maxOutputTokens int) (llm.Provider, error)

// Registry resolves "provider:model" specs (§6.3) to constructed
// llm.Provider instances, using a document loaded from the registry file
// (§6.4) plus one constructor func registered per adapter class. This
// collapses the teacher's per-provider-kind registry (LLM/STT/TTS/S2S/…)
// down to the single "llm" kind this system needs.
type Registry struct {
	mu        sync.RWMutex
	doc       *RegistryDocument
	factories map[string]ProviderFactory
}

// NewRegistry returns a [Registry] backed by doc, with no constructors
// registered yet — call [Registry.RegisterClass] for each supported class
// ("openai", "anthropic", "gemini").
func NewRegistry(doc *RegistryDocument) *Registry {
	return &Registry{doc: doc, factories: make(map[string]ProviderFactory)}
}

// RegisterClass registers factory as the constructor used for every
// provider definition whose Class equals class.
func (r *Registry) RegisterClass(class string, factory ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[class] = factory
}

// ResolveAPIKeys validates that every registered provider definition's
// api_key_env is set. A missing key for a referenced provider is a
// [ConfigError] at startup, not a lazy failure at first translation call
// (§6.3 supplemental).
func (r *Registry) ResolveAPIKeys() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for name, def := range r.doc.Providers {
		if def.APIKeyEnv == "" {
			continue
		}
		if _, ok := os.LookupEnv(def.APIKeyEnv); !ok {
			errs = append(errs, &ConfigError{Msg: fmt.Sprintf(
				"registry entry %q: environment variable %q is not set", name, def.APIKeyEnv)})
		}
	}
	return errors.Join(errs...)
}

// ClassFor resolves spec's provider prefix (see [ParseModelSpec]) to its
// registered adapter class, without constructing a provider. The
// orchestrator uses this to decide whether to strip the illustrative
// example block from the composed prompt for Gemini models (§4.5 step 4,
// S5).
func (r *Registry) ClassFor(spec string) (string, error) {
	providerName, _ := ParseModelSpec(spec)
	r.mu.RLock()
	defer r.mu.RUnlock()
	canon := r.doc.resolve(providerName)
	def, ok := r.doc.Providers[canon]
	if !ok {
		return "", &ConfigError{Msg: fmt.Sprintf("no registry entry for provider %q (spec %q)", canon, spec)}
	}
	return def.Class, nil
}

// Create resolves spec (see [ParseModelSpec]) into a constructed
// llm.Provider, applying maxChars/maxOutputTokens overrides from
// [ModelsConfig] whenever they are non-zero.
func (r *Registry) Create(spec string, overrideMaxChars, overrideMaxOutputTokens int) (llm.Provider, error) {
	providerName, model := ParseModelSpec(spec)

	r.mu.RLock()
	canon := r.doc.resolve(providerName)
	def, ok := r.doc.Providers[canon]
	r.mu.RUnlock()
	if !ok {
		return nil, &ConfigError{Msg: fmt.Sprintf("no registry entry for provider %q (spec %q)", canon, spec)}
	}
	if model == "" {
		model = def.DefaultModel
	}

	r.mu.RLock()
	factory, ok := r.factories[def.Class]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: class %q", ErrProviderNotRegistered, def.Class)
	}

	var apiKey string
	if def.APIKeyEnv != "" {
		apiKey = os.Getenv(def.APIKeyEnv)
		if apiKey == "" {
			return nil, &ConfigError{Msg: fmt.Sprintf(
				"environment variable %q for provider %q is not set", def.APIKeyEnv, canon)}
		}
	}

	maxChars := def.MaxChars
	if overrideMaxChars > 0 {
		maxChars = overrideMaxChars
	}
	maxOutputTokens := def.MaxOutputTokens
	if overrideMaxOutputTokens > 0 {
		maxOutputTokens = overrideMaxOutputTokens
	}

	return factory(def, model, apiKey, maxChars, maxOutputTokens)
}
