// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/market-research/internal/agents"
	"github.com/jonathan/market-research/internal/llm"
)

// Defaults for values not set in the file, the environment or flags
const (
	DefaultLanguage          = "en"
	DefaultStageTimeout      = 5 * time.Minute
	DefaultPort              = 8080
	DefaultMaxConcurrentRuns = 2
)

// Config represents the configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or come from CLI flags.
type Config struct {
	// Inference
	Provider     string    `json:"provider,omitempty" validate:"omitempty,oneof=ollama gemini anthropic"`
	Model        string    `json:"model,omitempty"`
	BaseURL      string    `json:"base_url,omitempty"` // Ollama address or API endpoint override
	APIKey       string    `json:"api_key,omitempty"`  // Gemini / Anthropic API key
	StageTimeout *Duration `json:"stage_timeout,omitempty" validate:"omitempty,gte=0"`
	MaxTokens    int64     `json:"max_tokens,omitempty" validate:"gte=0"` // Anthropic only

	// Behavior
	Language string       `json:"language,omitempty" validate:"omitempty,language"`
	Verbose  bool         `json:"verbose,omitempty"`
	Server   ServerConfig `json:"server,omitempty"`
}

// ServerConfig holds the HTTP front end settings
type ServerConfig struct {
	Port              int `json:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	MaxConcurrentRuns int `json:"max_concurrent_runs,omitempty" validate:"gte=0"`
}

// Overrides are values set explicitly on the command line. Empty strings and a
// nil Verbose leave the file value in place.
type Overrides struct {
	Provider string
	Model    string
	BaseURL  string
	Language string
	Verbose  *bool
}

// Duration is a time.Duration written as a Go duration string ("90s", "5m").
type Duration time.Duration

// MarshalJSON encodes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON decodes a duration string.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Defaults returns the built-in configuration (local Ollama, English).
func Defaults() Config {
	return Config{
		Provider:     string(llm.ProviderOllama),
		Language:     DefaultLanguage,
		StageTimeout: durationPtr(DefaultStageTimeout),
		MaxTokens:    llm.DefaultMaxTokens,
		Server: ServerConfig{
			Port:              DefaultPort,
			MaxConcurrentRuns: DefaultMaxConcurrentRuns,
		},
	}
}

// LoadConfig loads configuration from a JSON file.
// The document is checked against the embedded schema before it is decoded.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := ValidateDocument(data); err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

func durationPtr(d time.Duration) *Duration {
	v := Duration(d)
	return &v
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Languages follow the embedded prompt files
	_ = v.RegisterValidation("language", func(fl validator.FieldLevel) bool {
		_, err := agents.ParseLanguage(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks that the configuration has valid values.
// Required fields are not checked here; the provider client reports those.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("config error: '%s' failed the '%s' check (value %v)", fieldPath(fe.Namespace()), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

// fieldPath drops the struct name: "Config.server.port" becomes "server.port".
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

// MergeWithDefaults returns a new Config with zero fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.Provider == "" {
		result.Provider = defaults.Provider
	}
	if result.Model == "" {
		result.Model = defaults.Model
	}
	if result.BaseURL == "" {
		result.BaseURL = defaults.BaseURL
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.Language == "" {
		result.Language = defaults.Language
	}

	// An explicit zero timeout is kept
	if result.StageTimeout == nil && defaults.StageTimeout != nil {
		result.StageTimeout = durationPtr(time.Duration(*defaults.StageTimeout))
	}

	// Numeric fields: use default if zero
	if result.MaxTokens == 0 {
		result.MaxTokens = defaults.MaxTokens
	}
	if result.Server.Port == 0 {
		result.Server.Port = defaults.Server.Port
	}
	if result.Server.MaxConcurrentRuns == 0 {
		result.Server.MaxConcurrentRuns = defaults.Server.MaxConcurrentRuns
	}

	// Bool fields: false is a value, not a gap; Load applies the Verbose override

	return result
}

// ApplyEnv fills empty fields from the environment. The provider's own
// variables apply: OLLAMA_HOST for ollama, GEMINI_API_KEY or ANTHROPIC_API_KEY
// for the hosted APIs.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}

	switch llm.Provider(c.Provider) {
	case llm.ProviderGemini:
		if c.APIKey == "" {
			c.APIKey = getenv("GEMINI_API_KEY")
		}
	case llm.ProviderAnthropic:
		if c.APIKey == "" {
			c.APIKey = getenv("ANTHROPIC_API_KEY")
		}
	default:
		if c.BaseURL == "" {
			c.BaseURL = getenv("OLLAMA_HOST")
		}
	}
}

// LLMConfig builds the inference client configuration.
func (c *Config) LLMConfig() (*llm.Config, error) {
	provider, err := llm.ParseProvider(c.Provider)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	return &llm.Config{
		Provider:  provider,
		Model:     c.Model,
		BaseURL:   c.BaseURL,
		APIKey:    c.APIKey,
		MaxTokens: c.MaxTokens,
	}, nil
}

// Catalog builds the persona catalog for the configured language.
func (c *Config) Catalog() (*agents.Catalog, error) {
	lang, err := agents.ParseLanguage(c.Language)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	return agents.NewCatalog(lang)
}

// Timeout returns the per-stage inference timeout. Zero means unbounded.
func (c *Config) Timeout() time.Duration {
	if c.StageTimeout == nil {
		return DefaultStageTimeout
	}
	return time.Duration(*c.StageTimeout)
}

// withProvider switches to provider p. Model, base URL and API key belong to
// the previous provider and are dropped when it changes.
func (c *Config) withProvider(p string) Config {
	result := *c
	if p == "" {
		return result
	}
	current := result.Provider
	if current == "" {
		current = string(llm.ProviderOllama)
	}
	if p != current {
		result.Model = ""
		result.BaseURL = ""
		result.APIKey = ""
	}
	result.Provider = p
	return result
}

// Load resolves the effective configuration. Precedence, highest first:
// overrides (usually CLI flags), the file at path (optional), built-in
// defaults. Empty fields are then filled from the environment and the
// result is validated. A provider override discards the file's
// provider-specific settings.
func Load(path string, overrides Overrides, getenv func(string) string) (*Config, error) {
	file := &Config{}
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		file = loaded
	}

	merged := file.withProvider(overrides.Provider)
	if overrides.Model != "" {
		merged.Model = overrides.Model
	}
	if overrides.BaseURL != "" {
		merged.BaseURL = overrides.BaseURL
	}
	if overrides.Language != "" {
		merged.Language = overrides.Language
	}
	if overrides.Verbose != nil {
		merged.Verbose = *overrides.Verbose
	}
	merged = merged.MergeWithDefaults(Defaults())
	merged.ApplyEnv(getenv)

	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}
