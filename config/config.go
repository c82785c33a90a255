// Package config loads and saves the deskagent configuration file,
// ~/.deskagent/config.toml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/martinemde/deskagent/agentloop"
	"github.com/martinemde/deskagent/unifiedllm"
)

const (
	configType      = "toml"
	configDir       = ".deskagent"
	configFile      = "config.toml"
	configFileMode  = 0o600
	configDirMode   = 0o700
	tempFilePattern = ".config-*.toml.tmp"

	// EnvPrefix prefixes environment overrides, e.g. DESKAGENT_MAX_STEPS.
	EnvPrefix = "DESKAGENT"
	// PathEnv names an alternative config file.
	PathEnv = "DESKAGENT_CONFIG"
)

var (
	ErrProviderNotFound = errors.New("provider not found")
	ErrNoActiveProvider = errors.New("no active provider configured")
	ErrUnknownKey       = errors.New("unknown config key")
)

// ProviderTypes are the supported values of Provider.Type.
var ProviderTypes = []string{"openai", "openrouter", "lmstudio", "azure", "anthropic", "ollama", "groq", "mistral"}

// Provider is one [[providers]] table.
type Provider struct {
	Name       string   `toml:"name" mapstructure:"name"`
	Type       string   `toml:"type" mapstructure:"type"`
	BaseURL    string   `toml:"base_url,omitempty" mapstructure:"base_url"`
	APIKey     string   `toml:"api_key,omitempty" mapstructure:"api_key"`
	APIKeyEnv  string   `toml:"api_key_env,omitempty" mapstructure:"api_key_env"`
	APIVersion string   `toml:"api_version,omitempty" mapstructure:"api_version"`
	Models     []string `toml:"models,omitempty" mapstructure:"models"`
}

// ResolvedAPIKey returns the inline key, or the value of APIKeyEnv.
func (p Provider) ResolvedAPIKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnv != "" {
		return os.Getenv(p.APIKeyEnv)
	}
	return ""
}

// ResolvedBaseURL returns the configured endpoint or the type's default.
func (p Provider) ResolvedBaseURL() string {
	if p.BaseURL != "" {
		return p.BaseURL
	}
	switch p.Type {
	case "openrouter":
		return unifiedllm.OpenRouterBaseURL
	case "lmstudio":
		return unifiedllm.LMStudioBaseURL
	}
	return ""
}

// ResolvedAPIVersion returns the azure API version, defaulted.
func (p Provider) ResolvedAPIVersion() string {
	if p.APIVersion == "" && p.Type == "azure" {
		return unifiedllm.DefaultAzureAPIVersion
	}
	return p.APIVersion
}

// DefaultModel is the provider's first listed model, or the catalog default
// for its type.
func (p Provider) DefaultModel() string {
	if len(p.Models) > 0 {
		return p.Models[0]
	}
	if info := unifiedllm.DefaultModel(p.Type); info != nil {
		return info.ID
	}
	return ""
}

// LogConfig is the [log] table.
type LogConfig struct {
	Level  string `toml:"level" mapstructure:"level"`
	Format string `toml:"format" mapstructure:"format"`
}

// Config is the whole configuration file.
type Config struct {
	ActiveProvider      string     `toml:"active_provider" mapstructure:"active_provider"`
	ActiveModel         string     `toml:"active_model" mapstructure:"active_model"`
	MaxSteps            int        `toml:"max_steps" mapstructure:"max_steps"`
	MaxTextResponses    int        `toml:"max_text_responses" mapstructure:"max_text_responses"`
	ExecutionTimeout    int        `toml:"execution_timeout" mapstructure:"execution_timeout"`
	MaxCommandTimeout   int        `toml:"max_command_timeout" mapstructure:"max_command_timeout"`
	CommandSafety       bool       `toml:"command_safety" mapstructure:"command_safety"`
	LoopDetection       bool       `toml:"loop_detection" mapstructure:"loop_detection"`
	LoopDetectionWindow int        `toml:"loop_detection_window" mapstructure:"loop_detection_window"`
	CompletionPhrases   []string   `toml:"completion_phrases" mapstructure:"completion_phrases"`
	MetricsAddr         string     `toml:"metrics_addr,omitempty" mapstructure:"metrics_addr"`
	Log                 LogConfig  `toml:"log" mapstructure:"log"`
	Providers           []Provider `toml:"providers" mapstructure:"providers"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		MaxSteps:            agentloop.DefaultMaxSteps,
		MaxTextResponses:    agentloop.DefaultMaxTextResponses,
		ExecutionTimeout:    int(agentloop.DefaultCommandTimeout / time.Second),
		MaxCommandTimeout:   int(agentloop.MaxCommandTimeout / time.Second),
		CommandSafety:       true,
		LoopDetectionWindow: agentloop.DefaultLoopDetectionWindow,
		CompletionPhrases:   slices.Clone(agentloop.DefaultCompletionPhrases),
		Log:                 LogConfig{Level: "warn", Format: "text"},
	}
}

func setDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("active_provider", def.ActiveProvider)
	v.SetDefault("active_model", def.ActiveModel)
	v.SetDefault("max_steps", def.MaxSteps)
	v.SetDefault("max_text_responses", def.MaxTextResponses)
	v.SetDefault("execution_timeout", def.ExecutionTimeout)
	v.SetDefault("max_command_timeout", def.MaxCommandTimeout)
	v.SetDefault("command_safety", def.CommandSafety)
	v.SetDefault("loop_detection", def.LoopDetection)
	v.SetDefault("loop_detection_window", def.LoopDetectionWindow)
	v.SetDefault("completion_phrases", def.CompletionPhrases)
	v.SetDefault("metrics_addr", def.MetricsAddr)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
}

// DefaultPath returns $DESKAGENT_CONFIG, or ~/.deskagent/config.toml.
func DefaultPath() (string, error) {
	if p := os.Getenv(PathEnv); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, configDir, configFile), nil
}

// Load reads the configuration at path, or DefaultPath when path is empty.
// A missing file yields the defaults. DESKAGENT_* environment variables
// override file values.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigType(configType)
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config file: %w", err)
	}
	return &cfg, nil
}

// Save writes cfg to path atomically with owner-only permissions.
func (c *Config) Save(path string) error {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), configDirMode); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := c.Encode()
	if err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}
	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := tempFile.Chmod(configFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp config file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}
	cleanup = false
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config file: %w", err)
	}
	return data, nil
}

// Redacted returns a copy with inline API keys masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.Providers = slices.Clone(c.Providers)
	for i := range out.Providers {
		out.Providers[i].APIKey = maskKey(out.Providers[i].APIKey)
	}
	return &out
}

func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

// Validate reports every problem in the configuration.
func (c *Config) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("providers[%d]: name is required", i))
		} else if seen[p.Name] {
			errs = append(errs, fmt.Errorf("providers[%d]: duplicate name %q", i, p.Name))
		}
		seen[p.Name] = true

		if !slices.Contains(ProviderTypes, p.Type) {
			errs = append(errs, fmt.Errorf("providers[%d]: unknown type %q (want one of %s)", i, p.Type, strings.Join(ProviderTypes, ", ")))
		}
		if p.Type == "azure" && p.BaseURL == "" {
			errs = append(errs, fmt.Errorf("providers[%d]: azure requires base_url", i))
		}
	}

	if c.ActiveProvider != "" && !seen[c.ActiveProvider] {
		errs = append(errs, fmt.Errorf("active_provider %q: %w", c.ActiveProvider, ErrProviderNotFound))
	}
	for key, n := range map[string]int{
		"max_steps":             c.MaxSteps,
		"max_text_responses":    c.MaxTextResponses,
		"execution_timeout":     c.ExecutionTimeout,
		"max_command_timeout":   c.MaxCommandTimeout,
		"loop_detection_window": c.LoopDetectionWindow,
	} {
		if n <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", key, n))
		}
	}
	return errors.Join(errs...)
}

// Provider returns the provider called name.
func (c *Config) Provider(name string) (Provider, error) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, nil
		}
	}
	return Provider{}, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
}

// Active returns the active provider and the model to use with it.
func (c *Config) Active() (Provider, string, error) {
	if c.ActiveProvider == "" {
		return Provider{}, "", ErrNoActiveProvider
	}
	p, err := c.Provider(c.ActiveProvider)
	if err != nil {
		return Provider{}, "", err
	}
	model := c.ActiveModel
	if model == "" {
		model = p.DefaultModel()
	}
	return p, model, nil
}

// AgentConfig converts the loop settings into an agentloop.Config.
func (c *Config) AgentConfig() agentloop.Config {
	return agentloop.Config{
		MaxSteps:             c.MaxSteps,
		MaxTextResponses:     c.MaxTextResponses,
		CompletionPhrases:    c.CompletionPhrases,
		CommandTimeout:       time.Duration(c.ExecutionTimeout) * time.Second,
		MaxCommandTimeout:    time.Duration(c.MaxCommandTimeout) * time.Second,
		DisableCommandSafety: !c.CommandSafety,
		EnableLoopDetection:  c.LoopDetection,
		LoopDetectionWindow:  c.LoopDetectionWindow,
	}
}

// Set assigns a scalar key from its string form, as used by `config set`.
func (c *Config) Set(key, value string) error {
	switch key {
	case "active_provider":
		c.ActiveProvider = value
	case "active_model":
		c.ActiveModel = value
	case "metrics_addr":
		c.MetricsAddr = value
	case "log.level":
		c.Log.Level = value
	case "log.format":
		c.Log.Format = value
	case "completion_phrases":
		c.CompletionPhrases = splitList(value)
	case "max_steps":
		return setInt(&c.MaxSteps, key, value)
	case "max_text_responses":
		return setInt(&c.MaxTextResponses, key, value)
	case "execution_timeout":
		return setInt(&c.ExecutionTimeout, key, value)
	case "max_command_timeout":
		return setInt(&c.MaxCommandTimeout, key, value)
	case "loop_detection_window":
		return setInt(&c.LoopDetectionWindow, key, value)
	case "command_safety":
		return setBool(&c.CommandSafety, key, value)
	case "loop_detection":
		return setBool(&c.LoopDetection, key, value)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: %q is not an integer", key, value)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s: %q is not a boolean", key, value)
	}
	*dst = b
	return nil
}

func splitList(value string) []string {
	out := []string{}
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
