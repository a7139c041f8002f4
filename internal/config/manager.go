// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/diogo/perplexity-webui-go/pkg/models"
)

const (
	configDirName  = ".perplexity-webui"
	configFileName = "config"
	configFileType = "json"
)

// ServeConfig holds the OpenAI-compatible server settings.
type ServeConfig struct {
	Listen             string `mapstructure:"listen"`
	APIKey             string `mapstructure:"api_key"`
	RateLimitPerMinute int    `mapstructure:"rate_limit_per_minute"`
	SessionTTLMinutes  int    `mapstructure:"session_ttl_minutes"`
	MaxSessionsPerUser int    `mapstructure:"max_sessions_per_user"`
}

// Config holds all configuration options.
type Config struct {
	// Token is the session token; takes precedence over CookieFile.
	Token      string `mapstructure:"token"`
	CookieFile string `mapstructure:"cookie_file"`

	DefaultModel  string   `mapstructure:"default_model"`
	CitationMode  string   `mapstructure:"citation_mode"`
	SearchFocus   string   `mapstructure:"search_focus"`
	Sources       []string `mapstructure:"sources"`
	TimeRange     string   `mapstructure:"time_range"`
	Language      string   `mapstructure:"language"`
	Streaming     bool     `mapstructure:"streaming"`
	SaveToLibrary bool     `mapstructure:"save_to_library"`
	HistoryFile   string   `mapstructure:"history_file"`

	MaxRetries        int     `mapstructure:"max_retries"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	RotateFingerprint bool    `mapstructure:"rotate_fingerprint"`
	Impersonate       string  `mapstructure:"impersonate"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`

	Serve ServeConfig `mapstructure:"serve"`
}

// Manager handles configuration loading and saving.
type Manager struct {
	v       *viper.Viper
	cfgDir  string
	cfgFile string
}

// NewManager creates a configuration manager rooted in the user's home
// directory.
func NewManager() (*Manager, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	cfgDir := filepath.Join(home, configDirName)
	m := &Manager{
		v:       viper.New(),
		cfgDir:  cfgDir,
		cfgFile: filepath.Join(cfgDir, configFileName+"."+configFileType),
	}

	m.setDefaults()

	m.v.SetConfigName(configFileName)
	m.v.SetConfigType(configFileType)
	m.v.AddConfigPath(cfgDir)
	m.v.AddConfigPath(".")

	m.v.SetEnvPrefix("PERPLEXITY")
	m.v.AutomaticEnv()
	m.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return m, nil
}

func (m *Manager) setDefaults() {
	m.v.SetDefault("token", "")
	m.v.SetDefault("cookie_file", filepath.Join(m.cfgDir, "cookies.json"))
	m.v.SetDefault("default_model", models.ModelBest.Identifier)
	m.v.SetDefault("citation_mode", string(models.CitationClean))
	m.v.SetDefault("search_focus", string(models.FocusWeb))
	m.v.SetDefault("sources", []string{string(models.SourceWeb)})
	m.v.SetDefault("time_range", "")
	m.v.SetDefault("language", "en-US")
	m.v.SetDefault("streaming", true)
	m.v.SetDefault("save_to_library", false)
	m.v.SetDefault("history_file", filepath.Join(m.cfgDir, "history.jsonl"))

	m.v.SetDefault("max_retries", 3)
	m.v.SetDefault("requests_per_second", 0.5)
	m.v.SetDefault("rotate_fingerprint", true)
	m.v.SetDefault("impersonate", "")
	m.v.SetDefault("timeout_seconds", 3600)

	m.v.SetDefault("serve.listen", "127.0.0.1:8080")
	m.v.SetDefault("serve.api_key", "")
	m.v.SetDefault("serve.rate_limit_per_minute", 60)
	m.v.SetDefault("serve.session_ttl_minutes", 60)
	m.v.SetDefault("serve.max_sessions_per_user", 20)
}

// Load reads configuration from file and environment.
func (m *Manager) Load() (*Config, error) {
	if err := os.MkdirAll(m.cfgDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := m.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := m.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Sources may arrive as a comma-separated string from the environment.
	if len(cfg.Sources) == 1 && strings.Contains(cfg.Sources[0], ",") {
		cfg.Sources = strings.Split(cfg.Sources[0], ",")
	}
	cfg.Sources = normalizeSources(cfg.Sources)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to file.
func (m *Manager) Save(cfg *Config) error {
	if err := os.MkdirAll(m.cfgDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	m.v.Set("token", cfg.Token)
	m.v.Set("cookie_file", cfg.CookieFile)
	m.v.Set("default_model", cfg.DefaultModel)
	m.v.Set("citation_mode", cfg.CitationMode)
	m.v.Set("search_focus", cfg.SearchFocus)
	m.v.Set("sources", cfg.Sources)
	m.v.Set("time_range", cfg.TimeRange)
	m.v.Set("language", cfg.Language)
	m.v.Set("streaming", cfg.Streaming)
	m.v.Set("save_to_library", cfg.SaveToLibrary)
	m.v.Set("history_file", cfg.HistoryFile)
	m.v.Set("max_retries", cfg.MaxRetries)
	m.v.Set("requests_per_second", cfg.RequestsPerSecond)
	m.v.Set("rotate_fingerprint", cfg.RotateFingerprint)
	m.v.Set("impersonate", cfg.Impersonate)
	m.v.Set("timeout_seconds", cfg.TimeoutSeconds)
	m.v.Set("serve.listen", cfg.Serve.Listen)
	m.v.Set("serve.api_key", cfg.Serve.APIKey)
	m.v.Set("serve.rate_limit_per_minute", cfg.Serve.RateLimitPerMinute)
	m.v.Set("serve.session_ttl_minutes", cfg.Serve.SessionTTLMinutes)
	m.v.Set("serve.max_sessions_per_user", cfg.Serve.MaxSessionsPerUser)

	return m.v.WriteConfigAs(m.cfgFile)
}

// validate checks configuration values.
func validate(cfg *Config) error {
	if cfg.DefaultModel != "" {
		if _, ok := models.ModelByIdentifier(cfg.DefaultModel); !ok {
			return fmt.Errorf("invalid model: %s", cfg.DefaultModel)
		}
	}
	if cfg.CitationMode != "" && !models.IsValidCitationMode(models.CitationMode(cfg.CitationMode)) {
		return fmt.Errorf("invalid citation mode: %s", cfg.CitationMode)
	}
	if cfg.SearchFocus != "" && !models.IsValidSearchFocus(models.SearchFocus(cfg.SearchFocus)) {
		return fmt.Errorf("invalid search focus: %s", cfg.SearchFocus)
	}
	if !models.IsValidTimeRange(models.TimeRange(cfg.TimeRange)) {
		return fmt.Errorf("invalid time range: %s", cfg.TimeRange)
	}
	if cfg.Language != "" && !isValidLanguage(cfg.Language) {
		return fmt.Errorf("invalid language format: %s (expected xx-XX)", cfg.Language)
	}
	for _, s := range cfg.Sources {
		if !models.IsValidSource(models.SourceFocus(s)) {
			return fmt.Errorf("invalid source: %s", s)
		}
	}
	if cfg.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if cfg.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must be non-negative")
	}
	return nil
}

// GetConfigDir returns the configuration directory path.
func (m *Manager) GetConfigDir() string {
	return m.cfgDir
}

// GetConfigFile returns the configuration file path.
func (m *Manager) GetConfigFile() string {
	return m.cfgFile
}

// normalizeSources trims, dedupes, and drops unknown values, falling back to
// web search when nothing valid remains.
func normalizeSources(raw []string) []string {
	sources := make([]string, 0, len(raw))
	seen := make(map[string]bool)

	for _, s := range raw {
		s = strings.TrimSpace(s)
		if models.IsValidSource(models.SourceFocus(s)) && !seen[s] {
			sources = append(sources, s)
			seen[s] = true
		}
	}

	if len(sources) == 0 {
		return []string{string(models.SourceWeb)}
	}
	return sources
}

var languageRegex = regexp.MustCompile(`^[a-z]{2}-[A-Z]{2}$`)

func isValidLanguage(lang string) bool {
	return languageRegex.MatchString(lang)
}
