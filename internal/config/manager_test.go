package config

import (
	"testing"

	"github.com/diogo/perplexity-webui-go/pkg/models"
)

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			DefaultModel:      models.ModelBest.Identifier,
			CitationMode:      string(models.CitationClean),
			SearchFocus:       string(models.FocusWeb),
			Sources:           []string{string(models.SourceWeb)},
			Language:          "en-US",
			MaxRetries:        3,
			RequestsPerSecond: 0.5,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(*Config) {}, false},
		{"unknown model", func(c *Config) { c.DefaultModel = "gpt-9000" }, true},
		{"empty model allowed", func(c *Config) { c.DefaultModel = "" }, false},
		{"unknown citation mode", func(c *Config) { c.CitationMode = "footnotes" }, true},
		{"unknown search focus", func(c *Config) { c.SearchFocus = "images" }, true},
		{"unknown time range", func(c *Config) { c.TimeRange = "DECADE" }, true},
		{"valid time range", func(c *Config) { c.TimeRange = "WEEK" }, false},
		{"bad language format", func(c *Config) { c.Language = "english" }, true},
		{"valid language", func(c *Config) { c.Language = "pt-BR" }, false},
		{"unknown source", func(c *Config) { c.Sources = []string{"usenet"} }, true},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, true},
		{"negative rps", func(c *Config) { c.RequestsPerSecond = -0.1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeSources(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"valid passthrough", []string{"web", "scholar"}, []string{"web", "scholar"}},
		{"trims whitespace", []string{" web ", "social"}, []string{"web", "social"}},
		{"drops unknown", []string{"web", "usenet"}, []string{"web"}},
		{"dedupes", []string{"web", "web", "edgar"}, []string{"web", "edgar"}},
		{"empty falls back to web", nil, []string{"web"}},
		{"all invalid falls back to web", []string{"usenet"}, []string{"web"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeSources(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("normalizeSources(%v) = %v, want %v", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("normalizeSources(%v) = %v, want %v", tt.in, got, tt.want)
					break
				}
			}
		})
	}
}

func TestIsValidLanguage(t *testing.T) {
	valid := []string{"en-US", "pt-BR", "de-DE"}
	invalid := []string{"en", "EN-US", "en_US", "english", ""}

	for _, lang := range valid {
		if !isValidLanguage(lang) {
			t.Errorf("isValidLanguage(%q) = false, want true", lang)
		}
	}
	for _, lang := range invalid {
		if isValidLanguage(lang) {
			t.Errorf("isValidLanguage(%q) = true, want false", lang)
		}
	}
}

func TestManagerDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	m, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DefaultModel != models.ModelBest.Identifier {
		t.Errorf("DefaultModel = %q", cfg.DefaultModel)
	}
	if cfg.CitationMode != string(models.CitationClean) {
		t.Errorf("CitationMode = %q", cfg.CitationMode)
	}
	if !cfg.Streaming {
		t.Error("Streaming default = false, want true")
	}
	if cfg.SaveToLibrary {
		t.Error("SaveToLibrary default = true, want false")
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d", cfg.MaxRetries)
	}
	if cfg.RequestsPerSecond != 0.5 {
		t.Errorf("RequestsPerSecond = %v", cfg.RequestsPerSecond)
	}
	if cfg.Serve.Listen != "127.0.0.1:8080" {
		t.Errorf("Serve.Listen = %q", cfg.Serve.Listen)
	}
	if cfg.Serve.SessionTTLMinutes != 60 {
		t.Errorf("Serve.SessionTTLMinutes = %d", cfg.Serve.SessionTTLMinutes)
	}
}

func TestManagerEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PERPLEXITY_TOKEN", "env-token")
	t.Setenv("PERPLEXITY_CITATION_MODE", "markdown")

	m, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Token != "env-token" {
		t.Errorf("Token = %q, want env override", cfg.Token)
	}
	if cfg.CitationMode != "markdown" {
		t.Errorf("CitationMode = %q, want env override", cfg.CitationMode)
	}
}

func TestManagerSaveAndReload(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	m, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	cfg.DefaultModel = models.ModelResearch.Identifier
	cfg.Streaming = false
	if err := m.Save(cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	m2, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	reloaded, err := m2.Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	if reloaded.DefaultModel != models.ModelResearch.Identifier {
		t.Errorf("DefaultModel = %q, want saved value", reloaded.DefaultModel)
	}
	if reloaded.Streaming {
		t.Error("Streaming = true, want saved false")
	}
}
