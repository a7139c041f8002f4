package main

import (
	"testing"
	"time"

	"github.com/diogo/perplexity-webui-go/internal/config"
	"github.com/diogo/perplexity-webui-go/pkg/models"
)

func resetFlags(t *testing.T) {
	t.Helper()
	saved := []struct {
		ptr *string
		val string
	}{
		{&flagModel, flagModel},
		{&flagCitations, flagCitations},
		{&flagSources, flagSources},
		{&flagFocus, flagFocus},
		{&flagTimeRange, flagTimeRange},
		{&flagLanguage, flagLanguage},
	}
	savedSave := flagSave
	t.Cleanup(func() {
		for _, s := range saved {
			*s.ptr = s.val
		}
		flagSave = savedSave
	})
	for _, s := range saved {
		*s.ptr = ""
	}
	flagSave = false
}

func TestConversationConfigDefaults(t *testing.T) {
	resetFlags(t)

	cc, err := conversationConfig(&config.Config{})
	if err != nil {
		t.Fatalf("conversationConfig: %v", err)
	}
	if cc.Model.Identifier != models.ModelBest.Identifier {
		t.Errorf("model = %q, want %q", cc.Model.Identifier, models.ModelBest.Identifier)
	}
	if cc.CitationMode != models.CitationClean {
		t.Errorf("citation mode = %q, want clean", cc.CitationMode)
	}
	if cc.SearchFocus != models.FocusWeb {
		t.Errorf("search focus = %q, want web", cc.SearchFocus)
	}
}

func TestConversationConfigFlagOverridesConfig(t *testing.T) {
	resetFlags(t)
	flagModel = "claude-4.5-sonnet"
	flagCitations = "markdown"

	cc, err := conversationConfig(&config.Config{
		DefaultModel: "gpt52",
		CitationMode: "clean",
	})
	if err != nil {
		t.Fatalf("conversationConfig: %v", err)
	}
	if cc.Model.Identifier != "claude45sonnet" {
		t.Errorf("model = %q, want claude45sonnet", cc.Model.Identifier)
	}
	if cc.CitationMode != models.CitationMarkdown {
		t.Errorf("citation mode = %q, want markdown", cc.CitationMode)
	}
}

func TestConversationConfigFriendlyModelName(t *testing.T) {
	resetFlags(t)
	flagModel = "research"

	cc, err := conversationConfig(&config.Config{})
	if err != nil {
		t.Fatalf("conversationConfig: %v", err)
	}
	if cc.Model.Identifier != models.ModelResearch.Identifier {
		t.Errorf("model = %q, want %q", cc.Model.Identifier, models.ModelResearch.Identifier)
	}
}

func TestConversationConfigRejectsUnknowns(t *testing.T) {
	cases := []struct {
		name string
		set  func()
	}{
		{"model", func() { flagModel = "gpt-2" }},
		{"citations", func() { flagCitations = "footnotes" }},
		{"focus", func() { flagFocus = "images" }},
		{"time range", func() { flagTimeRange = "DECADE" }},
		{"source", func() { flagSources = "web,usenet" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resetFlags(t)
			tc.set()
			if _, err := conversationConfig(&config.Config{}); err == nil {
				t.Errorf("conversationConfig accepted invalid %s", tc.name)
			}
		})
	}
}

func TestConversationConfigSources(t *testing.T) {
	resetFlags(t)
	flagSources = "web, scholar"

	cc, err := conversationConfig(&config.Config{})
	if err != nil {
		t.Fatalf("conversationConfig: %v", err)
	}
	want := []models.SourceFocus{models.SourceWeb, models.SourceAcademic}
	if len(cc.SourceFocus) != len(want) {
		t.Fatalf("sources = %v, want %v", cc.SourceFocus, want)
	}
	for i := range want {
		if cc.SourceFocus[i] != want[i] {
			t.Errorf("sources[%d] = %q, want %q", i, cc.SourceFocus[i], want[i])
		}
	}
}

func TestConversationConfigSaveToLibrary(t *testing.T) {
	resetFlags(t)

	cc, err := conversationConfig(&config.Config{SaveToLibrary: true})
	if err != nil {
		t.Fatalf("conversationConfig: %v", err)
	}
	if !cc.SaveToLibrary {
		t.Error("SaveToLibrary not carried from config")
	}

	flagSave = true
	cc, err = conversationConfig(&config.Config{})
	if err != nil {
		t.Fatalf("conversationConfig: %v", err)
	}
	if !cc.SaveToLibrary {
		t.Error("SaveToLibrary not carried from flag")
	}
}

func TestClientConfig(t *testing.T) {
	cc := clientConfig(&config.Config{
		MaxRetries:        5,
		RequestsPerSecond: 2.0,
		RotateFingerprint: true,
		Impersonate:       "firefox",
		TimeoutSeconds:    60,
	})
	if cc.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cc.MaxRetries)
	}
	if cc.RequestsPerSecond != 2.0 {
		t.Errorf("RequestsPerSecond = %v, want 2.0", cc.RequestsPerSecond)
	}
	if !cc.RotateFingerprint {
		t.Error("RotateFingerprint not carried")
	}
	if cc.Impersonate != "firefox" {
		t.Errorf("Impersonate = %q, want firefox", cc.Impersonate)
	}
	if cc.Timeout != 60*time.Second {
		t.Errorf("Timeout = %v, want 60s", cc.Timeout)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	if got := truncate("abcdefghij", 5); got != "abcde..." {
		t.Errorf("truncate = %q, want abcde...", got)
	}
}
