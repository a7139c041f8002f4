package openai

import (
	"regexp"
	"sort"
	"strings"

	"github.com/diogo/perplexity-webui-go/pkg/models"
)

// aliasChars strips everything that is not a letter or digit, so
// "claude-4.5-sonnet", "claude_4_5_sonnet", and "claude45sonnet" all resolve
// to the same model.
var aliasChars = regexp.MustCompile(`[^a-z0-9]+`)

func normalizeAlias(name string) string {
	return aliasChars.ReplaceAllString(strings.ToLower(name), "")
}

// friendlyNames maps the OpenAI-style name exposed on /v1/models to a
// catalog model. Internal identifiers stay resolvable as aliases.
var friendlyNames = map[string]models.Model{
	"best":                        models.ModelBest,
	"research":                    models.ModelResearch,
	"labs":                        models.ModelLabs,
	"sonar":                       models.ModelSonar,
	"gpt-5.2":                     models.ModelGPT52,
	"gpt-5.2-thinking":            models.ModelGPT52Thinking,
	"claude-4.5-opus":             models.ModelClaudeOpus,
	"claude-4.5-opus-thinking":    models.ModelClaudeOpusThinking,
	"claude-4.5-sonnet":           models.ModelClaudeSonnet,
	"claude-4.5-sonnet-thinking":  models.ModelClaudeSonnetThinking,
	"gemini-3.0-pro":              models.ModelGeminiPro,
	"gemini-3.0-flash":            models.ModelGeminiFlash,
	"gemini-3.0-flash-thinking":   models.ModelGeminiFlashThinking,
	"grok-4.1":                    models.ModelGrok,
	"grok-4.1-thinking":           models.ModelGrokThinking,
	"kimi-k2-thinking":            models.ModelKimiThinking,
}

// Registry resolves model names from chat requests to catalog models.
type Registry struct {
	aliases map[string]models.Model
	def     models.Model
}

// NewRegistry builds the alias table: friendly names plus every raw catalog
// identifier, all in normalized form.
func NewRegistry(def models.Model) *Registry {
	aliases := make(map[string]models.Model, 2*len(friendlyNames))
	for name, m := range friendlyNames {
		aliases[normalizeAlias(name)] = m
	}
	for _, m := range models.AvailableModels {
		aliases[normalizeAlias(m.Identifier)] = m
	}
	return &Registry{aliases: aliases, def: def}
}

// Resolve maps a requested model name to a catalog model. Unknown or empty
// names fall back to the default so permissive clients keep working.
func (r *Registry) Resolve(name string) models.Model {
	if m, ok := r.aliases[normalizeAlias(name)]; ok {
		return m
	}
	return r.def
}

// Known reports whether the name resolves to a catalog model without the
// default fallback.
func (r *Registry) Known(name string) bool {
	_, ok := r.aliases[normalizeAlias(name)]
	return ok
}

// Names returns the friendly model names, sorted, for /v1/models.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(friendlyNames))
	for name := range friendlyNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
