// Package models defines data structures for the Perplexity web API.
package models

// CitationMode controls how citation markers like [1] are formatted in
// answer text.
type CitationMode string

const (
	// CitationDefault keeps markers as delivered by the API.
	CitationDefault CitationMode = "default"
	// CitationMarkdown rewrites in-range markers as [n](url) links.
	CitationMarkdown CitationMode = "markdown"
	// CitationClean strips all markers.
	CitationClean CitationMode = "clean"
)

// SearchFocus selects the kind of search performed.
type SearchFocus string

const (
	FocusWeb     SearchFocus = "internet"
	FocusWriting SearchFocus = "writing"
)

// SourceFocus selects which source corpus to prioritize. Multiple values may
// be combined in one conversation.
type SourceFocus string

const (
	SourceWeb      SourceFocus = "web"
	SourceAcademic SourceFocus = "scholar"
	SourceSocial   SourceFocus = "social"
	SourceFinance  SourceFocus = "edgar"
)

// TimeRange restricts how recent sources may be.
type TimeRange string

const (
	RangeAll       TimeRange = ""
	RangeToday     TimeRange = "DAY"
	RangeLastWeek  TimeRange = "WEEK"
	RangeLastMonth TimeRange = "MONTH"
	RangeLastYear  TimeRange = "YEAR"
)

// Model is an AI model selection: the API identifier plus its execution mode.
// All current models run in "copilot" mode, which enables web search.
type Model struct {
	Identifier string
	Mode       string
}

// Catalog of available models.
var (
	ModelBest                 = Model{Identifier: "pplx_pro_upgraded", Mode: "copilot"}
	ModelResearch             = Model{Identifier: "pplx_alpha", Mode: "copilot"}
	ModelLabs                 = Model{Identifier: "pplx_beta", Mode: "copilot"}
	ModelSonar                = Model{Identifier: "experimental", Mode: "copilot"}
	ModelGPT52                = Model{Identifier: "gpt52", Mode: "copilot"}
	ModelGPT52Thinking        = Model{Identifier: "gpt52_thinking", Mode: "copilot"}
	ModelClaudeOpus           = Model{Identifier: "claude45opus", Mode: "copilot"}
	ModelClaudeOpusThinking   = Model{Identifier: "claude45opusthinking", Mode: "copilot"}
	ModelClaudeSonnet         = Model{Identifier: "claude45sonnet", Mode: "copilot"}
	ModelClaudeSonnetThinking = Model{Identifier: "claude45sonnetthinking", Mode: "copilot"}
	ModelGeminiPro            = Model{Identifier: "gemini30pro", Mode: "copilot"}
	ModelGeminiFlash          = Model{Identifier: "gemini30flash", Mode: "copilot"}
	ModelGeminiFlashThinking  = Model{Identifier: "gemini30flash_high", Mode: "copilot"}
	ModelGrok                 = Model{Identifier: "grok41nonreasoning", Mode: "copilot"}
	ModelGrokThinking         = Model{Identifier: "grok41reasoning", Mode: "copilot"}
	ModelKimiThinking         = Model{Identifier: "kimik2thinking", Mode: "copilot"}
)

// AvailableModels contains every model in the catalog.
var AvailableModels = []Model{
	ModelBest,
	ModelResearch,
	ModelLabs,
	ModelSonar,
	ModelGPT52,
	ModelGPT52Thinking,
	ModelClaudeOpus,
	ModelClaudeOpusThinking,
	ModelClaudeSonnet,
	ModelClaudeSonnetThinking,
	ModelGeminiPro,
	ModelGeminiFlash,
	ModelGeminiFlashThinking,
	ModelGrok,
	ModelGrokThinking,
	ModelKimiThinking,
}

// AvailableSources contains all valid source focus values.
var AvailableSources = []SourceFocus{SourceWeb, SourceAcademic, SourceSocial, SourceFinance}

// ModelByIdentifier looks up a catalog model by its API identifier.
func ModelByIdentifier(identifier string) (Model, bool) {
	for _, m := range AvailableModels {
		if m.Identifier == identifier {
			return m, true
		}
	}
	return Model{}, false
}

// IsValidCitationMode checks if a citation mode is recognized.
func IsValidCitationMode(m CitationMode) bool {
	switch m {
	case CitationDefault, CitationMarkdown, CitationClean:
		return true
	}
	return false
}

// IsValidSource checks if a source focus is recognized.
func IsValidSource(s SourceFocus) bool {
	for _, valid := range AvailableSources {
		if s == valid {
			return true
		}
	}
	return false
}

// IsValidSearchFocus checks if a search focus is recognized.
func IsValidSearchFocus(f SearchFocus) bool {
	return f == FocusWeb || f == FocusWriting
}

// IsValidTimeRange checks if a time range is recognized.
func IsValidTimeRange(r TimeRange) bool {
	switch r {
	case RangeAll, RangeToday, RangeLastWeek, RangeLastMonth, RangeLastYear:
		return true
	}
	return false
}
