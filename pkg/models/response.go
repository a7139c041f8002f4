package models

import "encoding/json"

// Frame is one decoded SSE data frame. The Text field, when present, holds a
// JSON-encoded string that decodes into either a step list or a single answer
// payload.
type Frame struct {
	BackendUUID    string          `json:"backend_uuid"`
	ReadWriteToken string          `json:"read_write_token"`
	ThreadTitle    string          `json:"thread_title"`
	Text           *string         `json:"text"`
	Blocks         json.RawMessage `json:"blocks"`
	Final          bool            `json:"final"`
}

// Step is one entry of a step-list text payload.
type Step struct {
	StepType string          `json:"step_type"`
	Content  json.RawMessage `json:"content"`
}

// Step types the reducer acts on.
const (
	StepFinal               = "FINAL"
	StepClarifyingQuestions = "RESEARCH_CLARIFYING_QUESTIONS"
)

// FinalStepContent is the content of a FINAL step. Answer may itself be a
// JSON-encoded object string requiring one more decode.
type FinalStepContent struct {
	Answer string `json:"answer"`
}

// WebResult is a web search result as delivered by the API.
type WebResult struct {
	Name    string `json:"name"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// AnswerPayload is the decoded answer object fed to the state reducer.
type AnswerPayload struct {
	Answer     *string     `json:"answer"`
	WebResults []WebResult `json:"web_results"`
	Chunks     []string    `json:"chunks"`
}

// SearchResultItem is a normalized search result exposed to callers.
type SearchResultItem struct {
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Response is an immutable snapshot of conversation state, produced once per
// processed frame when streaming and once at completion otherwise.
type Response struct {
	Title            string             `json:"title,omitempty"`
	Answer           string             `json:"answer,omitempty"`
	Chunks           []string           `json:"chunks,omitempty"`
	LastChunk        string             `json:"last_chunk,omitempty"`
	SearchResults    []SearchResultItem `json:"search_results,omitempty"`
	ConversationUUID string             `json:"conversation_uuid,omitempty"`
	Raw              json.RawMessage    `json:"raw,omitempty"`
}

// StreamEvent is one element of a streaming ask. Err is set at most once, on
// the last event before the channel closes.
type StreamEvent struct {
	Response Response
	Err      error
}
