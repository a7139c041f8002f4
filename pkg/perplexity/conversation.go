package perplexity

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/diogo/perplexity-webui-go/pkg/models"
)

// Conversation manages one Perplexity thread: the first ask creates it
// upstream, every later ask continues it as a follow-up. Not safe for
// concurrent asks; one call at a time per conversation.
type Conversation struct {
	http   *HTTPClient
	cfg    ConversationConfig
	logger *slog.Logger

	// citationMode is the effective mode for the current call.
	citationMode models.CitationMode

	// backendUUID is set at most once, by the first response, and never
	// cleared. Its presence marks every later ask as a follow-up.
	backendUUID    string
	readWriteToken string

	title         string
	answer        string
	chunks        []string
	searchResults []models.SearchResultItem
	raw           json.RawMessage

	stream chan models.StreamEvent
}

// AskOptions overrides conversation defaults for a single call.
type AskOptions struct {
	// Model overrides the conversation's model when non-nil.
	Model *models.Model
	// Files to attach; validated and uploaded before the ask.
	Files []string
	// CitationMode overrides the conversation's mode when non-empty.
	CitationMode models.CitationMode
	// Stream exposes incremental snapshots on Events instead of draining
	// internally.
	Stream bool
}

// Answer returns the last response text.
func (c *Conversation) Answer() string { return c.answer }

// Title returns the thread title.
func (c *Conversation) Title() string { return c.title }

// Chunks returns the incremental answer chunks of the last response.
func (c *Conversation) Chunks() []string { return c.chunks }

// LastChunk returns the most recent answer chunk, if any.
func (c *Conversation) LastChunk() string {
	if len(c.chunks) == 0 {
		return ""
	}
	return c.chunks[len(c.chunks)-1]
}

// SearchResults returns the search results of the last response.
func (c *Conversation) SearchResults() []models.SearchResultItem { return c.searchResults }

// UUID returns the backend conversation identifier, empty before the first
// response arrives.
func (c *Conversation) UUID() string { return c.backendUUID }

// Raw returns the raw last-answer payload for introspection.
func (c *Conversation) Raw() json.RawMessage { return c.raw }

// Events returns the stream of the current streaming ask. The channel is
// single use: it closes when the ask completes and a new Ask is required to
// continue the conversation. Nil when the last ask was not streaming.
func (c *Conversation) Events() <-chan models.StreamEvent { return c.stream }

// Snapshot builds an immutable view of the current state.
func (c *Conversation) Snapshot() models.Response {
	return models.Response{
		Title:            c.title,
		Answer:           c.answer,
		Chunks:           append([]string(nil), c.chunks...),
		LastChunk:        c.LastChunk(),
		SearchResults:    append([]models.SearchResultItem(nil), c.searchResults...),
		ConversationUUID: c.backendUUID,
		Raw:              c.raw,
	}
}

// Ask sends a query. In non-streaming mode it blocks until the final frame
// and returns the conversation for chaining; in streaming mode it returns
// immediately and the caller consumes Events.
func (c *Conversation) Ask(ctx context.Context, query string, opts *AskOptions) (*Conversation, error) {
	if opts == nil {
		opts = &AskOptions{}
	}

	model := c.cfg.Model
	if opts.Model != nil {
		model = *opts.Model
	}

	c.citationMode = c.cfg.CitationMode
	if opts.CitationMode != "" {
		c.citationMode = opts.CitationMode
	}

	c.logger.Info("ask",
		"query_length", len(query),
		"model", model.Identifier,
		"files", len(opts.Files),
		"citation_mode", c.citationMode,
		"stream", opts.Stream,
		"followup", c.backendUUID != "")

	c.resetCallState()

	var fileURLs []string
	if len(opts.Files) > 0 {
		infos, err := validateFiles(opts.Files)
		if err != nil {
			return nil, err
		}
		for _, info := range infos {
			u, err := c.uploadFile(ctx, info)
			if err != nil {
				return nil, err
			}
			fileURLs = append(fileURLs, u)
		}
	}

	payload := c.buildPayload(query, model, fileURLs)

	c.http.InitSearch(ctx, query)

	if opts.Stream {
		c.stream = make(chan models.StreamEvent, 16)
		go c.streamAsk(ctx, payload, c.stream)
		return c, nil
	}

	if err := c.drain(ctx, payload); err != nil {
		return nil, err
	}
	return c, nil
}

// resetCallState clears the per-call fields. Only the continuation identity
// survives across asks.
func (c *Conversation) resetCallState() {
	c.title = ""
	c.answer = ""
	c.chunks = nil
	c.searchResults = nil
	c.raw = nil
	c.stream = nil
}

// buildPayload assembles the request body, carrying continuation fields on
// follow-ups.
func (c *Conversation) buildPayload(query string, model models.Model, fileURLs []string) *models.AskPayload {
	cfg := c.cfg

	sources := make([]string, len(cfg.SourceFocus))
	for i, s := range cfg.SourceFocus {
		sources[i] = string(s)
	}

	var coords *models.ClientCoordinates
	if cfg.Coordinates != nil {
		coords = &models.ClientCoordinates{
			LocationLat: cfg.Coordinates.Latitude,
			LocationLng: cfg.Coordinates.Longitude,
		}
	}

	if fileURLs == nil {
		fileURLs = []string{}
	}

	params := models.AskParams{
		Attachments:         fileURLs,
		Language:            cfg.Language,
		Timezone:            cfg.Timezone,
		ClientCoordinates:   coords,
		Sources:             sources,
		ModelPreference:     model.Identifier,
		Mode:                model.Mode,
		SearchFocus:         string(cfg.SearchFocus),
		SearchRecencyFilter: string(cfg.TimeRange),
		IsIncognito:         !cfg.SaveToLibrary,
		UseSchematizedAPI:   false,
		LocalSearchEnabled:  cfg.Coordinates != nil,
		PromptSource:        models.PromptSource,
		SendBackText:        true,
		Version:             models.APIVersion,
	}

	if c.backendUUID != "" {
		params.LastBackendUUID = c.backendUUID
		params.QuerySource = "followup"
		params.ReadWriteToken = c.readWriteToken
	}

	return &models.AskPayload{Params: params, QueryStr: query}
}

// drain consumes the whole stream internally, returning after the final
// frame.
func (c *Conversation) drain(ctx context.Context, payload *models.AskPayload) error {
	return c.http.StreamLines(ctx, endpointAsk, payload, func(line []byte) (bool, error) {
		frame, ok := parseLine(line)
		if !ok {
			return false, nil
		}
		if err := c.processFrame(frame); err != nil {
			return false, err
		}
		return frame.Final, nil
	})
}

// streamAsk feeds one snapshot per processed frame into ch, closing it when
// the stream ends. A stream-level failure is delivered as the last event.
func (c *Conversation) streamAsk(ctx context.Context, payload *models.AskPayload, ch chan models.StreamEvent) {
	defer close(ch)

	err := c.http.StreamLines(ctx, endpointAsk, payload, func(line []byte) (bool, error) {
		frame, ok := parseLine(line)
		if !ok {
			return false, nil
		}
		if err := c.processFrame(frame); err != nil {
			return false, err
		}

		select {
		case ch <- models.StreamEvent{Response: c.Snapshot()}:
		case <-ctx.Done():
			return true, nil
		}
		return frame.Final, nil
	})
	if err != nil {
		select {
		case ch <- models.StreamEvent{Err: err}:
		case <-ctx.Done():
		}
	}
}
