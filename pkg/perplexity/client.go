// Package perplexity scrapes the Perplexity AI web interface: a
// fingerprint-impersonating HTTP transport with retry and rate limiting, an
// SSE answer parser, and a conversation API with follow-up support.
package perplexity

import (
	"log/slog"
)

// Client is the entry point. One client owns one transport; conversations
// created from it share the session, rate limiter, and retry policy.
type Client struct {
	http   *HTTPClient
	logger *slog.Logger
}

// New creates a client authenticated by the session cookie token. The token
// must be non-empty; cfg nil means defaults.
func New(sessionToken string, cfg *ClientConfig) (*Client, error) {
	config := DefaultClientConfig()
	if cfg != nil {
		config = *cfg
	}

	httpClient, err := NewHTTPClient(sessionToken, config)
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{http: httpClient, logger: logger}, nil
}

// CreateConversation starts a fresh conversation. cfg nil means defaults.
func (c *Client) CreateConversation(cfg *ConversationConfig) *Conversation {
	config := DefaultConversationConfig()
	if cfg != nil {
		config = *cfg
	}
	config.normalize()

	c.logger.Debug("conversation created",
		"model", config.Model.Identifier,
		"citation_mode", config.CitationMode,
		"search_focus", config.SearchFocus)

	return &Conversation{
		http:   c.http,
		cfg:    config,
		logger: c.logger,
	}
}

// Close releases the network session.
func (c *Client) Close() {
	c.http.Close()
}
