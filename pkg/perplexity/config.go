package perplexity

import (
	"log/slog"
	"time"

	"github.com/diogo/perplexity-webui-go/pkg/models"
)

// ClientConfig holds immutable transport settings, fixed at construction.
type ClientConfig struct {
	// BaseURL overrides the upstream origin. Empty selects perplexity.ai.
	BaseURL string
	// Timeout applies to each HTTP exchange, including the full SSE stream.
	Timeout time.Duration
	// Impersonate names the initial browser fingerprint (see
	// resilience.FingerprintNames). Empty selects the default profile.
	Impersonate string
	// MaxRetries is the number of additional attempts on transient failures.
	MaxRetries uint64
	// RetryBaseDelay is the wait before the first retry.
	RetryBaseDelay time.Duration
	// RetryMaxDelay caps the exponential backoff.
	RetryMaxDelay time.Duration
	// RetryJitter is the randomization factor (0-1) applied to retry waits.
	RetryJitter float64
	// RequestsPerSecond self-paces outbound requests. Zero disables pacing.
	RequestsPerSecond float64
	// RotateFingerprint re-impersonates a random browser before each retry.
	RotateFingerprint bool
	// Logger receives transport diagnostics. Nil disables logging.
	Logger *slog.Logger
}

// DefaultClientConfig returns the transport defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:           time.Hour,
		MaxRetries:        3,
		RetryBaseDelay:    1 * time.Second,
		RetryMaxDelay:     60 * time.Second,
		RetryJitter:       0.5,
		RequestsPerSecond: 0.5,
		RotateFingerprint: true,
	}
}

// Coordinates is an optional geolocation attached to every ask.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// ConversationConfig holds the default behavior of a conversation. Individual
// Ask calls may override the model and citation mode.
type ConversationConfig struct {
	Model         models.Model
	CitationMode  models.CitationMode
	SaveToLibrary bool
	SearchFocus   models.SearchFocus
	SourceFocus   []models.SourceFocus
	TimeRange     models.TimeRange
	Language      string
	Timezone      string
	Coordinates   *Coordinates
}

// DefaultConversationConfig returns conversation defaults: the automatic
// model, clean citations, web focus, no library save.
func DefaultConversationConfig() ConversationConfig {
	return ConversationConfig{
		Model:        models.ModelBest,
		CitationMode: models.CitationClean,
		SearchFocus:  models.FocusWeb,
		SourceFocus:  []models.SourceFocus{models.SourceWeb},
		TimeRange:    models.RangeAll,
		Language:     "en-US",
	}
}

// normalize fills zero values with defaults.
func (c *ConversationConfig) normalize() {
	def := DefaultConversationConfig()
	if c.Model.Identifier == "" {
		c.Model = def.Model
	}
	if c.CitationMode == "" {
		c.CitationMode = def.CitationMode
	}
	if c.SearchFocus == "" {
		c.SearchFocus = def.SearchFocus
	}
	if len(c.SourceFocus) == 0 {
		c.SourceFocus = def.SourceFocus
	}
	if c.Language == "" {
		c.Language = def.Language
	}
}
