package openai

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/diogo/perplexity-webui-go/pkg/models"
	"github.com/diogo/perplexity-webui-go/pkg/perplexity"
)

// Options configures the OpenAI-compatible server.
type Options struct {
	Listen string
	// APIKey guards all /v1 routes when non-empty.
	APIKey             string
	RateLimitPerMinute int
	SessionTTL         time.Duration
	MaxSessionsPerUser int
	DefaultModel       models.Model
	// Conversation is the template config applied to every new thread.
	Conversation perplexity.ConversationConfig
	Logger       *slog.Logger
}

// Server adapts the conversation API to OpenAI chat completions.
type Server struct {
	client   *perplexity.Client
	opts     Options
	registry *Registry
	store    *SessionStore
	logger   *slog.Logger
	started  time.Time
}

// NewServer wires the adapter around an authenticated client.
func NewServer(client *perplexity.Client, opts Options) *Server {
	if opts.Listen == "" {
		opts.Listen = "127.0.0.1:8080"
	}
	if opts.RateLimitPerMinute <= 0 {
		opts.RateLimitPerMinute = 60
	}
	if opts.DefaultModel.Identifier == "" {
		opts.DefaultModel = models.ModelBest
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Server{
		client:   client,
		opts:     opts,
		registry: NewRegistry(opts.DefaultModel),
		store:    NewSessionStore(opts.SessionTTL, opts.MaxSessionsPerUser),
		logger:   logger,
		started:  time.Now(),
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	r.Use(httprate.LimitByIP(s.opts.RateLimitPerMinute, time.Minute))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Get("/models", s.handleModels)
		r.Post("/chat/completions", s.handleChatCompletions)
	})

	return r
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Listen,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("openai server listening", "addr", s.opts.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.store.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	s.store.Close()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requireAPIKey enforces Bearer auth when an API key is configured.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.APIKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid_request_error", "invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
