package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/diogo/perplexity-webui-go/internal/openai"
	"github.com/diogo/perplexity-webui-go/pkg/models"
	"github.com/diogo/perplexity-webui-go/pkg/perplexity"
)

var (
	flagListen string
	flagAPIKey string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run an OpenAI-compatible API server",
	Long: `serve exposes Perplexity through the OpenAI chat completions API, so any
OpenAI client can use it by pointing its base URL here.

Endpoints:
  POST /v1/chat/completions   (streaming and non-streaming)
  GET  /v1/models
  GET  /health

Example:
  perplexity serve --listen 127.0.0.1:8080 --api-key mysecret`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagListen, "listen", "", "Listen address (default from config)")
	serveCmd.Flags().StringVar(&flagAPIKey, "api-key", "", "Require this Bearer token on /v1 routes")
}

func runServe(cmd *cobra.Command, args []string) error {
	token, err := resolveToken()
	if err != nil {
		render.RenderError(err)
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: serveLogLevel(),
	}))

	clientCfg := clientConfig(cfg)
	clientCfg.Logger = logger

	client, err := perplexity.New(token, clientCfg)
	if err != nil {
		render.RenderError(err)
		return err
	}
	defer client.Close()

	convCfg, err := conversationConfig(cfg)
	if err != nil {
		render.RenderError(err)
		return err
	}
	// Markdown citations make links clickable in chat clients.
	convCfg.CitationMode = models.CitationMarkdown

	listen := cfg.Serve.Listen
	if flagListen != "" {
		listen = flagListen
	}
	apiKey := cfg.Serve.APIKey
	if flagAPIKey != "" {
		apiKey = flagAPIKey
	}

	server := openai.NewServer(client, openai.Options{
		Listen:             listen,
		APIKey:             apiKey,
		RateLimitPerMinute: cfg.Serve.RateLimitPerMinute,
		SessionTTL:         time.Duration(cfg.Serve.SessionTTLMinutes) * time.Minute,
		MaxSessionsPerUser: cfg.Serve.MaxSessionsPerUser,
		DefaultModel:       convCfg.Model,
		Conversation:       *convCfg,
		Logger:             logger,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	render.RenderInfo(fmt.Sprintf("Serving OpenAI-compatible API on %s", listen))
	if apiKey == "" {
		render.RenderWarning("No API key set; the server accepts unauthenticated requests")
	}

	return server.Start(ctx)
}

func serveLogLevel() slog.Level {
	if flagVerbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
