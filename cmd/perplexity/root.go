package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/diogo/perplexity-webui-go/internal/auth"
	"github.com/diogo/perplexity-webui-go/internal/config"
	"github.com/diogo/perplexity-webui-go/internal/history"
	"github.com/diogo/perplexity-webui-go/internal/openai"
	"github.com/diogo/perplexity-webui-go/internal/ui"
	"github.com/diogo/perplexity-webui-go/pkg/models"
	"github.com/diogo/perplexity-webui-go/pkg/perplexity"
)

var (
	// Flags
	flagModel      string
	flagCitations  string
	flagSources    string
	flagFocus      string
	flagTimeRange  string
	flagLanguage   string
	flagFiles      []string
	flagStream     bool
	flagNoStream   bool
	flagSave       bool
	flagOutputFile string
	flagToken      string
	flagCookieFile string
	flagVerbose    bool

	// Global config
	cfg    *config.Config
	cfgMgr *config.Manager
	render *ui.Renderer
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "perplexity [query]",
	Short: "Ask Perplexity AI from your terminal",
	Long: `perplexity asks questions through the Perplexity AI web interface.

It authenticates with your browser session token, survives bot challenges by
rotating browser fingerprints, and renders answers with inline citations.

Examples:
  perplexity "What is the capital of France?"
  perplexity "Explain quantum computing" --model claude-4.5-sonnet
  perplexity "Summarize this paper" --file paper.pdf --citations markdown
  perplexity serve --listen 127.0.0.1:8080`,
	Args: cobra.ArbitraryArgs,
	RunE: runQuery,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Flags().StringVarP(&flagModel, "model", "m", "", "AI model (best, research, claude-4.5-sonnet, gpt-5.2, ...)")
	rootCmd.Flags().StringVar(&flagCitations, "citations", "", "Citation style (default, markdown, clean)")
	rootCmd.Flags().StringVarP(&flagSources, "sources", "s", "", "Source corpora (web,scholar,social,edgar)")
	rootCmd.Flags().StringVar(&flagFocus, "focus", "", "Search focus (internet, writing)")
	rootCmd.Flags().StringVar(&flagTimeRange, "time-range", "", "Source recency (DAY, WEEK, MONTH, YEAR)")
	rootCmd.Flags().StringVarP(&flagLanguage, "language", "l", "", "Response language (e.g. en-US, pt-BR)")
	rootCmd.Flags().StringArrayVarP(&flagFiles, "file", "f", nil, "Attach a file (repeatable)")
	rootCmd.Flags().BoolVar(&flagStream, "stream", false, "Enable streaming output")
	rootCmd.Flags().BoolVar(&flagNoStream, "no-stream", false, "Disable streaming output")
	rootCmd.Flags().BoolVar(&flagSave, "save", false, "Save the thread to your Perplexity library")
	rootCmd.Flags().StringVarP(&flagOutputFile, "output", "o", "", "Save answer to file")
	rootCmd.Flags().StringVarP(&flagToken, "token", "t", "", "Session token (overrides config and cookie file)")
	rootCmd.Flags().StringVarP(&flagCookieFile, "cookies", "c", "", "Path to a browser cookie export")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(cookiesCmd)
	rootCmd.AddCommand(importCookiesCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	var err error

	cfgMgr, err = config.NewManager()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
		os.Exit(1)
	}

	cfg, err = cfgMgr.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	render, err = ui.NewRenderer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing renderer: %v\n", err)
		os.Exit(1)
	}
}

// resolveToken finds the session token: flag, config/environment, then the
// cookie export file.
func resolveToken() (string, error) {
	if flagToken != "" {
		return flagToken, nil
	}
	if cfg.Token != "" {
		return cfg.Token, nil
	}

	cookieFile := cfg.CookieFile
	if flagCookieFile != "" {
		cookieFile = flagCookieFile
	}
	if _, err := os.Stat(cookieFile); os.IsNotExist(err) {
		return "", fmt.Errorf("no session token configured and cookie file not found: %s\n"+
			"Set PERPLEXITY_TOKEN or run 'perplexity import-cookies <file>'", cookieFile)
	}
	return auth.SessionTokenFromFile(cookieFile)
}

// newLogger returns a text logger at debug level when verbose, or nil so the
// client stays silent.
func newLogger() *slog.Logger {
	if !flagVerbose {
		return nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// clientConfig maps file configuration to transport settings.
func clientConfig(cfg *config.Config) *perplexity.ClientConfig {
	cc := perplexity.DefaultClientConfig()
	if cfg.MaxRetries >= 0 {
		cc.MaxRetries = uint64(cfg.MaxRetries)
	}
	cc.RequestsPerSecond = cfg.RequestsPerSecond
	cc.RotateFingerprint = cfg.RotateFingerprint
	cc.Impersonate = cfg.Impersonate
	if cfg.TimeoutSeconds > 0 {
		cc.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cc.Logger = newLogger()
	return &cc
}

// conversationConfig merges file configuration and flags.
func conversationConfig(cfg *config.Config) (*perplexity.ConversationConfig, error) {
	cc := perplexity.DefaultConversationConfig()

	modelName := cfg.DefaultModel
	if flagModel != "" {
		modelName = flagModel
	}
	if modelName != "" {
		// Accepts both friendly names and raw identifiers.
		registry := openai.NewRegistry(cc.Model)
		if !registry.Known(modelName) {
			return nil, fmt.Errorf("unknown model: %s", modelName)
		}
		cc.Model = registry.Resolve(modelName)
	}

	citations := cfg.CitationMode
	if flagCitations != "" {
		citations = flagCitations
	}
	if citations != "" {
		mode := models.CitationMode(citations)
		if !models.IsValidCitationMode(mode) {
			return nil, fmt.Errorf("unknown citation style: %s", citations)
		}
		cc.CitationMode = mode
	}

	focus := cfg.SearchFocus
	if flagFocus != "" {
		focus = flagFocus
	}
	if focus != "" {
		f := models.SearchFocus(focus)
		if !models.IsValidSearchFocus(f) {
			return nil, fmt.Errorf("unknown search focus: %s", focus)
		}
		cc.SearchFocus = f
	}

	timeRange := cfg.TimeRange
	if flagTimeRange != "" {
		timeRange = flagTimeRange
	}
	tr := models.TimeRange(timeRange)
	if !models.IsValidTimeRange(tr) {
		return nil, fmt.Errorf("unknown time range: %s", timeRange)
	}
	cc.TimeRange = tr

	language := cfg.Language
	if flagLanguage != "" {
		language = flagLanguage
	}
	if language != "" {
		cc.Language = language
	}

	rawSources := cfg.Sources
	if flagSources != "" {
		rawSources = strings.Split(flagSources, ",")
	}
	var sources []models.SourceFocus
	for _, s := range rawSources {
		source := models.SourceFocus(strings.TrimSpace(s))
		if !models.IsValidSource(source) {
			return nil, fmt.Errorf("unknown source: %s", s)
		}
		sources = append(sources, source)
	}
	if len(sources) > 0 {
		cc.SourceFocus = sources
	}

	cc.SaveToLibrary = cfg.SaveToLibrary || flagSave
	return &cc, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}
	query := strings.Join(args, " ")

	token, err := resolveToken()
	if err != nil {
		render.RenderError(err)
		return err
	}

	convCfg, err := conversationConfig(cfg)
	if err != nil {
		render.RenderError(err)
		return err
	}

	client, err := perplexity.New(token, clientConfig(cfg))
	if err != nil {
		render.RenderError(err)
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	streaming := cfg.Streaming
	if flagStream {
		streaming = true
	}
	if flagNoStream {
		streaming = false
	}

	if flagVerbose {
		render.RenderInfo(fmt.Sprintf("Model: %s, Citations: %s, Streaming: %v",
			convCfg.Model.Identifier, convCfg.CitationMode, streaming))
		render.NewLine()
	}

	conv := client.CreateConversation(convCfg)
	opts := &perplexity.AskOptions{Files: flagFiles, Stream: streaming}

	if streaming {
		if err := runStreaming(ctx, conv, query, opts); err != nil {
			return err
		}
	} else {
		if err := runBlocking(ctx, conv, query, opts); err != nil {
			return err
		}
	}

	if flagOutputFile != "" {
		if err := os.WriteFile(flagOutputFile, []byte(conv.Answer()), 0644); err != nil {
			render.RenderError(fmt.Errorf("failed to save output: %v", err))
		} else {
			render.RenderSuccess(fmt.Sprintf("Saved to %s", flagOutputFile))
		}
	}

	appendHistory(query, convCfg.Model.Identifier, conv)
	return nil
}

// runStreaming prints answer deltas as they arrive, then the source list.
func runStreaming(ctx context.Context, conv *perplexity.Conversation, query string, opts *perplexity.AskOptions) error {
	if _, err := conv.Ask(ctx, query, opts); err != nil {
		render.RenderError(err)
		return err
	}

	printed := ""
	for event := range conv.Events() {
		if event.Err != nil {
			if ctx.Err() != nil {
				render.NewLine()
				render.RenderWarning("Cancelled")
				return nil
			}
			render.NewLine()
			render.RenderError(event.Err)
			return event.Err
		}
		printed = render.RenderStreamDelta(printed, event.Response.Answer)
	}
	render.NewLine()

	render.RenderSearchResults(conv.SearchResults())
	return nil
}

// runBlocking shows a spinner until the final frame, then the full answer.
func runBlocking(ctx context.Context, conv *perplexity.Conversation, query string, opts *perplexity.AskOptions) error {
	done := make(chan struct{})
	go func() {
		frame := 0
		for {
			select {
			case <-done:
				render.ClearLine()
				return
			case <-time.After(100 * time.Millisecond):
				render.RenderSpinner(frame)
				frame++
			}
		}
	}()

	_, err := conv.Ask(ctx, query, opts)
	close(done)

	if err != nil {
		if ctx.Err() != nil {
			render.RenderWarning("Cancelled")
			return nil
		}
		render.RenderError(err)
		return err
	}

	return render.RenderResponse(conv.Snapshot())
}

func appendHistory(query, model string, conv *perplexity.Conversation) {
	if cfg.HistoryFile == "" {
		return
	}
	hw, err := history.NewWriter(cfg.HistoryFile)
	if err != nil {
		return
	}
	hw.Append(history.Entry{
		Query:            query,
		Answer:           truncate(conv.Answer(), 500),
		Model:            model,
		Title:            conv.Title(),
		ConversationUUID: conv.UUID(),
	})
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
