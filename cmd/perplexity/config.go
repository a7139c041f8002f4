package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/diogo/perplexity-webui-go/pkg/models"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and modify configuration settings.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		render.RenderTitle("Configuration")

		fmt.Printf("Config file: %s\n\n", cfgMgr.GetConfigFile())
		fmt.Printf("default_model:       %s\n", cfg.DefaultModel)
		fmt.Printf("citation_mode:       %s\n", cfg.CitationMode)
		fmt.Printf("search_focus:        %s\n", cfg.SearchFocus)
		fmt.Printf("sources:             %v\n", cfg.Sources)
		fmt.Printf("time_range:          %s\n", displayTimeRange(cfg.TimeRange))
		fmt.Printf("language:            %s\n", cfg.Language)
		fmt.Printf("streaming:           %v\n", cfg.Streaming)
		fmt.Printf("save_to_library:     %v\n", cfg.SaveToLibrary)
		fmt.Printf("cookie_file:         %s\n", cfg.CookieFile)
		fmt.Printf("history_file:        %s\n", cfg.HistoryFile)
		fmt.Printf("max_retries:         %d\n", cfg.MaxRetries)
		fmt.Printf("requests_per_second: %v\n", cfg.RequestsPerSecond)
		fmt.Printf("rotate_fingerprint:  %v\n", cfg.RotateFingerprint)
		fmt.Printf("serve.listen:        %s\n", cfg.Serve.Listen)

		if cfg.Token != "" {
			fmt.Printf("token:               (set, %d chars)\n", len(cfg.Token))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		switch key {
		case "default_model":
			if _, ok := models.ModelByIdentifier(value); !ok {
				return fmt.Errorf("invalid model: %s", value)
			}
			cfg.DefaultModel = value

		case "citation_mode":
			if !models.IsValidCitationMode(models.CitationMode(value)) {
				return fmt.Errorf("invalid citation mode: %s", value)
			}
			cfg.CitationMode = value

		case "search_focus":
			if !models.IsValidSearchFocus(models.SearchFocus(value)) {
				return fmt.Errorf("invalid search focus: %s", value)
			}
			cfg.SearchFocus = value

		case "time_range":
			if !models.IsValidTimeRange(models.TimeRange(value)) {
				return fmt.Errorf("invalid time range: %s", value)
			}
			cfg.TimeRange = value

		case "language":
			cfg.Language = value

		case "sources":
			cfg.Sources = strings.Split(value, ",")

		case "streaming":
			cfg.Streaming = parseBoolValue(value)

		case "save_to_library":
			cfg.SaveToLibrary = parseBoolValue(value)

		case "token":
			cfg.Token = value

		case "cookie_file":
			cfg.CookieFile = value

		case "history_file":
			cfg.HistoryFile = value

		case "max_retries":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid max_retries: %s", value)
			}
			cfg.MaxRetries = n

		case "requests_per_second":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil || f < 0 {
				return fmt.Errorf("invalid requests_per_second: %s", value)
			}
			cfg.RequestsPerSecond = f

		case "rotate_fingerprint":
			cfg.RotateFingerprint = parseBoolValue(value)

		case "serve.listen":
			cfg.Serve.Listen = value

		case "serve.api_key":
			cfg.Serve.APIKey = value

		default:
			return fmt.Errorf("unknown config key: %s", key)
		}

		if err := cfgMgr.Save(cfg); err != nil {
			return fmt.Errorf("failed to save config: %v", err)
		}

		render.RenderSuccess(fmt.Sprintf("Set %s = %s", key, value))
		return nil
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset configuration to defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.DefaultModel = models.ModelBest.Identifier
		cfg.CitationMode = string(models.CitationClean)
		cfg.SearchFocus = string(models.FocusWeb)
		cfg.Sources = []string{string(models.SourceWeb)}
		cfg.TimeRange = ""
		cfg.Language = "en-US"
		cfg.Streaming = true
		cfg.SaveToLibrary = false
		cfg.MaxRetries = 3
		cfg.RequestsPerSecond = 0.5
		cfg.RotateFingerprint = true

		if err := cfgMgr.Save(cfg); err != nil {
			return fmt.Errorf("failed to save config: %v", err)
		}

		render.RenderSuccess("Configuration reset to defaults")
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(cfgMgr.GetConfigFile())
		return nil
	},
}

func displayTimeRange(r string) string {
	if r == "" {
		return "(all time)"
	}
	return r
}

func parseBoolValue(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configResetCmd)
	configCmd.AddCommand(configPathCmd)
}
