package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/diogo/perplexity-webui-go/internal/auth"
)

var cookiesCmd = &cobra.Command{
	Use:   "cookies",
	Short: "Manage authentication cookies",
	Long:  `Manage the browser cookie export used for authentication.`,
}

// importCookiesCmd is a root-level command for importing cookies.
var importCookiesCmd = &cobra.Command{
	Use:   "import-cookies <file>",
	Short: "Import cookies from a browser export",
	Long: `Import cookies from a JSON or Netscape format file.

Supported formats:
  - JSON: browser extension export (cookies.json)
  - Netscape: curl/wget format (cookies.txt)

Example:
  perplexity import-cookies ~/Downloads/cookies.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		importFile := args[0]

		if _, err := os.Stat(importFile); os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", importFile)
		}

		cookies, err := auth.LoadCookies(importFile)
		if err != nil {
			return fmt.Errorf("failed to parse cookies: %v", err)
		}
		if len(cookies) == 0 {
			return fmt.Errorf("no Perplexity cookies found in file")
		}

		if err := auth.SaveCookiesToFile(cookies, cfg.CookieFile); err != nil {
			return fmt.Errorf("failed to save cookies: %v", err)
		}

		render.RenderSuccess(fmt.Sprintf("Imported %d cookies to %s", len(cookies), cfg.CookieFile))

		if _, err := auth.SessionToken(cookies); err != nil {
			render.RenderWarning("Session token not found among the cookies; log in to perplexity.ai and re-export")
		}
		return nil
	},
}

var cookiesStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check authentication status",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Token != "" || flagToken != "" {
			render.RenderSuccess("Authenticated (explicit token)")
			return nil
		}

		cookieFile := cfg.CookieFile
		if flagCookieFile != "" {
			cookieFile = flagCookieFile
		}

		if _, err := os.Stat(cookieFile); os.IsNotExist(err) {
			render.RenderWarning("Not authenticated")
			render.RenderInfo(fmt.Sprintf("Cookie file not found: %s", cookieFile))
			render.RenderInfo("Run 'perplexity import-cookies <file>' or set PERPLEXITY_TOKEN")
			return nil
		}

		cookies, err := auth.LoadCookies(cookieFile)
		if err != nil {
			render.RenderError(fmt.Errorf("failed to load cookies: %v", err))
			return err
		}
		if len(cookies) == 0 {
			render.RenderWarning("No Perplexity cookies found in file")
			return nil
		}

		if _, err := auth.SessionToken(cookies); err != nil {
			render.RenderWarning("Cookies found but the session token is missing")
			render.RenderInfo("The session may be expired; re-export cookies from a logged-in browser")
			return nil
		}

		render.RenderSuccess("Authenticated")
		fmt.Printf("Cookie file: %s\n", cookieFile)
		fmt.Printf("Cookies loaded: %d\n", len(cookies))
		fmt.Println("\nCookies:")
		for _, c := range cookies {
			fmt.Printf("  - %s\n", c.Name)
		}
		return nil
	},
}

var cookiesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear saved cookies",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.Remove(cfg.CookieFile); err != nil {
			if os.IsNotExist(err) {
				render.RenderInfo("No cookies to clear")
				return nil
			}
			return fmt.Errorf("failed to remove cookies: %v", err)
		}

		render.RenderSuccess("Cookies cleared")
		return nil
	},
}

var cookiesPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show cookie file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(cfg.CookieFile)
		return nil
	},
}

func init() {
	cookiesCmd.AddCommand(cookiesStatusCmd)
	cookiesCmd.AddCommand(cookiesClearCmd)
	cookiesCmd.AddCommand(cookiesPathCmd)

	// NOTE: importCookiesCmd is added to the rootCmd in root.go
}
