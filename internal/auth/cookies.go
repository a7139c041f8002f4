// Package auth extracts the Perplexity session token from browser cookie
// exports.
package auth

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	http "github.com/bogdanfinn/fhttp"
)

// SessionCookieName is the cookie carrying the authentication token.
const SessionCookieName = "__Secure-next-auth.session-token"

// JSONCookie is one cookie in a browser JSON export.
type JSONCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expirationDate,omitempty"`
	Secure   bool    `json:"secure"`
	HTTPOnly bool    `json:"httpOnly"`
	SameSite string  `json:"sameSite,omitempty"`
}

// LoadCookiesFromJSON loads a browser JSON cookie export, keeping only
// perplexity.ai cookies.
func LoadCookiesFromJSON(path string) ([]*http.Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}

	var jsonCookies []JSONCookie
	if err := json.Unmarshal(data, &jsonCookies); err != nil {
		return nil, fmt.Errorf("failed to parse cookie JSON: %w", err)
	}

	cookies := make([]*http.Cookie, 0, len(jsonCookies))
	for _, jc := range jsonCookies {
		if !strings.Contains(jc.Domain, "perplexity.ai") {
			continue
		}

		cookie := &http.Cookie{
			Name:     jc.Name,
			Value:    jc.Value,
			Domain:   jc.Domain,
			Path:     jc.Path,
			Secure:   jc.Secure,
			HttpOnly: jc.HTTPOnly,
		}
		if jc.Expires > 0 {
			cookie.Expires = time.Unix(int64(jc.Expires), 0)
		}

		switch strings.ToLower(jc.SameSite) {
		case "strict":
			cookie.SameSite = http.SameSiteStrictMode
		case "lax":
			cookie.SameSite = http.SameSiteLaxMode
		case "none":
			cookie.SameSite = http.SameSiteNoneMode
		default:
			cookie.SameSite = http.SameSiteDefaultMode
		}

		cookies = append(cookies, cookie)
	}

	return cookies, nil
}

// LoadCookiesFromNetscape loads a Netscape-format cookie file, keeping only
// perplexity.ai cookies.
func LoadCookiesFromNetscape(path string) ([]*http.Cookie, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cookie file: %w", err)
	}
	defer file.Close()

	var cookies []*http.Cookie
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// domain, tailmatch, path, secure, expiration, name, value
		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			continue
		}
		if !strings.Contains(fields[0], "perplexity.ai") {
			continue
		}

		cookie := &http.Cookie{
			Name:   fields[5],
			Value:  fields[6],
			Domain: fields[0],
			Path:   fields[2],
			Secure: fields[3] == "TRUE",
		}
		if exp, err := strconv.ParseInt(fields[4], 10, 64); err == nil && exp > 0 {
			cookie.Expires = time.Unix(exp, 0)
		}

		cookies = append(cookies, cookie)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading cookie file: %w", err)
	}

	return cookies, nil
}

// LoadCookies auto-detects the export format by the first non-space byte:
// JSON exports start with a bracket, everything else is treated as Netscape.
func LoadCookies(path string) ([]*http.Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}

	if strings.HasPrefix(strings.TrimSpace(string(data)), "[") {
		return LoadCookiesFromJSON(path)
	}
	return LoadCookiesFromNetscape(path)
}

// SessionToken finds the session token value in a cookie set.
func SessionToken(cookies []*http.Cookie) (string, error) {
	for _, c := range cookies {
		if c.Name == SessionCookieName && c.Value != "" {
			return c.Value, nil
		}
	}
	return "", fmt.Errorf("cookie %q not found; export cookies from a logged-in perplexity.ai session", SessionCookieName)
}

// SessionTokenFromFile loads a cookie export and extracts the session token.
func SessionTokenFromFile(path string) (string, error) {
	cookies, err := LoadCookies(path)
	if err != nil {
		return "", err
	}
	return SessionToken(cookies)
}

// DefaultCookiePath returns the default cookie file location.
func DefaultCookiePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".perplexity-webui", "cookies.json"), nil
}

// SaveCookiesToFile writes cookies as a JSON export with restricted
// permissions.
func SaveCookiesToFile(cookies []*http.Cookie, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	jsonCookies := make([]JSONCookie, 0, len(cookies))
	for _, c := range cookies {
		jc := JSONCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
		if !c.Expires.IsZero() {
			jc.Expires = float64(c.Expires.Unix())
		}
		switch c.SameSite {
		case http.SameSiteStrictMode:
			jc.SameSite = "Strict"
		case http.SameSiteLaxMode:
			jc.SameSite = "Lax"
		case http.SameSiteNoneMode:
			jc.SameSite = "None"
		}
		jsonCookies = append(jsonCookies, jc)
	}

	data, err := json.MarshalIndent(jsonCookies, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write cookie file: %w", err)
	}
	return nil
}

// CookieMap converts a cookie slice to a name-value map.
func CookieMap(cookies []*http.Cookie) map[string]string {
	m := make(map[string]string, len(cookies))
	for _, c := range cookies {
		m[c.Name] = c.Value
	}
	return m
}
