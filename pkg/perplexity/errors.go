package perplexity

import (
	"fmt"
	"strings"
)

// APIError is the generic upstream failure. StatusCode is zero for network
// and timeout errors that never produced a response.
type APIError struct {
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("perplexity: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return "perplexity: " + e.Message
}

// AuthenticationError means the session token is invalid or expired
// (HTTP 403 that is not a Cloudflare challenge).
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	if e.Message != "" {
		return "perplexity: " + e.Message
	}
	return "perplexity: access forbidden (403); session token is invalid or expired, " +
		"obtain a fresh one from your browser cookies"
}

// RateLimitError means the upstream returned HTTP 429. The transport retries
// it before it ever reaches a caller.
type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return "perplexity: " + e.Message
	}
	return "perplexity: rate limit exceeded (429)"
}

// CloudflareBlockError means a bot challenge was detected. Raised to the
// caller only after retries with fingerprint rotation are exhausted.
type CloudflareBlockError struct {
	Message string
}

func (e *CloudflareBlockError) Error() string {
	if e.Message != "" {
		return "perplexity: " + e.Message
	}
	return "perplexity: Cloudflare challenge detected; wait a few minutes or obtain a fresh session token"
}

// FileValidationError is a precondition failure for one attachment path,
// raised before any network call.
type FileValidationError struct {
	Path   string
	Reason string
}

func (e *FileValidationError) Error() string {
	return fmt.Sprintf("perplexity: file validation failed for %q: %s", e.Path, e.Reason)
}

// FileUploadError is a failure during the two-phase upload of one file.
type FileUploadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *FileUploadError) Error() string {
	return fmt.Sprintf("perplexity: upload failed for %q: %s", e.Path, e.Reason)
}

func (e *FileUploadError) Unwrap() error { return e.Err }

// ClarifyingQuestionsError means the upstream requires disambiguation that
// this client cannot answer programmatically. Always terminal, never retried.
type ClarifyingQuestionsError struct {
	Questions []string
}

func (e *ClarifyingQuestionsError) Error() string {
	if len(e.Questions) == 0 {
		return "perplexity: research mode is asking clarifying questions (none provided); " +
			"rephrase the query to be more specific"
	}
	return fmt.Sprintf("perplexity: research mode is asking clarifying questions: %s; "+
		"rephrase the query to be more specific", strings.Join(e.Questions, " | "))
}

// ParsingError means a response payload did not match any recognized shape.
// Raw carries the offending value for diagnostics.
type ParsingError struct {
	Message string
	Raw     string
}

func (e *ParsingError) Error() string {
	return "perplexity: failed to parse response: " + e.Message
}
