// Package history persists past queries and answers as JSON lines.
package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Entry is one recorded exchange.
type Entry struct {
	Timestamp        time.Time `json:"timestamp"`
	Query            string    `json:"query"`
	Answer           string    `json:"answer"`
	Model            string    `json:"model,omitempty"`
	Title            string    `json:"title,omitempty"`
	ConversationUUID string    `json:"conversation_uuid,omitempty"`
}

// Writer appends entries to a history file.
type Writer struct {
	path string
}

// NewWriter creates a writer, ensuring the parent directory exists.
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &Writer{path: path}, nil
}

// Append adds one entry, stamping it with the current time when unset.
func (w *Writer) Append(entry Entry) error {
	file, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer file.Close()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write history entry: %w", err)
	}
	return nil
}

// Reader reads entries back from a history file.
type Reader struct {
	path string
}

// NewReader creates a reader for the given file.
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// ReadAll reads every entry, skipping malformed lines. A missing file yields
// an empty history.
func (r *Reader) ReadAll() ([]Entry, error) {
	file, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading history: %w", err)
	}
	return entries, nil
}

// ReadLast reads the last n entries.
func (r *Reader) ReadLast(n int) ([]Entry, error) {
	entries, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(entries) <= n {
		return entries, nil
	}
	return entries[len(entries)-n:], nil
}

// Clear removes all history entries.
func (r *Reader) Clear() error {
	err := os.Truncate(r.path, 0)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Search finds entries whose query or title contains the term,
// case-insensitively.
func (r *Reader) Search(term string) ([]Entry, error) {
	entries, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(term)
	var results []Entry
	for _, entry := range entries {
		if strings.Contains(strings.ToLower(entry.Query), lower) ||
			strings.Contains(strings.ToLower(entry.Title), lower) {
			results = append(results, entry)
		}
	}
	return results, nil
}
