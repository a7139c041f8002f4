package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/diogo/perplexity-webui-go/pkg/perplexity"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"uptime":   time.Since(s.started).Round(time.Second).String(),
		"sessions": s.store.Len(),
	})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	created := s.started.Unix()
	list := ModelList{Object: "list"}
	for _, name := range s.registry.Names() {
		list.Data = append(list.Data, ModelInfo{
			ID:      name,
			Object:  "model",
			Created: created,
			OwnedBy: "perplexity",
		})
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req ChatCompletionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "malformed request body")
		return
	}

	query, first := extractMessages(req.Messages)
	if query == "" {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "no user message in request")
		return
	}

	model := s.registry.Resolve(req.Model)
	if req.Model != "" && !s.registry.Known(req.Model) {
		s.logger.Warn("unknown model requested, using default",
			"requested", req.Model, "default", model.Identifier)
	}

	// Resends of the same chat continue the thread as a follow-up.
	key := SessionKey(req.User, first)
	conv, ok := s.store.Get(key)
	if !ok {
		cfg := s.opts.Conversation
		cfg.Model = model
		conv = s.client.CreateConversation(&cfg)
		s.store.Put(key, req.User, conv)
	}

	id := "chatcmpl-" + uuid.New().String()
	s.logger.Info("chat completion",
		"id", id,
		"model", model.Identifier,
		"stream", req.Stream,
		"followup", conv.UUID() != "")

	opts := &perplexity.AskOptions{Model: &model, Stream: req.Stream}

	if req.Stream {
		s.streamCompletion(w, r, conv, query, opts, id, req.Model)
		return
	}

	if _, err := conv.Ask(r.Context(), query, opts); err != nil {
		s.writeAskError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ChatCompletionResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []ChatCompletionChoice{{
			Message:      ChatMessage{Role: "assistant", Content: conv.Answer()},
			FinishReason: "stop",
		}},
	})
}

// streamCompletion relays conversation snapshots as OpenAI chunk frames.
func (s *Server) streamCompletion(w http.ResponseWriter, r *http.Request, conv *perplexity.Conversation, query string, opts *perplexity.AskOptions, id, modelName string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "server_error", "streaming unsupported")
		return
	}

	if _, err := conv.Ask(r.Context(), query, opts); err != nil {
		s.writeAskError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	created := time.Now().Unix()
	writeChunk := func(delta ChunkDelta, finish *string) {
		chunk := ChatCompletionChunk{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   modelName,
			Choices: []ChunkChoice{{Delta: delta, FinishReason: finish}},
		}
		data, err := json.Marshal(chunk)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	writeChunk(ChunkDelta{Role: "assistant"}, nil)

	// Snapshots carry the whole answer so far; emit only the new suffix.
	sent := ""
	for event := range conv.Events() {
		if event.Err != nil {
			s.logger.Warn("stream failed mid-answer", "id", id, "error", event.Err)
			break
		}
		answer := event.Response.Answer
		if len(answer) > len(sent) && answer[:len(sent)] == sent {
			writeChunk(ChunkDelta{Content: answer[len(sent):]}, nil)
			sent = answer
		}
	}

	finish := "stop"
	writeChunk(ChunkDelta{}, &finish)
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// extractMessages returns the query (last user message) and the chat's first
// user message, which anchors session identity.
func extractMessages(messages []ChatMessage) (query, first string) {
	for _, m := range messages {
		if m.Role != "user" {
			continue
		}
		if first == "" {
			first = m.Content
		}
		query = m.Content
	}
	return query, first
}

// writeAskError maps conversation errors to OpenAI-style HTTP failures.
func (s *Server) writeAskError(w http.ResponseWriter, err error) {
	var authErr *perplexity.AuthenticationError
	var rateErr *perplexity.RateLimitError
	var cfErr *perplexity.CloudflareBlockError
	var cqErr *perplexity.ClarifyingQuestionsError
	var valErr *perplexity.FileValidationError

	switch {
	case errors.As(err, &authErr):
		writeError(w, http.StatusBadGateway, "upstream_error", "upstream session token rejected")
	case errors.As(err, &rateErr):
		writeError(w, http.StatusTooManyRequests, "rate_limit_error", err.Error())
	case errors.As(err, &cfErr):
		writeError(w, http.StatusBadGateway, "upstream_error", err.Error())
	case errors.As(err, &cqErr):
		writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
	case errors.As(err, &valErr):
		writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
	default:
		s.logger.Error("completion failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorInfo{
		Message: message,
		Type:    errType,
	}})
}
