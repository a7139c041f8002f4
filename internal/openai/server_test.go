package openai

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/diogo/perplexity-webui-go/pkg/models"
	"github.com/diogo/perplexity-webui-go/pkg/perplexity"
)

// upstream fakes the Perplexity SSE backend, recording every ask payload.
func upstream(t *testing.T, answer string) (*httptest.Server, *[]models.AskPayload) {
	t.Helper()

	var payloads []models.AskPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search/new":
			w.WriteHeader(http.StatusOK)
		case "/rest/sse/perplexity_ask":
			var payload models.AskPayload
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Errorf("decode ask payload: %v", err)
			}
			payloads = append(payloads, payload)

			text, _ := json.Marshal(map[string]any{"answer": answer, "chunks": []string{answer}})
			frame, _ := json.Marshal(map[string]any{
				"backend_uuid":     "uuid-1",
				"read_write_token": "rw-1",
				"text":             string(text),
				"final":            true,
			})
			w.Header().Set("Content-Type", "text/event-stream")
			w.Write(append(append([]byte("data: "), frame...), '\n'))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	return server, &payloads
}

func newTestServer(t *testing.T, upstreamURL string, mutate func(*Options)) *Server {
	t.Helper()

	cfg := perplexity.DefaultClientConfig()
	cfg.BaseURL = upstreamURL
	cfg.MaxRetries = 0
	cfg.RequestsPerSecond = 0
	cfg.RotateFingerprint = false
	cfg.Timeout = 30 * time.Second

	client, err := perplexity.New("test-session-token", &cfg)
	if err != nil {
		t.Fatalf("perplexity.New: %v", err)
	}
	t.Cleanup(client.Close)

	opts := Options{
		SessionTTL:         time.Minute,
		MaxSessionsPerUser: 5,
		Conversation:       perplexity.ConversationConfig{CitationMode: models.CitationClean},
	}
	if mutate != nil {
		mutate(&opts)
	}

	s := NewServer(client, opts)
	t.Cleanup(s.store.Close)
	return s
}

func postCompletions(t *testing.T, router http.Handler, body ChatCompletionRequest, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	up, _ := upstream(t, "ok")
	s := newTestServer(t, up.URL, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestModels(t *testing.T) {
	up, _ := upstream(t, "ok")
	s := newTestServer(t, up.URL, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var list ModelList
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Object != "list" || len(list.Data) == 0 {
		t.Fatalf("list = %+v", list)
	}

	ids := make(map[string]bool)
	for _, m := range list.Data {
		ids[m.ID] = true
	}
	for _, want := range []string{"best", "claude-4.5-sonnet", "gpt-5.2"} {
		if !ids[want] {
			t.Errorf("model %q missing from list", want)
		}
	}
}

func TestAPIKeyAuth(t *testing.T) {
	up, _ := upstream(t, "ok")
	s := newTestServer(t, up.URL, func(o *Options) { o.APIKey = "secret" })
	router := s.Router()

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong key", "Bearer wrong", http.StatusUnauthorized},
		{"wrong scheme", "Basic secret", http.StatusUnauthorized},
		{"correct key", "Bearer secret", http.StatusOK},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	// Health stays open.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d with auth enabled", rec.Code)
	}
}

func TestChatCompletionNonStreaming(t *testing.T) {
	up, payloads := upstream(t, "The answer is 4.")
	s := newTestServer(t, up.URL, nil)

	rec := postCompletions(t, s.Router(), ChatCompletionRequest{
		Model:    "claude-4.5-sonnet",
		Messages: []ChatMessage{{Role: "user", Content: "what is 2+2"}},
	}, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp ChatCompletionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Object != "chat.completion" {
		t.Errorf("object = %q", resp.Object)
	}
	if len(resp.Choices) != 1 {
		t.Fatalf("choices = %+v", resp.Choices)
	}
	choice := resp.Choices[0]
	if choice.Message.Role != "assistant" || choice.Message.Content != "The answer is 4." {
		t.Errorf("message = %+v", choice.Message)
	}
	if choice.FinishReason != "stop" {
		t.Errorf("finish_reason = %q", choice.FinishReason)
	}

	if (*payloads)[0].Params.ModelPreference != models.ModelClaudeSonnet.Identifier {
		t.Errorf("model_preference = %q", (*payloads)[0].Params.ModelPreference)
	}
}

func TestChatCompletionSessionContinuation(t *testing.T) {
	up, payloads := upstream(t, "answer")
	s := newTestServer(t, up.URL, nil)
	router := s.Router()

	first := ChatCompletionRequest{
		User:     "alice",
		Messages: []ChatMessage{{Role: "user", Content: "opening question"}},
	}
	if rec := postCompletions(t, router, first, nil); rec.Code != http.StatusOK {
		t.Fatalf("first status = %d", rec.Code)
	}

	second := ChatCompletionRequest{
		User: "alice",
		Messages: []ChatMessage{
			{Role: "user", Content: "opening question"},
			{Role: "assistant", Content: "answer"},
			{Role: "user", Content: "follow up"},
		},
	}
	if rec := postCompletions(t, router, second, nil); rec.Code != http.StatusOK {
		t.Fatalf("second status = %d", rec.Code)
	}

	if len(*payloads) != 2 {
		t.Fatalf("upstream saw %d asks, want 2", len(*payloads))
	}
	if (*payloads)[0].Params.LastBackendUUID != "" {
		t.Error("first ask carried continuation fields")
	}
	p := (*payloads)[1].Params
	if p.LastBackendUUID != "uuid-1" || p.QuerySource != "followup" {
		t.Errorf("second ask not a follow-up: %+v", p)
	}
	if (*payloads)[1].QueryStr != "follow up" {
		t.Errorf("query_str = %q, want the last user message", (*payloads)[1].QueryStr)
	}
}

func TestChatCompletionStreaming(t *testing.T) {
	up, _ := upstream(t, "streamed answer")
	s := newTestServer(t, up.URL, nil)

	rec := postCompletions(t, s.Router(), ChatCompletionRequest{
		Model:    "best",
		Messages: []ChatMessage{{Role: "user", Content: "q"}},
		Stream:   true,
	}, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	var content strings.Builder
	sawRole := false
	sawStop := false
	sawDone := false

	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			sawDone = true
			continue
		}

		var chunk ChatCompletionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			t.Fatalf("undecodable chunk %q: %v", data, err)
		}
		if chunk.Object != "chat.completion.chunk" {
			t.Errorf("object = %q", chunk.Object)
		}
		for _, c := range chunk.Choices {
			if c.Delta.Role == "assistant" {
				sawRole = true
			}
			content.WriteString(c.Delta.Content)
			if c.FinishReason != nil && *c.FinishReason == "stop" {
				sawStop = true
			}
		}
	}

	if !sawRole {
		t.Error("no role chunk")
	}
	if content.String() != "streamed answer" {
		t.Errorf("assembled content = %q", content.String())
	}
	if !sawStop || !sawDone {
		t.Errorf("stream termination: stop=%v done=%v", sawStop, sawDone)
	}
}

func TestChatCompletionNoUserMessage(t *testing.T) {
	up, _ := upstream(t, "unused")
	s := newTestServer(t, up.URL, nil)

	rec := postCompletions(t, s.Router(), ChatCompletionRequest{
		Messages: []ChatMessage{{Role: "system", Content: "be brief"}},
	}, nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Type != "invalid_request_error" {
		t.Errorf("error type = %q", resp.Error.Type)
	}
}

func TestChatCompletionUnknownModelFallsBack(t *testing.T) {
	up, payloads := upstream(t, "answer")
	s := newTestServer(t, up.URL, nil)

	rec := postCompletions(t, s.Router(), ChatCompletionRequest{
		Model:    "gpt-9000",
		Messages: []ChatMessage{{Role: "user", Content: "q"}},
	}, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if (*payloads)[0].Params.ModelPreference != models.ModelBest.Identifier {
		t.Errorf("model_preference = %q, want default fallback", (*payloads)[0].Params.ModelPreference)
	}
}
