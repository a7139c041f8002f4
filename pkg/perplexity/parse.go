package perplexity

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/diogo/perplexity-webui-go/pkg/models"
)

// ssePrefix marks the data frames of the event stream.
var ssePrefix = []byte("data: ")

// jsonObjectPattern detects answer strings that are themselves JSON objects
// and need one more decode.
var jsonObjectPattern = regexp.MustCompile(`^\{.*\}$`)

// parseLine decodes one raw stream line into a frame. Lines without the data
// prefix, and frames that fail to decode, are skipped rather than treated as
// errors.
func parseLine(line []byte) (*models.Frame, bool) {
	if !bytes.HasPrefix(line, ssePrefix) {
		return nil, false
	}

	var frame models.Frame
	if err := json.Unmarshal(bytes.TrimPrefix(line, ssePrefix), &frame); err != nil {
		return nil, false
	}
	return &frame, true
}

// textPayload is the tagged union decoded from a frame's text field: either a
// list of steps or a single answer object.
type textPayload struct {
	steps  []models.Step
	answer json.RawMessage
}

// decodeTextPayload validates the shape of the JSON-encoded text field.
func decodeTextPayload(text string) (*textPayload, error) {
	trimmed := strings.TrimSpace(text)

	switch {
	case strings.HasPrefix(trimmed, "["):
		var steps []models.Step
		if err := json.Unmarshal([]byte(trimmed), &steps); err != nil {
			return nil, &ParsingError{Message: "invalid step list in text field", Raw: text}
		}
		return &textPayload{steps: steps}, nil
	case strings.HasPrefix(trimmed, "{"):
		if !json.Valid([]byte(trimmed)) {
			return nil, &ParsingError{Message: "invalid JSON object in text field", Raw: text}
		}
		return &textPayload{answer: json.RawMessage(trimmed)}, nil
	default:
		return nil, &ParsingError{Message: "unexpected JSON structure in text field", Raw: text}
	}
}

// decodeAnswerPayload decodes an answer object, following one level of
// JSON-string nesting when the answer field is itself an encoded object.
func decodeAnswerPayload(raw json.RawMessage) (*models.AnswerPayload, json.RawMessage, error) {
	var payload models.AnswerPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, nil, &ParsingError{Message: "invalid answer payload", Raw: string(raw)}
	}

	if payload.Answer != nil && jsonObjectPattern.MatchString(*payload.Answer) {
		inner := json.RawMessage(*payload.Answer)
		var decoded models.AnswerPayload
		if err := json.Unmarshal(inner, &decoded); err == nil {
			return &decoded, inner, nil
		}
	}

	return &payload, raw, nil
}

// extractClarifyingQuestions pulls the question list out of a clarifying-
// questions step, trying the known shapes in order: a questions field, a
// clarifying_questions field, any string value containing a question mark,
// a bare list of strings, or a bare string.
func extractClarifyingQuestions(content json.RawMessage) []string {
	var questions []string

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(content, &obj); err == nil {
		for _, key := range []string{"questions", "clarifying_questions"} {
			if raw, ok := obj[key]; ok {
				var list []string
				if err := json.Unmarshal(raw, &list); err == nil {
					for _, q := range list {
						if q != "" {
							questions = append(questions, q)
						}
					}
					return questions
				}
			}
		}

		for _, raw := range obj {
			var s string
			if err := json.Unmarshal(raw, &s); err == nil && strings.Contains(s, "?") {
				questions = append(questions, s)
			}
		}
		return questions
	}

	var list []string
	if err := json.Unmarshal(content, &list); err == nil {
		for _, q := range list {
			if q != "" {
				questions = append(questions, q)
			}
		}
		return questions
	}

	var s string
	if err := json.Unmarshal(content, &s); err == nil && s != "" {
		return []string{s}
	}

	return questions
}

// processFrame folds one decoded frame into conversation state.
func (c *Conversation) processFrame(frame *models.Frame) error {
	if c.backendUUID == "" && frame.BackendUUID != "" {
		c.backendUUID = frame.BackendUUID
	}
	if c.readWriteToken == "" && frame.ReadWriteToken != "" {
		c.readWriteToken = frame.ReadWriteToken
	}
	if c.title == "" && frame.ThreadTitle != "" {
		c.title = frame.ThreadTitle
	}

	// Frames carrying only block diffs (attachments, UI hints) produce no
	// answer update.
	if frame.Text == nil {
		return nil
	}

	payload, err := decodeTextPayload(*frame.Text)
	if err != nil {
		return err
	}

	if payload.steps != nil {
		for _, step := range payload.steps {
			switch step.StepType {
			case models.StepClarifyingQuestions:
				return &ClarifyingQuestionsError{Questions: extractClarifyingQuestions(step.Content)}
			case models.StepFinal:
				answerRaw := step.Content
				var final models.FinalStepContent
				if err := json.Unmarshal(step.Content, &final); err == nil &&
					jsonObjectPattern.MatchString(final.Answer) {
					answerRaw = json.RawMessage(final.Answer)
				}

				answer, raw, err := decodeAnswerPayload(answerRaw)
				if err != nil {
					return err
				}
				c.updateState(frame.ThreadTitle, answer, raw)
				return nil
			}
		}
		return nil
	}

	answer, raw, err := decodeAnswerPayload(payload.answer)
	if err != nil {
		return err
	}
	c.updateState(frame.ThreadTitle, answer, raw)
	return nil
}

// updateState applies one answer payload: title overwrite, wholesale
// search-result replacement, citation-formatted answer and chunks, raw
// payload kept verbatim.
func (c *Conversation) updateState(title string, payload *models.AnswerPayload, raw json.RawMessage) {
	if title != "" {
		c.title = title
	}

	if len(payload.WebResults) > 0 {
		results := make([]models.SearchResultItem, 0, len(payload.WebResults))
		for _, r := range payload.WebResults {
			item := models.SearchResultItem{Title: r.Name, Snippet: r.Snippet, URL: r.URL}
			if item.Title == "" {
				item.Title = r.Title
			}
			results = append(results, item)
		}
		c.searchResults = results
	}

	if payload.Answer != nil {
		c.answer = formatCitations(*payload.Answer, c.citationMode, c.searchResults)
	}

	if len(payload.Chunks) > 0 {
		chunks := make([]string, 0, len(payload.Chunks))
		for _, chunk := range payload.Chunks {
			chunks = append(chunks, formatCitations(chunk, c.citationMode, c.searchResults))
		}
		c.chunks = chunks
	}

	c.raw = raw
}
