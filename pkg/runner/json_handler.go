package runner

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

// Event types emitted by JSONHandler.
const (
	EventQuestion   = "question"
	EventConclusion = "conclusion"
	EventError      = "error"
)

// Event is one JSON line written by JSONHandler.
type Event struct {
	Type       string             `json:"type"`
	SessionID  string             `json:"session_id,omitempty"`
	StepNumber string             `json:"step_number,omitempty"`
	Question   string             `json:"question,omitempty"`
	Conclusion *domain.Conclusion `json:"conclusion,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// JSONHandler implements IOHandler over JSON-Lines.
// Answers are read one per line, either as a JSON string, an object with an
// "answer" field, or raw text.
type JSONHandler struct {
	Encoder *json.Encoder
	input   *linePump
}

// NewJSONHandler creates a handler for JSON IO. Nil arguments fall back to stdin and stdout.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Encoder: json.NewEncoder(w),
		input:   newLinePump(r),
	}
}

func (h *JSONHandler) Ask(ctx context.Context, state *domain.ExecutionState) (string, error) {
	ev := Event{Type: EventQuestion, SessionID: state.SessionID}
	if state.Pending != nil {
		ev.StepNumber = state.Pending.StepNumber
		ev.Question = state.Pending.Question
	}
	if err := h.Encoder.Encode(ev); err != nil {
		return "", err
	}

	for {
		line, err := h.input.next(ctx)
		if err != nil {
			return "", err
		}
		answer, err := SanitizeInput(decodeAnswer(line))
		if err != nil {
			if encErr := h.Encoder.Encode(Event{Type: EventError, SessionID: state.SessionID, Error: err.Error()}); encErr != nil {
				return "", encErr
			}
			continue
		}
		if answer != "" {
			return answer, nil
		}
	}
}

func (h *JSONHandler) Conclude(_ context.Context, state *domain.ExecutionState) error {
	return h.Encoder.Encode(Event{
		Type:       EventConclusion,
		SessionID:  state.SessionID,
		Conclusion: state.Conclusion,
	})
}

func (h *JSONHandler) Fail(_ context.Context, err error) error {
	return h.Encoder.Encode(Event{Type: EventError, Error: domain.Describe(err)})
}

func decodeAnswer(line string) string {
	text := strings.TrimSpace(line)

	var s string
	if err := json.Unmarshal([]byte(text), &s); err == nil {
		return strings.TrimSpace(s)
	}

	var obj struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal([]byte(text), &obj); err == nil && obj.Answer != "" {
		return strings.TrimSpace(obj.Answer)
	}
	return text
}
