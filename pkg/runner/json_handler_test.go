package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAnswer(t *testing.T) {
	tests := []struct {
		name, line, want string
	}{
		{"json string", `"30 degrees"`, "30 degrees"},
		{"answer object", `{"answer": " 120 m2 "}`, "120 m2"},
		{"raw text", "Nuremberg\n", "Nuremberg"},
		{"object without answer", `{"other": 1}`, `{"other": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeAnswer(tt.line))
		})
	}
}

func TestJSONHandler_AskEmitsQuestion(t *testing.T) {
	out := &bytes.Buffer{}
	h := NewJSONHandler(strings.NewReader("\"Nuremberg\"\n"), out)

	answer, err := h.Ask(context.Background(), suspended("#E2", "Which city?"))
	require.NoError(t, err)
	assert.Equal(t, "Nuremberg", answer)

	var ev Event
	require.NoError(t, json.Unmarshal(out.Bytes(), &ev))
	assert.Equal(t, Event{Type: EventQuestion, SessionID: "s1", StepNumber: "#E2", Question: "Which city?"}, ev)
}

func TestJSONHandler_AskReportsInvalidInput(t *testing.T) {
	t.Setenv(EnvMaxInputSize, "4")
	out := &bytes.Buffer{}
	h := NewJSONHandler(strings.NewReader("\"too long\"\n\"ok\"\n"), out)

	answer, err := h.Ask(context.Background(), suspended("#E1", "q"))
	require.NoError(t, err)
	assert.Equal(t, "ok", answer)
	assert.Contains(t, out.String(), `"type":"error"`)
}

func TestJSONHandler_AskEOF(t *testing.T) {
	h := NewJSONHandler(strings.NewReader(""), io.Discard)
	_, err := h.Ask(context.Background(), suspended("#E1", "q"))
	assert.ErrorIs(t, err, io.EOF)
}
