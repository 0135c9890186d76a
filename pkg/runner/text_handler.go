package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/domain"
)

// Prompt is printed before every answer read by TextHandler.
const Prompt = "> "

// TextHandler implements line-based terminal interaction.
type TextHandler struct {
	Writer   io.Writer
	Renderer ContentRenderer

	input *linePump
}

// TextHandlerOption configures a TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer renders conclusions through r, typically glamour.
func WithTextHandlerRenderer(r ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = r
	}
}

// NewTextHandler creates a handler reading answers from r and writing to w.
// Nil arguments fall back to stdin and stdout.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Writer: w,
		input:  newLinePump(r),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *TextHandler) Ask(ctx context.Context, state *domain.ExecutionState) (string, error) {
	if state.Pending != nil {
		fmt.Fprintf(h.Writer, "\n[%s] %s\n", state.Pending.StepNumber, strings.TrimSpace(state.Pending.Question))
	}

	for {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		fmt.Fprint(h.Writer, Prompt)

		line, err := h.input.next(ctx)
		if err != nil {
			return "", err
		}

		answer, err := SanitizeInput(strings.TrimSpace(line))
		if err != nil {
			fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
			continue
		}
		if answer == "" {
			continue
		}
		return answer, nil
	}
}

func (h *TextHandler) Conclude(_ context.Context, state *domain.ExecutionState) error {
	if state.Conclusion == nil {
		return nil
	}
	output := tui.ConclusionMarkdown(state.Conclusion)
	if h.Renderer != nil {
		if rendered, err := h.Renderer(output); err == nil {
			output = rendered
		}
	}
	_, err := fmt.Fprintf(h.Writer, "\n%s\n", strings.TrimSpace(output))
	return err
}

func (h *TextHandler) Fail(_ context.Context, err error) error {
	_, werr := fmt.Fprintf(h.Writer, "\nError: %s\n", domain.Describe(err))
	return werr
}
