// Package tui renders run output for terminals.
package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/aretw0/arbor/pkg/domain"
)

// NewRenderer returns a function that renders markdown using glamour, wrapped at width columns.
// The style follows the terminal background.
func NewRenderer(width int) func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	return r.Render
}

// ConclusionMarkdown formats a conclusion and its citations as one markdown document.
func ConclusionMarkdown(c *domain.Conclusion) string {
	if c == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(c.Conclusion))
	sb.WriteString("\n")
	if len(c.Citations) > 0 {
		sb.WriteString("\n### References\n\n")
		for _, cite := range c.Citations {
			sb.WriteString("- ")
			sb.WriteString(cite)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
