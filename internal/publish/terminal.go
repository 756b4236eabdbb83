package publish

import (
	"github.com/charmbracelet/glamour"
)

// RenderTerminal renders the booklet for reading in a terminal, wrapped at width columns.
func RenderTerminal(doc Document, width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
		glamour.WithEmoji(),
	)
	if err != nil {
		return "", err
	}
	return r.Render(RenderMarkdown(doc))
}
