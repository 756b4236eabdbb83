package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

var (
	rowNormal   = lipgloss.NewStyle()
	rowSelected = lipgloss.NewStyle().
			Foreground(colorSelectedFg).
			Background(colorSelectedBg).
			Bold(true)
)

// renderRow pads or cuts txt to exactly width cells so the cursor highlight spans the row.
func renderRow(width int, txt string, cursor bool) string {
	if width < 4 {
		return ""
	}
	line := txt
	w := xansi.StringWidth(line)
	if w < width {
		line += strings.Repeat(" ", width-w)
	} else if w > width {
		line = xansi.Cut(line, 0, width)
	}
	if cursor {
		return rowSelected.Render(line)
	}
	return rowNormal.Render(line)
}

// visibleWindow returns the [start, end) slice of n rows to draw so that cursor stays on
// screen within height rows.
func visibleWindow(n, cursor, height int) (int, int) {
	if height <= 0 || n <= height {
		return 0, n
	}
	start := cursor - height/2
	if start < 0 {
		start = 0
	}
	if start+height > n {
		start = n - height
	}
	return start, start + height
}

func truncateInline(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if max <= 0 || xansi.StringWidth(s) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return xansi.Truncate(s, max, "…")
}
