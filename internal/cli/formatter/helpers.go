package formatter

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// RenderBox wraps content in a rounded-border box with an optional title.
func RenderBox(title string, content string) string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorDim).
		PaddingLeft(2).
		PaddingRight(2)

	if title != "" {
		return boxStyle.Render(StyleHeader.Render(strings.ToUpper(title)) + "\n\n" + content)
	}
	return boxStyle.Render(content)
}

// RelativeTime renders t relative to now, e.g. "3 minutes ago" or "2 hours from now".
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "--"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// TruncID returns the first 8 characters of an ID, dimmed.
func TruncID(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return StyleDim.Render(id)
}

// OrDash returns s, or a dimmed dash when s is empty.
func OrDash(s string) string {
	if s == "" {
		return StyleDim.Render("--")
	}
	return s
}
