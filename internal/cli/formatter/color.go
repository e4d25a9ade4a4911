package formatter

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/examdesk/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

// Gruvbox-inspired color palette.
var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorBlue   = lipgloss.Color("#83a598")
	ColorPurple = lipgloss.Color("#d3869b")
	ColorDim    = lipgloss.Color("#928374")
	ColorFg     = lipgloss.Color("#ebdbb2")
	ColorHeader = lipgloss.Color("#fe8019")
)

// Predefined lipgloss styles.
var (
	StyleGreen  = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleRed    = lipgloss.NewStyle().Foreground(ColorRed)
	StyleBlue   = lipgloss.NewStyle().Foreground(ColorBlue)
	StylePurple = lipgloss.NewStyle().Foreground(ColorPurple)
	StyleDim    = lipgloss.NewStyle().Foreground(ColorDim)
	StyleFg     = lipgloss.NewStyle().Foreground(ColorFg)
	StyleHeader = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	StyleBold   = lipgloss.NewStyle().Foreground(ColorFg).Bold(true)
)

// StatusPill returns a colored indicator for an exam status.
func StatusPill(status domain.ExamStatus) string {
	switch status {
	case domain.StatusPublished:
		return StyleGreen.Render("● Published")
	case domain.StatusDraft:
		return StyleYellow.Render("○ Draft")
	default:
		return StyleDim.Render(string(status))
	}
}

// ModeBadge returns a short label for a schedule mode.
func ModeBadge(mode domain.ScheduleMode) string {
	switch mode {
	case domain.ScheduleProctored:
		return StylePurple.Render("proctored")
	case domain.ScheduleRange:
		return StyleBlue.Render("scheduled")
	default:
		return StyleDim.Render("--")
	}
}

// Header renders a section header with the orange header style and an underline.
func Header(text string) string {
	upper := strings.ToUpper(text)
	line := strings.Repeat("─", len(upper))
	return fmt.Sprintf("%s\n%s", StyleHeader.Render(upper), StyleDim.Render(line))
}

// Dim renders text in the muted/dim color.
func Dim(text string) string {
	return StyleDim.Render(text)
}

// Bold renders text in bold with the foreground color.
func Bold(text string) string {
	return StyleBold.Render(text)
}

// Success prefixes text with a green check mark.
func Success(text string) string {
	return StyleGreen.Render("✔") + " " + text
}

// Failure prefixes text with a red cross.
func Failure(text string) string {
	return StyleRed.Render("✖") + " " + text
}
