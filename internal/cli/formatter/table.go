package formatter

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const colGap = 2

// RenderTable renders an aligned table with a header separator line.
// Column widths are measured on visible width, so styled cells line up.
// An empty row set renders the headers followed by a dimmed "(none)".
func RenderTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < len(headers) && i < len(row); i++ {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}

	var b strings.Builder
	writeRow(&b, widths, headers, StyleHeader.Render)

	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = StyleDim.Render(strings.Repeat("─", w))
	}
	writeRow(&b, widths, sep, nil)

	if len(rows) == 0 {
		b.WriteString(Dim("(none)"))
		b.WriteString("\n")
	}
	for _, row := range rows {
		writeRow(&b, widths, row, nil)
	}
	return b.String()
}

func writeRow(b *strings.Builder, widths []int, cells []string, style func(...string) string) {
	last := len(widths) - 1
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		visible := lipgloss.Width(cell)
		if style != nil {
			cell = style(cell)
		}
		b.WriteString(cell)
		if i < last {
			b.WriteString(strings.Repeat(" ", max(w-visible, 0)+colGap))
		}
	}
	b.WriteString("\n")
}

// RenderFields renders label/value pairs with the values aligned.
// Empty values render as a dimmed dash.
func RenderFields(fields [][2]string) string {
	width := 0
	for _, f := range fields {
		width = max(width, lipgloss.Width(f[0]))
	}

	var b strings.Builder
	for _, f := range fields {
		b.WriteString(StyleDim.Render(f[0]))
		b.WriteString(strings.Repeat(" ", width-lipgloss.Width(f[0])+colGap))
		b.WriteString(OrDash(f[1]))
		b.WriteString("\n")
	}
	return b.String()
}
