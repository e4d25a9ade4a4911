package formatter

import (
	"fmt"
	"strings"
)

const (
	filledBlock = "█"
	emptyBlock  = "░"
)

// StepMark is how one wizard step is drawn in the progress line.
type StepMark int

const (
	MarkPending StepMark = iota
	MarkCurrent
	MarkValid
	MarkInvalid
)

// RenderProgress renders a bar like [████░░░░] 2/5 for done out of total.
func RenderProgress(done, total, width int) string {
	if total <= 0 {
		total = 1
	}
	if done < 0 {
		done = 0
	}
	if done > total {
		done = total
	}
	if width < 2 {
		width = 2
	}

	filled := done * width / total
	bar := strings.Repeat(filledBlock, filled) + strings.Repeat(emptyBlock, width-filled)

	style := StyleYellow
	if done == total {
		style = StyleGreen
	}
	return fmt.Sprintf("[%s] %d/%d", style.Render(bar), done, total)
}

// RenderSteps draws the step titles on one line with their marks.
func RenderSteps(titles []string, marks []StepMark) string {
	parts := make([]string, len(titles))
	for i, title := range titles {
		mark := MarkPending
		if i < len(marks) {
			mark = marks[i]
		}
		switch mark {
		case MarkCurrent:
			parts[i] = StyleHeader.Render("▸ " + title)
		case MarkValid:
			parts[i] = StyleGreen.Render("✔ " + title)
		case MarkInvalid:
			parts[i] = StyleRed.Render("✖ " + title)
		default:
			parts[i] = StyleDim.Render("○ " + title)
		}
	}
	return strings.Join(parts, StyleDim.Render("  ·  "))
}
