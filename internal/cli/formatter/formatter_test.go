package formatter

import (
	"strings"
	"testing"
	"time"

	"github.com/alexanderramin/examdesk/internal/domain"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTable_AlignsColumns(t *testing.T) {
	out := RenderTable(
		[]string{"ID", "NAME"},
		[][]string{{"f1", "Dr. Rao"}, {"faculty-22", StyleGreen.Render("Dr. Iyer")}},
	)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)

	// Without a color profile styles render plain, so offsets are comparable.
	col := strings.Index(lines[0], "NAME")
	assert.Equal(t, lipgloss.Width("faculty-22")+colGap, col)
	assert.Equal(t, col, strings.Index(lines[2], "Dr. Rao"))
	assert.Equal(t, col, strings.Index(lines[3], "Dr. Iyer"))
}

func TestRenderTable_Empty(t *testing.T) {
	assert.Empty(t, RenderTable(nil, nil))

	out := RenderTable([]string{"ID"}, nil)
	assert.Contains(t, out, "(none)")
}

func TestRenderTable_ShortRowsArePadded(t *testing.T) {
	out := RenderTable([]string{"A", "B", "C"}, [][]string{{"1"}})
	assert.Contains(t, out, "1")
	assert.Equal(t, 3, strings.Count(out, "\n"))
}

func TestRenderProgress(t *testing.T) {
	tests := []struct {
		name        string
		done, total int
		want        string
	}{
		{"none", 0, 4, "0/4"},
		{"half", 2, 4, "2/4"},
		{"all", 4, 4, "4/4"},
		{"over clamps", 9, 4, "4/4"},
		{"negative clamps", -1, 4, "0/4"},
		{"zero total", 0, 0, "0/1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, RenderProgress(tt.done, tt.total, 8), tt.want)
		})
	}
}

func TestRenderSteps(t *testing.T) {
	out := RenderSteps(
		[]string{"Basics", "Audience", "Schedule"},
		[]StepMark{MarkValid, MarkCurrent},
	)
	assert.Contains(t, out, "✔ Basics")
	assert.Contains(t, out, "▸ Audience")
	assert.Contains(t, out, "○ Schedule")
}

func TestStatusPill(t *testing.T) {
	assert.Contains(t, StatusPill(domain.StatusPublished), "Published")
	assert.Contains(t, StatusPill(domain.StatusDraft), "Draft")
	assert.Contains(t, StatusPill("ARCHIVED"), "ARCHIVED")
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "--", RelativeTime(time.Time{}, now))
	assert.Equal(t, "2 hours ago", RelativeTime(now.Add(-2*time.Hour), now))
	assert.Equal(t, "15 minutes from now", RelativeTime(now.Add(15*time.Minute), now))
}

func TestTruncID(t *testing.T) {
	assert.Contains(t, TruncID("0123456789abcdef"), "01234567")
	assert.NotContains(t, TruncID("0123456789abcdef"), "89")
}

func TestRenderFields_AlignsValues(t *testing.T) {
	out := RenderFields([][2]string{{"Name", "Dr. Rao"}, {"Department", ""}})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)

	col := len("Department") + colGap
	assert.Equal(t, col, strings.Index(lines[0], "Dr. Rao"))
	assert.Equal(t, col, strings.Index(lines[1], "--"))
}
