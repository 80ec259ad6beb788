package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Shimmer animation for the header logo.
type shimmerTickMsg time.Time

func shimmerTickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return shimmerTickMsg(t)
	})
}

// renderShimmerLogo renders text letter-spaced with a wave of amber light
// moving through it. Deep (#3a2a10) -> bright (#f5c451).
func renderShimmerLogo(text string, frame int) string {
	n := len(text)
	if n == 0 {
		return ""
	}

	var out strings.Builder
	t := float64(frame)

	for i := 0; i < n; i++ {
		x := 0.0
		if n > 1 {
			x = float64(i) / float64(n-1)
		}

		phase := t*0.1 - x*3.0
		phase += math.Sin(t*0.023) * 2.0

		b := math.Sin(phase)*0.5 + 0.5
		b = math.Pow(b, 1.3)

		tide := math.Sin(t*0.035) * 0.12
		b = b*0.75 + tide + 0.18
		if b > 1.0 {
			b = 1.0
		} else if b < 0.05 {
			b = 0.05
		}

		r := clampByte(58 + b*(245-58))
		g := clampByte(42 + b*(196-42))
		bl := clampByte(16 + b*(81-16))

		s := lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", r, g, bl)))
		out.WriteString(s.Render(string(text[i])))

		if i < n-1 {
			out.WriteString(" ")
		}
	}

	return out.String()
}

func clampByte(v float64) int {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return int(v)
}

var (
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e4e4ec")).
			Bold(true)

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c0c4d0"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	helpLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	accentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f5c451"))

	watchedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#34d474"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e06060"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c8a84c")).
			Italic(true)

	inputPromptStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#f5c451")).
				Bold(true)

	inputPlaceholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#343c4a"))

	formLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0")).
			Width(10)

	formBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 2)

	borderColor = lipgloss.Color("#2a2a36")

	// Selected row background
	selectedRowBg = lipgloss.NewStyle().Background(lipgloss.Color("#1e1e2a"))
)

// newHelp returns a help bar styled with the app palette.
func newHelp() help.Model {
	h := help.New()
	h.ShortSeparator = "  "
	h.Styles.ShortKey = helpKeyStyle
	h.Styles.ShortDesc = helpLabelStyle
	h.Styles.ShortSeparator = helpLabelStyle
	h.Styles.FullKey = helpKeyStyle
	h.Styles.FullDesc = helpLabelStyle
	h.Styles.FullSeparator = helpLabelStyle
	return h
}

// statusStyle returns the style for a watched / unwatched label.
func statusStyle(watched bool) lipgloss.Style {
	if watched {
		return watchedStyle
	}
	return dimStyle
}

// center pads s so it sits in the middle of width columns.
func center(s string, width int) string {
	pad := (width - lipgloss.Width(s)) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + s
}
