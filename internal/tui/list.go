package tui

import (
	"strings"

	"github.com/naveenspark/watchlist/pkg/domain"
)

// listView renders the watchlist, one row per entry.
func (a App) listView(sess domain.Session) string {
	entries := a.model.Entries()
	if len(entries) == 0 {
		if !sess.Authenticated() {
			return dimStyle.Render("  not signed in. press L to log in")
		}
		return dimStyle.Render("  your watchlist is empty. press a to add a movie")
	}

	cursor := a.cursor
	if cursor >= len(entries) {
		cursor = len(entries) - 1
	}

	titleWidth := a.width - 26
	if titleWidth < 12 {
		titleWidth = 40
	}

	var b strings.Builder
	for i, mv := range entries {
		b.WriteString(renderRow(mv, i == cursor, a.model.Pending(mv.ID), titleWidth))
		b.WriteString("\n")
	}

	descWidth := a.width - 6
	if descWidth < 20 {
		descWidth = 70
	}
	b.WriteString("\n")
	b.WriteString(renderDetail(entries[cursor], descWidth))
	b.WriteString("\n")
	return b.String()
}

// renderDetail renders the description of the selected entry on one line.
func renderDetail(mv domain.Movie, width int) string {
	return "    " + dimStyle.Render(truncStr(mv.DescriptionOrDefault(), width))
}

// renderRow renders "› [x] Title  watched". Entries with an operation in
// flight get a trailing ellipsis.
func renderRow(mv domain.Movie, selected, pending bool, titleWidth int) string {
	marker := "  "
	if selected {
		marker = accentStyle.Render("› ")
	}

	check := "[ ]"
	if mv.Watched {
		check = "[x]"
	}
	check = statusStyle(mv.Watched).Render(check)

	title := truncStr(mv.Title, titleWidth)
	if selected {
		title = selectedRowBg.Inherit(selectedStyle).Render(title)
	} else {
		title = normalStyle.Render(title)
	}

	row := " " + marker + check + " " + title + "  " + statusStyle(mv.Watched).Render(mv.StatusLabel())
	if pending {
		row += " " + metaStyle.Render("…")
	}
	return row
}
