package main

import (
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/charmbracelet/lipgloss"
)

var nudges = [...]string{
	"The popcorn is ready. Your list is not.",
	"Somewhere a movie is waiting for you to forget it again.",
	"You said you'd watch it someday. Write it down.",
	"Every film you meant to see is still out there. Unlisted.",
	"The credits roll whether you're logged in or not.",
	"Your watchlist misses you. It's empty without you.",
	"Friday night plans start here.",
	"A title you can't remember is a movie you won't watch.",
}

// printHint tells an anonymous user how to get started.
func printHint(w io.Writer) {
	msg := nudges[rand.IntN(len(nudges))]

	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#4ade80")).
		Bold(true).
		Render("WATCHLIST")

	quote := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Italic(true).
		Render(msg)

	hint := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Render("not logged in. run: watchlist login (or watchlist signup)")

	fmt.Fprintf(w, "\n%s\n\n%s\n\n%s\n\n", title, quote, hint) //nolint:errcheck
}
