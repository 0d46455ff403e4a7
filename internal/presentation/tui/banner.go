package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text, color string
}{
	{"       _           _    __ _", "#34d399"},
	{"   ___| |__   __ _| |_ / _| | _____      __", "#2dd4bf"},
	{"  / __| '_ \\ / _` | __| |_| |/ _ \\ \\ /\\ / /", "#22d3ee"},
	{" | (__| | | | (_| | |_|  _| | (_) \\ V  V /", "#38bdf8"},
	{"  \\___|_| |_|\\__,_|\\__|_| |_|\\___/ \\_/\\_/", "#60a5fa"},
}

// PrintBanner writes the chatflow banner to w, coloured when w is a terminal.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// Prompt returns the input prompt styled for w.
func Prompt(w io.Writer) string {
	out := termenv.NewOutput(w)
	return out.String("> ").Bold().Foreground(out.Color("#2dd4bf")).String()
}
