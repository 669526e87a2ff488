// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Styles colours command summaries. Output that is not a terminal gets
// plain text.
type Styles struct {
	Heading lipgloss.Style
	Good    lipgloss.Style
	Bad     lipgloss.Style
	Warn    lipgloss.Style
	Faint   lipgloss.Style
	Label   lipgloss.Style
}

// NewStyles returns styles for w. Colour is used only when w is a
// terminal and NO_COLOR is unset.
func NewStyles(w io.Writer) Styles {
	file, isFile := w.(*os.File)
	colour := isFile && IsTerminal(file) && os.Getenv("NO_COLOR") == ""

	var renderer *lipgloss.Renderer
	if colour {
		renderer = lipgloss.NewRenderer(w, termenv.WithProfile(termenv.ANSI256))
	} else {
		renderer = lipgloss.NewRenderer(w, termenv.WithProfile(termenv.Ascii))
	}
	return Styles{
		Heading: renderer.NewStyle().Bold(true),
		Good:    renderer.NewStyle().Foreground(lipgloss.Color("2")),
		Bad:     renderer.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		Warn:    renderer.NewStyle().Foreground(lipgloss.Color("3")),
		Faint:   renderer.NewStyle().Foreground(lipgloss.Color("8")),
		Label:   renderer.NewStyle().Width(12),
	}
}

// Field renders one "label  value" summary line.
func (s Styles) Field(label, value string) string {
	return "  " + s.Label.Render(label) + value + "\n"
}
