// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/ManuGH/echodl/internal/catalog"
	"github.com/charmbracelet/lipgloss"
)

// printList writes one line per recording:
// "<unit> - <title> @ <venue> [<ext>]" with " [D]" appended once downloaded.
// Styling is dropped when w is not a terminal.
func printList(w io.Writer, recs []catalog.Recording) error {
	r := lipgloss.NewRenderer(w)
	var (
		header = r.NewStyle().Bold(true)
		unit   = r.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
		muted  = r.NewStyle().Foreground(lipgloss.Color("245"))
		done   = r.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	)

	var b strings.Builder
	b.WriteString(header.Render(fmt.Sprintf("%d lecture(s) found matching the filter", len(recs))))
	b.WriteByte('\n')
	for _, rec := range recs {
		b.WriteString(unit.Render(rec.Unit))
		b.WriteString(" - ")
		b.WriteString(rec.Title)
		b.WriteString(muted.Render(" @ " + rec.ShortVenue() + " [" + rec.Extension() + "]"))
		if rec.Downloaded {
			b.WriteString(done.Render(" [D]"))
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}
