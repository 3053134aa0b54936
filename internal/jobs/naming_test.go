// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ManuGH/echodl/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDestinationPath_Template(t *testing.T) {
	root := t.TempDir()
	got := DestinationPath(root, catalog.Recording{Unit: "CITS1001", Episode: 3, Title: "March 12th (Tuesday)"})
	assert.Equal(t, filepath.Join(root, "CITS1001", "S01E03 - March 12th (Tuesday).mp4"), got)

	got = DestinationPath(root, catalog.Recording{Unit: "CITS1001", Episode: 123, Title: "x"})
	assert.Equal(t, filepath.Join(root, "CITS1001", "S01E123 - x.mp4"), got)
}

func TestDestinationPath_Disambiguates(t *testing.T) {
	root := t.TempDir()
	r := catalog.Recording{Unit: "CITS1001", Episode: 1, Title: "March 5th (Tuesday)"}
	dir := filepath.Join(root, "CITS1001")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	for _, name := range []string{"S01E01 - March 5th (Tuesday).mp4", "S01E01 - March 5th (Tuesday) (1).mp4"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}
	assert.Equal(t, filepath.Join(dir, "S01E01 - March 5th (Tuesday) (2).mp4"), DestinationPath(root, r))
}

func TestReservations_HoldUntilReleased(t *testing.T) {
	root := t.TempDir()
	r := catalog.Recording{Unit: "U", Episode: 1, Title: "t"}
	res := newReservations()

	first := res.reserve(root, r)
	second := res.reserve(root, r)
	assert.NotEqual(t, first, second)
	assert.Equal(t, "S01E01 - t (1).mp4", filepath.Base(second))

	res.release(first)
	assert.Equal(t, first, res.reserve(root, r), "released names are handed out again")
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"March 5th (Tuesday)", "March 5th (Tuesday)"},
		{"CITS1001/CITS1401", "CITS1001-CITS1401"},
		{`a\b`, "a-b"},
		{`what? "now": <x>|*`, `what_ _now__ _x___`},
		{"tab\there", "tabhere"},
		{"  trailing dots...  ", "trailing dots"},
		{"", "fallback"},
		{"..", "fallback"},
		{"Café", "Café"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanName(tt.in, "fallback"))
		})
	}
}
