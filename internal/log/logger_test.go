// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure_ConsoleLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Configure(Config{Output: &buf, JSON: true, Level: "info"}))
	t.Cleanup(func() { _ = Configure(Config{}) })

	l := WithComponent("test")
	l.Debug().Msg("hidden")
	l.Info().Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Equal(t, zerolog.InfoLevel, Level())
}

func TestConfigure_FileSinkRecordsDebug(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "log.txt")
	require.NoError(t, Configure(Config{Output: &console, JSON: true, Level: "info", File: path}))
	t.Cleanup(func() {
		_ = Close()
		_ = Configure(Config{})
	})

	l := WithComponent("test")
	l.Debug().Msg("debug-only")
	l.Info().Msg("both")
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "debug-only")
	assert.Contains(t, string(data), "both")
	assert.NotContains(t, console.String(), "debug-only")
	assert.Equal(t, 2, strings.Count(strings.TrimSpace(string(data)), "\n")+1)
}

func TestDerive(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Configure(Config{Output: &buf, JSON: true}))
	t.Cleanup(func() { _ = Configure(Config{}) })

	l := Derive(func(ctx *zerolog.Context) {
		ctx.Str("custom_field", "test_value")
	})
	l.Info().Msg("x")
	assert.Contains(t, buf.String(), "custom_field")

	l = Derive(nil)
	assert.LessOrEqual(t, l.GetLevel(), zerolog.PanicLevel)
}
