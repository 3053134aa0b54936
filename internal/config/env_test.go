// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseInt(t *testing.T) {
	t.Setenv("ECHODL_TEST_INT", "12")
	assert.Equal(t, 12, ParseInt("ECHODL_TEST_INT", 4))

	t.Setenv("ECHODL_TEST_INT", "twelve")
	assert.Equal(t, 4, ParseInt("ECHODL_TEST_INT", 4))

	assert.Equal(t, 7, ParseInt("ECHODL_TEST_UNSET", 7))
}

func TestParseString_EmptyUsesDefault(t *testing.T) {
	t.Setenv("ECHODL_TEST_STR", "")
	assert.Equal(t, "fallback", ParseString("ECHODL_TEST_STR", "fallback"))
}

func TestParseDuration(t *testing.T) {
	t.Setenv("ECHODL_TEST_DUR", "1m30s")
	assert.Equal(t, 90*time.Second, ParseDuration("ECHODL_TEST_DUR", time.Second))

	t.Setenv("ECHODL_TEST_DUR", "soon")
	assert.Equal(t, time.Second, ParseDuration("ECHODL_TEST_DUR", time.Second))
}

func TestCredentials(t *testing.T) {
	t.Setenv(EnvUsername, "21234567")
	t.Setenv(EnvPassword, "hunter2")
	u, p := Credentials()
	assert.Equal(t, "21234567", u)
	assert.Equal(t, "hunter2", p)
}
