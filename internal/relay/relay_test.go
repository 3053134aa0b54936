// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package relay

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ManuGH/echodl/internal/platform/httpx"
	"github.com/ManuGH/echodl/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServices stands up a portal and a lecture-capture origin wired the
// way the real handoff is.
func fakeServices(t *testing.T, finalized *atomic.Bool) (portal, echo *httptest.Server) {
	t.Helper()

	echoMux := http.NewServeMux()
	echo = httptest.NewServer(echoMux)
	t.Cleanup(echo.Close)

	echoMux.HandleFunc("/lti/launch", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "signed", r.PostForm.Get("oauth_signature"))
		http.SetCookie(w, &http.Cookie{Name: "PLAY_SESSION", Value: "s1", Path: "/"})
		fmt.Fprint(w, `<html><iframe src="/ess/course/home"></iframe></html>`)
	})
	echoMux.HandleFunc("/ess/course/home", func(w http.ResponseWriter, r *http.Request) {
		_, err := r.Cookie("PLAY_SESSION")
		assert.NoError(t, err)
		fmt.Fprint(w, `<html><iframe src="/ess/portal/section/sec-42"></iframe></html>`)
	})
	echoMux.HandleFunc("/ess/portal/section/sec-42", func(w http.ResponseWriter, r *http.Request) {
		finalized.Store(true)
	})

	portal = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != launchPath {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "_555_1", r.URL.Query().Get("course_id"))
		assert.Equal(t, "lectur", r.URL.Query().Get("id"))
		fmt.Fprintf(w, `<form action="%s/lti/launch"><input name="oauth_signature" value="signed"></form>`, echo.URL)
	}))
	t.Cleanup(portal.Close)
	return portal, echo
}

func TestResolve(t *testing.T) {
	var finalized atomic.Bool
	portal, echo := fakeServices(t, &finalized)

	sess, err := session.New("u", portal.URL, httpx.NewClient(httpx.Options{}))
	require.NoError(t, err)

	section, err := New(sess).Resolve(context.Background(), "_555_1")
	require.NoError(t, err)
	assert.Equal(t, "sec-42", section.ID)
	assert.Equal(t, echo.URL, section.Base.String())
	assert.True(t, finalized.Load(), "section frame must be opened before API use")
}

func TestResolve_MissingFormIsErrNoForm(t *testing.T) {
	portal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>You are not enrolled</html>")
	}))
	defer portal.Close()

	sess, err := session.New("u", portal.URL, httpx.NewClient(httpx.Options{}))
	require.NoError(t, err)

	_, err = New(sess).Resolve(context.Background(), "_1_1")
	assert.ErrorIs(t, err, ErrNoForm)
}
