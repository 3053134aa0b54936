// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package portal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/echodl/internal/config"
	"github.com/ManuGH/echodl/internal/platform/httpx"
	"github.com/ManuGH/echodl/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 4, 15, 9, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	sess, err := session.New("21234567", srv.URL, httpx.NewClient(httpx.Options{}))
	require.NoError(t, err)

	cfg := config.Defaults().Portal
	cfg.BaseURL = srv.URL
	cfg.SSOURL = srv.URL + "/sso/login.fcc"

	c := New(cfg, sess)
	c.Now = func() time.Time { return fixedNow }
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestHasPortalMarker(t *testing.T) {
	h := http.Header{}
	assert.False(t, HasPortalMarker(h, "blackboard"))

	h.Set("X-Blackboard-Product", "Learn")
	assert.True(t, HasPortalMarker(h, "blackboard"))
	assert.True(t, HasPortalMarker(h, "BlackBoard"))
	assert.False(t, HasPortalMarker(h, ""))
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"accepted", "correct", false},
		{"rejected", "wrong", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/sso/login.fcc", func(w http.ResponseWriter, r *http.Request) {
				require.NoError(t, r.ParseForm())
				assert.Equal(t, "21234567", r.PostForm.Get("USER"))
				assert.Equal(t, config.DefaultAgentName, r.PostForm.Get("smagentname"))
				assert.Equal(t, config.DefaultTarget, r.PostForm.Get("target"))
				if r.PostForm.Get("PASSWORD") != "correct" {
					w.WriteHeader(http.StatusOK)
					_, _ = w.Write([]byte("<html>login failed</html>"))
					return
				}
				http.SetCookie(w, &http.Cookie{Name: "SMSESSION", Value: "abc", Path: "/"})
				http.Redirect(w, r, "/ultra", http.StatusFound)
			})
			mux.HandleFunc("/ultra", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-Blackboard-Appserver", "app1")
			})
			srv := httptest.NewServer(mux)
			defer srv.Close()

			c := newTestClient(t, srv)
			err := c.Login(context.Background(), tt.password)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrNotAuthenticated)
				return
			}
			require.NoError(t, err)
			assert.True(t, c.sess.Authenticated())
		})
	}
}

func TestLogin_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := newTestClient(t, srv)
	srv.Close()

	err := c.Login(context.Background(), "pw")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func coursesServer(t *testing.T, failCourse string) *httptest.Server {
	t.Helper()
	end := func(ts time.Time) map[string]any {
		return map[string]any{"duration": map[string]any{"type": "DateRange", "end": ts}}
	}
	courses := map[string]map[string]any{
		"_100_1": {"id": "_100_1", "courseId": "CITS1001_SEM-1_2024", "availability": end(fixedNow.AddDate(0, 2, 0))},
		"_101_1": {"id": "_101_1", "courseId": "CITS2002_SEM-1_2024", "availability": end(fixedNow.AddDate(0, 1, 0))},
		"_102_1": {"id": "_102_1", "courseId": "STAT1400_SEM-2_2023", "availability": end(fixedNow.AddDate(0, -1, 0))},
		"_103_1": {"id": "_103_1", "courseId": "ORIENTATION", "availability": map[string]any{"duration": map[string]any{"type": "Continuous"}}},
		"_104_1": {"id": "_104_1", "courseId": "OLD1000", "availability": end(fixedNow.AddDate(1, 0, 0))},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/learn/api/public/v1/users/userName:21234567/courses", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "200", r.URL.Query().Get("limit"))
		if r.URL.Query().Get("offset") == "" {
			writeJSON(t, w, map[string]any{
				"results": []map[string]any{
					{"courseId": "_100_1", "created": fixedNow.AddDate(0, -2, 0)},
					{"courseId": "_101_1", "created": fixedNow.AddDate(0, -2, 0)},
					{"courseId": "_104_1", "created": fixedNow.AddDate(-1, 0, 0)},
				},
				"paging": map[string]any{"nextPage": "/learn/api/public/v1/users/userName:21234567/courses?limit=200&offset=3"},
			})
			return
		}
		writeJSON(t, w, map[string]any{
			"results": []map[string]any{
				{"courseId": "_102_1", "created": fixedNow.AddDate(0, -3, 0)},
				{"courseId": "_103_1", "created": fixedNow.AddDate(0, -3, 0)},
			},
		})
	})
	mux.HandleFunc("/learn/api/public/v1/courses/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/learn/api/public/v1/courses/"):]
		if id == failCourse {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		course, ok := courses[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(t, w, course)
	})
	return httptest.NewServer(mux)
}

func TestCourses_CurrentYearAndFutureEndOnly(t *testing.T) {
	srv := coursesServer(t, "")
	defer srv.Close()

	units, err := newTestClient(t, srv).Courses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"_100_1": "CITS1001_SEM-1_2024",
		"_101_1": "CITS2002_SEM-1_2024",
	}, units)
}

func TestCourses_AnyFailureAbortsDiscovery(t *testing.T) {
	srv := coursesServer(t, "_101_1")
	defer srv.Close()

	units, err := newTestClient(t, srv).Courses(context.Background())
	require.Error(t, err)
	assert.Nil(t, units)
	assert.ErrorIs(t, err, ErrUpstreamStatus)

	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusInternalServerError, ue.Status)
}

func TestMemberships_StopsOnRunawayPaging(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(t, w, map[string]any{
			"results": []any{},
			"paging":  map[string]any{"nextPage": r.URL.RequestURI()},
		})
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Memberships(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(maxMembershipPages), calls.Load())
}

func TestCourse_Current(t *testing.T) {
	var c Course
	assert.False(t, c.Current(fixedNow), "no end date is not current")

	past := fixedNow.Add(-time.Hour)
	c.Availability.Duration.End = &past
	assert.False(t, c.Current(fixedNow))

	future := fixedNow.Add(time.Hour)
	c.Availability.Duration.End = &future
	assert.True(t, c.Current(fixedNow))
}

func TestClassify(t *testing.T) {
	err := Classify("op", &httpx.HTTPError{StatusCode: http.StatusForbidden})
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	err = Classify("op", &json.SyntaxError{})
	assert.ErrorIs(t, err, ErrBadResponse)

	assert.ErrorIs(t, Classify("op", context.Canceled), context.Canceled)
	assert.NoError(t, Classify("op", nil))
}
