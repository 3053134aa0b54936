// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/echodl/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fakeTranscoder writes something to the output path and fails for inputs
// listed in fail.
type fakeTranscoder struct {
	probeErr error
	fail     map[string]bool

	mu      sync.Mutex
	outputs []string
	args    [][]string
	probed  int
}

func (f *fakeTranscoder) Probe(context.Context) error {
	f.mu.Lock()
	f.probed++
	f.mu.Unlock()
	return f.probeErr
}

func (f *fakeTranscoder) Run(_ context.Context, args []string) error {
	input, output := args[3], args[len(args)-1]
	f.mu.Lock()
	f.outputs = append(f.outputs, output)
	f.args = append(f.args, args)
	f.mu.Unlock()

	if err := os.WriteFile(output, []byte("media"), 0o600); err != nil {
		return err
	}
	if f.fail[input] {
		return errors.New("exit status 1")
	}
	return nil
}

type fakePublisher struct {
	mu      sync.Mutex
	uploads map[string]string
	err     error
}

func (p *fakePublisher) Upload(_ context.Context, local, remote string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.uploads == nil {
		p.uploads = map[string]string{}
	}
	p.uploads[remote] = local
	return p.err
}

func rec(unit string, ep int, title, url string, downloaded bool) catalog.Recording {
	return catalog.Recording{
		Unit:        unit,
		UnitName:    "Programming",
		Title:       title,
		Description: "Lecture",
		URL:         url,
		Episode:     ep,
		Date:        time.Date(2024, 3, ep, 10, 0, 0, 0, time.UTC),
		Downloaded:  downloaded,
	}
}

func downloadFixture(t *testing.T) (*catalog.Store, string) {
	t.Helper()
	dir := t.TempDir()
	downloads := filepath.Join(dir, "lectures")
	require.NoError(t, os.Mkdir(downloads, 0o755))

	store := catalog.NewStore(filepath.Join(dir, "echoes.json"))
	store.Put("ok", rec("CITS1001", 1, "March 1st (Friday)", "http://m/ok/playlist.m3u8", false))
	store.Put("bad", rec("CITS1001", 2, "March 2nd (Saturday)", "http://m/bad/playlist.m3u8", false))
	store.Put("done", rec("CITS1001", 3, "March 3rd (Sunday)", "http://m/done/playlist.m3u8", true))
	store.Put("skip", rec("CITS2002", 4, "March 4th (Monday)", "http://m/skip/playlist.m3u8", false))
	return store, downloads
}

func TestDownload_MarksSuccessAndCleansFailure(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store, downloads := downloadFixture(t)
	tc := &fakeTranscoder{fail: map[string]bool{"http://m/bad/playlist.m3u8": true}}
	pub := &fakePublisher{}

	res, err := Download(context.Background(), DownloadDeps{
		Store:      store,
		Criteria:   catalog.Criteria{ExcludeUnits: []string{"cits2002"}},
		Downloads:  downloads,
		Transcoder: tc,
		Publisher:  pub,
		Workers:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Queued)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.NotEmpty(t, res.RunID)

	okPath := filepath.Join(downloads, "CITS1001", "S01E01 - March 1st (Friday).mp4")
	assert.FileExists(t, okPath)
	assert.NoFileExists(t, filepath.Join(downloads, "CITS1001", "S01E02 - March 2nd (Saturday).mp4"),
		"partial output of a failed job is removed")

	// The flag is persisted, not only kept in memory.
	reloaded := catalog.Load(store.Path())
	ok, _ := reloaded.Get("ok")
	bad, _ := reloaded.Get("bad")
	skip, _ := reloaded.Get("skip")
	assert.True(t, ok.Downloaded)
	assert.False(t, bad.Downloaded)
	assert.False(t, skip.Downloaded)

	assert.Equal(t, map[string]string{"CITS1001/S01E01 - March 1st (Friday).mp4": okPath}, pub.uploads)
}

func TestDownload_BuildsMetadataArgs(t *testing.T) {
	store, downloads := downloadFixture(t)
	tc := &fakeTranscoder{}

	_, err := Download(context.Background(), DownloadDeps{
		Store:      store,
		Criteria:   catalog.Criteria{ExcludeUnits: []string{"CITS2002"}, Before: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
		Downloads:  downloads,
		Transcoder: tc,
	})
	require.NoError(t, err)
	require.Len(t, tc.args, 1)

	joined := strings.Join(tc.args[0], "\x00")
	assert.Contains(t, joined, "show=CITS1001 - Programming")
	assert.Contains(t, joined, "title=March 1st (Friday) - Lecture")
	assert.Contains(t, joined, "episode_sort=1")
	assert.Contains(t, joined, "-bsf:a\x00aac_adtstoasc")
}

func TestDownload_PreconditionsStartNoJobs(t *testing.T) {
	t.Run("missing downloads folder", func(t *testing.T) {
		store, downloads := downloadFixture(t)
		tc := &fakeTranscoder{}
		_, err := Download(context.Background(), DownloadDeps{
			Store:      store,
			Downloads:  filepath.Join(downloads, "nope"),
			Transcoder: tc,
		})
		assert.ErrorIs(t, err, ErrDownloadsDirMissing)
		assert.Empty(t, tc.outputs)
	})

	t.Run("downloads is a file", func(t *testing.T) {
		store, downloads := downloadFixture(t)
		file := filepath.Join(downloads, "file")
		require.NoError(t, os.WriteFile(file, nil, 0o600))
		_, err := Download(context.Background(), DownloadDeps{Store: store, Downloads: file, Transcoder: &fakeTranscoder{}})
		assert.ErrorIs(t, err, ErrDownloadsDirMissing)
	})

	t.Run("transcoder missing", func(t *testing.T) {
		store, downloads := downloadFixture(t)
		tc := &fakeTranscoder{probeErr: errors.New("exec: not found")}
		_, err := Download(context.Background(), DownloadDeps{Store: store, Downloads: downloads, Transcoder: tc})
		assert.ErrorIs(t, err, ErrTranscoderUnavailable)
		assert.Empty(t, tc.outputs)
		ok, _ := store.Get("ok")
		assert.False(t, ok.Downloaded)
	})
}

func TestDownload_EmptyQueueSkipsChecks(t *testing.T) {
	store := catalog.NewStore(filepath.Join(t.TempDir(), "echoes.json"))
	store.Put("done", rec("CITS1001", 1, "t", "http://m/x.m3u8", true))
	tc := &fakeTranscoder{probeErr: errors.New("not found")}

	res, err := Download(context.Background(), DownloadDeps{Store: store, Downloads: "/does/not/exist", Transcoder: tc})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Queued)
	assert.Equal(t, 0, tc.probed)
}

func TestDownload_ConcurrentJobsGetDistinctNames(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	store := catalog.NewStore(filepath.Join(dir, "echoes.json"))
	for _, id := range []string{"a", "b", "c"} {
		r := rec("CITS1001", 7, "March 7th (Thursday)", "http://m/"+id+".m3u8", false)
		store.Put(id, r)
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "CITS1001"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CITS1001", "S01E07 - March 7th (Thursday).mp4"), nil, 0o600))

	tc := &fakeTranscoder{}
	res, err := Download(context.Background(), DownloadDeps{Store: store, Downloads: dir, Transcoder: tc})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Succeeded)

	got := make([]string, 0, len(tc.outputs))
	for _, o := range tc.outputs {
		got = append(got, filepath.Base(o))
	}
	assert.ElementsMatch(t, []string{
		"S01E07 - March 7th (Thursday) (1).mp4",
		"S01E07 - March 7th (Thursday) (2).mp4",
		"S01E07 - March 7th (Thursday) (3).mp4",
	}, got)
}

func TestDownload_PublishFailureKeepsDownload(t *testing.T) {
	store, downloads := downloadFixture(t)
	pub := &fakePublisher{err: errors.New("connection refused")}

	res, err := Download(context.Background(), DownloadDeps{
		Store:      store,
		Criteria:   catalog.Criteria{ExcludeUnits: []string{"CITS2002"}},
		Downloads:  downloads,
		Transcoder: &fakeTranscoder{},
		Publisher:  pub,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Succeeded)
	ok, _ := store.Get("ok")
	assert.True(t, ok.Downloaded)
}
