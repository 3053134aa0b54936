// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package publish

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/ManuGH/echodl/internal/config"
	"github.com/ManuGH/echodl/internal/resilience"
	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryServer connects an sftp client to an in-memory request server.
func memoryServer(t *testing.T) (*sftp.Client, io.Closer) {
	t.Helper()
	toServerR, toServerW := io.Pipe()
	toClientR, toClientW := io.Pipe()

	server := sftp.NewRequestServer(struct {
		io.Reader
		io.WriteCloser
	}{toServerR, toClientW}, sftp.InMemHandler())
	go func() { _ = server.Serve(); _ = toClientW.Close() }()

	client, err := sftp.NewClientPipe(toClientR, toServerW)
	require.NoError(t, err)
	return client, server
}

func newTestUploader(t *testing.T, remoteDir string) (*Uploader, *int32) {
	t.Helper()
	var dials int32
	u := New(config.PublishConfig{Host: "mirror.example", User: "u", Password: "p", RemoteDir: remoteDir})
	u.connect = func(context.Context) (*sftp.Client, io.Closer, error) {
		atomic.AddInt32(&dials, 1)
		client, closer := memoryServer(t)
		return client, closer, nil
	}
	t.Cleanup(func() { _ = u.Close() })
	return u, &dials
}

func localFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "S01E01 - March 5th (Tuesday).mp4")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func readRemote(t *testing.T, u *Uploader, name string) string {
	t.Helper()
	f, err := u.client.Open(name)
	require.NoError(t, err)
	defer f.Close()
	b, err := io.ReadAll(f)
	require.NoError(t, err)
	return string(b)
}

func TestUpload_WritesUnderRemoteDir(t *testing.T) {
	u, dials := newTestUploader(t, "/lectures")
	ctx := context.Background()

	require.NoError(t, u.Upload(ctx, localFile(t, "first"), "CITS1001/S01E01 - March 5th (Tuesday).mp4"))
	require.NoError(t, u.Upload(ctx, localFile(t, "second"), "CITS1001/S01E02 - March 8th (Friday).mp4"))

	assert.Equal(t, "first", readRemote(t, u, "/lectures/CITS1001/S01E01 - March 5th (Tuesday).mp4"))
	assert.Equal(t, "second", readRemote(t, u, "/lectures/CITS1001/S01E02 - March 8th (Friday).mp4"))
	assert.Equal(t, int32(1), atomic.LoadInt32(dials), "the connection is reused")

	_, err := u.client.Stat("/lectures/CITS1001/S01E01 - March 5th (Tuesday).mp4.part")
	assert.Error(t, err, "temporary file is renamed away")
}

func TestUpload_ReplacesExisting(t *testing.T) {
	u, _ := newTestUploader(t, "/")
	ctx := context.Background()

	require.NoError(t, u.Upload(ctx, localFile(t, "old"), "U/a.mp4"))
	require.NoError(t, u.Upload(ctx, localFile(t, "new"), "U/a.mp4"))
	assert.Equal(t, "new", readRemote(t, u, "/U/a.mp4"))
}

func TestUpload_MissingLocalFile(t *testing.T) {
	u, _ := newTestUploader(t, "/")
	err := u.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"), "U/a.mp4")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUpload_DisabledIsNoop(t *testing.T) {
	u := New(config.PublishConfig{})
	assert.False(t, u.Enabled())
	assert.NoError(t, u.Upload(context.Background(), "/nope", "x"))

	var nilUploader *Uploader
	assert.False(t, nilUploader.Enabled())
	assert.NoError(t, nilUploader.Close())
}

func TestUpload_ConnectFailure(t *testing.T) {
	u := New(config.PublishConfig{Host: "mirror.example"})
	err := u.Upload(context.Background(), localFile(t, "x"), "x")
	assert.ErrorIs(t, err, ErrIncompleteConfig)

	boom := errors.New("refused")
	u.connect = func(context.Context) (*sftp.Client, io.Closer, error) { return nil, nil, boom }
	assert.ErrorIs(t, u.Upload(context.Background(), localFile(t, "x"), "x"), boom)
}

func TestUpload_StopsDialingAfterRepeatedFailures(t *testing.T) {
	u := New(config.PublishConfig{Host: "mirror.example", User: "u", Password: "p"})
	var dials int32
	u.connect = func(context.Context) (*sftp.Client, io.Closer, error) {
		atomic.AddInt32(&dials, 1)
		return nil, nil, errors.New("refused")
	}
	src := localFile(t, "x")

	for i := 0; i < breakerThreshold; i++ {
		assert.Error(t, u.Upload(context.Background(), src, "x"))
	}
	assert.ErrorIs(t, u.Upload(context.Background(), src, "x"), resilience.ErrOpen)
	assert.Equal(t, int32(breakerThreshold), atomic.LoadInt32(&dials))
}

func TestUpload_ReconnectsAfterCopyFailure(t *testing.T) {
	u, dials := newTestUploader(t, "/")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, u.Upload(ctx, localFile(t, "x"), "U/a.mp4"))
	require.NoError(t, u.Upload(context.Background(), localFile(t, "y"), "U/a.mp4"))
	assert.Equal(t, "y", readRemote(t, u, "/U/a.mp4"))
	assert.Equal(t, int32(2), atomic.LoadInt32(dials))
}

func TestNew_Defaults(t *testing.T) {
	u := New(config.PublishConfig{Host: "h"})
	assert.Equal(t, 22, u.cfg.Port)
	assert.Equal(t, "/", u.cfg.RemoteDir)
}
