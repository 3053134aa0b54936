// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package publish mirrors finished downloads to an SFTP server.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/ManuGH/echodl/internal/config"
	"github.com/ManuGH/echodl/internal/log"
	"github.com/ManuGH/echodl/internal/metrics"
	"github.com/ManuGH/echodl/internal/resilience"
	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	dialTimeout = 20 * time.Second

	// Consecutive connection failures before uploads are skipped.
	breakerThreshold = 3
	breakerCooldown  = 2 * time.Minute
)

// ErrIncompleteConfig is returned when host, user or password is missing.
var ErrIncompleteConfig = errors.New("sftp: host, user and password are required")

type connectFunc func(ctx context.Context) (*sftp.Client, io.Closer, error)

// Uploader copies files to the configured remote directory. One SSH
// connection is opened lazily and shared by concurrent uploads. After
// repeated connection failures further uploads fail fast with
// resilience.ErrOpen until the cooldown has passed.
type Uploader struct {
	cfg     config.PublishConfig
	logger  zerolog.Logger
	breaker *resilience.Breaker

	mu      sync.Mutex
	client  *sftp.Client
	conn    io.Closer
	connect connectFunc
}

// New returns an uploader for cfg. It does not connect.
func New(cfg config.PublishConfig) *Uploader {
	if cfg.Port <= 0 {
		cfg.Port = 22
	}
	if cfg.RemoteDir == "" {
		cfg.RemoteDir = "/"
	}
	u := &Uploader{
		cfg:     cfg,
		logger:  log.WithComponent("publish"),
		breaker: resilience.New("sftp", breakerThreshold, breakerCooldown),
	}
	u.connect = u.dial
	return u
}

// Enabled reports whether a host is configured.
func (u *Uploader) Enabled() bool {
	return u != nil && u.cfg.Host != ""
}

// Upload copies localPath to RemoteDir/remoteName. The file is written under
// a temporary name and renamed when complete. Upload is a no-op when the
// uploader is not enabled.
func (u *Uploader) Upload(ctx context.Context, localPath, remoteName string) (err error) {
	if !u.Enabled() {
		return nil
	}
	defer func() { metrics.RecordPublish(err == nil) }()

	client, err := u.session(ctx)
	if err != nil {
		return err
	}

	remote := path.Join(u.cfg.RemoteDir, filepath.ToSlash(remoteName))
	if err := client.MkdirAll(path.Dir(remote)); err != nil {
		return fmt.Errorf("sftp: mkdir %s: %w", path.Dir(remote), err)
	}

	// #nosec G304 -- path is a file this process just wrote
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("sftp: open local file: %w", err)
	}
	defer src.Close()

	tmp := remote + ".part"
	if err := copyRemote(ctx, client, tmp, src); err != nil {
		_ = client.Remove(tmp)
		u.drop(client)
		return err
	}
	if err := client.PosixRename(tmp, remote); err != nil {
		// Servers without the posix-rename extension refuse to overwrite.
		_ = client.Remove(remote)
		if err := client.Rename(tmp, remote); err != nil {
			_ = client.Remove(tmp)
			return fmt.Errorf("sftp: rename %s: %w", remote, err)
		}
	}

	u.logger.Debug().Str(log.FieldPath, remote).Str(log.FieldEvent, "publish.uploaded").Msg("uploaded file")
	return nil
}

func copyRemote(ctx context.Context, client *sftp.Client, name string, src io.Reader) error {
	dst, err := client.Create(name)
	if err != nil {
		return fmt.Errorf("sftp: create remote file: %w", err)
	}

	// Closing the remote file aborts an in-flight copy on cancellation.
	stop := context.AfterFunc(ctx, func() { _ = dst.Close() })
	_, copyErr := io.Copy(dst, src)
	stopped := stop()
	closeErr := dst.Close()

	switch {
	case !stopped:
		return fmt.Errorf("sftp: upload copy: %w", ctx.Err())
	case copyErr != nil:
		return fmt.Errorf("sftp: upload copy: %w", copyErr)
	case closeErr != nil:
		return fmt.Errorf("sftp: close remote file: %w", closeErr)
	}
	return nil
}

// session returns the shared client, connecting on first use.
func (u *Uploader) session(ctx context.Context) (*sftp.Client, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.client != nil {
		return u.client, nil
	}
	var (
		client *sftp.Client
		conn   io.Closer
	)
	err := u.breaker.Execute(func() error {
		var err error
		client, conn, err = u.connect(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	u.client, u.conn = client, conn
	u.logger.Info().Str("host", u.cfg.Host).Str(log.FieldEvent, "publish.connected").Msg("connected to SFTP server")
	return client, nil
}

// drop closes client if it is still the shared one, so the next upload
// reconnects.
func (u *Uploader) drop(client *sftp.Client) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.client != client {
		return
	}
	_ = u.client.Close()
	_ = u.conn.Close()
	u.client, u.conn = nil, nil
}

// Close releases the shared connection, if any.
func (u *Uploader) Close() error {
	if u == nil {
		return nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.client == nil {
		return nil
	}
	err := errors.Join(u.client.Close(), u.conn.Close())
	u.client, u.conn = nil, nil
	return err
}

func (u *Uploader) dial(ctx context.Context) (*sftp.Client, io.Closer, error) {
	if u.cfg.Host == "" || u.cfg.User == "" || u.cfg.Password == "" {
		return nil, nil, ErrIncompleteConfig
	}
	hostKey, err := u.hostKeyCallback()
	if err != nil {
		return nil, nil, err
	}

	addr := net.JoinHostPort(u.cfg.Host, strconv.Itoa(u.cfg.Port))
	sshCfg := &ssh.ClientConfig{
		User:            u.cfg.User,
		Auth:            []ssh.AuthMethod{ssh.Password(u.cfg.Password)},
		HostKeyCallback: hostKey,
		Timeout:         dialTimeout,
	}

	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("sftp: dial error: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, sshCfg)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("sftp: handshake: %w", err)
	}
	_ = conn.SetDeadline(time.Time{})
	sshClient := ssh.NewClient(c, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, nil, fmt.Errorf("sftp: new client: %w", err)
	}
	return client, sshClient, nil
}

func (u *Uploader) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if u.cfg.InsecureIgnoreHostKey {
		u.logger.Warn().Str(log.FieldEvent, "publish.insecure").Msg("SFTP host key verification is disabled")
		// #nosec G106 -- explicitly requested by the operator
		return ssh.InsecureIgnoreHostKey(), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("sftp: locate known_hosts: %w", err)
	}
	cb, err := knownhosts.New(filepath.Join(home, ".ssh", "known_hosts"))
	if err != nil {
		return nil, fmt.Errorf("sftp: load known_hosts (set publish.insecureIgnoreHostKey to skip): %w", err)
	}
	return cb, nil
}
