// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command echodl fetches lecture recordings from the learning portal and
// downloads them as tagged video files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ManuGH/echodl/internal/catalog"
	"github.com/ManuGH/echodl/internal/config"
	"github.com/ManuGH/echodl/internal/health"
	"github.com/ManuGH/echodl/internal/infra/ffmpeg"
	"github.com/ManuGH/echodl/internal/jobs"
	xglog "github.com/ManuGH/echodl/internal/log"
	"github.com/ManuGH/echodl/internal/platform/httpx"
	"github.com/ManuGH/echodl/internal/publish"
	"github.com/ManuGH/echodl/internal/ratelimit"
	"github.com/ManuGH/echodl/internal/telemetry"
	"github.com/ManuGH/echodl/internal/version"
	"github.com/joho/godotenv"
)

type options struct {
	fetch         bool
	download      bool
	setDownloaded string
	list          bool
	verbose       bool
	username      string
	password      string
	configPath    string
	envFile       string
	metricsAddr   string
	showVersion   bool
}

func (o options) anyOperation() bool {
	return o.fetch || o.download || o.setDownloaded != "" || o.list
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	set := flag.NewFlagSet("echodl", flag.ContinueOnError)
	set.SetOutput(stderr)

	boolFlag := func(p *bool, long, short, usage string) {
		set.BoolVar(p, long, false, usage)
		set.BoolVar(p, short, false, "shorthand for -"+long)
	}
	stringFlag := func(p *string, long, short, usage string) {
		set.StringVar(p, long, "", usage)
		set.StringVar(p, short, "", "shorthand for -"+long)
	}

	boolFlag(&o.fetch, "fetch", "f", "fetch new lectures")
	boolFlag(&o.download, "download", "d", "download lectures that match the filter and are not downloaded yet")
	stringFlag(&o.setDownloaded, "setdownloaded", "s", "set the downloaded flag of lectures matching the filter to `true/false`")
	boolFlag(&o.list, "list", "l", "list the fetched lectures that match the filter")
	boolFlag(&o.verbose, "verbose", "v", "enable debug logging and show ffmpeg output")
	stringFlag(&o.username, "username", "u", "student number for the LMS login")
	stringFlag(&o.password, "password", "p", "password for the LMS login")
	set.StringVar(&o.configPath, "config", config.DefaultConfigFile, "path to the configuration file")
	set.StringVar(&o.envFile, "env-file", ".env", "optional dotenv file with ECHODL_* variables")
	set.StringVar(&o.metricsAddr, "metrics-listen", "", "serve /metrics, /healthz and /readyz on this address while running")
	set.BoolVar(&o.showVersion, "version", false, "print version and exit")

	if err := set.Parse(args); err != nil {
		return o, err
	}
	if set.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %s", strings.Join(set.Args(), " "))
	}
	return o, nil
}

// run executes the requested operations in the order fetch, download,
// set-downloaded, list. A failing operation is logged and the remaining
// ones still run; the exit code is 1 if any failed.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}
	if opts.showVersion {
		fmt.Fprintln(stdout, version.String())
		return 0
	}

	if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(stderr, "warning: %s: %v\n", opts.envFile, err)
	}

	level := ""
	if opts.verbose {
		level = "debug"
	}
	_ = xglog.Configure(xglog.Config{Level: level, Output: stderr, Version: version.Version})
	defer func() { _ = xglog.Close() }()
	logger := xglog.WithComponent("cli")

	cfg, err := config.NewLoader(opts.configPath).Load()
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldPath, opts.configPath).Str(xglog.FieldEvent, "config.load_failed").
			Msg("failed to load configuration")
		return 1
	}
	if cfg.LogFile != "" {
		if err := xglog.Configure(xglog.Config{Level: level, Output: stderr, File: cfg.LogFile, Version: version.Version}); err != nil {
			logger.Warn().Err(err).Str(xglog.FieldFile, cfg.LogFile).Msg("log file disabled")
		}
		logger = xglog.WithComponent("cli")
	}

	if !opts.anyOperation() {
		logger.Warn().Msg("nothing to do, pass -fetch, -download, -setdownloaded or -list (see -h)")
		return 0
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.FromConfig(cfg.Telemetry, version.Version))
	if err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "telemetry.disabled").Msg("tracing disabled")
	} else {
		defer func() { _ = tp.Shutdown(context.WithoutCancel(ctx)) }()
	}

	store := catalog.Load(cfg.CatalogFile)
	criteria := catalog.Criteria{
		ExcludeUnits:  cfg.ExcludeUnits,
		ExcludeVenues: cfg.ExcludeVenues,
		After:         cfg.After,
		Before:        cfg.Before,
	}

	tracker := health.NewRunTracker()
	if opts.metricsAddr != "" {
		hm := health.NewManager(version.Version)
		hm.RegisterChecker(tracker)
		hm.RegisterChecker(health.NewFileChecker("catalog", cfg.CatalogFile))
		hm.RegisterChecker(health.NewDirChecker("downloads", cfg.Downloads))
		shutdown, err := startMetricsServer(opts.metricsAddr, newRouter(hm), logger)
		if err != nil {
			logger.Error().Err(err).Str("addr", opts.metricsAddr).Msg("failed to start metrics listener")
			return 1
		}
		defer func() { _ = shutdown(context.WithoutCancel(ctx)) }()
	}

	failed := false
	step := func(op string, fn func() error) {
		if ctx.Err() != nil {
			return
		}
		tracker.Start(op)
		err := fn()
		tracker.Finish(op, err)
		if err != nil {
			failed = true
		}
	}

	if opts.fetch {
		step("fetch", func() error { return runFetch(ctx, cfg, opts, store) })
	}
	if opts.download {
		step("download", func() error { return runDownload(ctx, cfg, opts, store, criteria) })
	}
	if opts.setDownloaded != "" {
		step("setdownloaded", func() error {
			_, err := jobs.SetDownloaded(ctx, store, criteria, opts.setDownloaded)
			return err
		})
	}
	if opts.list {
		step("list", func() error { return printList(stdout, store.Filter(criteria)) })
	}

	if ctx.Err() != nil {
		logger.Warn().Str(xglog.FieldEvent, "cli.interrupted").Msg("interrupted")
		return 130
	}
	if failed {
		return 1
	}
	return 0
}

func httpOptions(cfg config.AppConfig) httpx.Options {
	return httpx.Options{
		Timeout: cfg.RequestTimeout,
		Limiter: ratelimit.New(ratelimit.FromRPS(cfg.RequestsPerSecond)),
		Tracing: cfg.Telemetry.Enabled,
	}
}

func runFetch(ctx context.Context, cfg config.AppConfig, opts options, store *catalog.Store) error {
	logger := xglog.WithComponent("cli")

	creds := jobs.Credentials{Username: opts.username, Password: opts.password}
	if !creds.Complete() {
		envUser, envPass := config.Credentials()
		if creds.Username == "" {
			creds.Username = envUser
		}
		if creds.Password == "" {
			creds.Password = envPass
		}
	}
	if !creds.Complete() {
		logger.Warn().Str(xglog.FieldEvent, "fetch.skipped").Msg("Please specify a username and password for logging into LMS")
		return nil
	}

	_, err := jobs.Fetch(ctx, jobs.FetchDeps{
		Portal:       cfg.Portal,
		Client:       httpx.NewClient(httpOptions(cfg)),
		Store:        store,
		ExcludeUnits: cfg.ExcludeUnits,
		Workers:      cfg.Workers,
	}, creds)
	return err
}

func runDownload(ctx context.Context, cfg config.AppConfig, opts options, store *catalog.Store, criteria catalog.Criteria) error {
	deps := jobs.DownloadDeps{
		Store:      store,
		Criteria:   criteria,
		Downloads:  cfg.Downloads,
		Transcoder: ffmpeg.NewRunner(cfg.FFmpegBin, opts.verbose),
		Workers:    cfg.Workers,
	}
	if up := publish.New(cfg.Publish); up.Enabled() {
		defer func() { _ = up.Close() }()
		deps.Publisher = up
	}
	_, err := jobs.Download(ctx, deps)
	return err
}
