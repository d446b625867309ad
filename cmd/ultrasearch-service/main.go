// Command ultrasearch-service is the long-running background process
// described in spec §2: it discovers volumes, drives MFT enumeration and
// USN tailing, owns the metadata-index writer, and answers queries over
// a local IPC endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ultrasearch/internal/config"
	"ultrasearch/internal/ipcproto"
	"ultrasearch/internal/ipcserver"
	"ultrasearch/internal/logging"
	"ultrasearch/internal/ntfswatcher"
	"ultrasearch/internal/scheduler"
	"ultrasearch/internal/service"
)

// defaultDiskBusyBytesPerSec mirrors config.applyDefaults'
// scheduler.disk_busy_bytes_per_s default; the real per-tick threshold
// is read from the Snapshot once the service is constructed, but the
// sampler itself is built before that, alongside the other Deps.
const defaultDiskBusyBytesPerSec = 50 * 1024 * 1024

// Exit codes per spec §6: 0 clean stop, 64 config error, 65 state
// directory unreadable, 70 fatal I/O.
const (
	exitSuccess            = 0
	exitConfigError        = 64
	exitStateDirUnreadable = 65
	exitFatalIO            = 70
)

func main() {
	cfgDir := flag.String("config-dir", "config", "directory containing config.toml")
	endpoint := flag.String("endpoint", "", "IPC endpoint override (named pipe path or socket path)")
	flag.Parse()

	preSnap, err := config.Load(*cfgDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ultrasearch-service: loading config: %v\n", err)
		os.Exit(exitConfigError)
	}
	log, err := logging.New(logging.Options{
		Dir:      preSnap.Paths.LogDir,
		Level:    preSnap.Logging.Level,
		Format:   preSnap.Logging.Format,
		Rotation: preSnap.Logging.Rotation,
		Process:  "service",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ultrasearch-service: logger init: %v\n", err)
		os.Exit(exitFatalIO)
	}

	if effective, effErr := preSnap.EffectiveTOML(); effErr == nil {
		log.Debug().Str("effective_config", effective).Msg("resolved configuration")
	}

	svc, err := service.New(*cfgDir, service.Deps{
		Watcher:     ntfswatcher.NewPlatformWatcher(),
		IdleSource:  ntfswatcher.NewPlatformIdleSource(),
		LoadSampler: scheduler.NewSystemLoadSampler(defaultDiskBusyBytesPerSec),
	}, log)
	if err != nil {
		log.Error().Err(err).Msg("initializing service")
		os.Exit(exitFatalIO)
	}
	defer svc.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	vols, err := svc.DiscoverVolumes(ctx)
	if err != nil {
		log.Error().Err(err).Msg("discovering volumes")
		os.Exit(exitStateDirUnreadable)
	}
	log.Info().Int("volumes", len(vols)).Msg("volumes discovered")
	svc.StartTailers(ctx, vols)

	addr := *endpoint
	if addr == "" {
		addr = ipcproto.DefaultEndpoint()
	}
	listener, err := ipcserver.NewListener(addr)
	if err != nil {
		log.Error().Err(err).Str("endpoint", addr).Msg("opening IPC listener")
		os.Exit(exitFatalIO)
	}
	srv := ipcserver.New(listener, svc.Handle, log)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx) }()

	runErr := make(chan error, 1)
	go func() { runErr <- svc.Run(ctx) }()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("IPC server stopped")
		}
	}

	<-runErr
	log.Info().Msg("ultrasearch-service shut down")
	os.Exit(exitSuccess)
}
