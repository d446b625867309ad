package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ultrasearch/internal/jobfile"
	"ultrasearch/internal/logging"
	"ultrasearch/internal/worker"
)

// Exit codes per spec §6: 0 success, 1 batch partially failed but
// committed, 2 init failure, 3 crash after partial work.
const (
	exitSuccess        = 0
	exitPartialFailure  = 1
	exitInitFailure     = 2
	exitCrashedPartial  = 3
)

func main() {
	var (
		jobPath = flag.String("job", "", "path to the worker job descriptor")
		jobsDir = flag.String("jobs-dir", "", "directory to write the result descriptor into")
		logDir  = flag.String("log-dir", "", "log directory (stdout if empty)")
		timeout = flag.Duration("timeout", 5*time.Minute, "hard ceiling for processing this batch")
	)
	flag.Parse()

	if *jobPath == "" {
		fmt.Fprintln(os.Stderr, "ultrasearch-worker: -job is required")
		os.Exit(exitInitFailure)
	}

	log, err := logging.New(logging.Options{Dir: *logDir, Level: "info", Format: "text", Process: "worker"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ultrasearch-worker: logging init: %v\n", err)
		os.Exit(exitInitFailure)
	}

	job, err := jobfile.ReadJob(*jobPath)
	if err != nil {
		log.Error().Err(err).Msg("reading job descriptor")
		os.Exit(exitInitFailure)
	}

	dir := *jobsDir
	if dir == "" {
		dir = os.Getenv("ULTRASEARCH_JOBS_DIR")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	w := worker.New(job.ExtractorConfig, log)
	res, runErr := w.RunJob(ctx, job)

	if dir != "" {
		if _, werr := jobfile.WriteResult(dir, res); werr != nil {
			log.Error().Err(werr).Msg("writing result descriptor")
			if runErr == nil {
				runErr = werr
			}
		}
	}

	if runErr != nil {
		log.Error().Err(runErr).Str("batch_id", job.BatchID).Msg("batch did not commit cleanly")
		if len(res.Processed) > 0 {
			os.Exit(exitCrashedPartial)
		}
		os.Exit(exitInitFailure)
	}

	if len(res.Failed) > 0 {
		log.Warn().Str("batch_id", job.BatchID).Int("failed", len(res.Failed)).Msg("batch committed with failures")
		os.Exit(exitPartialFailure)
	}

	log.Info().Str("batch_id", job.BatchID).Int("processed", len(res.Processed)).Msg("batch committed")
	os.Exit(exitSuccess)
}
