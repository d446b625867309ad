package service

import (
	"context"
	"os/exec"
	"time"

	"ultrasearch/internal/jobfile"
)

// ProcessLauncher spawns the ultrasearch-worker binary as a separate OS
// process for each content batch, per spec §5: "worker processes run
// independently with their own runtime... no shared memory."
type ProcessLauncher struct {
	JobsDir    string
	WorkerPath string
}

// NewProcessLauncher builds a launcher. workerPath defaults to
// "ultrasearch-worker" (resolved via PATH) if empty.
func NewProcessLauncher(jobsDir, workerPath string) *ProcessLauncher {
	if workerPath == "" {
		workerPath = "ultrasearch-worker"
	}
	return &ProcessLauncher{JobsDir: jobsDir, WorkerPath: workerPath}
}

// Launch runs the worker against the job descriptor already written for
// batchID, blocking until it exits or timeout elapses. It implements
// scheduler.WorkerLauncher.
func (l *ProcessLauncher) Launch(ctx context.Context, batchID string, timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	jobPath := jobfile.JobPath(l.JobsDir, batchID)
	cmd := exec.CommandContext(ctx, l.WorkerPath,
		"-job", jobPath,
		"-jobs-dir", l.JobsDir,
		"-timeout", timeout.String(),
	)
	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return false, ctx.Err()
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			// Exit codes 0 and 1 (spec §6: success / partially failed but
			// committed) both count as "exited cleanly" for supervision
			// purposes; only init failure (2) and crash-after-partial (3)
			// are treated as a launch failure.
			code := exitErr.ExitCode()
			return code == 0 || code == 1, nil
		}
		return false, err
	}
	return true, nil
}
