// Package logging builds the service- and worker-wide zerolog logger and
// implements the rotation policies from the config surface (§6: daily,
// size, never). The rotating writer follows the teacher's
// (internal/store/docs_io.go) discipline of creating files with an
// explicit header/version discipline and flushing deliberately, adapted
// here to log segment rollover instead of index records.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options configures New.
type Options struct {
	Dir      string
	Level    string // debug|info|warn|error
	Format   string // text|json
	Rotation string // daily|size|never
	Process  string // "service" or "worker", used in the log file name
}

// New builds a zerolog.Logger writing to Dir/<process>.log (or stdout if
// Dir is empty), honoring the configured format and rotation policy.
func New(opts Options) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var w io.Writer = os.Stdout
	if opts.Dir != "" {
		rw, err := newRotatingWriter(opts.Dir, opts.Process, opts.Rotation)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("logging: %w", err)
		}
		w = rw
	}

	if opts.Format == "text" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Str("process", opts.Process).Logger()
	return logger, nil
}

// rotatingWriter implements the daily/size/never rotation policies over a
// single logical log stream.
type rotatingWriter struct {
	mu       sync.Mutex
	dir      string
	process  string
	policy   string
	file     *os.File
	day      string
	size     int64
	maxBytes int64
}

const defaultMaxBytes = 64 * 1024 * 1024

func newRotatingWriter(dir, process, policy string) (*rotatingWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	rw := &rotatingWriter{dir: dir, process: process, policy: policy, maxBytes: defaultMaxBytes}
	if err := rw.open(); err != nil {
		return nil, err
	}
	return rw, nil
}

func (w *rotatingWriter) currentPath() string {
	switch w.policy {
	case "daily":
		return filepath.Join(w.dir, fmt.Sprintf("%s-%s.log", w.process, w.day))
	default:
		return filepath.Join(w.dir, w.process+".log")
	}
}

func (w *rotatingWriter) open() error {
	w.day = time.Now().UTC().Format("2006-01-02")
	f, err := os.OpenFile(w.currentPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	w.file = f
	w.size = stat.Size()
	return nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.needsRotation() {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *rotatingWriter) needsRotation() bool {
	switch w.policy {
	case "daily":
		return time.Now().UTC().Format("2006-01-02") != w.day
	case "size":
		return w.size >= w.maxBytes
	default:
		return false
	}
}

func (w *rotatingWriter) rotate() error {
	if w.file != nil {
		w.file.Close()
	}
	return w.open()
}
