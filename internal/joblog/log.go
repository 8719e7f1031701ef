// Package joblog manages the per-job-instance, per-role append-only log
// files backing ConsoleLog, streamed to `initctl log-stream` clients
// through a named fifo rather than an ordinary file so a subscriber only
// sees output produced after it attaches.
package joblog

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/containerd/fifo"
)

// Log is one role's live output sink: writes from the spawned process's
// stdout/stderr land in both the on-disk file (for replay) and any
// currently attached fifo readers (for streaming).
type Log struct {
	mu   sync.Mutex
	path string
	file *os.File
	fifo io.ReadWriteCloser
}

// Open creates (or appends to) the log file at path and the sibling fifo
// path+".fifo" that log-stream subscribers connect to.
func Open(ctx context.Context, path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	fifoPath := path + ".fifo"
	fh, err := fifo.OpenFifo(ctx, fifoPath, os.O_CREATE|os.O_RDWR|os.O_NONBLOCK, 0600)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Log{path: path, file: f, fifo: fh}, nil
}

// Write satisfies io.Writer so a Log can be handed straight to
// spawn.Console as the ConsoleLog destination; it tees to both the
// on-disk file and the streaming fifo, best-effort on the latter (a
// reader that isn't currently attached must never block job output).
func (l *Log) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, err := l.file.Write(p)
	if l.fifo != nil {
		_, _ = l.fifo.Write(p)
	}
	return n, err
}

// Path returns the on-disk log file path, for `initctl log` to read back.
func (l *Log) Path() string { return l.path }

// Close releases the file and fifo.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fifo != nil {
		l.fifo.Close()
	}
	return l.file.Close()
}
