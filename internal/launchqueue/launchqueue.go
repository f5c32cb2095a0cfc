// Package launchqueue records client-creation requests for the
// out-of-process agent launcher.
//
// The queue is a plain text file with one agent name per line. The server
// only ever appends; the launcher polls the file and remembers how far it
// has read. ReadFrom implements that read side; the MCP surface uses it to
// show which launch requests have been written.
package launchqueue

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ashita-ai/tsushin/internal/model"
)

// DefaultPath is the file name the Java launcher polls.
const DefaultPath = "client_requests.txt"

// Queue appends launch requests to a file. Safe for concurrent use.
type Queue struct {
	path string
	sync bool

	mu sync.Mutex
}

// New returns a queue writing to path. When syncWrites is true every
// Enqueue fsyncs before returning.
func New(path string, syncWrites bool) *Queue {
	if path == "" {
		path = DefaultPath
	}
	return &Queue{path: path, sync: syncWrites}
}

// Path returns the queue file location.
func (q *Queue) Path() string {
	return q.path
}

// Enqueue appends name as a new line. Failures are reported as
// model.ErrUnavailable.
func (q *Queue) Enqueue(name string) error {
	if name == "" || strings.ContainsAny(name, "\r\n") {
		return fmt.Errorf("%w: launch request name %q", model.ErrInvalidArgument, name)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if dir := filepath.Dir(q.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: launchqueue: create dir: %v", model.ErrUnavailable, err)
		}
	}

	f, err := os.OpenFile(q.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: launchqueue: open: %v", model.ErrUnavailable, err)
	}
	if _, err := f.WriteString(name + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: launchqueue: write: %v", model.ErrUnavailable, err)
	}
	if q.sync {
		if err := f.Sync(); err != nil {
			_ = f.Close()
			return fmt.Errorf("%w: launchqueue: sync: %v", model.ErrUnavailable, err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: launchqueue: close: %v", model.ErrUnavailable, err)
	}
	return nil
}

// ReadFrom returns the complete lines written after byte offset and the
// offset to resume from. A trailing partial line is left for the next call.
// A missing file yields no names and the same offset.
func (q *Queue) ReadFrom(offset int64) ([]string, int64, error) {
	f, err := os.Open(q.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, offset, nil
		}
		return nil, offset, fmt.Errorf("launchqueue: open: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("launchqueue: seek: %w", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, offset, fmt.Errorf("launchqueue: read: %w", err)
	}

	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return nil, offset, nil
	}

	var names []string
	for _, line := range strings.Split(string(data[:end]), "\n") {
		if line = strings.TrimRight(line, "\r"); line != "" {
			names = append(names, line)
		}
	}
	return names, offset + int64(end) + 1, nil
}
