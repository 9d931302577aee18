// Package segments provides an interface for writing logs into rotating segments.
// The user of this module only sees an Write() method to write into; all segment
// rotation functionality is handled internally by this package.
package segments

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
)

const (
	defaultMaxSegmentSize = 16 * 1024 * 1024 // 16MB
	defaultLogFileExt     = ".log"
)

var segmentFileNamePattern = regexp.MustCompile(`^segment-(\d+)\.log$`)

type SegmentsWriter interface {
	Write(n int, fn func(w io.Writer)) error
	Close() error
}

type segmentEntry struct {
	id   int
	name string
}

type SegmentEntries []segmentEntry

func (a SegmentEntries) Len() int           { return len(a) }
func (a SegmentEntries) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a SegmentEntries) Less(i, j int) bool { return a[i].id < a[j].id }

// DiskSegmentsWriterOption configures a diskSegmentsWriter at construction time.
type DiskSegmentsWriterOption func(*diskSegmentsWriter)

// WithMaxSegmentSize sets the size, in bytes, a segment is allowed to reach
// before a write rotates onto a fresh one.
func WithMaxSegmentSize(n int64) DiskSegmentsWriterOption {
	return func(w *diskSegmentsWriter) {
		w.maxSegmentSize = n
	}
}

type diskSegmentsWriter struct {
	mu             sync.Mutex
	dir            string
	logFileExt     string
	maxSegmentSize int64
	activeID       int
	active         *os.File
}

// NewDiskSegmentsWriter opens (or creates) a directory of rotating segment
// files and returns a writer that appends to the most recent one, rotating
// onto a new segment whenever a write would push it past maxSegmentSize.
func NewDiskSegmentsWriter(dir string, opts ...DiskSegmentsWriterOption) (*diskSegmentsWriter, error) {
	w := &diskSegmentsWriter{
		dir:            dir,
		logFileExt:     defaultLogFileExt,
		maxSegmentSize: defaultMaxSegmentSize,
	}
	for _, opt := range opts {
		opt(w)
	}

	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return nil, fmt.Errorf("path exists but is not a directory: %s", dir)
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return nil, err
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		if err := w.rotate(); err != nil {
			return nil, err
		}
		return w, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var found SegmentEntries
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if filepath.Ext(e.Name()) != w.logFileExt {
			continue
		}
		m := segmentFileNamePattern.FindStringSubmatch(e.Name())
		if len(m) != 2 {
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		found = append(found, segmentEntry{id: id, name: e.Name()})
	}

	if len(found) == 0 {
		if err := w.rotate(); err != nil {
			return nil, err
		}
		return w, nil
	}

	sort.Sort(found)
	latest := found[len(found)-1]
	w.activeID = latest.id

	f, err := os.OpenFile(filepath.Join(dir, latest.name), os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open active segment: %w", err)
	}
	w.active = f

	return w, nil
}

func (w *diskSegmentsWriter) path(id int) string {
	return filepath.Join(w.dir, fmt.Sprintf("segment-%04d%s", id, w.logFileExt))
}

func (w *diskSegmentsWriter) rotate() error {
	w.activeID++
	f, err := os.Create(w.path(w.activeID))
	if err != nil {
		return err
	}
	if w.active != nil {
		_ = w.active.Close()
	}
	w.active = f
	return nil
}

// Write appends the bytes fn writes to the active segment, rotating first
// if the active segment cannot hold n more bytes.
func (w *diskSegmentsWriter) Write(n int, fn func(w io.Writer)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	info, err := w.active.Stat()
	if err != nil {
		return err
	}

	if info.Size()+int64(n) > w.maxSegmentSize {
		if err := w.rotate(); err != nil {
			return err
		}
	}

	fn(w.active)

	return w.active.Sync()
}

func (w *diskSegmentsWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.active == nil {
		return nil
	}
	return w.active.Close()
}
