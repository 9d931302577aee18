// Package segmentmanager provides an interface for writing logs into rotating segments.
// Callers write through WriteActive(), which rotates to a new segment when the active one
// would overflow; RotateSegment, Sync and Close are also exposed.
package segmentmanager

import "io"

// SegmentManager exposes the active segment for writing and lets callers
// force a rotation or a sync without knowing the on-disk layout.
type SegmentManager interface {
	WriteActive(n int, fn func(io.Writer)) error
	RotateSegment() error
	Sync() error
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

// WithLogFileExt overrides the default ".log" segment file extension.
func WithLogFileExt(ext string) DiskSegmentManagerOption {
	return func(sm *diskSegmentManager) {
		sm.logFileExt = ext
	}
}
