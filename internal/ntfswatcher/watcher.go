// Package ntfswatcher implements volume discovery, MFT bulk enumeration,
// and USN journal tailing (spec §4.2). The production path runs only on
// Windows (NTFS-native ioctls via golang.org/x/sys/windows); an in-memory
// FakeWatcher backs the same Watcher interface for tests and non-Windows
// builds, mirroring the original implementation's explicit design intent
// ("a trait... to make the platform-specific implementation swap-able in
// tests", original_source/ultrasearch/crates/ntfs-watcher/src/lib.rs).
package ntfswatcher

import (
	"context"
	"errors"
	"fmt"

	"ultrasearch/internal/ids"
	"ultrasearch/pkg/models"
)

// FileMetaSeed is one record produced while bulk-enumerating a volume's
// MFT (spec §4.2).
type FileMetaSeed struct {
	DocKey     ids.DocKey
	ParentFRN  ids.FileId
	Name       string
	Flags      models.Flags
	Size       uint64
	Created    int64 // unix seconds
	Modified   int64 // unix seconds

	// SeqNum is the reuse sequence number read off the live MFT record
	// (ids.FileId.Sequence), independent of DocKey's masked FileId.
	SeqNum uint16
}

// FileEvent is one logical change derived from the USN journal (spec
// §4.2). Exactly one of the typed fields is meaningful per Kind.
type EventKind int

const (
	EventCreated EventKind = iota
	EventDeleted
	EventModified
	EventRenamed
	EventBasicInfoChanged
)

type FileEvent struct {
	Kind EventKind

	DocKey ids.DocKey

	// SeqNum is the reuse sequence number of the USN record's FRN
	// (ids.FileId.Sequence), carried alongside DocKey's masked FileId so
	// callers can detect an MFT record reused for a different file.
	SeqNum uint16

	// Created
	ParentFRN ids.FileId
	Name      string

	// Renamed
	OldName        string
	NewName        string
	NewParentFRN   ids.FileId
}

// JournalCursor identifies a resumable position in a volume's USN journal.
type JournalCursor struct {
	LastUsn   ids.Usn
	JournalID uint64
}

// JournalRange describes a journal's currently valid USN window, as
// reported by the volume itself.
type JournalRange struct {
	JournalID uint64
	FirstUsn  ids.Usn
	NextUsn   ids.Usn
}

// ErrorKind classifies watcher failures per spec §7's error taxonomy.
type ErrorKind int

const (
	ErrVolumeEnumeration ErrorKind = iota
	ErrJournalGap
	ErrJournalWrap
	ErrIoTransient
	ErrIoFatal
)

// WatcherError carries a classified cause without a stack, per §4.5/§7's
// failure-taxonomy style.
type WatcherError struct {
	Kind  ErrorKind
	Cause string
	Err   error
}

func (e *WatcherError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ntfswatcher: %s: %v", e.Cause, e.Err)
	}
	return fmt.Sprintf("ntfswatcher: %s", e.Cause)
}

func (e *WatcherError) Unwrap() error { return e.Err }

func newErr(kind ErrorKind, cause string, err error) *WatcherError {
	return &WatcherError{Kind: kind, Cause: cause, Err: err}
}

// Watcher abstracts the platform-specific volume discovery, MFT
// enumeration, and USN tailing operations so the service can be tested
// without real NTFS access.
type Watcher interface {
	// DiscoverVolumes enumerates local NTFS volumes. A second call must
	// return previously-assigned VolumeIds for still-present volumes,
	// matched by GUID path (spec §4.1).
	DiscoverVolumes(ctx context.Context) ([]models.Volume, error)

	// EnumerateMFT returns a lazy, non-restartable sequence of
	// FileMetaSeed records for one volume (spec §4.2). The returned
	// function yields one record per call and a final (zero, false) when
	// exhausted or on ctx cancellation.
	EnumerateMFT(ctx context.Context, vol models.Volume) (next func() (FileMetaSeed, bool, error), err error)

	// JournalRange reports a volume's current journal id and USN window,
	// used for gap/wrap detection (spec §4.2).
	JournalRange(ctx context.Context, vol models.Volume) (JournalRange, error)

	// TailUsn reads one bounded chunk (chunkBytes) of USN records after
	// cursor and returns the derived events plus the cursor to resume
	// from. It does not advance any persisted state itself.
	TailUsn(ctx context.Context, vol models.Volume, cursor JournalCursor, chunkBytes int) ([]FileEvent, JournalCursor, error)

	// StatFile looks up the current MFT record for one file by DocKey.
	// USN records carry only the fields that changed (spec §4.2's
	// Created/Modified/Renamed/BasicInfoChanged payloads), so the
	// tailer calls StatFile to fill in size, flags, and timestamps
	// before translating an event into a metadata upsert. ok is false
	// if the file no longer exists.
	StatFile(ctx context.Context, vol models.Volume, key ids.DocKey) (FileMetaSeed, bool, error)
}

// ResolveParentChain resolves a FRN to a full path by walking parent
// pointers through resolve, consulting cache first. It implements the
// "on-demand via parent-FRN chasing" resolution strategy from §4.2.
func ResolveParentChain(cache *PathCache, frn ids.FileId, resolve func(ids.FileId) (name string, parent ids.FileId, ok bool), sep string) (string, bool) {
	if p, ok := cache.Get(frn); ok {
		return p, true
	}

	var segments []string
	cur := frn
	const maxDepth = 4096 // guards against corrupt parent cycles; the MFT tree has no real cycles
	for depth := 0; depth < maxDepth; depth++ {
		if p, ok := cache.Get(cur); ok {
			full := p
			for i := len(segments) - 1; i >= 0; i-- {
				full += sep + segments[i]
			}
			cache.Put(frn, full)
			return full, true
		}
		name, parent, ok := resolve(cur)
		if !ok {
			return "", false
		}
		segments = append(segments, name)
		if parent == cur {
			break
		}
		cur = parent
	}

	full := ""
	for i := len(segments) - 1; i >= 0; i-- {
		if full == "" {
			full = segments[i]
		} else {
			full += sep + segments[i]
		}
	}
	cache.Put(frn, full)
	return full, true
}

var errNotImplemented = errors.New("ntfswatcher: not implemented on this platform")

// NeedsRebuild implements the gap/wrap recovery decision from spec §4.2:
// a volume is stale if its journal was recreated (JournalID differs) or
// if the stored cursor's LastUsn fell out of the journal's currently
// valid [FirstUsn, NextUsn] window (both ends inclusive).
func NeedsRebuild(stored JournalCursor, current JournalRange) bool {
	if stored.JournalID != current.JournalID {
		return true
	}
	if stored.LastUsn < current.FirstUsn || stored.LastUsn > current.NextUsn {
		return true
	}
	return false
}
