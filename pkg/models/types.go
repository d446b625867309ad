// Package models holds the data-model structs shared across the indexing
// substrate: volumes, metadata/content documents, volume state, and jobs.
package models

import (
	"time"

	"ultrasearch/internal/ids"
)

// Flags is the per-file attribute bitfield carried on every metadata
// document.
type Flags uint32

const (
	FlagIsDir Flags = 1 << iota
	FlagHidden
	FlagSystem
	FlagArchive
	FlagReparse
	FlagOffline
	FlagTemporary
)

// IsDir reports whether the IS_DIR bit is set.
func (f Flags) IsDir() bool { return f&FlagIsDir != 0 }

// Has reports whether all bits in mask are set.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }

// Volume describes one discovered NTFS volume and its indexing settings.
type Volume struct {
	ID              ids.VolumeId
	GUIDPath        string
	DriveLetters    []string
	IncludePaths    []string
	ExcludePaths    []string
	ContentIndexing bool
	LastUsn         ids.Usn
	JournalID       uint64
	LastGeneration  uint64
	Unhealthy       bool
	UnhealthyReason string
}

// MetadataDoc is one row of the metadata index: one per live file or
// directory per volume.
type MetadataDoc struct {
	DocKey   ids.DocKey
	Volume   ids.VolumeId
	Name     string
	Path     string
	Ext      string
	Size     uint64
	Created  time.Time
	Modified time.Time
	Flags    Flags

	// SeqNum is the FileId's reuse sequence number (ids.FileId.Sequence),
	// carried separately since DocKey itself discards it. The metadata
	// writer compares this against the sequence number stored for the
	// same DocKey on the previous write to detect a reused MFT record.
	SeqNum uint16
}

// ContentDoc is one row of the content index: present only for files that
// have gone through extraction.
type ContentDoc struct {
	DocKey      ids.DocKey
	Volume      ids.VolumeId
	Name        string
	Path        string
	Ext         string
	Size        uint64
	Modified    time.Time
	ContentLang string
	Content     string
}

// VolumeState is the on-disk, atomically-rewritten record of a volume's
// journal cursor and indexing progress.
type VolumeState struct {
	SchemaVersion         uint32
	VolumeGUID            string
	VolumeID              ids.VolumeId
	JournalID             uint64
	LastUsn               ids.Usn
	LastMFTScanGeneration uint64
	Settings              VolumeSettings
}

// VolumeSettings is the persisted, user-editable subset of Volume.
type VolumeSettings struct {
	IncludePaths    []string
	ExcludePaths    []string
	ContentIndexing bool
}

// JobKind distinguishes the three scheduler queues.
type JobKind int

const (
	JobCriticalUpdate JobKind = iota
	JobMetadataRebuild
	JobContentBatch
)

func (k JobKind) String() string {
	switch k {
	case JobCriticalUpdate:
		return "critical_update"
	case JobMetadataRebuild:
		return "metadata_rebuild"
	case JobContentBatch:
		return "content_batch"
	default:
		return "unknown"
	}
}

// ContentBatchFile is one file targeted by a ContentBatch job's payload.
type ContentBatchFile struct {
	DocKey ids.DocKey
	Path   string
	Ext    string
	Size   uint64
	Mime   string
}

// JobPayload carries the DocKey set (and, for content batches, target
// files and extractor configuration) associated with a Job. Deletes
// (rename/unlink) need only DocKeys; creates and attribute changes carry
// the full replacement doc in Upserts since the metadata writer's Upsert
// call needs a complete MetadataDoc, not just its key.
type JobPayload struct {
	DocKeys []ids.DocKey
	Upserts []MetadataDoc
	Files   []ContentBatchFile
}

// Job is an in-memory unit of scheduler work.
type Job struct {
	Kind     JobKind
	Priority int
	Volume   ids.VolumeId
	Payload  JobPayload
}
