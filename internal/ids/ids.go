// Package ids defines the identifier types shared by every index, queue,
// and wire format in UltraSearch: VolumeId, FileId, DocKey, and Usn.
package ids

import (
	"fmt"
	"strconv"
	"strings"
)

// VolumeId is a runtime-assigned index into the service's volume table.
// It is stable across restarts for a given volume GUID path.
type VolumeId uint16

// FileId is the NTFS File Reference Number: the low 48 bits are the MFT
// record number, the high 16 bits are the record's reuse sequence number.
type FileId uint64

// Usn is a position in a volume's USN change journal.
type Usn int64

const fileIdMask = 0x0000_FFFF_FFFF_FFFF

// DocKey packs a VolumeId and FileId into the single 64-bit primary key
// used by both the metadata and content indices.
type DocKey uint64

// NewDocKey packs volume (high 16 bits) and file (low 48 bits) into a DocKey.
func NewDocKey(volume VolumeId, file FileId) DocKey {
	return DocKey(uint64(volume)<<48 | (uint64(file) & fileIdMask))
}

// Volume returns the VolumeId component of the key.
func (k DocKey) Volume() VolumeId {
	return VolumeId(uint64(k) >> 48)
}

// FileID returns the FileId component of the key, masked to 48 bits.
func (k DocKey) FileID() FileId {
	return FileId(uint64(k) & fileIdMask)
}

// Sequence returns the record's reuse sequence number: the high 16 bits
// NewDocKey discards when packing a FileId into a DocKey. Two FileIds
// with the same low 48 bits but different Sequence values identify
// different files that happen to share an MFT record number after NTFS
// reused it.
func (f FileId) Sequence() uint16 {
	return uint16(uint64(f) >> 48)
}

// Split returns both components; equivalent to calling Volume and FileID.
func (k DocKey) Split() (VolumeId, FileId) {
	return k.Volume(), k.FileID()
}

// String renders the key as "<volume>:0x<frn_hex>", matching the display
// form used by the original implementation's DocKey so log lines and CLI
// output stay greppable across both. The frn is zero-padded to the full
// 48-bit FileId width (12 hex digits after the "0x" prefix; Go's width
// counts only the digits, not the prefix) so every DocKey's string form is
// the same length regardless of the file reference number's magnitude.
func (k DocKey) String() string {
	v, f := k.Split()
	return fmt.Sprintf("%d:%#012x", v, uint64(f))
}

// ParseDocKey parses the Display form produced by String.
func ParseDocKey(s string) (DocKey, error) {
	volPart, frnPart, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("ids: missing ':' in doc key %q", s)
	}
	vol, err := strconv.ParseUint(volPart, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("ids: invalid volume id in %q: %w", s, err)
	}
	hex, ok := strings.CutPrefix(frnPart, "0x")
	if !ok {
		return 0, fmt.Errorf("ids: missing 0x prefix in %q", s)
	}
	frn, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("ids: invalid frn in %q: %w", s, err)
	}
	return NewDocKey(VolumeId(vol), FileId(frn&fileIdMask)), nil
}
