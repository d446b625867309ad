// Package statefile persists and loads the per-volume state archive
// (schema_version, volume_guid, volume_id, journal_id, last_usn,
// last_generation, settings) described in spec §3 and §6.
//
// The binary layout and write discipline (fixed header, explicit version
// byte, length-prefixed strings) is carried over from the teacher's
// internal/store/docs_io.go, adapted to this record shape and to the
// write-tmp-then-rename atomicity §5 requires ("written atomically after
// each committed batch of changes").
package statefile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ultrasearch/internal/ids"
	"ultrasearch/pkg/models"
)

const (
	header        = "USEARCH_VOLSTATE"
	currentSchema = uint32(1)
)

// Path returns the canonical on-disk path for a volume's state archive,
// rooted at the configured state directory: /volumes/{guid}/state.
func Path(stateDir, volumeGUID string) string {
	return filepath.Join(stateDir, sanitizeGUID(volumeGUID), "state")
}

func sanitizeGUID(guid string) string {
	out := make([]rune, 0, len(guid))
	for _, r := range guid {
		switch r {
		case '\\', '/', ':', '?', '*':
			continue
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

// Save atomically rewrites the state archive for one volume: it writes to
// a temp file in the same directory, then renames over the target so a
// concurrent reader never observes a partial write.
func Save(stateDir string, st models.VolumeState) error {
	path := Path(stateDir, st.VolumeGUID)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("statefile: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "state-*.tmp")
	if err != nil {
		return fmt.Errorf("statefile: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpPath)
	}()

	bw := bufio.NewWriter(tmp)
	if err := encode(bw, st); err != nil {
		return fmt.Errorf("statefile: encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("statefile: flush: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("statefile: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("statefile: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("statefile: rename into place: %w", err)
	}
	return nil
}

// Load reads the state archive for a volume. It returns os.ErrNotExist
// (wrapped) if no archive exists yet for this volume, in which case the
// caller should treat the volume as never-before-seen.
func Load(stateDir, volumeGUID string) (models.VolumeState, error) {
	path := Path(stateDir, volumeGUID)
	f, err := os.Open(path)
	if err != nil {
		return models.VolumeState{}, err
	}
	defer f.Close()
	return decode(bufio.NewReader(f))
}

func writeString(w io.Writer, s string) error {
	if len(s) > 0xFFFF {
		s = s[:0xFFFF]
	}
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(s)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", err
	}
	n := binary.LittleEndian.Uint16(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeStrings(w io.Writer, ss []string) error {
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(ss)))
	if _, err := w.Write(countBuf[:]); err != nil {
		return err
	}
	for _, s := range ss {
		if err := writeString(w, s); err != nil {
			return err
		}
	}
	return nil
}

func readStrings(r io.Reader) ([]string, error) {
	var countBuf [4]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(countBuf[:])
	out := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func encode(w io.Writer, st models.VolumeState) error {
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], currentSchema)
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	if err := writeString(w, st.VolumeGUID); err != nil {
		return err
	}

	var u16 [2]byte
	binary.LittleEndian.PutUint16(u16[:], uint16(st.VolumeID))
	if _, err := w.Write(u16[:]); err != nil {
		return err
	}

	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], st.JournalID)
	if _, err := w.Write(u64[:]); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(u64[:], uint64(st.LastUsn))
	if _, err := w.Write(u64[:]); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(u64[:], st.LastMFTScanGeneration)
	if _, err := w.Write(u64[:]); err != nil {
		return err
	}

	if err := writeStrings(w, st.Settings.IncludePaths); err != nil {
		return err
	}
	if err := writeStrings(w, st.Settings.ExcludePaths); err != nil {
		return err
	}
	boolByte := byte(0)
	if st.Settings.ContentIndexing {
		boolByte = 1
	}
	_, err := w.Write([]byte{boolByte})
	return err
}

func decode(r io.Reader) (models.VolumeState, error) {
	var st models.VolumeState

	hdr := make([]byte, len(header))
	if _, err := io.ReadFull(r, hdr); err != nil {
		return st, fmt.Errorf("statefile: reading header: %w", err)
	}
	if string(hdr) != header {
		return st, fmt.Errorf("statefile: bad header %q", hdr)
	}

	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return st, err
	}
	st.SchemaVersion = binary.LittleEndian.Uint32(buf[:])
	if st.SchemaVersion != currentSchema {
		return st, fmt.Errorf("statefile: unsupported schema version %d", st.SchemaVersion)
	}

	guid, err := readString(r)
	if err != nil {
		return st, err
	}
	st.VolumeGUID = guid

	var u16 [2]byte
	if _, err := io.ReadFull(r, u16[:]); err != nil {
		return st, err
	}
	st.VolumeID = ids.VolumeId(binary.LittleEndian.Uint16(u16[:]))

	var u64 [8]byte
	if _, err := io.ReadFull(r, u64[:]); err != nil {
		return st, err
	}
	st.JournalID = binary.LittleEndian.Uint64(u64[:])

	if _, err := io.ReadFull(r, u64[:]); err != nil {
		return st, err
	}
	st.LastUsn = ids.Usn(binary.LittleEndian.Uint64(u64[:]))

	if _, err := io.ReadFull(r, u64[:]); err != nil {
		return st, err
	}
	st.LastMFTScanGeneration = binary.LittleEndian.Uint64(u64[:])

	include, err := readStrings(r)
	if err != nil {
		return st, err
	}
	exclude, err := readStrings(r)
	if err != nil {
		return st, err
	}
	var boolByte [1]byte
	if _, err := io.ReadFull(r, boolByte[:]); err != nil {
		return st, err
	}
	st.Settings = models.VolumeSettings{
		IncludePaths:    include,
		ExcludePaths:    exclude,
		ContentIndexing: boolByte[0] != 0,
	}
	return st, nil
}
