// Package ipcproto defines the wire protocol shared by the service's IPC
// server and its clients: length-prefixed binary framing plus the tagged
// request/response envelope types named in spec §4.7/§6.
package ipcproto

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// ProtocolVersion is bumped on any incompatible wire change. Server and
// client exchange it in the Hello handshake; a major mismatch refuses the
// connection per spec §4.7.
const ProtocolVersion uint32 = 1

// MaxFrameBytes bounds a single frame to guard against a misbehaving peer
// claiming an enormous length prefix.
const MaxFrameBytes = 64 * 1024 * 1024

// WriteFrame writes one length-prefixed frame: a 4-byte little-endian
// length followed by payload, matching spec §4.7's `[u32 LE length][payload]`.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameBytes {
		return fmt.Errorf("ipcproto: frame of %d bytes exceeds max %d", len(payload), MaxFrameBytes)
	}
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("ipcproto: write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("ipcproto: write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r.
func ReadFrame(r *bufio.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	if n > MaxFrameBytes {
		return nil, fmt.Errorf("ipcproto: frame of %d bytes exceeds max %d", n, MaxFrameBytes)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("ipcproto: read frame payload: %w", err)
	}
	return payload, nil
}
