//go:build windows

package ipcserver

import (
	"net"

	"github.com/Microsoft/go-winio"
)

// NewWindowsListener opens a named pipe listener at pipeName (e.g.
// `\\.\pipe\ultrasearch`), the platform-native transport named in spec
// §4.7.
func NewWindowsListener(pipeName string) (net.Listener, error) {
	return winio.ListenPipe(pipeName, &winio.PipeConfig{
		SecurityDescriptor: "",
		MessageMode:        false,
		InputBufferSize:    65536,
		OutputBufferSize:   65536,
	})
}

// NewListener opens the platform-native IPC listener at addr. It has the
// same name on every platform so callers don't need a build-tagged
// switch of their own (see listener_unix.go's portable counterpart).
func NewListener(addr string) (net.Listener, error) {
	return NewWindowsListener(addr)
}
