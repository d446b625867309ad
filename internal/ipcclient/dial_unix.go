//go:build !windows

package ipcclient

import (
	"context"
	"net"
)

// DialUnix connects to a Unix-domain socket server and completes the
// Hello handshake.
func DialUnix(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, err
	}
	return Dial(conn)
}

// DialEndpoint connects to addr over the portable transport. It has the
// same name on every platform so callers don't need a build-tagged
// switch of their own (see dial_windows.go's Windows counterpart).
func DialEndpoint(ctx context.Context, addr string) (*Client, error) {
	return DialUnix(addr)
}
