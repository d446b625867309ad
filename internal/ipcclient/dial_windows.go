//go:build windows

package ipcclient

import (
	"context"

	"github.com/Microsoft/go-winio"
)

// DialWindows connects to a named pipe server and completes the Hello
// handshake.
func DialWindows(ctx context.Context, pipeName string) (*Client, error) {
	conn, err := winio.DialPipeContext(ctx, pipeName)
	if err != nil {
		return nil, err
	}
	return Dial(conn)
}

// DialEndpoint connects to addr over the platform-native transport. It
// has the same name on every platform so callers don't need a
// build-tagged switch of their own (see dial_unix.go's portable
// counterpart).
func DialEndpoint(ctx context.Context, addr string) (*Client, error) {
	return DialWindows(ctx, addr)
}
