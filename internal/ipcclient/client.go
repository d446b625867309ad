// Package ipcclient implements the client side of the local IPC
// endpoint: dial a named pipe (Windows) or Unix-domain socket (portable
// fallback), perform the protocol-version handshake, and correlate
// one request to one response by id, per spec §4.7.
package ipcclient

import (
	"bufio"
	"fmt"
	"net"
	"sync"

	"ultrasearch/internal/ipcproto"
)

// Client is a connected IPC session. One Client serves one logical
// caller; concurrent Call invocations on the same Client are serialized,
// since the wire protocol is strictly one-request-then-one-response per
// connection (spec §4.7: "one request <-> one response").
type Client struct {
	conn   net.Conn
	reader *bufio.Reader

	mu sync.Mutex
}

// Dial connects over an already-established net.Conn (a named pipe or
// Unix socket dialed by the platform-specific helpers below) and
// performs the Hello handshake.
func Dial(conn net.Conn) (*Client, error) {
	c := &Client{conn: conn, reader: bufio.NewReader(conn)}

	helloReq := &ipcproto.Request{
		ID:    "hello",
		Kind:  ipcproto.RequestHello,
		Hello: &ipcproto.HelloRequest{ProtocolVersion: ipcproto.ProtocolVersion},
	}
	resp, err := c.call(helloReq)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ipcclient: hello: %w", err)
	}
	if resp.Error != nil {
		conn.Close()
		return nil, fmt.Errorf("ipcclient: hello rejected: %s", resp.Error.Message)
	}
	return c, nil
}

// Call sends req and waits for the correlated response.
func (c *Client) Call(req *ipcproto.Request) (*ipcproto.Response, error) {
	return c.call(req)
}

func (c *Client) call(req *ipcproto.Request) (*ipcproto.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, err := ipcproto.Encode(req)
	if err != nil {
		return nil, err
	}
	if err := ipcproto.WriteFrame(c.conn, b); err != nil {
		return nil, fmt.Errorf("ipcclient: write: %w", err)
	}

	payload, err := ipcproto.ReadFrame(c.reader)
	if err != nil {
		return nil, fmt.Errorf("ipcclient: read: %w", err)
	}
	resp, err := ipcproto.DecodeResponse(payload)
	if err != nil {
		return nil, fmt.Errorf("ipcclient: decode: %w", err)
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("ipcclient: response id %q does not match request id %q", resp.ID, req.ID)
	}
	return resp, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
