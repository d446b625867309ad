//go:build !windows

package ipcserver

import (
	"bufio"
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ultrasearch/internal/ipcclient"
	"ultrasearch/internal/ipcproto"
)

func echoHandler(ctx context.Context, req *ipcproto.Request) *ipcproto.Response {
	switch req.Kind {
	case ipcproto.RequestStatus:
		return &ipcproto.Response{ID: req.ID, Status: &ipcproto.StatusResponse{IdleState: "active"}}
	default:
		return &ipcproto.Response{ID: req.ID, Error: &ipcproto.Error{Kind: ipcproto.ErrConfigInvalid, Message: "unhandled"}}
	}
}

func TestServerHandshakeAndStatusRoundTrip(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "us.sock")
	ln, err := NewUnixListener(sockPath)
	if err != nil {
		t.Fatal(err)
	}
	srv := New(ln, echoHandler, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	client, err := ipcclient.Dial(conn)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	resp, err := client.Call(&ipcproto.Request{ID: "req-status", Kind: ipcproto.RequestStatus})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status == nil || resp.Status.IdleState != "active" {
		t.Fatalf("unexpected status response: %+v", resp)
	}
}

func TestServerRejectsProtocolVersionMismatch(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "us2.sock")
	ln, err := NewUnixListener(sockPath)
	if err != nil {
		t.Fatal(err)
	}
	srv := New(ln, echoHandler, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	req := &ipcproto.Request{ID: "bad-hello", Kind: ipcproto.RequestHello, Hello: &ipcproto.HelloRequest{ProtocolVersion: 999}}
	b, _ := ipcproto.Encode(req)
	if err := ipcproto.WriteFrame(conn, b); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	respBytes, err := ipcproto.ReadFrame(bufio.NewReader(conn))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := ipcproto.DecodeResponse(respBytes)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil || resp.Error.Kind != ipcproto.ErrProtocolVersion {
		t.Fatalf("expected protocol_version error, got %+v", resp)
	}
}
