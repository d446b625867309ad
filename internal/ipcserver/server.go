// Package ipcserver implements the service side of the local IPC
// endpoint: a platform-native named pipe on Windows (via go-winio,
// the Go analogue of the original's tokio named-pipe transport) with a
// Unix-domain-socket listener as the portable fallback used in tests and
// non-Windows builds, per spec §4.7.
package ipcserver

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"ultrasearch/internal/ipcproto"
)

// Handler answers one decoded Request, returning the Response to send
// back. Handlers must not retain req/resp beyond the call.
type Handler func(ctx context.Context, req *ipcproto.Request) *ipcproto.Response

// Server accepts connections on a net.Listener and serves each one
// independently, per spec §4.7's "each client connection is handled
// independently; no shared mutable state on the hot path."
type Server struct {
	listener net.Listener
	handler  Handler
	log      zerolog.Logger

	mu       sync.Mutex
	wg       sync.WaitGroup
	closed   bool
}

// New wraps an already-bound listener (a named pipe listener on Windows,
// created by NewWindowsListener, or any net.Listener in tests).
func New(listener net.Listener, handler Handler, log zerolog.Logger) *Server {
	return &Server{listener: listener, handler: handler, log: log}
}

// Serve accepts connections until ctx is canceled or the listener closes.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				s.wg.Wait()
				return nil
			}
			return fmt.Errorf("ipcserver: accept: %w", err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

// Close stops accepting new connections. In-flight connections are left
// to finish their current request/response; internal/service layers a
// grace period on top via context cancellation.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.listener.Close()
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)

	helloed := false
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		payload, err := ipcproto.ReadFrame(reader)
		if err != nil {
			return
		}
		req, err := ipcproto.DecodeRequest(payload)
		if err != nil {
			s.log.Warn().Err(err).Msg("ipcserver: malformed request")
			return
		}

		if !helloed {
			if req.Kind != ipcproto.RequestHello || req.Hello == nil {
				s.writeError(conn, req.ID, ipcproto.ErrProtocolVersion, "first message must be Hello")
				return
			}
			if req.Hello.ProtocolVersion != ipcproto.ProtocolVersion {
				s.writeError(conn, req.ID, ipcproto.ErrProtocolVersion,
					fmt.Sprintf("server protocol_version %d, client sent %d", ipcproto.ProtocolVersion, req.Hello.ProtocolVersion))
				return
			}
			helloed = true
			resp := &ipcproto.Response{ID: req.ID, Hello: &ipcproto.HelloResponse{ProtocolVersion: ipcproto.ProtocolVersion}}
			if err := s.write(conn, resp); err != nil {
				return
			}
			continue
		}

		resp := s.handler(ctx, req)
		if resp == nil {
			resp = &ipcproto.Response{ID: req.ID}
		}
		if err := s.write(conn, resp); err != nil {
			return
		}
	}
}

func (s *Server) write(conn net.Conn, resp *ipcproto.Response) error {
	b, err := ipcproto.Encode(resp)
	if err != nil {
		return err
	}
	return ipcproto.WriteFrame(conn, b)
}

func (s *Server) writeError(conn net.Conn, id string, kind ipcproto.ErrorKind, msg string) {
	_ = s.write(conn, &ipcproto.Response{ID: id, Error: &ipcproto.Error{Kind: kind, Message: msg}})
}
