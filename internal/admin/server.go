package admin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/textproto"
	"sync/atomic"

	"golang.org/x/net/netutil"
)

// DefaultMaxConnections bounds concurrent admin connections absent an
// explicit override, standing in for the donor's http2/h2c connection
// cap (§11 domain stack: netutil.LimitListener).
const DefaultMaxConnections = 256

// Server is the msg-interface reference implementation's transport: it
// accepts plain TCP connections, parses one administrative request at a
// time per connection, and hands each to Master.Handle, writing the
// response back before reading the next request — which trivially
// upholds §9's "every response... is written to the originating
// connection in arrival order" contract, since requests on one
// connection are handled strictly sequentially.
type Server struct {
	Addr          string
	Master        *Master
	Name          string // this msg-interface module's wire name, for Gate bookkeeping
	MaxConns      int
	Logger        *slog.Logger

	connSeq atomic.Uint64
}

// ListenAndServe binds Addr and serves admin connections until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	maxConns := s.MaxConns
	if maxConns <= 0 {
		maxConns = DefaultMaxConnections
	}

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("admin: listen %s: %w", s.Addr, err)
	}
	ln = netutil.LimitListener(ln, maxConns)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	s.Logger.Info("admin server listening", slog.String("addr", s.Addr))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.Logger.Error("admin: accept failed", slog.Any("error", err))
			continue
		}
		id := s.connSeq.Add(1)
		go s.serveConn(ctx, conn, id)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn, connID uint64) {
	defer conn.Close()

	logger := s.Logger.With(slog.Uint64("conn", connID), slog.String("remote", conn.RemoteAddr().String()))
	logger.Info("admin connection accepted")
	defer logger.Info("admin connection closed")

	reader := textproto.NewReader(bufio.NewReader(conn))
	writer := bufio.NewWriter(conn)

	for {
		if ctx.Err() != nil {
			return
		}

		req, err := ReadRequest(reader)
		if err != nil {
			if err == io.EOF {
				return
			}
			logger.Warn("admin: malformed request", slog.Any("error", err))
			_ = WriteResponse(writer, Response{Code: CodeBadRequest})
			return
		}

		resp := s.Master.Handle(ctx, req, s.Name)
		if err := WriteResponse(writer, resp); err != nil {
			logger.Error("admin: write response failed", slog.Any("error", err))
			return
		}
	}
}
