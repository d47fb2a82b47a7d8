// Package server accepts raw stream connections and runs one reader
// loop per connection. Frames go through the codec and on to the
// handler; role lifecycle and cleanup key off the connection's current
// role.
package server

import (
	"context"
	"errors"
	"net"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/woslots/WO/internal/codec"
	"github.com/woslots/WO/internal/protocol"
	"github.com/woslots/WO/internal/role"
)

// readBufferSize fits the largest legacy client frame comfortably.
const readBufferSize = 64 * 1024

// Handler consumes decoded packets and connection lifecycle events.
// Implemented by the command dispatcher.
type Handler interface {
	HandlePacket(c *Conn, p protocol.Packet)
	ConnectionClosed(c *Conn)
}

// RoleFactory builds the initial role for a fresh connection.
type RoleFactory func(c *Conn) role.Role

// Server is the TCP accept loop.
type Server struct {
	addr    string
	log     *zap.Logger
	handler Handler
	newRole RoleFactory

	ln net.Listener
}

func New(addr string, handler Handler, newRole RoleFactory, log *zap.Logger) *Server {
	return &Server{addr: addr, log: log, handler: handler, newRole: newRole}
}

// Addr returns the bound listen address, valid after Listen.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Listen binds the listen socket. Split from Serve so callers can learn
// the bound port before accepting.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.log.Info("game server listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Serve accepts connections until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	go func() {
		<-ctx.Done()
		_ = s.ln.Close()
	}()
	for {
		raw, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn("accept failed", zap.Error(err))
			continue
		}
		go s.handleConn(raw)
	}
}

// handleConn is the per-connection reader loop.
func (s *Server) handleConn(raw net.Conn) {
	c := newConn(uuid.NewString(), raw, s.log)
	c.SetRole(s.newRole(c))
	s.log.Info("new connection",
		zap.String("conn_id", c.ID()),
		zap.String("remote", raw.RemoteAddr().String()))

	defer func() {
		c.close()
		s.handler.ConnectionClosed(c)
		s.log.Info("connection closed", zap.String("conn_id", c.ID()))
	}()

	buf := make([]byte, readBufferSize)
	for {
		n, err := raw.Read(buf)
		if err != nil {
			return
		}
		data := buf[:n]

		// A legacy cross-domain policy probe short-circuits everything:
		// answer the fixed document and drop the connection.
		if codec.IsPolicyProbe(data) {
			s.log.Info("policy probe answered", zap.String("conn_id", c.ID()))
			_ = c.writeRaw(codec.PolicyResponse)
			return
		}

		p, err := codec.Decode(data)
		if err != nil {
			// Malformed frames are dropped; the connection lives on.
			s.log.Warn("frame dropped",
				zap.String("conn_id", c.ID()),
				zap.Error(err))
			continue
		}
		s.handler.HandlePacket(c, p)
	}
}
