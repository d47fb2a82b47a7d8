package server

import (
	"errors"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/woslots/WO/internal/codec"
	"github.com/woslots/WO/internal/protocol"
	"github.com/woslots/WO/internal/role"
)

// ErrConnClosed is returned by writes after the stream is gone.
var ErrConnClosed = errors.New("server: connection closed")

// Conn is the actor owning one physical connection. It holds the
// replaceable current role and the outbound framing state; every
// inbound packet is dispatched against the role current at that moment.
type Conn struct {
	id  string
	raw net.Conn
	log *zap.Logger

	mu           sync.Mutex
	current      role.Role
	sentPreamble bool
	alive        bool
}

func newConn(id string, raw net.Conn, log *zap.Logger) *Conn {
	return &Conn{
		id:    id,
		raw:   raw,
		log:   log,
		alive: true,
	}
}

// ID returns the connection's unique id.
func (c *Conn) ID() string { return c.id }

// Alive reports whether the stream is still writable.
func (c *Conn) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

// Role returns the current role.
func (c *Conn) Role() role.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// SetRole replaces the current role. The switch is atomic from the
// dispatcher's point of view: the next packet is handled by the new
// role.
func (c *Conn) SetRole(r role.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = r
}

// WritePacket frames and writes one packet. The first packet on the
// connection carries the protocol preamble. Writing to a closed
// connection is an error, never a panic.
func (c *Conn) WritePacket(p protocol.Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.alive {
		return ErrConnClosed
	}
	frame, err := codec.Encode(p, !c.sentPreamble)
	if err != nil {
		return err
	}
	c.sentPreamble = true
	if _, err := c.raw.Write(frame); err != nil {
		c.alive = false
		return err
	}
	return nil
}

// writeRaw bypasses packet framing, for the policy response only.
func (c *Conn) writeRaw(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.alive {
		return ErrConnClosed
	}
	_, err := c.raw.Write(data)
	return err
}

// close marks the connection dead and closes the stream. Idempotent.
func (c *Conn) close() {
	c.mu.Lock()
	wasAlive := c.alive
	c.alive = false
	c.mu.Unlock()
	if wasAlive {
		_ = c.raw.Close()
	}
}
