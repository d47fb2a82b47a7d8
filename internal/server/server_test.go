package server_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/woslots/WO/internal/assets"
	"github.com/woslots/WO/internal/codec"
	"github.com/woslots/WO/internal/dispatch"
	"github.com/woslots/WO/internal/protocol"
	"github.com/woslots/WO/internal/registry"
	"github.com/woslots/WO/internal/role"
	"github.com/woslots/WO/internal/server"
	"github.com/woslots/WO/internal/store"
)

// client is a minimal stand-in for the legacy game client.
type client struct {
	t           *testing.T
	conn        net.Conn
	r           *bufio.Reader
	sawPreamble bool
}

func startServer(t *testing.T) (*client, *client) {
	t.Helper()

	lib := &assets.Library{
		Maps: map[string]assets.Map{
			"Crash Landing": {
				Name:      "Crash Landing",
				Positions: [][]float64{{100, 200}, {300, 400}},
			},
		},
	}
	log := zap.NewNop()
	reg := registry.New(lib, store.NewMemoryStore(), log,
		registry.WithAutoStartDelay(50*time.Millisecond))
	disp := dispatch.New(reg, log)
	srv := server.New("127.0.0.1:0", disp, func(c *server.Conn) role.Role {
		return role.NewLobbyRole(c, reg, log)
	}, log)

	require.NoError(t, srv.Listen())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = srv.Serve(ctx) }()

	return dialClient(t, srv.Addr().String()), dialClient(t, srv.Addr().String())
}

func dialClient(t *testing.T, addr string) *client {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	return &client{t: t, conn: conn, r: bufio.NewReader(conn)}
}

// sendBare writes one packet as bare JSON.
func (c *client) sendBare(p protocol.Packet) {
	c.t.Helper()
	body, err := json.Marshal(p)
	require.NoError(c.t, err)
	_, err = c.conn.Write(body)
	require.NoError(c.t, err)
	// Give the reader loop a beat so consecutive writes arrive as
	// separate reads, the way the flash client's pacing delivers them.
	time.Sleep(20 * time.Millisecond)
}

// sendPrefixed writes one packet in the length-prefixed raw mode.
func (c *client) sendPrefixed(p protocol.Packet) {
	c.t.Helper()
	body, err := json.Marshal(p)
	require.NoError(c.t, err)
	_, err = fmt.Fprintf(c.conn, "%06d%s", len(body), body)
	require.NoError(c.t, err)
	time.Sleep(20 * time.Millisecond)
}

// readPacket reads one framed packet, consuming the preamble first when
// it has not been seen yet.
func (c *client) readPacket() protocol.Packet {
	c.t.Helper()
	if !c.sawPreamble {
		pre := make([]byte, len(codec.Preamble))
		_, err := io.ReadFull(c.r, pre)
		require.NoError(c.t, err)
		require.Equal(c.t, codec.Preamble, string(pre))
		c.sawPreamble = true
	}
	head := make([]byte, 6)
	_, err := io.ReadFull(c.r, head)
	require.NoError(c.t, err)
	n, err := strconv.Atoi(string(head))
	require.NoError(c.t, err)
	body := make([]byte, n)
	_, err = io.ReadFull(c.r, body)
	require.NoError(c.t, err)

	var p protocol.Packet
	require.NoError(c.t, json.Unmarshal(body, &p))
	return p
}

// waitFor reads packets until one with the wanted command arrives.
func (c *client) waitFor(command string) protocol.Packet {
	c.t.Helper()
	for i := 0; i < 50; i++ {
		p := c.readPacket()
		if p.Command() == command {
			return p
		}
	}
	c.t.Fatalf("never received %q", command)
	return nil
}

func TestPolicyProbe(t *testing.T) {
	a, _ := startServer(t)

	_, err := a.conn.Write([]byte("<policy-file-request/>\x00"))
	require.NoError(t, err)

	got, err := io.ReadAll(a.conn)
	require.NoError(t, err)
	assert.Equal(t, codec.PolicyResponse, got)
}

func TestLoginHandshake(t *testing.T) {
	a, _ := startServer(t)

	a.sendBare(protocol.Packet{"command": "logIn", "id": "a", "dname": "ari"})

	ack := a.waitFor(protocol.CmdLogInAck)
	assert.Equal(t, "a", ack["id"])
	assert.Equal(t, "ari", ack["dname"])
	assert.Equal(t, float64(200), ack["treats"])

	a.waitFor(protocol.CmdAssets)
}

func TestMalformedFrameKeepsConnection(t *testing.T) {
	a, _ := startServer(t)

	_, err := a.conn.Write([]byte("not json at all"))
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	// The connection survives the bad frame and still serves a login.
	a.sendBare(protocol.Packet{"command": "logIn", "id": "a", "dname": "ari"})
	a.waitFor(protocol.CmdLogInAck)
}

func TestTwoPlayerMatchStarts(t *testing.T) {
	a, b := startServer(t)

	a.sendBare(protocol.Packet{"command": "logIn", "id": "a", "dname": "ari"})
	b.sendPrefixed(protocol.Packet{"command": "logIn", "id": "b", "dname": "bo"})
	a.waitFor(protocol.CmdAssets)
	b.waitFor(protocol.CmdAssets)

	join := protocol.Packet{
		"command": "joinGame", "gameId": "g1",
		"mapName": "Crash Landing", "playerCount": 2,
	}
	a.sendBare(join)
	b.sendPrefixed(join)

	confirmA := a.waitFor(protocol.CmdJoinConfirmed)
	confirmB := b.waitFor(protocol.CmdJoinConfirmed)
	sessA := confirmA.String("session")
	sessB := confirmB.String("session")
	require.NotEmpty(t, sessA)
	require.NotEmpty(t, sessB)
	assert.NotEqual(t, sessA, sessB, "each participant gets its own session")

	startA := a.waitFor(protocol.CmdStartGame)
	startB := b.waitFor(protocol.CmdStartGame)

	// Lowest player id opens, positions follow join order.
	assert.Equal(t, "a", startA["currentPlayer"])
	assert.Equal(t, "a", startB["currentPlayer"])
	assert.Equal(t, []any{"a", "b"}, startA["co"])

	// The shared broadcast is stamped per recipient.
	assert.Equal(t, sessA, startA["session"])
	assert.Equal(t, sessB, startB["session"])
}
