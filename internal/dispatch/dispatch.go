// Package dispatch decodes a packet's command field and invokes the
// matching handler against the connection's current role. Unknown
// commands are logged and dropped; a connection is never penalized for
// a bad packet.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/woslots/WO/internal/player"
	"github.com/woslots/WO/internal/protocol"
	"github.com/woslots/WO/internal/registry"
	"github.com/woslots/WO/internal/role"
	"github.com/woslots/WO/internal/room"
	"github.com/woslots/WO/internal/server"
	"github.com/woslots/WO/internal/store"
)

// Join-game parameter defaults, matching the legacy client's omissions.
const (
	defaultGameID       = "default"
	defaultMapName      = "defaultMap"
	defaultPlayerCount  = 2
	defaultGameDuration = 180000 // ms
	defaultTurnDuration = 10000  // ms
)

const fetchTimeout = 5 * time.Second

// Dispatcher routes inbound packets. It implements server.Handler.
type Dispatcher struct {
	reg *registry.Registry
	log *zap.Logger
}

func New(reg *registry.Registry, log *zap.Logger) *Dispatcher {
	return &Dispatcher{reg: reg, log: log}
}

// HandlePacket runs one command against the connection's current role.
func (d *Dispatcher) HandlePacket(c *server.Conn, p protocol.Packet) {
	switch p.Command() {
	case protocol.CmdLogIn:
		d.handleLogin(c, p)
	case protocol.CmdJoinGame:
		d.handleJoinGame(c, p)
	case protocol.CmdChat:
		c.Role().HandleChat(p.String("text"))
	default:
		d.log.Warn("unknown command dropped",
			zap.String("conn_id", c.ID()),
			zap.String("command", p.Command()))
	}
}

// ConnectionClosed cleans up using the connection's current role, so a
// connection that moved into a game leaves its room roster, not the
// lobby set it started in.
func (d *Dispatcher) ConnectionClosed(c *server.Conn) {
	d.reg.RemoveRole(c.Role())
}

// handleLogin binds a player record to the current role. A connection
// that already has a bound player logs in once; repeats are no-ops.
func (d *Dispatcher) handleLogin(c *server.Conn, p protocol.Packet) {
	r := c.Role()
	if r.Player() != nil {
		d.log.Debug("duplicate login ignored", zap.String("conn_id", c.ID()))
		return
	}
	dname := p.String("dname")
	if dname == "" {
		d.log.Warn("login without dname refused", zap.String("conn_id", c.ID()))
		return
	}

	snap := d.fetchOrCreate(p.String("id"), dname)

	switch cur := r.(type) {
	case *role.LobbyRole:
		if err := cur.BindPlayer(snap); err != nil {
			d.log.Warn("login bind failed", zap.String("conn_id", c.ID()), zap.Error(err))
			return
		}
		d.reg.AddRole(cur)
	case *role.GameRole:
		if err := cur.BindPlayer(snap); err != nil {
			d.log.Warn("game login bind failed", zap.String("conn_id", c.ID()), zap.Error(err))
		}
	default:
		d.log.Warn("login against unsupported role",
			zap.String("conn_id", c.ID()),
			zap.String("kind", string(r.Kind())))
	}
}

// fetchOrCreate loads the persisted document for a display name, or
// starts a fresh default one. Store trouble is logged and played
// through; identity here is client-asserted anyway.
func (d *Dispatcher) fetchOrCreate(id, dname string) *player.Snapshot {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	snap, err := d.reg.Store().Fetch(ctx, dname)
	if err == nil {
		return snap
	}
	if !errors.Is(err, store.ErrNotFound) {
		d.log.Error("player fetch failed", zap.String("dname", dname), zap.Error(err))
	}
	if id == "" {
		id = uuid.NewString()
	}
	return player.NewDefault(id, dname)
}

// handleJoinGame resolves or creates the room, switches the connection
// to a game role carrying the same player snapshot, and adds it to the
// roster.
func (d *Dispatcher) handleJoinGame(c *server.Conn, p protocol.Packet) {
	cur := c.Role()
	snap := cur.Player()
	if snap == nil {
		d.log.Warn("join without login refused", zap.String("conn_id", c.ID()))
		return
	}

	gameID := p.String("gameId")
	if gameID == "" {
		gameID = defaultGameID
	}

	if cur.Kind() == role.KindGame && cur.GameID() == gameID {
		d.log.Debug("already in game", zap.String("conn_id", c.ID()), zap.String("game_id", gameID))
		return
	}

	cfg := room.Config{
		MapName:      orDefault(p.String("mapName"), defaultMapName),
		PlayerCount:  orDefaultInt(p.Int("playerCount"), defaultPlayerCount),
		GameDuration: orDefaultInt(p.Int("gameDuration"), defaultGameDuration),
		TurnDuration: orDefaultInt(p.Int("turnDuration"), defaultTurnDuration),
	}

	game := role.NewGameRole(c, d.reg, d.log)
	if err := game.BindPlayer(snap); err != nil {
		d.log.Warn("game setup failed", zap.String("conn_id", c.ID()), zap.Error(err))
		return
	}

	// Leave the old bucket first, then switch: the next inbound packet
	// must see the game role.
	d.reg.RemoveRole(cur)
	c.SetRole(game)

	rm := d.reg.EnsureRoom(gameID, cfg)
	game.AttachRoom(rm)
	rm.AddParticipant(game)
	game.ConfirmJoin(rm)

	d.log.Info("connection moved to game",
		zap.String("conn_id", c.ID()),
		zap.String("game_id", gameID),
		zap.String("player_id", snap.ID))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func orDefaultInt(n, def int) int {
	if n == 0 {
		return def
	}
	return n
}
