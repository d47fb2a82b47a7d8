package role

import (
	"go.uber.org/zap"

	"github.com/woslots/WO/internal/player"
	"github.com/woslots/WO/internal/protocol"
)

// LobbyRole is the behavior of a connection between login and joining a
// game: account operations, shop spending, matchmaking requests.
type LobbyRole struct {
	base
}

// NewLobbyRole creates the role every fresh connection starts in.
func NewLobbyRole(conn Conn, svc Services, log *zap.Logger) *LobbyRole {
	return &LobbyRole{base: base{
		conn:    conn,
		svc:     svc,
		log:     log,
		snapCmd: protocol.CmdSetPlayer,
	}}
}

func (r *LobbyRole) Kind() Kind      { return KindLobby }
func (r *LobbyRole) Avatar() *Avatar { return nil }

// BindPlayer attaches the player snapshot and greets the client with
// the login acknowledgment and the game-balance tables.
func (r *LobbyRole) BindPlayer(snap *player.Snapshot) error {
	if snap == nil {
		return ErrNoSnapshot
	}
	r.player = snap
	r.player.Online = r.svc.LobbyLoad()

	r.log.Info("player entered lobby",
		zap.String("conn_id", r.conn.ID()),
		zap.String("dname", snap.DName))

	r.sendLoginAck()
	r.sendAssets()
	return nil
}

func (r *LobbyRole) sendLoginAck() {
	r.Send(protocol.Packet{
		"command": protocol.CmdLogInAck,
		"id":      r.player.ID,
		"dname":   r.player.DName,
		"treats":  r.player.Treats,
		"gold":    r.player.Gold,
		"level":   r.player.Level,
		"xp":      r.player.XP,
	})
}

func (r *LobbyRole) sendAssets() {
	lib := r.svc.Assets()
	r.Send(protocol.Packet{
		"command": protocol.CmdAssets,
		"data": map[string]any{
			"config":  lib.Config,
			"levels":  lib.Levels,
			"weapons": lib.Weapons,
			"maps":    lib.Maps,
		},
	})
}

// HandleChat echoes lobby chat back to the sender; there is no lobby
// fan-out channel.
func (r *LobbyRole) HandleChat(text string) {
	if r.player == nil || text == "" {
		return
	}
	r.Send(protocol.Packet{
		"command": protocol.CmdChat,
		"dname":   r.player.DName,
		"text":    text,
	})
}
