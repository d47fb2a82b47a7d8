package role

import (
	"go.uber.org/zap"

	"github.com/woslots/WO/internal/player"
	"github.com/woslots/WO/internal/protocol"
)

// GameRole is the behavior of a connection while it participates in a
// room. It carries the avatar collaborator and per-turn transient
// state; none of that survives a role switch.
type GameRole struct {
	base
	avatar       Avatar
	room         RoomHandle
	setUp        bool
	mapLoaded    bool
	shotThisTurn bool
}

// NewGameRole builds the game-side role during a lobby→game switch.
// The connection identity and player snapshot carry over; everything
// else starts fresh.
func NewGameRole(conn Conn, svc Services, log *zap.Logger) *GameRole {
	return &GameRole{base: base{
		conn:    conn,
		svc:     svc,
		log:     log,
		snapCmd: protocol.CmdPlayer,
	}}
}

func (r *GameRole) Kind() Kind      { return KindGame }
func (r *GameRole) Avatar() *Avatar { return &r.avatar }

// AttachRoom records the room this role belongs to, for chat fan-out.
func (r *GameRole) AttachRoom(rm RoomHandle) { r.room = rm }

// BindPlayer attaches the snapshot, coerces the persisted balances to
// numbers, initializes the avatar and sends the login acknowledgment.
// It must run exactly once per login; a second call is an error.
func (r *GameRole) BindPlayer(snap *player.Snapshot) error {
	if snap == nil {
		return ErrNoSnapshot
	}
	if r.setUp {
		return ErrAlreadySetUp
	}
	r.setUp = true

	r.player = snap
	r.player.Online = r.svc.LobbyLoad()
	r.avatar.Initialize()

	r.log.Info("player entered game",
		zap.String("conn_id", r.conn.ID()),
		zap.String("dname", snap.DName))

	r.sendLoginAck()
	return nil
}

// sendLoginAck always carries the full balance set, level and xp
// included.
func (r *GameRole) sendLoginAck() {
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

// AddExperience grants xp and pushes the update.
func (r *GameRole) AddExperience(amount float64) {
	if r.player == nil {
		return
	}
	r.player.XP += amount
	r.sendUpdate()
	r.persist()
}

// AddGold grants gold; when broadcast is set the snapshot update goes
// out immediately, otherwise the caller batches it.
func (r *GameRole) AddGold(amount float64, broadcast bool) {
	if r.player == nil {
		return
	}
	r.player.Gold += amount
	if broadcast {
		r.sendUpdate()
		r.persist()
	}
}

// AddTreats grants treats with the same broadcast contract as AddGold.
func (r *GameRole) AddTreats(amount float64, broadcast bool) {
	if r.player == nil {
		return
	}
	r.player.Treats += amount
	if broadcast {
		r.sendUpdate()
		r.persist()
	}
}

// HandleChat fans the message out to the whole room.
func (r *GameRole) HandleChat(text string) {
	if r.player == nil || text == "" {
		return
	}
	msg := protocol.Packet{
		"command": protocol.CmdChat,
		"dname":   r.player.DName,
		"text":    text,
	}
	if r.room != nil {
		r.room.Broadcast(msg)
		return
	}
	r.Send(msg)
}
