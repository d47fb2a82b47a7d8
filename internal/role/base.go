package role

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/woslots/WO/internal/player"
	"github.com/woslots/WO/internal/protocol"
)

// persistTimeout bounds a single fire-and-forget write.
const persistTimeout = 5 * time.Second

// base carries the state and operations shared by every role variant.
type base struct {
	conn    Conn
	svc     Services
	log     *zap.Logger
	snapCmd string // snapshot packet command for this variant

	player  *player.Snapshot
	session string
	gameID  string
}

func (b *base) Conn() Conn               { return b.conn }
func (b *base) Player() *player.Snapshot { return b.player }
func (b *base) Session() string          { return b.session }
func (b *base) GameID() string           { return b.gameID }

// Send writes a packet through the owning connection. A dead connection
// is a warning, never a panic; the registry will reap the role when the
// close propagates.
func (b *base) Send(p protocol.Packet) {
	if !b.conn.Alive() {
		b.log.Warn("write to closed connection dropped",
			zap.String("conn_id", b.conn.ID()),
			zap.String("command", p.Command()))
		return
	}
	if err := b.conn.WritePacket(p); err != nil {
		b.log.Warn("packet write failed",
			zap.String("conn_id", b.conn.ID()),
			zap.String("command", p.Command()),
			zap.Error(err))
	}
}

// sendSnapshot pushes the current player document to the client.
func (b *base) sendSnapshot() {
	if b.player == nil {
		return
	}
	b.Send(b.player.Packet(b.snapCmd))
}

// sendUpdate is the post-mutation push: snapshot to the owning
// connection plus the lobby-visible update notification.
func (b *base) sendUpdate() {
	b.sendSnapshot()
	b.svc.PlayerUpdated(b.player)
}

// persist flushes the snapshot without blocking the caller. Memory is
// already updated; a failed write only costs durability of the last
// mutation, which the design tolerates. The copy is taken before the
// goroutine starts: the caller's next mutation must not touch what the
// store reads.
func (b *base) persist() {
	if b.player == nil {
		return
	}
	snap := b.player.Clone()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := b.svc.Store().Upsert(ctx, snap); err != nil {
			b.log.Error("player persist failed",
				zap.String("player_id", snap.ID),
				zap.Error(err))
		}
	}()
}

// SpendTreats debits the treats balance. Balances are truncated to
// integers before the comparison; fractional remainders are dropped.
func (b *base) SpendTreats(amount int) bool {
	if amount < 0 || b.player == nil {
		return false
	}
	have := int(b.player.Treats)
	if have < amount {
		return false
	}
	b.player.Treats = float64(have - amount)
	b.sendUpdate()
	b.persist()
	return true
}

// SpendGold debits the gold balance with the same truncation rule.
func (b *base) SpendGold(amount int) bool {
	if amount < 0 || b.player == nil {
		return false
	}
	have := int(b.player.Gold)
	if have < amount {
		return false
	}
	b.player.Gold = float64(have - amount)
	b.sendUpdate()
	b.persist()
	return true
}

// GrantItem adds to the owned-items mapping, creating the entry when
// absent.
func (b *base) GrantItem(kind string, amount float64) {
	if b.player == nil {
		return
	}
	if b.player.WeaponsOwned == nil {
		b.player.WeaponsOwned = map[string]float64{}
	}
	b.player.WeaponsOwned[kind] += amount
	b.sendUpdate()
	b.persist()
	b.log.Info("item granted",
		zap.String("player_id", b.player.ID),
		zap.String("kind", kind),
		zap.Float64("amount", amount))
}

// GenerateSessionKey mints a fresh token through the registry and
// remembers it as this role's room membership credential.
func (b *base) GenerateSessionKey() string {
	b.session = b.svc.NewSessionKey()
	return b.session
}

// ConfirmJoin acknowledges a successful room join: a fresh session
// token, then the room's current public state stamped with it.
func (b *base) ConfirmJoin(rm RoomHandle) {
	b.gameID = rm.ID()
	session := b.GenerateSessionKey()
	b.Send(protocol.Packet{
		"command": protocol.CmdJoinConfirmed,
		"session": session,
	})
	state := rm.PublicState()
	state["session"] = session
	b.Send(state)
}
