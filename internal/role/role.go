// Package role implements the behavioral modes a connection can be in.
// A connection holds exactly one active role at a time; switching from
// the lobby role to the game role preserves the connection identity and
// the bound player snapshot but resets per-role transient state.
package role

import (
	"errors"

	"github.com/woslots/WO/internal/assets"
	"github.com/woslots/WO/internal/player"
	"github.com/woslots/WO/internal/protocol"
	"github.com/woslots/WO/internal/store"
)

// Kind tags a role variant. The registry buckets connections by it.
type Kind string

const (
	KindLobby  Kind = "lobby"
	KindGame   Kind = "game"
	KindLadder Kind = "ladder"
)

var (
	ErrNoSnapshot   = errors.New("role: no player snapshot")
	ErrAlreadyBound = errors.New("role: player already bound")
	ErrAlreadySetUp = errors.New("role: game setup already ran")
)

// Conn is the connection surface a role writes to. Implemented by the
// server's connection actor and by test fakes.
type Conn interface {
	ID() string
	WritePacket(p protocol.Packet) error
	Alive() bool
}

// Services is what roles need from the registry.
type Services interface {
	Assets() *assets.Library
	Store() store.PlayerStore
	// NewSessionKey mints a process-unique session token.
	NewSessionKey() string
	// LobbyLoad is the number of connections currently in the lobby.
	LobbyLoad() int
	// PlayerUpdated reports a lobby-visible change to a bound snapshot.
	PlayerUpdated(snap *player.Snapshot)
}

// RoomHandle is the room surface a role sees once joined. Implemented
// by room.Room.
type RoomHandle interface {
	ID() string
	// PublicState renders the room's lobby-visible state as a packet.
	PublicState() protocol.Packet
	// Broadcast fans a packet out to every participant.
	Broadcast(p protocol.Packet)
}

// Role is the dispatch target for inbound packets. The concrete types
// are LobbyRole and GameRole.
type Role interface {
	Kind() Kind
	Conn() Conn
	Player() *player.Snapshot
	Session() string
	GameID() string
	// Avatar returns the physics collaborator, nil outside a game.
	Avatar() *Avatar
	Send(p protocol.Packet)
	HandleChat(text string)
}
