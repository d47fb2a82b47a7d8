package room

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/woslots/WO/internal/assets"
	"github.com/woslots/WO/internal/player"
	"github.com/woslots/WO/internal/protocol"
	"github.com/woslots/WO/internal/role"
)

// fakeMember stands in for a connected game role and records every
// packet fanned out to it.
type fakeMember struct {
	mu      sync.Mutex
	snap    *player.Snapshot
	session string
	avatar  role.Avatar

	packets []protocol.Packet
}

func newMember(id, session string) *fakeMember {
	m := &fakeMember{
		snap:    player.NewDefault(id, "player-"+id),
		session: session,
	}
	m.avatar.Initialize()
	return m
}

func (m *fakeMember) Kind() role.Kind          { return role.KindGame }
func (m *fakeMember) Conn() role.Conn          { return nil }
func (m *fakeMember) Player() *player.Snapshot { return m.snap }
func (m *fakeMember) Session() string          { return m.session }
func (m *fakeMember) GameID() string           { return "" }
func (m *fakeMember) Avatar() *role.Avatar     { return &m.avatar }
func (m *fakeMember) HandleChat(string)        {}

func (m *fakeMember) Send(p protocol.Packet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packets = append(m.packets, p)
}

func (m *fakeMember) count(command string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.packets {
		if p.Command() == command {
			n++
		}
	}
	return n
}

func (m *fakeMember) last(command string) protocol.Packet {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.packets) - 1; i >= 0; i-- {
		if m.packets[i].Command() == command {
			return m.packets[i]
		}
	}
	return nil
}

func testLibrary() *assets.Library {
	return &assets.Library{
		Maps: map[string]assets.Map{
			"Crash Landing": {
				Name:      "Crash Landing",
				Positions: [][]float64{{100, 200}, {300, 400}, {500, 600}},
			},
		},
	}
}

func newTestRoom(t *testing.T, delay time.Duration) *Room {
	t.Helper()
	return New("g1", Config{
		MapName:        "Crash Landing",
		PlayerCount:    4,
		GameDuration:   180000,
		TurnDuration:   100,
		AutoStartDelay: delay,
	}, testLibrary(), zap.NewNop())
}

func waitRunning(t *testing.T, r *Room) {
	t.Helper()
	require.Eventually(t, func() bool {
		return r.Status() == StatusRunning
	}, 2*time.Second, 5*time.Millisecond)
}

func TestAddParticipantIdempotent(t *testing.T) {
	r := newTestRoom(t, time.Hour)
	a := newMember("a", "sa")

	r.AddParticipant(a)
	r.AddParticipant(a)

	assert.Equal(t, 1, r.Size())
	assert.Equal(t, StatusIdle, r.Status())
}

func TestAutoStartAtThreshold(t *testing.T) {
	r := newTestRoom(t, 20*time.Millisecond)
	a := newMember("a", "sa")
	b := newMember("b", "sb")

	r.AddParticipant(a)
	assert.Equal(t, StatusIdle, r.Status())

	r.AddParticipant(b)
	assert.Equal(t, StatusStarting, r.Status())

	waitRunning(t, r)

	// Exactly one start broadcast per member, even though the roster
	// was mutated twice.
	assert.Equal(t, 1, a.count(protocol.CmdStartGame))
	assert.Equal(t, 1, b.count(protocol.CmdStartGame))

	// Lowest id opens.
	assert.Equal(t, "a", r.CurrentPlayer())

	start := a.last(protocol.CmdStartGame)
	require.NotNil(t, start)
	assert.Equal(t, "a", start["currentPlayer"])
	assert.Equal(t, [][]float64{{100, 200}, {300, 400}}, start["positions"])
}

func TestStartCancelledWhenRosterDrops(t *testing.T) {
	r := newTestRoom(t, 30*time.Millisecond)
	a := newMember("a", "sa")
	b := newMember("b", "sb")

	r.AddParticipant(a)
	r.AddParticipant(b)
	require.Equal(t, StatusStarting, r.Status())

	r.RemoveParticipant("b")
	assert.Equal(t, StatusIdle, r.Status())

	// The cancelled timer must never fire the match.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, StatusIdle, r.Status())
	assert.Equal(t, 0, a.count(protocol.CmdStartGame))
}

func TestTurnDeadlineAdvancesInOrder(t *testing.T) {
	r := newTestRoom(t, time.Millisecond)
	a := newMember("a", "sa")
	b := newMember("b", "sb")
	c := newMember("c", "sc")

	r.AddParticipant(a)
	r.AddParticipant(b)
	r.AddParticipant(c)
	waitRunning(t, r)
	require.Equal(t, "a", r.CurrentPlayer())

	driveUntilTurn := func(want string) {
		t.Helper()
		for i := 0; i < 300; i++ {
			r.Update()
			if r.CurrentPlayer() == want {
				return
			}
		}
		t.Fatalf("turn never reached %q, holder is %q", want, r.CurrentPlayer())
	}

	// Smallest id greater than the holder, then wrapping.
	driveUntilTurn("b")
	driveUntilTurn("c")
	driveUntilTurn("a")

	turn := b.last(protocol.CmdChangeTurn)
	require.NotNil(t, turn)
	assert.Equal(t, "a", turn["currentPlayer"])
}

func TestEliminationEndsGame(t *testing.T) {
	r := newTestRoom(t, time.Millisecond)
	a := newMember("a", "sa")
	b := newMember("b", "sb")

	r.AddParticipant(a)
	r.AddParticipant(b)
	waitRunning(t, r)

	r.Eliminate("b")
	assert.Equal(t, StatusGameOver, r.Status())
	assert.True(t, r.Finished())
}

func TestHolderLeavingHandsTurnOver(t *testing.T) {
	r := newTestRoom(t, time.Millisecond)
	a := newMember("a", "sa")
	b := newMember("b", "sb")
	c := newMember("c", "sc")

	r.AddParticipant(a)
	r.AddParticipant(b)
	r.AddParticipant(c)
	waitRunning(t, r)
	require.Equal(t, "a", r.CurrentPlayer())

	r.RemoveParticipant("a")
	assert.Equal(t, StatusRunning, r.Status())
	assert.Equal(t, "b", r.CurrentPlayer())
}

func TestBroadcastStampsSessions(t *testing.T) {
	r := newTestRoom(t, time.Hour)
	a := newMember("a", "session-a")
	b := newMember("b", "session-b")

	r.AddParticipant(a)
	r.AddParticipant(b)

	r.Broadcast(protocol.Packet{"command": "startGame", "session": ""})

	pa := a.last(protocol.CmdStartGame)
	pb := b.last(protocol.CmdStartGame)
	require.NotNil(t, pa)
	require.NotNil(t, pb)
	assert.Equal(t, "session-a", pa["session"])
	assert.Equal(t, "session-b", pb["session"])
}

func TestEmptyIdleRoomIsFinished(t *testing.T) {
	r := newTestRoom(t, time.Hour)
	a := newMember("a", "sa")

	r.AddParticipant(a)
	assert.False(t, r.Finished())

	r.RemoveParticipant("a")
	assert.True(t, r.Finished())
}
