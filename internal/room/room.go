// Package room owns one game instance: its participant roster, its
// lifecycle state machine, turn sequencing and broadcast fan-out.
// Rooms are created on demand by the registry and swept by it once
// finished.
package room

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/woslots/WO/internal/assets"
	"github.com/woslots/WO/internal/protocol"
	"github.com/woslots/WO/internal/role"
)

// Status is the room lifecycle state.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusGameOver Status = "gameover"
)

const (
	// minPlayers is the matchmaking threshold.
	minPlayers = 2
	// tickMillis is the registry tick period the deadline math assumes.
	tickMillis = 100
	// firstTurnGraceTicks pads the first turn while clients load the map.
	firstTurnGraceTicks = 200
)

// Config are the per-room parameters fixed at creation.
type Config struct {
	MapName      string
	PlayerCount  int
	GameDuration int // ms
	TurnDuration int // ms

	// AutoStartDelay is how long the room holds in "starting" before
	// the match begins. Tests shorten it.
	AutoStartDelay time.Duration
}

// Room is one game instance. All state is serialized by mu; timers and
// the tick driver re-enter through the same lock.
type Room struct {
	id  string
	cfg Config
	lib *assets.Library
	log *zap.Logger

	mu            sync.Mutex
	status        Status
	roster        map[string]role.Role
	joinOrder     []string
	dead          map[string]bool
	currentPlayer string
	tick          int64
	turnEndTick   int64
	randomSeed    int
	startTimer    *time.Timer
	timerGen      int
}

// New creates a room in the idle state.
func New(id string, cfg Config, lib *assets.Library, log *zap.Logger) *Room {
	if cfg.AutoStartDelay <= 0 {
		cfg.AutoStartDelay = 5 * time.Second
	}
	r := &Room{
		id:     id,
		cfg:    cfg,
		lib:    lib,
		log:    log.With(zap.String("game_id", id)),
		status: StatusIdle,
		roster: make(map[string]role.Role),
		dead:   make(map[string]bool),
	}
	r.log.Info("room created",
		zap.String("map", cfg.MapName),
		zap.Int("player_count", cfg.PlayerCount))
	return r
}

func (r *Room) ID() string { return r.id }

// Status returns the current lifecycle state.
func (r *Room) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Size returns the roster size.
func (r *Room) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.roster)
}

// CurrentPlayer returns the participant id holding the turn.
func (r *Room) CurrentPlayer() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentPlayer
}

// PublicState renders the lobby-visible room state.
func (r *Room) PublicState() protocol.Packet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return protocol.Packet{
		"command":     protocol.CmdGameRefresh,
		"status":      string(r.status),
		"gameId":      r.id,
		"mapName":     r.cfg.MapName,
		"playerCount": len(r.roster),
		"maxPlayers":  r.cfg.PlayerCount,
	}
}

// AddParticipant puts a role on the roster, keyed by player id. Adding
// an id that is already present is a warned no-op. The state machine is
// re-evaluated synchronously.
func (r *Room) AddParticipant(p role.Role) {
	snap := p.Player()
	if snap == nil {
		r.log.Warn("participant without player snapshot rejected")
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id := snap.ID
	if _, ok := r.roster[id]; ok {
		r.log.Warn("participant already on roster", zap.String("player_id", id))
		return
	}
	r.roster[id] = p
	r.joinOrder = append(r.joinOrder, id)
	if r.currentPlayer == "" || id < r.currentPlayer {
		r.currentPlayer = id
	}
	r.log.Info("participant joined",
		zap.String("player_id", id),
		zap.Int("roster", len(r.roster)))

	r.refreshLocked()
	r.checkGameLocked()
}

// RemoveParticipant drops a participant. A pending start is cancelled
// when the roster falls below the threshold; a running game advances
// the turn or ends as needed.
func (r *Room) RemoveParticipant(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roster[id]; !ok {
		return
	}
	delete(r.roster, id)
	delete(r.dead, id)
	for i, jid := range r.joinOrder {
		if jid == id {
			r.joinOrder = append(r.joinOrder[:i], r.joinOrder[i+1:]...)
			break
		}
	}
	r.log.Info("participant left",
		zap.String("player_id", id),
		zap.Int("roster", len(r.roster)))

	if r.status == StatusStarting {
		r.stopGameStartLocked()
	} else {
		r.refreshLocked()
	}
	r.checkGameLocked()
}

// Eliminate marks a participant dead. The liveness condition is checked
// immediately.
func (r *Room) Eliminate(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roster[id]; !ok {
		return
	}
	r.dead[id] = true
	if r.currentPlayer == id && r.status == StatusRunning {
		r.advanceTurnLocked()
	}
	r.checkGameLocked()
}

// Broadcast fans a packet out to every participant. Packets carrying a
// session field are stamped per recipient.
func (r *Room) Broadcast(p protocol.Packet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(p)
}

// Update is the periodic tick. The registry calls it every tickMillis.
func (r *Room) Update() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tick++
	if r.status == StatusRunning {
		r.checkGameLocked()
	}
}

// Shutdown cancels pending timers and ends the room. Safe to call on a
// room in any state; late timer fires become no-ops.
func (r *Room) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelStartTimerLocked()
	r.status = StatusGameOver
}

// Finished reports whether the registry should sweep this room.
func (r *Room) Finished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status == StatusGameOver || (len(r.roster) == 0 && r.status == StatusIdle)
}

// checkGameLocked re-evaluates the state machine. Runs after every
// roster mutation and on every tick while running.
func (r *Room) checkGameLocked() {
	n := len(r.roster)

	if r.status == StatusGameOver {
		return
	}

	if r.status != StatusRunning {
		switch {
		case n >= minPlayers && r.startTimer == nil:
			r.status = StatusStarting
			r.refreshLocked()
			r.armStartTimerLocked()
		case n < minPlayers:
			if r.status != StatusIdle {
				r.status = StatusIdle
				r.refreshLocked()
			}
			r.cancelStartTimerLocked()
		}
		return
	}

	// Running: turn deadline, liveness, absent holder.
	if r.tick >= r.turnEndTick {
		r.advanceTurnLocked()
	}
	if r.aliveCountLocked() <= 1 || n <= 1 {
		r.endGameLocked()
		return
	}
	if _, ok := r.roster[r.currentPlayer]; !ok {
		r.advanceTurnLocked()
	}
}

func (r *Room) armStartTimerLocked() {
	r.timerGen++
	gen := r.timerGen
	r.log.Info("match starting", zap.Duration("in", r.cfg.AutoStartDelay))
	r.startTimer = time.AfterFunc(r.cfg.AutoStartDelay, func() {
		r.onStartTimer(gen)
	})
}

func (r *Room) cancelStartTimerLocked() {
	if r.startTimer != nil {
		r.startTimer.Stop()
		r.startTimer = nil
		r.timerGen++
	}
}

// onStartTimer fires from the auto-start timer. The generation check
// makes a stale fire on a reverted or torn-down room a no-op.
func (r *Room) onStartTimer(gen int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.timerGen || r.status != StatusStarting {
		r.log.Debug("stale start timer ignored", zap.Int("gen", gen))
		return
	}
	r.startTimer = nil
	r.startGameLocked()
}

func (r *Room) stopGameStartLocked() {
	r.cancelStartTimerLocked()
	r.status = StatusIdle
	r.refreshLocked()
}

func (r *Room) startGameLocked() {
	r.status = StatusRunning
	r.randomSeed = rand.Intn(1000)
	r.placeAvatarsLocked()
	r.currentPlayer = r.lowestIDLocked()
	r.setNextTurnLocked(firstTurnGraceTicks)

	r.log.Info("game started",
		zap.Int("seed", r.randomSeed),
		zap.Strings("players", r.joinOrder))

	r.broadcastLocked(protocol.Packet{
		"command":       protocol.CmdStartGame,
		"randomSeed":    r.randomSeed,
		"co":            append([]string(nil), r.joinOrder...),
		"currentPlayer": r.currentPlayer,
		"tick":          r.tick,
		"playerlist":    r.playerListLocked(),
		"positions":     r.positionsLocked(),
		"session":       "",
	})
	r.refreshLocked()
}

func (r *Room) endGameLocked() {
	r.status = StatusGameOver
	r.cancelStartTimerLocked()
	r.log.Info("game over", zap.Int64("tick", r.tick))
	r.refreshLocked()
}

// placeAvatarsLocked assigns starting positions from the map's position
// table, indexed by join order.
func (r *Room) placeAvatarsLocked() {
	m, ok := r.lib.MapByName(r.cfg.MapName)
	if !ok {
		r.log.Warn("unknown map, positions unset", zap.String("map", r.cfg.MapName))
		return
	}
	for i, id := range r.joinOrder {
		p, ok := r.roster[id]
		if !ok || p.Avatar() == nil {
			continue
		}
		if i < len(m.Positions) && len(m.Positions[i]) >= 2 {
			p.Avatar().SetPosition(m.Positions[i][0], m.Positions[i][1])
		}
	}
}

// advanceTurnLocked hands the turn to the next surviving participant:
// the smallest id greater than the current holder, wrapping to the
// smallest overall.
func (r *Room) advanceTurnLocked() {
	ids := r.survivorsLocked()
	if len(ids) == 0 {
		return
	}
	next := ""
	for _, id := range ids {
		if id > r.currentPlayer {
			next = id
			break
		}
	}
	if next == "" {
		next = ids[0]
	}
	r.currentPlayer = next
	r.setNextTurnLocked(0)
	r.broadcastLocked(protocol.Packet{
		"command":       protocol.CmdChangeTurn,
		"currentPlayer": r.currentPlayer,
		"turnEndTick":   r.turnEndTick,
	})
}

func (r *Room) setNextTurnLocked(graceTicks int64) {
	r.turnEndTick = r.tick + int64(r.cfg.TurnDuration/tickMillis) + graceTicks
}

func (r *Room) refreshLocked() {
	r.broadcastLocked(protocol.Packet{
		"command": protocol.CmdGameRefresh,
		"status":  string(r.status),
	})
}

func (r *Room) broadcastLocked(p protocol.Packet) {
	_, stamp := p["session"]
	for _, member := range r.roster {
		out := p
		if stamp {
			out = p.Clone()
			out["session"] = member.Session()
		}
		member.Send(out)
	}
}

func (r *Room) aliveCountLocked() int {
	alive := 0
	for id := range r.roster {
		if !r.dead[id] {
			alive++
		}
	}
	return alive
}

// survivorsLocked returns the living roster ids in ascending order.
func (r *Room) survivorsLocked() []string {
	ids := make([]string, 0, len(r.roster))
	for id := range r.roster {
		if !r.dead[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (r *Room) lowestIDLocked() string {
	low := ""
	for id := range r.roster {
		if low == "" || id < low {
			low = id
		}
	}
	return low
}

func (r *Room) playerListLocked() []protocol.Packet {
	list := make([]protocol.Packet, 0, len(r.joinOrder))
	for _, id := range r.joinOrder {
		if p, ok := r.roster[id]; ok && p.Player() != nil {
			list = append(list, p.Player().Packet(protocol.CmdPlayer))
		}
	}
	return list
}

func (r *Room) positionsLocked() [][]float64 {
	pos := make([][]float64, 0, len(r.joinOrder))
	for _, id := range r.joinOrder {
		p, ok := r.roster[id]
		if !ok || p.Avatar() == nil {
			pos = append(pos, []float64{0, 0})
			continue
		}
		av := p.Avatar()
		pos = append(pos, []float64{av.X, av.Y})
	}
	return pos
}
