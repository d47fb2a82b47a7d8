// Package registry holds the process-wide tables: connections bucketed
// by role kind, rooms by id, and the single tick driver that moves
// every room forward. It replaces the original's global server object
// with an injected value so independent instances can coexist in tests.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/woslots/WO/internal/assets"
	"github.com/woslots/WO/internal/player"
	"github.com/woslots/WO/internal/role"
	"github.com/woslots/WO/internal/room"
	"github.com/woslots/WO/internal/store"
)

// tickPeriod is the room update cadence.
const tickPeriod = 100 * time.Millisecond

// Registry owns rooms and connection buckets for one server process.
type Registry struct {
	log       *zap.Logger
	lib       *assets.Library
	players   store.PlayerStore
	autoStart time.Duration

	mu       sync.Mutex
	lobby    map[string]role.Role // by conn id
	ladder   map[string]role.Role // by conn id
	rooms    map[string]*room.Room
	sessions map[string]struct{}
}

// Option tweaks registry construction.
type Option func(*Registry)

// WithAutoStartDelay overrides the room auto-start countdown, mainly
// for tests.
func WithAutoStartDelay(d time.Duration) Option {
	return func(g *Registry) { g.autoStart = d }
}

// New builds an empty registry.
func New(lib *assets.Library, players store.PlayerStore, log *zap.Logger, opts ...Option) *Registry {
	g := &Registry{
		log:       log,
		lib:       lib,
		players:   players,
		autoStart: 5 * time.Second,
		lobby:     make(map[string]role.Role),
		ladder:    make(map[string]role.Role),
		rooms:     make(map[string]*room.Room),
		sessions:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddRole registers a connection under its role kind. Re-adding the
// same connection is a warned no-op.
func (g *Registry) AddRole(r role.Role) {
	g.mu.Lock()
	defer g.mu.Unlock()

	bucket := g.bucketFor(r.Kind())
	if bucket == nil {
		return
	}
	id := r.Conn().ID()
	if _, ok := bucket[id]; ok {
		g.log.Warn("connection already registered",
			zap.String("conn_id", id),
			zap.String("kind", string(r.Kind())))
		return
	}
	bucket[id] = r
	g.log.Info("connection registered",
		zap.String("conn_id", id),
		zap.String("kind", string(r.Kind())))
}

// RemoveRole removes a connection based on its current role: lobby and
// ladder connections leave their bucket, game roles leave their room's
// roster.
func (g *Registry) RemoveRole(r role.Role) {
	if r == nil {
		return
	}
	switch r.Kind() {
	case role.KindGame:
		if rm, ok := g.Room(r.GameID()); ok {
			if snap := r.Player(); snap != nil {
				rm.RemoveParticipant(snap.ID)
			}
		}
	default:
		g.mu.Lock()
		if bucket := g.bucketFor(r.Kind()); bucket != nil {
			delete(bucket, r.Conn().ID())
		}
		g.mu.Unlock()
	}
	g.log.Info("connection removed",
		zap.String("conn_id", r.Conn().ID()),
		zap.String("kind", string(r.Kind())))
}

func (g *Registry) bucketFor(k role.Kind) map[string]role.Role {
	switch k {
	case role.KindLobby:
		return g.lobby
	case role.KindLadder:
		return g.ladder
	default:
		return nil
	}
}

// Room looks up a room by id.
func (g *Registry) Room(id string) (*room.Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rm, ok := g.rooms[id]
	return rm, ok
}

// EnsureRoom returns the room with the given id, creating it with cfg
// when absent. Creation-time parameters of an existing room win.
func (g *Registry) EnsureRoom(id string, cfg room.Config) *room.Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	if rm, ok := g.rooms[id]; ok {
		return rm
	}
	if cfg.AutoStartDelay <= 0 {
		cfg.AutoStartDelay = g.autoStart
	}
	rm := room.New(id, cfg, g.lib, g.log)
	g.rooms[id] = rm
	return rm
}

// RoomCount returns the number of live rooms.
func (g *Registry) RoomCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// Run drives the periodic tick until the context is cancelled.
func (g *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			g.shutdownRooms()
			return ctx.Err()
		case <-ticker.C:
			g.Tick()
		}
	}
}

// Tick updates every room once, isolating panics per room, then sweeps
// finished rooms.
func (g *Registry) Tick() {
	g.mu.Lock()
	live := make([]*room.Room, 0, len(g.rooms))
	for _, rm := range g.rooms {
		live = append(live, rm)
	}
	g.mu.Unlock()

	for _, rm := range live {
		g.tickRoom(rm)
	}

	g.mu.Lock()
	for id, rm := range g.rooms {
		if rm.Finished() {
			rm.Shutdown()
			delete(g.rooms, id)
			g.log.Info("room released", zap.String("game_id", id))
		}
	}
	g.mu.Unlock()
}

// tickRoom guards one room's update; one room's failure must not stop
// the others.
func (g *Registry) tickRoom(rm *room.Room) {
	defer func() {
		if rec := recover(); rec != nil {
			g.log.Error("room tick panicked",
				zap.String("game_id", rm.ID()),
				zap.Any("panic", rec))
		}
	}()
	rm.Update()
}

func (g *Registry) shutdownRooms() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, rm := range g.rooms {
		rm.Shutdown()
		delete(g.rooms, id)
	}
}

// Assets implements role.Services.
func (g *Registry) Assets() *assets.Library { return g.lib }

// Store implements role.Services.
func (g *Registry) Store() store.PlayerStore { return g.players }

// NewSessionKey mints a process-unique session token.
func (g *Registry) NewSessionKey() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	for {
		key := uuid.NewString()
		if _, taken := g.sessions[key]; !taken {
			g.sessions[key] = struct{}{}
			return key
		}
	}
}

// LobbyLoad is the number of connections currently in the lobby bucket.
func (g *Registry) LobbyLoad() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.lobby)
}

// PlayerUpdated records a lobby-visible snapshot change.
func (g *Registry) PlayerUpdated(snap *player.Snapshot) {
	if snap == nil {
		return
	}
	g.log.Debug("player updated",
		zap.String("player_id", snap.ID),
		zap.Float64("gold", snap.Gold),
		zap.Float64("treats", snap.Treats))
}
