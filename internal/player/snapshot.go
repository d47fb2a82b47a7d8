// Package player holds the in-memory copy of a persisted player
// document. The snapshot is mutated by gameplay actions and flushed to
// the store on every mutation that must survive a reconnect.
package player

import (
	"maps"
	"slices"

	"github.com/woslots/WO/internal/protocol"
)

// Snapshot is the denormalized player document. Balances are doubles in
// the persisted documents; spend operations truncate before comparing.
type Snapshot struct {
	ID         string  `json:"id"`
	DName      string  `json:"dname"`
	Email      string  `json:"email,omitempty"`
	LKey       string  `json:"lkey,omitempty"`
	Treats     float64 `json:"treats"`
	Gold       float64 `json:"gold"`
	Level      float64 `json:"level"`
	XP         float64 `json:"xp"`
	HP         float64 `json:"hp"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	GameCount  float64 `json:"gamecount"`
	CurrentPet string  `json:"currentPet"`

	WeaponsOwned    map[string]float64 `json:"userWeaponsOwned"`
	WeaponsEquipped []string           `json:"userWeaponsEquipped"`
	Accessories     []string           `json:"userAccessories"`
	AllowedMaps     []string           `json:"allowedMaps"`

	// Session-only, never persisted.
	Online int `json:"online"`
}

// NewDefault returns the document a fresh account starts with.
func NewDefault(id, dname string) *Snapshot {
	return &Snapshot{
		ID:              id,
		DName:           dname,
		Treats:          200,
		Gold:            1000,
		HP:              500000,
		GameCount:       100,
		CurrentPet:      "3",
		WeaponsOwned:    map[string]float64{},
		WeaponsEquipped: []string{"walk", "bone", "superjump", "climb", "punch", "dig", "mortar"},
		Accessories:     []string{"top_playdom_black"},
		AllowedMaps:     []string{"Crash Landing"},
	}
}

// Clone returns an independent copy, collections included.
func (s *Snapshot) Clone() *Snapshot {
	out := *s
	out.WeaponsOwned = maps.Clone(s.WeaponsOwned)
	out.WeaponsEquipped = slices.Clone(s.WeaponsEquipped)
	out.Accessories = slices.Clone(s.Accessories)
	out.AllowedMaps = slices.Clone(s.AllowedMaps)
	return &out
}

// Packet renders the snapshot as an outbound packet under the given
// command ("setPlayer" for lobby pushes, "player" in-game).
func (s *Snapshot) Packet(command string) protocol.Packet {
	return protocol.Packet{
		"command":             command,
		"id":                  s.ID,
		"dname":               s.DName,
		"treats":              s.Treats,
		"gold":                s.Gold,
		"level":               s.Level,
		"xp":                  s.XP,
		"hp":                  s.HP,
		"wins":                s.Wins,
		"losses":              s.Losses,
		"gamecount":           s.GameCount,
		"currentPet":          s.CurrentPet,
		"userWeaponsOwned":    s.WeaponsOwned,
		"userWeaponsEquipped": s.WeaponsEquipped,
		"userAccessories":     s.Accessories,
		"allowedMaps":         s.AllowedMaps,
		"online":              s.Online,
	}
}
