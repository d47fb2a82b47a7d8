// Package assets loads the game-balance tables at startup and indexes
// them by their natural keys. The tables are produced by the content
// pipeline as JSON documents named <Table>.dat; their shape is fixed by
// the client, so they stay loosely typed except where the server reads
// fields itself.
package assets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// List is the full table set the content pipeline ships.
var List = []string{
	"Config", "Accessories", "Crate", "Gifts",
	"Levels", "Maps", "Other", "PetFoods",
	"Pets", "WeaponsGrid",
}

// Map is one playable map. Positions holds the starting coordinates,
// indexed by join order.
type Map struct {
	Name      string      `json:"name"`
	Positions [][]float64 `json:"positions"`
}

// Level is one row of the level progression table, listing the items
// unlocked at that level.
type Level struct {
	Map     []string `json:"map"`
	Chassis []string `json:"chassis"`
	Weapon  []string `json:"weapon"`
}

// Library holds every processed table, keyed for lookup.
type Library struct {
	Config      map[string]any
	Levels      []Level
	Maps        map[string]Map            // by map name
	Weapons     map[string]map[string]any // by weapon type
	Accessories map[string]map[string]any // by accessory type
	Pets        map[string]map[string]any // by pet type
	PetFoods    map[string]map[string]any // by food type
	Crate       any
	Gifts       any
	Other       any

	// ItemLevel maps any unlockable item to the level it unlocks at.
	ItemLevel map[string]int
}

// LoadDir reads and indexes every table from dir. A missing or
// malformed table is an error; the server must not come up without its
// balance data.
func LoadDir(dir string, log *zap.Logger) (*Library, error) {
	raw := make(map[string]json.RawMessage, len(List))
	for _, name := range List {
		path := filepath.Join(dir, name+".dat")
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("assets: read %s: %w", name, err)
		}
		if !json.Valid(data) {
			return nil, fmt.Errorf("assets: %s is not valid JSON", name)
		}
		raw[name] = json.RawMessage(data)
		log.Info("loaded asset table", zap.String("table", name), zap.Int("bytes", len(data)))
	}
	return process(raw)
}

func process(raw map[string]json.RawMessage) (*Library, error) {
	lib := &Library{
		Maps:        map[string]Map{},
		Weapons:     map[string]map[string]any{},
		Accessories: map[string]map[string]any{},
		Pets:        map[string]map[string]any{},
		PetFoods:    map[string]map[string]any{},
		ItemLevel:   map[string]int{},
	}

	if err := json.Unmarshal(raw["Config"], &lib.Config); err != nil {
		return nil, fmt.Errorf("assets: Config: %w", err)
	}
	if err := json.Unmarshal(raw["Levels"], &lib.Levels); err != nil {
		return nil, fmt.Errorf("assets: Levels: %w", err)
	}

	var maps []Map
	if err := json.Unmarshal(raw["Maps"], &maps); err != nil {
		return nil, fmt.Errorf("assets: Maps: %w", err)
	}
	for _, m := range maps {
		lib.Maps[m.Name] = m
	}

	for table, dst := range map[string]map[string]map[string]any{
		"WeaponsGrid": lib.Weapons,
		"Accessories": lib.Accessories,
		"Pets":        lib.Pets,
		"PetFoods":    lib.PetFoods,
	} {
		var rows []map[string]any
		if err := json.Unmarshal(raw[table], &rows); err != nil {
			return nil, fmt.Errorf("assets: %s: %w", table, err)
		}
		for _, row := range rows {
			key, _ := row["type"].(string)
			if key == "" {
				continue
			}
			dst[key] = row
		}
	}

	_ = json.Unmarshal(raw["Crate"], &lib.Crate)
	_ = json.Unmarshal(raw["Gifts"], &lib.Gifts)
	_ = json.Unmarshal(raw["Other"], &lib.Other)

	lib.indexItemLevels()
	return lib, nil
}

// indexItemLevels builds the item -> unlock-level index. Level numbers
// are 1-based row positions in the Levels table.
func (lib *Library) indexItemLevels() {
	for i, level := range lib.Levels {
		n := i + 1
		for _, item := range level.Map {
			lib.ItemLevel[item] = n
		}
		for _, item := range level.Chassis {
			lib.ItemLevel[item] = n
		}
		for _, item := range level.Weapon {
			lib.ItemLevel[item] = n
		}
	}
}

// MapByName returns the map table entry, if any.
func (lib *Library) MapByName(name string) (Map, bool) {
	m, ok := lib.Maps[name]
	return m, ok
}
