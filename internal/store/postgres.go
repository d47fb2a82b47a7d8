package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/woslots/WO/internal/player"
)

// userRecord is the players table row. The denormalized collections are
// JSON columns; the documents came from a document store originally and
// the client consumes them whole.
type userRecord struct {
	ID         string  `gorm:"primaryKey"`
	DName      string  `gorm:"column:dname;uniqueIndex"`
	Email      string  `gorm:"index"`
	LKey       string  `gorm:"column:lkey"`
	Treats     float64
	Gold       float64
	Level      float64
	XP         float64 `gorm:"column:xp"`
	HP         float64 `gorm:"column:hp"`
	Wins       int
	Losses     int
	GameCount  float64
	CurrentPet string

	WeaponsOwned    map[string]float64 `gorm:"serializer:json"`
	WeaponsEquipped []string           `gorm:"serializer:json"`
	Accessories     []string           `gorm:"serializer:json"`
	AllowedMaps     []string           `gorm:"serializer:json"`
}

func (userRecord) TableName() string { return "users" }

// PostgresStore persists player documents through gorm.
type PostgresStore struct {
	db *gorm.DB
}

// OpenPostgres connects and migrates the users table.
func OpenPostgres(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	if err := db.AutoMigrate(&userRecord{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Fetch(ctx context.Context, dname string) (*player.Snapshot, error) {
	var rec userRecord
	err := s.db.WithContext(ctx).Where("dname = ?", dname).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: fetch %q: %w", dname, err)
	}
	return rec.snapshot(), nil
}

func (s *PostgresStore) Upsert(ctx context.Context, snap *player.Snapshot) error {
	rec := fromSnapshot(snap)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("store: upsert %q: %w", snap.ID, err)
	}
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, dname, email string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&userRecord{}).
		Where("dname = ? OR email = ?", dname, email).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("store: exists: %w", err)
	}
	return n > 0, nil
}

func (rec *userRecord) snapshot() *player.Snapshot {
	return &player.Snapshot{
		ID:              rec.ID,
		DName:           rec.DName,
		Email:           rec.Email,
		LKey:            rec.LKey,
		Treats:          rec.Treats,
		Gold:            rec.Gold,
		Level:           rec.Level,
		XP:              rec.XP,
		HP:              rec.HP,
		Wins:            rec.Wins,
		Losses:          rec.Losses,
		GameCount:       rec.GameCount,
		CurrentPet:      rec.CurrentPet,
		WeaponsOwned:    rec.WeaponsOwned,
		WeaponsEquipped: rec.WeaponsEquipped,
		Accessories:     rec.Accessories,
		AllowedMaps:     rec.AllowedMaps,
	}
}

func fromSnapshot(snap *player.Snapshot) userRecord {
	return userRecord{
		ID:              snap.ID,
		DName:           snap.DName,
		Email:           snap.Email,
		LKey:            snap.LKey,
		Treats:          snap.Treats,
		Gold:            snap.Gold,
		Level:           snap.Level,
		XP:              snap.XP,
		HP:              snap.HP,
		Wins:            snap.Wins,
		Losses:          snap.Losses,
		GameCount:       snap.GameCount,
		CurrentPet:      snap.CurrentPet,
		WeaponsOwned:    snap.WeaponsOwned,
		WeaponsEquipped: snap.WeaponsEquipped,
		Accessories:     snap.Accessories,
		AllowedMaps:     snap.AllowedMaps,
	}
}
