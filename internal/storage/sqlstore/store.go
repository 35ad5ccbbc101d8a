// Package sqlstore implements the LocalStore on an embedded SQLite database via GORM.
// It is the default durable store for a single device process.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tinywideclouds/go-token-sync/pkg/tokensync"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// tokenRecord is the token namespace row. One row per installation.
type tokenRecord struct {
	Installation string `gorm:"primaryKey"`
	Value        string `gorm:"not null"`
	PendingSync  bool   `gorm:"not null"`
	UpdatedAt    time.Time
}

func (tokenRecord) TableName() string { return "device_tokens" }

// sessionRecord is the session namespace row.
type sessionRecord struct {
	Installation string `gorm:"primaryKey"`
	UserID       string `gorm:"not null"`
	AccessToken  string
	UpdatedAt    time.Time
}

func (sessionRecord) TableName() string { return "device_sessions" }

type Store struct {
	db           *gorm.DB
	installation string
}

// Open opens (or creates) the SQLite file at path and migrates the schema.
func Open(path, installation string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	return New(db, installation)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB, installation string) (*Store, error) {
	if installation == "" {
		installation = "default"
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("token store pool: %w", err)
	}
	// SQLite allows one writer; a single connection serializes writes per key.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&tokenRecord{}, &sessionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate token store: %w", err)
	}
	return &Store{db: db, installation: installation}, nil
}

func (s *Store) Token(ctx context.Context) (tokensync.DeviceToken, bool, error) {
	var rec tokenRecord
	err := s.db.WithContext(ctx).Where("installation = ?", s.installation).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tokensync.DeviceToken{}, false, nil
	}
	if err != nil {
		return tokensync.DeviceToken{}, false, fmt.Errorf("read token: %w", err)
	}
	if rec.Value == "" {
		return tokensync.DeviceToken{}, false, nil
	}
	return tokensync.DeviceToken{Value: rec.Value, PendingSync: rec.PendingSync}, true, nil
}

func (s *Store) SetToken(ctx context.Context, value string, pendingSync bool) error {
	rec := &tokenRecord{
		Installation: s.installation,
		Value:        value,
		PendingSync:  pendingSync,
		UpdatedAt:    time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "installation"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "pending_sync", "updated_at"}),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

func (s *Store) MarkSynced(ctx context.Context, value string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&tokenRecord{}).
		Where("installation = ? AND value = ?", s.installation, value).
		Updates(map[string]any{"pending_sync": false, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, fmt.Errorf("mark synced: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) Session(ctx context.Context) (tokensync.Session, error) {
	var rec sessionRecord
	err := s.db.WithContext(ctx).Where("installation = ?", s.installation).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tokensync.Session{}, nil
	}
	if err != nil {
		return tokensync.Session{}, fmt.Errorf("read session: %w", err)
	}
	return tokensync.Session{UserID: rec.UserID, AccessToken: rec.AccessToken}, nil
}

func (s *Store) SetSession(ctx context.Context, userID, accessToken string) error {
	rec := &sessionRecord{
		Installation: s.installation,
		UserID:       userID,
		AccessToken:  accessToken,
		UpdatedAt:    time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "installation"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "access_token", "updated_at"}),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (s *Store) ClearSession(ctx context.Context) error {
	err := s.db.WithContext(ctx).Where("installation = ?", s.installation).Delete(&sessionRecord{}).Error
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
