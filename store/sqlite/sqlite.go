// Package sqlite provides a durable credential store backed by a local
// SQLite database, for desktop and CLI clients that keep their session
// across restarts.
package sqlite

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/echotrace/echotrace-go/store"
)

var (
	ErrInvalidPath = errors.New("sqlite: database path cannot be empty")
)

// credentialRow is the single-row table holding the credential pair. Both
// tokens live in one row so replacement is atomic at the statement level.
type credentialRow struct {
	ID           uint   `gorm:"primaryKey"`
	AccessToken  string `gorm:"column:access_token"`
	RefreshToken string `gorm:"column:refresh_token"`
	UpdatedAt    time.Time
}

func (credentialRow) TableName() string {
	return "credentials"
}

// Store is a store.Store backed by a local SQLite file.
type Store struct {
	db *gorm.DB
}

// New opens (creating if needed) the database at path and migrates the
// credentials table.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&credentialRow{}); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Load returns the stored credential pair, or an empty pair when none is
// stored.
func (s *Store) Load(ctx context.Context) (store.Credentials, error) {
	var row credentialRow
	err := s.db.WithContext(ctx).First(&row, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.Credentials{}, nil
	}
	if err != nil {
		return store.Credentials{}, err
	}
	return store.Credentials{
		AccessToken:  row.AccessToken,
		RefreshToken: row.RefreshToken,
	}, nil
}

// Save replaces the stored pair in a single upsert.
func (s *Store) Save(ctx context.Context, creds store.Credentials) error {
	row := credentialRow{
		ID:           1,
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		UpdatedAt:    time.Now(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

// Clear removes the stored pair.
func (s *Store) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Delete(&credentialRow{}, 1).Error
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
