// Package sqlite persists the last active profile per device, so a device
// comes back on its previous profile after a restart or re-plug.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"codeberg.org/miketth/keywarp/pkg/profilestore/sqlite/migrations"
)

type Store struct {
	db *sql.DB
}

func NewStore(filename string, log *zap.SugaredLogger) (*Store, error) {
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := migrations.Migrate(db, log); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ActiveProfile returns the stored profile for device, or "" when none is
// recorded.
func (s *Store) ActiveProfile(device string) (string, error) {
	var profile string
	err := s.db.QueryRow(
		`SELECT profile FROM active_profiles WHERE device = ?`, device,
	).Scan(&profile)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("sqlite select: %w", err)
	}

	return profile, nil
}

func (s *Store) SetActiveProfile(device, profile string) error {
	_, err := s.db.Exec(
		`INSERT INTO active_profiles (device, profile) VALUES (?, ?)
		 ON CONFLICT (device) DO UPDATE SET profile = excluded.profile`,
		device, profile,
	)
	if err != nil {
		return fmt.Errorf("sqlite upsert: %w", err)
	}

	return nil
}
