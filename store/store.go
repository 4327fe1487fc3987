// Package store defines the storage-agnostic domain entities and the
// Driver interface each backend (postgres, sqlite) implements.
package store

import (
	"context"

	"github.com/avito-tech/accountant-sla/internal/profile"
)

// Store provides domain-level access to persisted state. It forwards to a
// Driver implementation chosen at startup based on profile.Driver.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{driver: driver, profile: profile}
}

func (s *Store) Driver() Driver {
	return s.driver
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.driver.Ping(ctx)
}
