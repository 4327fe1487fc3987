// Package db selects a store.Driver implementation based on profile.Driver.
package db

import (
	"github.com/pkg/errors"

	"github.com/avito-tech/accountant-sla/internal/profile"
	"github.com/avito-tech/accountant-sla/store"
	"github.com/avito-tech/accountant-sla/store/db/postgres"
	"github.com/avito-tech/accountant-sla/store/db/sqlite"
)

// NewDriver opens the database configured by p.Driver/p.DSN.
func NewDriver(p *profile.Profile) (store.Driver, error) {
	switch p.Driver {
	case "postgres":
		return postgres.New(p.DSN)
	case "sqlite":
		return sqlite.New(p.DSN)
	default:
		return nil, errors.Errorf("unsupported storage driver %q", p.Driver)
	}
}
