// Package db selects the concrete store driver for a runtime profile.
package db

import (
	"github.com/pkg/errors"

	"github.com/useinkwell/inkwell/server/profile"
	"github.com/useinkwell/inkwell/store"
	"github.com/useinkwell/inkwell/store/db/mysql"
	"github.com/useinkwell/inkwell/store/db/postgres"
	"github.com/useinkwell/inkwell/store/db/sqlite"
)

// NewDriver creates the database driver named by the profile.
func NewDriver(p *profile.Profile) (store.Driver, error) {
	switch p.Driver {
	case "sqlite":
		return sqlite.NewDB(p.DSN)
	case "mysql":
		return mysql.NewDB(p.DSN)
	case "postgres":
		return postgres.NewDB(p.DSN)
	default:
		return nil, errors.Errorf("unknown db driver %q", p.Driver)
	}
}
