package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/ridehail/internal/dbx"
	"github.com/dmitrijs2005/ridehail/internal/server/repositories/rides"
	"github.com/dmitrijs2005/ridehail/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX so services can run
// the same code against a pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Rides(db dbx.DBTX) rides.Repository
}
