package repomanager

import (
	"context"
	"database/sql"

	"github.com/waonpad/benkyo-1/internal/dbx"
	"github.com/waonpad/benkyo-1/internal/server/repositories/accesstokens"
	"github.com/waonpad/benkyo-1/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code
// runs against the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	AccessTokens(db dbx.DBTX) accesstokens.Repository
}
