package repomanager

import (
	"context"
	"database/sql"

	"github.com/Satyam1603/GoTogether/internal/dbx"
	"github.com/Satyam1603/GoTogether/internal/server/repositories/challenges"
	"github.com/Satyam1603/GoTogether/internal/server/repositories/refreshtokens"
	"github.com/Satyam1603/GoTogether/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to either the pool or a
// transaction, so services can compose several writes in one dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Challenges(db dbx.DBTX) challenges.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
