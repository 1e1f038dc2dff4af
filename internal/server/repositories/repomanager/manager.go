package repomanager

import (
	"context"
	"database/sql"

	"github.com/ssergeev/studysync/internal/dbx"
	"github.com/ssergeev/studysync/internal/server/repositories/files"
	"github.com/ssergeev/studysync/internal/server/repositories/sessions"
	"github.com/ssergeev/studysync/internal/server/repositories/snapshots"
	"github.com/ssergeev/studysync/internal/server/repositories/turns"
)

// RepositoryManager hands out repositories bound to a DBTX, so services can
// use the same repository code inside and outside transactions.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Sessions(db dbx.DBTX) sessions.Repository
	Turns(db dbx.DBTX) turns.Repository
	Snapshots(db dbx.DBTX) snapshots.Repository
	Files(db dbx.DBTX) files.Repository
}
