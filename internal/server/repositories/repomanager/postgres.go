// Package repomanager wires the PostgreSQL repositories and migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/ssergeev/studysync/internal/dbx"
	"github.com/ssergeev/studysync/internal/server/migrations"
	"github.com/ssergeev/studysync/internal/server/repositories/files"
	"github.com/ssergeev/studysync/internal/server/repositories/sessions"
	"github.com/ssergeev/studysync/internal/server/repositories/snapshots"
	"github.com/ssergeev/studysync/internal/server/repositories/turns"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRepositoryManager struct {
}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

func (m *PostgresRepositoryManager) Sessions(db dbx.DBTX) sessions.Repository {
	return sessions.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Turns(db dbx.DBTX) turns.Repository {
	return turns.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Snapshots(db dbx.DBTX) snapshots.Repository {
	return snapshots.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Files(db dbx.DBTX) files.Repository {
	return files.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}
