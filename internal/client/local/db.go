// Package local opens the device-side sqlite store and applies migrations.
package local

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/ssergeev/studysync/internal/client/migrations"
	"github.com/ssergeev/studysync/internal/client/repositories/sessions"
	"github.com/ssergeev/studysync/internal/client/repositories/snapshots"
	"github.com/ssergeev/studysync/internal/client/repositories/turns"
	"github.com/ssergeev/studysync/internal/dbx"

	_ "modernc.org/sqlite"
)

// Store is the opened device database plus repository constructors bound to
// it. Repositories taking a DBTX let callers reuse the same code inside a
// transaction.
type Store struct {
	DB *sql.DB
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// Open opens (or creates) the sqlite database at dsn and migrates it.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Single writer: avoids SQLITE_BUSY and keeps :memory: databases on one
	// connection.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

func (s *Store) Sessions(db dbx.DBTX) sessions.Repository {
	return sessions.NewSQLiteRepository(db)
}

func (s *Store) Turns(db dbx.DBTX) turns.Repository {
	return turns.NewSQLiteRepository(db)
}

func (s *Store) Snapshots(db dbx.DBTX) snapshots.Repository {
	return snapshots.NewSQLiteRepository(db)
}
