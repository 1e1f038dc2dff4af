package sessions

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/ssergeev/studysync/internal/client/models"
	"github.com/ssergeev/studysync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE local_sessions (
  chapter_id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL,
  course_id TEXT NOT NULL DEFAULT '',
  last_active_at TIMESTAMP NOT NULL
);
`)
	require.NoError(t, err)

	return db
}

func TestUpsert_InsertAndReplace(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, r.Upsert(ctx, &models.Session{
		SessionID: "s1", ChapterID: "ch1", CourseID: "course1", LastActiveAt: now,
	}))

	got, err := r.GetByChapter(ctx, "ch1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "course1", got.CourseID)

	// Recovering a different session for the same chapter replaces the row.
	require.NoError(t, r.Upsert(ctx, &models.Session{
		SessionID: "s2", ChapterID: "ch1", LastActiveAt: now,
	}))

	got, err = r.GetByChapter(ctx, "ch1")
	require.NoError(t, err)
	assert.Equal(t, "s2", got.SessionID)

	var count int
	require.NoError(t, db.QueryRow(`select count(*) from local_sessions`).Scan(&count))
	assert.Equal(t, 1, count, "one row per chapter")
}

func TestGetByChapter_NotFound(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	_, err := r.GetByChapter(context.Background(), "ch-unknown")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestTouch(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	old := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, r.Upsert(ctx, &models.Session{
		SessionID: "s1", ChapterID: "ch1", LastActiveAt: old,
	}))

	require.NoError(t, r.Touch(ctx, "ch1"))

	got, err := r.GetByChapter(ctx, "ch1")
	require.NoError(t, err)
	assert.True(t, got.LastActiveAt.After(old))
}

func TestTouch_NotFound(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	err := r.Touch(context.Background(), "ch-unknown")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
