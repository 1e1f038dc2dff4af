package sessions

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ssergeev/studysync/internal/common"
	"github.com/ssergeev/studysync/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	q := `(?s)^\s*INSERT\s+INTO\s+learning_sessions\b.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*NULLIF\(\$4,\s*''\),\s*\$5,\s*\$5\);?\s*$`

	mock.ExpectExec(q).
		WithArgs("s1", "u1", "ch1", "course1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.Session{
		ID:        "s1",
		UserID:    "u1",
		ChapterID: "ch1",
		CourseID:  "course1",
		CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+learning_sessions`).
		WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &models.Session{ID: "s1"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByID_OK(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Now().UTC().Add(-time.Hour)
	active := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"session_id", "user_id", "chapter_id", "course_id", "created_at", "last_active_at"}).
		AddRow("s1", "u1", "ch1", "", created, active)

	mock.ExpectQuery(`SELECT session_id, user_id, chapter_id, COALESCE\(course_id, ''\), created_at, last_active_at\s+FROM learning_sessions WHERE session_id = \$1`).
		WithArgs("s1").
		WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "s1" || got.UserID != "u1" || got.ChapterID != "ch1" {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM learning_sessions WHERE session_id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestTouch_OK(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Now().UTC()
	mock.ExpectExec(`UPDATE learning_sessions SET last_active_at = \$2 WHERE session_id = \$1`).
		WithArgs("s1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Touch(context.Background(), "s1", at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTouch_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Now().UTC()
	mock.ExpectExec(`UPDATE learning_sessions SET last_active_at = \$2 WHERE session_id = \$1`).
		WithArgs("missing", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Touch(context.Background(), "missing", at)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestGetLatestForUserChapter_OK(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Now().UTC().Add(-time.Hour)
	active := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"session_id", "user_id", "chapter_id", "course_id", "created_at", "last_active_at"}).
		AddRow("s2", "u1", "ch1", "course1", created, active)

	mock.ExpectQuery(`(?s)FROM learning_sessions\s+WHERE user_id = \$1 AND chapter_id = \$2 AND \(\$3 = '' OR course_id = \$3\)\s+ORDER BY last_active_at DESC\s+LIMIT 1`).
		WithArgs("u1", "ch1", "course1").
		WillReturnRows(rows)

	got, err := repo.GetLatestForUserChapter(context.Background(), "u1", "ch1", "course1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "s2" || got.CourseID != "course1" {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestGetLatestForUserChapter_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM learning_sessions`).
		WithArgs("u1", "ch-new", "").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetLatestForUserChapter(context.Background(), "u1", "ch-new", "")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestListSummaries_OK(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	t1 := time.Now().UTC().Add(-2 * time.Hour)
	t2 := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"session_id", "created_at", "last_active_at", "count"}).
		AddRow("s2", t1, t2, 5).
		AddRow("s1", t1, t1, 0)

	mock.ExpectQuery(`(?s)SELECT s\.session_id, s\.created_at, s\.last_active_at, COUNT\(t\.id\)\s+FROM learning_sessions s\s+LEFT JOIN session_turns t`).
		WithArgs("u1", "ch1").
		WillReturnRows(rows)

	got, err := repo.ListSummaries(context.Background(), "u1", "ch1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 rows, got %d", len(got))
	}
	if got[0].SessionID != "s2" || got[0].TurnCount != 5 {
		t.Fatalf("bad row[0]: %+v", got[0])
	}
	if got[1].TurnCount != 0 {
		t.Fatalf("bad row[1]: %+v", got[1])
	}
}

func TestListSummaries_QueryErr(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM learning_sessions s`).
		WithArgs("u1", "ch1").
		WillReturnError(errors.New("db err"))

	_, err := repo.ListSummaries(context.Background(), "u1", "ch1")
	if err == nil || !regexp.MustCompile(`failed to select sessions: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped select error, got %v", err)
	}
}
