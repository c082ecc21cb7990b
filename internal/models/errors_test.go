package models

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	logger, _ := test.NewNullLogger()
	return NewStore(sqlx.NewDb(mockDB, "sqlmock"), logger), mock
}

func TestPostgresUniqueViolationIsConflict(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("INSERT INTO posts").
		WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: "posts_title_key"})

	_, err := s.CreatePost(context.Background(), 1, PostInput{Title: "dup", Subtitle: "s", Body: "b"})
	assert.ErrorIs(t, err, ErrDuplicateTitle)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUniqueEmailRollsBack(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: "users_email_key"})
	mock.ExpectRollback()

	_, err := s.CreateUser(context.Background(), "A", "a@x.com", "hash")
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresForeignKeyIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("INSERT INTO comments").
		WillReturnError(&pq.Error{Code: pqForeignKeyViolation, Constraint: "comments_post_id_fkey"})

	_, err := s.CreateComment(context.Background(), 7, 1, "hi")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnknownErrorsAreWrapped(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("disk I/O error"))

	_, err := s.CountPosts(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count posts")
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.False(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil))
	assert.Equal(t, ErrNotFound, classify(sql.ErrNoRows))
	assert.ErrorIs(t, classify(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}), ErrConflict)
	assert.Equal(t, ErrNotFound, classify(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}))

	other := errors.New("boom")
	assert.Equal(t, other, classify(other))
}
