package models

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Store is the data access layer for users, posts, comments and sessions.
type Store struct {
	db  *sqlx.DB
	log logrus.FieldLogger
	now func() time.Time
}

func NewStore(db *sqlx.DB, log logrus.FieldLogger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{
		db:  db,
		log: log,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source used for created_at and session expiry.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) withTx(ctx context.Context, reason string, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.WithError(rbErr).WithField("tx", reason).Warn("transaction rollback failed")
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "commit %s", reason)
	}
	committed = true
	return nil
}

// wrap classifies err and adds context to anything that is not a sentinel.
func wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	if c := classify(err); c != err {
		return c
	}
	return errors.Wrap(err, msg)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
