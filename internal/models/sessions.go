package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// CreateSession starts a session for the user, revoking any it already had.
func (s *Store) CreateSession(ctx context.Context, userID int64, ttl time.Duration) (*Session, error) {
	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	err := s.withTx(ctx, "create session", func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE sessions SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL`), now, userID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`),
			sess.ID, sess.UserID, sess.CreatedAt, sess.ExpiresAt)
		return err
	})
	if err != nil {
		return nil, wrap(err, "create session")
	}
	return sess, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	err := s.db.GetContext(ctx, &sess, s.db.Rebind(`SELECT id, user_id, created_at, expires_at, revoked_at FROM sessions WHERE id = ?`), id)
	if err != nil {
		return nil, wrap(err, "get session")
	}
	return &sess, nil
}

// UserForSession resolves a session id to its user. Expired, revoked and
// unknown sessions all return ErrNotFound.
func (s *Store) UserForSession(ctx context.Context, id string) (*User, error) {
	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.Active(s.now()) {
		return nil, ErrNotFound
	}
	return s.GetUser(ctx, sess.UserID)
}

func (s *Store) RevokeSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`), s.now(), id)
	return wrap(err, "revoke session")
}

// DeleteExpiredSessions removes expired and revoked sessions.
func (s *Store) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM sessions WHERE expires_at < ? OR revoked_at IS NOT NULL`), s.now())
	if err != nil {
		return 0, wrap(err, "delete expired sessions")
	}
	return res.RowsAffected()
}
