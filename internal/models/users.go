package models

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
)

const userColumns = `id, username, email, password_hash, role, created_at`

// CreateUser inserts a new account. The first account ever created is given
// the admin role.
func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash string) (*User, error) {
	var id int64
	err := s.withTx(ctx, "create user", func(tx *sqlx.Tx) error {
		var count int
		if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`); err != nil {
			return err
		}
		role := RoleUser
		if count == 0 {
			role = RoleAdmin
		}
		return tx.GetContext(ctx, &id, tx.Rebind(`INSERT INTO users (username, email, password_hash, role, created_at)
			VALUES (?, ?, ?, ?, ?) RETURNING id`),
			strings.TrimSpace(username), NormalizeEmail(email), passwordHash, role, s.now())
	})
	if err != nil {
		return nil, wrap(err, "create user")
	}
	return s.GetUser(ctx, id)
}

func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, s.db.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if err != nil {
		return nil, wrap(err, "get user")
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, s.db.Rebind(`SELECT `+userColumns+` FROM users WHERE email = ?`), NormalizeEmail(email))
	if err != nil {
		return nil, wrap(err, "get user by email")
	}
	return &u, nil
}

func (s *Store) SetUserRole(ctx context.Context, id int64, role Role) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE users SET role = ? WHERE id = ?`), role, id)
	if err != nil {
		return wrap(err, "set user role")
	}
	return requireAffected(res)
}

// DeleteUser removes the account; posts, comments and sessions go with it.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return wrap(err, "delete user")
	}
	return requireAffected(res)
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, wrap(err, "count users")
	}
	return n, nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
