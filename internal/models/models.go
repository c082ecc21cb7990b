package models

import (
	"database/sql"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         Role      `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

type Session struct {
	ID        string       `db:"id"`
	UserID    int64        `db:"user_id"`
	CreatedAt time.Time    `db:"created_at"`
	ExpiresAt time.Time    `db:"expires_at"`
	RevokedAt sql.NullTime `db:"revoked_at"`
}

// Active reports whether the session can still authenticate requests at now.
func (s *Session) Active(now time.Time) bool {
	return !s.RevokedAt.Valid && now.Before(s.ExpiresAt)
}

type Post struct {
	ID         int64     `db:"id"`
	AuthorID   int64     `db:"author_id"`
	AuthorName string    `db:"author_name"`
	Title      string    `db:"title"`
	Subtitle   string    `db:"subtitle"`
	Body       string    `db:"body"`
	ImgURL     string    `db:"img_url"`
	CreatedAt  time.Time `db:"created_at"`
}

// PostInput carries the editable fields of a post.
type PostInput struct {
	Title    string
	Subtitle string
	Body     string
	ImgURL   string
}

type Comment struct {
	ID          int64     `db:"id"`
	PostID      int64     `db:"post_id"`
	AuthorID    int64     `db:"author_id"`
	AuthorName  string    `db:"author_name"`
	AuthorEmail string    `db:"author_email"`
	Body        string    `db:"body"`
	CreatedAt   time.Time `db:"created_at"`
}

// Page is one slice of the post listing, newest first.
type Page struct {
	Posts   []Post
	Number  int
	Size    int
	Total   int
	HasPrev bool
	HasNext bool
}
