package models

import (
	"context"
	"database/sql"
	"strings"
)

const postSelect = `SELECT p.id, p.author_id, u.username AS author_name, p.title, p.subtitle, p.body,
	COALESCE(p.img_url, '') AS img_url, p.created_at
	FROM posts p JOIN users u ON u.id = p.author_id`

func (s *Store) CreatePost(ctx context.Context, authorID int64, in PostInput) (*Post, error) {
	var id int64
	err := s.db.GetContext(ctx, &id, s.db.Rebind(`INSERT INTO posts (author_id, title, subtitle, body, img_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		authorID, strings.TrimSpace(in.Title), in.Subtitle, in.Body, nullString(in.ImgURL), s.now())
	if err != nil {
		return nil, wrap(err, "create post")
	}
	return s.GetPost(ctx, id)
}

func (s *Store) GetPost(ctx context.Context, id int64) (*Post, error) {
	var p Post
	if err := s.db.GetContext(ctx, &p, s.db.Rebind(postSelect+` WHERE p.id = ?`), id); err != nil {
		return nil, wrap(err, "get post")
	}
	return &p, nil
}

func (s *Store) CountPosts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM posts`); err != nil {
		return 0, wrap(err, "count posts")
	}
	return n, nil
}

// ListPosts returns page number (1-based) of the posts, newest first. Page
// numbers past the end are clamped to the last page, and an empty blog has
// the single page 1.
func (s *Store) ListPosts(ctx context.Context, number, size int) (*Page, error) {
	if size < 1 {
		size = 1
	}
	if number < 1 {
		number = 1
	}
	total, err := s.CountPosts(ctx)
	if err != nil {
		return nil, err
	}
	last := (total + size - 1) / size
	if last < 1 {
		last = 1
	}
	if number > last {
		number = last
	}

	posts := []Post{}
	err = s.db.SelectContext(ctx, &posts, s.db.Rebind(postSelect+` ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?`),
		size, (number-1)*size)
	if err != nil {
		return nil, wrap(err, "list posts")
	}
	return &Page{
		Posts:   posts,
		Number:  number,
		Size:    size,
		Total:   total,
		HasPrev: number > 1,
		HasNext: number*size < total,
	}, nil
}

func (s *Store) ListPostsByAuthor(ctx context.Context, authorID int64) ([]Post, error) {
	posts := []Post{}
	err := s.db.SelectContext(ctx, &posts, s.db.Rebind(postSelect+` WHERE p.author_id = ? ORDER BY p.created_at DESC, p.id DESC`), authorID)
	if err != nil {
		return nil, wrap(err, "list posts by author")
	}
	return posts, nil
}

func (s *Store) UpdatePost(ctx context.Context, id int64, in PostInput) (*Post, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE posts SET title = ?, subtitle = ?, body = ?, img_url = ? WHERE id = ?`),
		strings.TrimSpace(in.Title), in.Subtitle, in.Body, nullString(in.ImgURL), id)
	if err != nil {
		return nil, wrap(err, "update post")
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	return s.GetPost(ctx, id)
}

// DeletePost removes the post and, by cascade, its comments.
func (s *Store) DeletePost(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM posts WHERE id = ?`), id)
	if err != nil {
		return wrap(err, "delete post")
	}
	return requireAffected(res)
}

func nullString(v string) sql.NullString {
	v = strings.TrimSpace(v)
	return sql.NullString{String: v, Valid: v != ""}
}
