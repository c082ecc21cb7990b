package models

import "context"

const commentSelect = `SELECT c.id, c.post_id, c.author_id, u.username AS author_name, u.email AS author_email,
	c.body, c.created_at
	FROM comments c JOIN users u ON u.id = c.author_id`

// CreateComment stores a comment. It returns ErrNotFound when the post or the
// author does not exist.
func (s *Store) CreateComment(ctx context.Context, postID, authorID int64, body string) (*Comment, error) {
	var id int64
	err := s.db.GetContext(ctx, &id, s.db.Rebind(`INSERT INTO comments (post_id, author_id, body, created_at)
		VALUES (?, ?, ?, ?) RETURNING id`), postID, authorID, body, s.now())
	if err != nil {
		return nil, wrap(err, "create comment")
	}

	var c Comment
	if err := s.db.GetContext(ctx, &c, s.db.Rebind(commentSelect+` WHERE c.id = ?`), id); err != nil {
		return nil, wrap(err, "get comment")
	}
	return &c, nil
}

// ListComments returns the comments on a post, oldest first.
func (s *Store) ListComments(ctx context.Context, postID int64) ([]Comment, error) {
	cs := []Comment{}
	err := s.db.SelectContext(ctx, &cs, s.db.Rebind(commentSelect+` WHERE c.post_id = ? ORDER BY c.created_at, c.id`), postID)
	if err != nil {
		return nil, wrap(err, "list comments")
	}
	return cs, nil
}

func (s *Store) ListCommentsByAuthor(ctx context.Context, authorID int64) ([]Comment, error) {
	cs := []Comment{}
	err := s.db.SelectContext(ctx, &cs, s.db.Rebind(commentSelect+` WHERE c.author_id = ? ORDER BY c.created_at, c.id`), authorID)
	if err != nil {
		return nil, wrap(err, "list comments by author")
	}
	return cs, nil
}
