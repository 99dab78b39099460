package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bookboard-app/bookboard/internal/model"
)

const postColumns = `id, owner_id, owner_name, title, author, review, rating,
       image_kind, image_value, created_at`

// PostStore is the SQLite-backed mirror of the posts collection. All list
// queries order by creation time descending, with the ID as a deterministic
// tie-break for equal timestamps.
type PostStore struct {
	db *sql.DB
}

// GetAll returns every post, newest first.
func (s *PostStore) GetAll(ctx context.Context) ([]*model.Post, error) {
	const q = `SELECT ` + postColumns + `
		FROM posts ORDER BY created_at DESC, id ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying posts: %w", err)
	}
	return collectPosts(rows)
}

// GetByOwner returns the posts owned by the given user, newest first.
func (s *PostStore) GetByOwner(ctx context.Context, ownerID string) ([]*model.Post, error) {
	const q = `SELECT ` + postColumns + `
		FROM posts WHERE owner_id = ? ORDER BY created_at DESC, id ASC`
	rows, err := s.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying posts for owner %q: %w", ownerID, err)
	}
	return collectPosts(rows)
}

// GetByID returns the post with the given ID, or (nil, nil) if no such post
// exists.
func (s *PostStore) GetByID(ctx context.Context, id string) (*model.Post, error) {
	const q = `SELECT ` + postColumns + ` FROM posts WHERE id = ?`
	return scanPost(s.db.QueryRowContext(ctx, q, id))
}

// Upsert inserts or fully replaces the post with the same ID. No field merge
// is performed.
func (s *PostStore) Upsert(ctx context.Context, p *model.Post) error {
	const q = `
		INSERT OR REPLACE INTO posts
		    (id, owner_id, owner_name, title, author, review, rating,
		     image_kind, image_value, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		p.ID, p.OwnerID, p.OwnerName, p.Title, p.Author, p.Review, p.Rating,
		string(p.Image.Kind), p.Image.Value, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting post %q: %w", p.ID, err)
	}
	return nil
}

// Update replaces an existing post in full. Updating a post that does not
// exist is a no-op.
func (s *PostStore) Update(ctx context.Context, p *model.Post) error {
	const q = `
		UPDATE posts SET
		    owner_id = ?, owner_name = ?, title = ?, author = ?, review = ?,
		    rating = ?, image_kind = ?, image_value = ?, created_at = ?
		WHERE id = ?`
	_, err := s.db.ExecContext(ctx, q,
		p.OwnerID, p.OwnerName, p.Title, p.Author, p.Review, p.Rating,
		string(p.Image.Kind), p.Image.Value, p.CreatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating post %q: %w", p.ID, err)
	}
	return nil
}

// Delete removes the post with the given ID.
func (s *PostStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting post %q: %w", id, err)
	}
	return nil
}

// Clear removes every post.
func (s *PostStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM posts`); err != nil {
		return fmt.Errorf("clearing posts: %w", err)
	}
	return nil
}

// ReplaceAll atomically swaps the entire table contents for the given
// snapshot. A concurrent reader sees either the old set or the new set, never
// a half-cleared table.
func (s *PostStore) ReplaceAll(ctx context.Context, posts []*model.Post) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning resync transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM posts`); err != nil {
		return fmt.Errorf("clearing posts: %w", err)
	}
	const q = `
		INSERT OR REPLACE INTO posts
		    (id, owner_id, owner_name, title, author, review, rating,
		     image_kind, image_value, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, p := range posts {
		if _, err := tx.ExecContext(ctx, q,
			p.ID, p.OwnerID, p.OwnerName, p.Title, p.Author, p.Review, p.Rating,
			string(p.Image.Kind), p.Image.Value, p.CreatedAt,
		); err != nil {
			return fmt.Errorf("inserting post %q during resync: %w", p.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing resync: %w", err)
	}
	return nil
}

// --- helpers -----------------------------------------------------------------

func collectPosts(rows *sql.Rows) ([]*model.Post, error) {
	defer func() { _ = rows.Close() }()

	var posts []*model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func scanPost(s scanner) (*model.Post, error) {
	var p model.Post
	var imageKind string

	err := s.Scan(
		&p.ID, &p.OwnerID, &p.OwnerName, &p.Title, &p.Author, &p.Review,
		&p.Rating, &imageKind, &p.Image.Value, &p.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("scanning post row: %w", err)
	}
	p.Image.Kind = model.ImageKind(imageKind)
	return &p, nil
}
