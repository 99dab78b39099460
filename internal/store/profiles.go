package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bookboard-app/bookboard/internal/model"
)

const profileColumns = `id, email, name, image_kind, image_value, created_at`

// ProfileStore is the SQLite-backed mirror of the user profile collection.
type ProfileStore struct {
	db *sql.DB
}

// GetAll returns every profile, newest first.
func (s *ProfileStore) GetAll(ctx context.Context) ([]*model.Profile, error) {
	const q = `SELECT ` + profileColumns + `
		FROM profiles ORDER BY created_at DESC, id ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying profiles: %w", err)
	}
	return collectProfiles(rows)
}

// GetByID returns the profile with the given ID, or (nil, nil) if absent.
func (s *ProfileStore) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	const q = `SELECT ` + profileColumns + ` FROM profiles WHERE id = ?`
	return scanProfile(s.db.QueryRowContext(ctx, q, id))
}

// GetByEmail returns the profile with the given email, or (nil, nil) if
// absent. Emails are not unique-constrained; the first match wins.
func (s *ProfileStore) GetByEmail(ctx context.Context, email string) (*model.Profile, error) {
	const q = `SELECT ` + profileColumns + ` FROM profiles WHERE email = ? LIMIT 1`
	return scanProfile(s.db.QueryRowContext(ctx, q, email))
}

// Upsert inserts or fully replaces the profile with the same ID.
func (s *ProfileStore) Upsert(ctx context.Context, p *model.Profile) error {
	const q = `
		INSERT OR REPLACE INTO profiles
		    (id, email, name, image_kind, image_value, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		p.ID, p.Email, p.Name, string(p.Image.Kind), p.Image.Value, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting profile %q: %w", p.ID, err)
	}
	return nil
}

// Update replaces an existing profile in full. Updating a profile that does
// not exist is a no-op.
func (s *ProfileStore) Update(ctx context.Context, p *model.Profile) error {
	const q = `
		UPDATE profiles SET email = ?, name = ?, image_kind = ?, image_value = ?,
		    created_at = ?
		WHERE id = ?`
	_, err := s.db.ExecContext(ctx, q,
		p.Email, p.Name, string(p.Image.Kind), p.Image.Value, p.CreatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating profile %q: %w", p.ID, err)
	}
	return nil
}

// Delete removes the profile with the given ID.
func (s *ProfileStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting profile %q: %w", id, err)
	}
	return nil
}

// Clear removes every profile.
func (s *ProfileStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM profiles`); err != nil {
		return fmt.Errorf("clearing profiles: %w", err)
	}
	return nil
}

// ReplaceAll atomically swaps the entire table contents for the given
// snapshot, in a single transaction.
func (s *ProfileStore) ReplaceAll(ctx context.Context, profiles []*model.Profile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning resync transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM profiles`); err != nil {
		return fmt.Errorf("clearing profiles: %w", err)
	}
	const q = `
		INSERT OR REPLACE INTO profiles
		    (id, email, name, image_kind, image_value, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	for _, p := range profiles {
		if _, err := tx.ExecContext(ctx, q,
			p.ID, p.Email, p.Name, string(p.Image.Kind), p.Image.Value, p.CreatedAt,
		); err != nil {
			return fmt.Errorf("inserting profile %q during resync: %w", p.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing resync: %w", err)
	}
	return nil
}

// --- helpers -----------------------------------------------------------------

func collectProfiles(rows *sql.Rows) ([]*model.Profile, error) {
	defer func() { _ = rows.Close() }()

	var profiles []*model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func scanProfile(s scanner) (*model.Profile, error) {
	var p model.Profile
	var imageKind string

	err := s.Scan(&p.ID, &p.Email, &p.Name, &imageKind, &p.Image.Value, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("scanning profile row: %w", err)
	}
	p.Image.Kind = model.ImageKind(imageKind)
	return &p, nil
}
