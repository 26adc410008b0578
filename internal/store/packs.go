// Package store persists packs and their media in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/playperu/packimport/internal/pack"
)

// PackStore keeps one JSONB document per pack, keyed by the pack uuid.
type PackStore struct {
	db *sql.DB
}

func NewPackStore(db *sql.DB) *PackStore {
	return &PackStore{db: db}
}

func (s *PackStore) Load(ctx context.Context, uuid string) (*pack.Pack, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM packs WHERE uuid = ?`, uuid,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pack.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading pack %s: %w", uuid, err)
	}

	var p pack.Pack
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("decoding pack %s: %w", uuid, err)
	}
	return &p, nil
}

// Save inserts p. Packs are never overwritten: an existing uuid yields
// pack.ErrExists and leaves the stored pack untouched.
func (s *PackStore) Save(ctx context.Context, p *pack.Pack) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding pack %s: %w", p.UUID, err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO packs (uuid, name, creation_time, data) VALUES (?, ?, ?, jsonb(?))
		 ON CONFLICT(uuid) DO NOTHING`,
		p.UUID, p.Name, p.CreationTime.UnixMilli(), string(data),
	)
	if err != nil {
		return fmt.Errorf("saving pack %s: %w", p.UUID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("saving pack %s: %w", p.UUID, err)
	}
	if n == 0 {
		return pack.ErrExists
	}
	return nil
}

// List returns the summaries of all packs, newest first.
func (s *PackStore) List(ctx context.Context) ([]pack.Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT json(data) FROM packs ORDER BY creation_time DESC, uuid`)
	if err != nil {
		return nil, fmt.Errorf("listing packs: %w", err)
	}
	defer rows.Close()

	summaries := []pack.Summary{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning pack: %w", err)
		}
		var p pack.Pack
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("decoding pack: %w", err)
		}
		summaries = append(summaries, p.Summary())
	}
	return summaries, rows.Err()
}

func (s *PackStore) Delete(ctx context.Context, uuid string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM packs WHERE uuid = ?`, uuid)
	if err != nil {
		return fmt.Errorf("deleting pack %s: %w", uuid, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return pack.ErrNotFound
	}
	return nil
}

// IDs returns the uuid of every stored pack.
func (s *PackStore) IDs(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, s.db, `SELECT uuid FROM packs ORDER BY uuid`)
}

func queryStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
