package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/playperu/packimport/internal/pack"
)

var ErrFileNotFound = errors.New("file not found")

// File is a stored media file. Data is only populated by Get.
type File struct {
	Ref         pack.FileRef `json:"ref"`
	PackUUID    string       `json:"packUuid"`
	Name        string       `json:"name"`
	ContentType string       `json:"contentType"`
	Size        int64        `json:"size"`
	Checksum    string       `json:"checksum"`
	AddedAt     time.Time    `json:"addedAt"`
	Data        []byte       `json:"-"`
}

// FileStore keeps media blobs in the files table. Every Store call creates
// a new row; identical content is not shared between refs.
type FileStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewFileStore(db *sql.DB) *FileStore {
	return &FileStore{db: db, now: time.Now}
}

// Store saves data under a fresh ref owned by packUUID.
func (s *FileStore) Store(ctx context.Context, packUUID, name string, data []byte) (pack.FileRef, error) {
	ref := pack.FileRef(uuid.NewString())
	sum := blake2b.Sum256(data)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (ref, pack_uuid, name, content_type, size, checksum, data, added_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(ref), packUUID, name, contentType(name, data), len(data),
		hex.EncodeToString(sum[:]), data, s.now().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("storing file %s: %w", name, err)
	}
	return ref, nil
}

func (s *FileStore) Get(ctx context.Context, ref pack.FileRef) (*File, error) {
	var (
		f       File
		addedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT ref, pack_uuid, name, content_type, size, checksum, added_at, data
		 FROM files WHERE ref = ?`, string(ref),
	).Scan(&f.Ref, &f.PackUUID, &f.Name, &f.ContentType, &f.Size, &f.Checksum, &addedAt, &f.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading file %s: %w", ref, err)
	}
	f.AddedAt = time.UnixMilli(addedAt).UTC()
	return &f, nil
}

// Delete removes the given refs. Unknown refs are ignored.
func (s *FileStore) Delete(ctx context.Context, refs ...pack.FileRef) error {
	if len(refs) == 0 {
		return nil
	}
	args := make([]any, len(refs))
	for i, r := range refs {
		args[i] = string(r)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(refs)), ",")

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM files WHERE ref IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("deleting %d files: %w", len(refs), err)
	}
	return nil
}

// ListByPack returns the metadata of every file owned by packUUID.
func (s *FileStore) ListByPack(ctx context.Context, packUUID string) ([]File, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ref, pack_uuid, name, content_type, size, checksum, added_at
		 FROM files WHERE pack_uuid = ? ORDER BY name, ref`, packUUID)
	if err != nil {
		return nil, fmt.Errorf("listing files of %s: %w", packUUID, err)
	}
	defer rows.Close()

	files := []File{}
	for rows.Next() {
		var (
			f       File
			addedAt int64
		)
		if err := rows.Scan(&f.Ref, &f.PackUUID, &f.Name, &f.ContentType, &f.Size, &f.Checksum, &addedAt); err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		f.AddedAt = time.UnixMilli(addedAt).UTC()
		files = append(files, f)
	}
	return files, rows.Err()
}

// DeletePack removes every file owned by packUUID and reports how many
// were removed.
func (s *FileStore) DeletePack(ctx context.Context, packUUID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE pack_uuid = ?`, packUUID)
	if err != nil {
		return 0, fmt.Errorf("deleting files of %s: %w", packUUID, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// PackIDs returns every pack uuid that owns at least one file.
func (s *FileStore) PackIDs(ctx context.Context) ([]string, error) {
	ids, err := queryStrings(ctx, s.db, `SELECT DISTINCT pack_uuid FROM files ORDER BY pack_uuid`)
	if err != nil {
		return nil, fmt.Errorf("listing file owners: %w", err)
	}
	return ids, nil
}

// contentType sniffs data, falling back to the file extension when the
// content is not recognised.
func contentType(name string, data []byte) string {
	mt := mimetype.Detect(data)
	if !mt.Is("application/octet-stream") && !mt.Is("text/plain") {
		return mt.String()
	}
	if byExt := mime.TypeByExtension(path.Ext(name)); byExt != "" {
		return byExt
	}
	return mt.String()
}
