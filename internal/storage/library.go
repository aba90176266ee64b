package storage

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cjeanneret/SnapGo/internal/debug"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
	_ "modernc.org/sqlite"
)

// createdLayout keeps catalog timestamps fixed-width so they sort as text.
const createdLayout = "2006-01-02T15:04:05.000000000Z"

// ErrLibraryDenied is returned when media-library access was refused.
var ErrLibraryDenied = errors.New("media library access denied")

const schema = `
CREATE TABLE IF NOT EXISTS assets (
    id          TEXT PRIMARY KEY,
    file_name   TEXT NOT NULL,
    source_path TEXT NOT NULL,
    size_bytes  INTEGER NOT NULL,
    digest      TEXT NOT NULL,
    created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assets_created_at ON assets(created_at DESC);
`

// Asset is one photo saved into the media library.
type Asset struct {
	ID         string
	FileName   string
	SourcePath string
	SizeBytes  int64
	Digest     string // BLAKE2b-256, hex
	CreatedAt  time.Time
}

// Library is a directory of photos indexed by a SQLite catalog.
type Library struct {
	dir     string
	db      *sql.DB
	allowed bool
	now     func() time.Time
}

// OpenLibrary opens or creates the library directory and its catalog.
// allowed carries the media-library permission answer; when false every
// SaveToLibrary call fails with ErrLibraryDenied.
func OpenLibrary(dir, catalogPath string, allowed bool) (*Library, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create library directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(catalogPath), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite", catalogPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	// One writer at a time; concurrent saves queue on the pool.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping catalog: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize catalog schema: %w", err)
	}

	return &Library{dir: dir, db: db, allowed: allowed, now: time.Now}, nil
}

// SaveToLibrary copies the file at path into the library under a fresh id
// and records it in the catalog.
func (l *Library) SaveToLibrary(ctx context.Context, path string) (Asset, error) {
	if !l.allowed {
		return Asset{}, ErrLibraryDenied
	}

	src, err := os.Open(path)
	if err != nil {
		return Asset{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close()

	id := uuid.New().String()
	name := id + ".jpg"
	dstPath := filepath.Join(l.dir, name)
	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Asset{}, fmt.Errorf("create %s: %w", dstPath, err)
	}

	hash, _ := blake2b.New256(nil)
	size, err := io.Copy(io.MultiWriter(dst, hash), src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dstPath)
		return Asset{}, fmt.Errorf("copy into library: %w", err)
	}

	asset := Asset{
		ID:         id,
		FileName:   name,
		SourcePath: path,
		SizeBytes:  size,
		Digest:     hex.EncodeToString(hash.Sum(nil)),
		CreatedAt:  l.now().UTC(),
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO assets (id, file_name, source_path, size_bytes, digest, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		asset.ID, asset.FileName, asset.SourcePath, asset.SizeBytes, asset.Digest, asset.CreatedAt.Format(createdLayout),
	)
	if err != nil {
		os.Remove(dstPath)
		return Asset{}, fmt.Errorf("record asset: %w", err)
	}

	debug.Info("Saved %s to media library as %s", path, name)
	return asset, nil
}

// List returns catalog entries, newest first.
func (l *Library) List(ctx context.Context) ([]Asset, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, file_name, source_path, size_bytes, digest, created_at FROM assets ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		var a Asset
		var created string
		if err := rows.Scan(&a.ID, &a.FileName, &a.SourcePath, &a.SizeBytes, &a.Digest, &created); err != nil {
			return nil, fmt.Errorf("scan asset row: %w", err)
		}
		a.CreatedAt, err = time.Parse(createdLayout, created)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", created, err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate asset rows: %w", err)
	}
	return assets, nil
}

// Path returns the absolute location of an asset's file.
func (l *Library) Path(a Asset) string {
	return filepath.Join(l.dir, a.FileName)
}

// Close closes the catalog.
func (l *Library) Close() error {
	return l.db.Close()
}
