// Package history records successful embeds in a local sqlite database so
// watermark lengths can be looked up later.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// timeLayout is fixed-width so created_at orders correctly as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when no record matches a lookup
var ErrNotFound = errors.New("history: no matching embed")

// Record is one successful embed
type Record struct {
	ID           string
	SourceName   string
	ProcessedURL string
	DownloadName string
	Length       int
	Text         string
	CreatedAt    time.Time
}

// Store persists embed records
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and applies pending migrations
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir history dir: %w", err)
		}
	}

	if err := migrateUp(path); err != nil {
		return nil, fmt.Errorf("migrate history: %w", err)
	}

	db, err := openDB(path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return &Store{db: db, now: now}, nil
}

func openDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)
	return db, nil
}

// migrateUp runs on its own handle; closing the migrator closes the database.
func migrateUp(path string) error {
	db, err := openDB(path)
	if err != nil {
		return err
	}

	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		_ = db.Close()
		return err
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		_ = db.Close()
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer m.Close()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

// now returns UTC time truncated to seconds
func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Add stores r, assigning an ID and timestamp when unset
func (s *Store) Add(ctx context.Context, r Record) (Record, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO embeds(id, source_name, processed_url, download_name, wm_length, watermark_text, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?);
	`, r.ID, r.SourceName, r.ProcessedURL, r.DownloadName, r.Length, r.Text, r.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return Record{}, fmt.Errorf("insert embed: %w", err)
	}
	return r, nil
}

// Recent returns up to limit records, newest first. limit <= 0 returns all.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, source_name, processed_url, download_name, wm_length, watermark_text, created_at
	FROM embeds ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LengthFor returns the length of the newest embed whose processed or
// source file name is name
func (s *Store) LengthFor(ctx context.Context, name string) (int, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT wm_length FROM embeds
	WHERE download_name = ? OR source_name = ?
	ORDER BY (download_name = ?) DESC, created_at DESC, rowid DESC LIMIT 1`, name, name, name)

	var length int
	if err := row.Scan(&length); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return length, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (Record, error) {
	var r Record
	var created string
	if err := row.Scan(&r.ID, &r.SourceName, &r.ProcessedURL, &r.DownloadName, &r.Length, &r.Text, &created); err != nil {
		return Record{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Record{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	r.CreatedAt = t
	return r, nil
}
