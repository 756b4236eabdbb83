package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"booklet-cli/internal/model"
	"booklet-cli/internal/reconcile"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is a uniqueness violation: a rank or version already held in the booklet.
	ErrConflict = errors.New("conflict")
	// ErrInvalidReference is a write naming a booklet or question-version that does not exist.
	ErrInvalidReference = errors.New("invalid reference")
	// ErrInvalid is a malformed write (empty title, rank below 1).
	ErrInvalid = errors.New("invalid input")
)

type NotFoundError struct {
	Kind string
	ID   int64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Kind, e.ID)
}

func (e NotFoundError) Unwrap() error { return ErrNotFound }

// Store is the sqlite-backed booklet collection. It serves as the local remote for the
// CLI/TUI and as the backing store for `booklet serve`.
type Store struct {
	db *sql.DB

	// BulkReplace gates ReplaceItems; when false it reports reconcile.ErrUnsupported.
	BulkReplace bool

	now func() time.Time
}

type Option func(*Store)

func WithBulkReplace(enabled bool) Option {
	return func(s *Store) { s.BulkReplace = enabled }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (creating if needed) the sqlite database at path and applies migrations.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps pragmas and :memory: databases consistent across calls.
	db.SetMaxOpenConns(1)

	// WAL enables one writer + many readers; busy_timeout helps avoid "database is locked" flakiness.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, BulkReplace: true, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) nowMs() int64 { return s.now().UTC().UnixMilli() }

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS booklets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			subject TEXT NOT NULL DEFAULT '',
			created_at_unixms INTEGER NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS questions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT NOT NULL UNIQUE,
			subject TEXT NOT NULL DEFAULT '',
			difficulty TEXT NOT NULL DEFAULT '',
			created_at_unixms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS question_versions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
			version INTEGER NOT NULL,
			title TEXT NOT NULL,
			stem TEXT NOT NULL DEFAULT '',
			created_at_unixms INTEGER NOT NULL,
			UNIQUE(question_id, version)
		);`,
		`CREATE TABLE IF NOT EXISTS booklet_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			booklet_id INTEGER NOT NULL REFERENCES booklets(id) ON DELETE CASCADE,
			version_id INTEGER NOT NULL REFERENCES question_versions(id),
			rank INTEGER NOT NULL CHECK(rank >= 1),
			created_at_unixms INTEGER NOT NULL,
			updated_at_unixms INTEGER NOT NULL,
			UNIQUE(booklet_id, rank),
			UNIQUE(booklet_id, version_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_booklet_items_booklet ON booklet_items(booklet_id, rank);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

// classify maps sqlite constraint failures onto the package sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		if strings.Contains(err.Error(), "FOREIGN KEY") {
			return fmt.Errorf("%w: %v", ErrInvalidReference, err)
		}
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func fromMs(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func (s *Store) CreateBooklet(ctx context.Context, title, subject string) (model.Booklet, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Booklet{}, fmt.Errorf("%w: booklet title is empty", ErrInvalid)
	}
	now := s.nowMs()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO booklets(title, subject, created_at_unixms, updated_at_unixms) VALUES(?, ?, ?, ?)`,
		title, strings.TrimSpace(subject), now, now)
	if err != nil {
		return model.Booklet{}, classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Booklet{}, err
	}
	return s.GetBooklet(ctx, id)
}

func (s *Store) GetBooklet(ctx context.Context, id int64) (model.Booklet, error) {
	var b model.Booklet
	var created, updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, subject, created_at_unixms, updated_at_unixms FROM booklets WHERE id = ?`, id).
		Scan(&b.ID, &b.Title, &b.Subject, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booklet{}, NotFoundError{Kind: "booklet", ID: id}
	}
	if err != nil {
		return model.Booklet{}, err
	}
	b.CreatedAt = fromMs(created)
	b.UpdatedAt = fromMs(updated)
	return b, nil
}

func (s *Store) ListBooklets(ctx context.Context) ([]model.Booklet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, subject, created_at_unixms, updated_at_unixms FROM booklets ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Booklet{}
	for rows.Next() {
		var b model.Booklet
		var created, updated int64
		if err := rows.Scan(&b.ID, &b.Title, &b.Subject, &created, &updated); err != nil {
			return nil, err
		}
		b.CreatedAt = fromMs(created)
		b.UpdatedAt = fromMs(updated)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) touchBooklet(ctx context.Context, q execer, id int64) error {
	_, err := q.ExecContext(ctx, `UPDATE booklets SET updated_at_unixms = ? WHERE id = ?`, s.nowMs(), id)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Backend is everything the CLI and TUI need from a booklet source. *Store serves it
// locally; remote.Client serves it over HTTP.
type Backend interface {
	reconcile.Remote
	reconcile.Searcher
	ListBooklets(ctx context.Context) ([]model.Booklet, error)
	CreateBooklet(ctx context.Context, title, subject string) (model.Booklet, error)
	GetBooklet(ctx context.Context, id int64) (model.Booklet, error)
	CandidatesByVersion(ctx context.Context, versionIDs []int64) (map[int64]model.Candidate, error)
	AddQuestionVersion(ctx context.Context, in QuestionInput) (model.Candidate, error)
}

var _ Backend = (*Store)(nil)
