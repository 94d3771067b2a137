package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder style and column types.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// DB wraps the pipeline's relational store. Queries are written with `?`
// placeholders and rebound for Postgres.
type DB struct {
	*sql.DB
	dialect Dialect
	now     func() time.Time
}

// New opens the database named by databaseURL: postgres://… for production,
// sqlite://path (or sqlite::memory:) for local runs and tests.
func New(databaseURL string) (*DB, error) {
	var (
		conn    *sql.DB
		dialect Dialect
		err     error
	)

	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		dialect = Postgres
		conn, err = sql.Open("postgres", databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(5 * time.Minute)

	case strings.HasPrefix(databaseURL, "sqlite:"):
		dialect = SQLite
		path := strings.TrimPrefix(strings.TrimPrefix(databaseURL, "sqlite:"), "//")
		dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
		conn, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		// SQLite allows one writer; serialise through a single connection.
		conn.SetMaxOpenConns(1)

	default:
		return nil, fmt.Errorf("unsupported database url scheme: %q", databaseURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: conn, dialect: dialect, now: time.Now}, nil
}

// Dialect reports which SQL dialect the store speaks.
func (db *DB) Dialect() Dialect { return db.dialect }

// SetClock overrides the clock used for timestamps and lease expiry.
func (db *DB) SetClock(now func() time.Time) { db.now = now }

func (db *DB) timestamp() time.Time { return db.now().UTC() }

// rebind rewrites `?` placeholders as $1..$n for Postgres.
func (db *DB) rebind(query string) string {
	if db.dialect != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (db *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.ExecContext(ctx, db.rebind(query), args...)
}

func (db *DB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return db.QueryRowContext(ctx, db.rebind(query), args...)
}

func (db *DB) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.QueryContext(ctx, db.rebind(query), args...)
}

// Migrate creates the pipeline's tables. Safe to run repeatedly.
func (db *DB) Migrate(ctx context.Context) error {
	types := strings.NewReplacer(
		"{{uuid}}", "UUID",
		"{{ts}}", "TIMESTAMPTZ",
	)
	if db.dialect == SQLite {
		types = strings.NewReplacer(
			"{{uuid}}", "TEXT",
			"{{ts}}", "TIMESTAMP",
		)
	}

	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, types.Replace(stmt)); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS music_tracks (
		id {{uuid}} PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		mood TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS workspace_members (
		workspace_id {{uuid}} NOT NULL,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'member',
		PRIMARY KEY (workspace_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS video_projects (
		id {{uuid}} PRIMARY KEY,
		workspace_id {{uuid}} NOT NULL,
		name TEXT NOT NULL,
		aspect_ratio TEXT NOT NULL DEFAULT '16:9',
		clip_count INTEGER NOT NULL DEFAULT 0,
		completed_clip_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'draft',
		generate_native_audio BOOLEAN NOT NULL DEFAULT FALSE,
		music_track_id {{uuid}} REFERENCES music_tracks(id) ON DELETE SET NULL,
		error_message TEXT,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS video_clips (
		id {{uuid}} PRIMARY KEY,
		video_project_id {{uuid}} NOT NULL REFERENCES video_projects(id) ON DELETE CASCADE,
		sequence_order INTEGER NOT NULL,
		room_type TEXT NOT NULL,
		room_label TEXT,
		source_image_url TEXT NOT NULL,
		end_image_url TEXT,
		motion_prompt TEXT,
		duration_seconds INTEGER NOT NULL DEFAULT 5,
		transition_type TEXT NOT NULL DEFAULT 'cut',
		status TEXT NOT NULL DEFAULT 'pending',
		clip_url TEXT,
		transition_clip_url TEXT,
		error_message TEXT,
		lease_owner TEXT,
		lease_expires_at BIGINT,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_video_clips_project ON video_clips (video_project_id, sequence_order)`,
	`CREATE INDEX IF NOT EXISTS idx_video_clips_status ON video_clips (status)`,
	`CREATE TABLE IF NOT EXISTS project_payments (
		id {{uuid}} PRIMARY KEY,
		video_project_id {{uuid}} NOT NULL REFERENCES video_projects(id) ON DELETE CASCADE,
		status TEXT NOT NULL,
		method TEXT,
		created_at {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_project_payments_project ON project_payments (video_project_id)`,
}
