// Package store is the SQLite build manifest: which tree files were built
// from which content, what they depended on and which diagnostics they
// produced. It lets a build skip files whose inputs did not change.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for the build manifest.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS builds (
  id              TEXT PRIMARY KEY,
  started_at      TIMESTAMP NOT NULL,
  finished_at     TIMESTAMP,
  status          TEXT NOT NULL,
  files_built     INTEGER DEFAULT 0,
  files_skipped   INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  hash            TEXT NOT NULL,
  output          TEXT,
  has_errors      BOOLEAN DEFAULT FALSE,
  build_id        TEXT REFERENCES builds(id),
  built_at        TIMESTAMP
);

CREATE TABLE IF NOT EXISTS file_deps (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
  path            TEXT NOT NULL,
  mtime_ns        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS diagnostics (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
  kind            TEXT NOT NULL,
  node_id         TEXT,
  node_name       TEXT,
  message         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_files_build ON files(build_id);
CREATE INDEX IF NOT EXISTS idx_file_deps_file ON file_deps(file_id);
CREATE INDEX IF NOT EXISTS idx_diagnostics_file ON diagnostics(file_id);
CREATE INDEX IF NOT EXISTS idx_builds_started ON builds(started_at);
`

// BeginBuild records a new running build with a fresh id.
func (s *Store) BeginBuild(now time.Time) (*Build, error) {
	b := &Build{ID: uuid.NewString(), StartedAt: now, Status: BuildRunning}
	_, err := s.db.Exec(
		"INSERT INTO builds (id, started_at, status) VALUES (?, ?, ?)",
		b.ID, b.StartedAt, b.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("begin build: %w", err)
	}
	return b, nil
}

// FinishBuild stamps the outcome of a build.
func (s *Store) FinishBuild(id, status string, built, skipped int, now time.Time) error {
	res, err := s.db.Exec(
		"UPDATE builds SET finished_at = ?, status = ?, files_built = ?, files_skipped = ? WHERE id = ?",
		now, status, built, skipped, id,
	)
	if err != nil {
		return fmt.Errorf("finish build: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish build: unknown build %s", id)
	}
	return nil
}

// LatestBuild returns the most recently started build, or nil if there is
// none.
func (s *Store) LatestBuild() (*Build, error) {
	b := &Build{}
	var finished sql.NullTime
	err := s.db.QueryRow(
		"SELECT id, started_at, finished_at, status, files_built, files_skipped FROM builds ORDER BY started_at DESC, rowid DESC LIMIT 1",
	).Scan(&b.ID, &b.StartedAt, &finished, &b.Status, &b.FilesBuilt, &b.FilesSkipped)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest build: %w", err)
	}
	if finished.Valid {
		t := finished.Time
		b.FinishedAt = &t
	}
	return b, nil
}

// FileByPath returns the manifest entry for path, or nil if there is none.
func (s *Store) FileByPath(path string) (*File, error) {
	f := &File{}
	var output sql.NullString
	var buildID sql.NullString
	var builtAt sql.NullTime
	err := s.db.QueryRow(
		"SELECT id, path, hash, output, has_errors, build_id, built_at FROM files WHERE path = ?", path,
	).Scan(&f.ID, &f.Path, &f.Hash, &output, &f.HasErrors, &buildID, &builtAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	f.Output = output.String
	f.BuildID = buildID.String
	f.BuiltAt = builtAt.Time
	return f, nil
}

// RecordFile upserts f by path and replaces its dependencies and
// diagnostics, all in one transaction. f.ID is set on success.
func (s *Store) RecordFile(f *File, deps []FileDep, diags []Diagnostic) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("record file: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO files (path, hash, output, has_errors, build_id, built_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
  hash = excluded.hash,
  output = excluded.output,
  has_errors = excluded.has_errors,
  build_id = excluded.build_id,
  built_at = excluded.built_at`,
		f.Path, f.Hash, f.Output, f.HasErrors, nullString(f.BuildID), f.BuiltAt,
	)
	if err != nil {
		return fmt.Errorf("record file %s: %w", f.Path, err)
	}
	if err := tx.QueryRow("SELECT id FROM files WHERE path = ?", f.Path).Scan(&f.ID); err != nil {
		return fmt.Errorf("record file %s: id: %w", f.Path, err)
	}

	for _, q := range []string{
		"DELETE FROM file_deps WHERE file_id = ?",
		"DELETE FROM diagnostics WHERE file_id = ?",
	} {
		if _, err := tx.Exec(q, f.ID); err != nil {
			return fmt.Errorf("record file %s: clear: %w", f.Path, err)
		}
	}

	for _, d := range deps {
		if _, err := tx.Exec(
			"INSERT INTO file_deps (file_id, path, mtime_ns) VALUES (?, ?, ?)",
			f.ID, d.Path, d.Mtime.UnixNano(),
		); err != nil {
			return fmt.Errorf("record file %s: dep %s: %w", f.Path, d.Path, err)
		}
	}
	for _, d := range diags {
		if _, err := tx.Exec(
			"INSERT INTO diagnostics (file_id, kind, node_id, node_name, message) VALUES (?, ?, ?, ?, ?)",
			f.ID, d.Kind, d.NodeID, d.NodeName, d.Message,
		); err != nil {
			return fmt.Errorf("record file %s: diagnostic: %w", f.Path, err)
		}
	}

	return tx.Commit()
}

// TouchFile moves a skipped file's entry to buildID.
func (s *Store) TouchFile(fileID int64, buildID string) error {
	if _, err := s.db.Exec("UPDATE files SET build_id = ? WHERE id = ?", buildID, fileID); err != nil {
		return fmt.Errorf("touch file: %w", err)
	}
	return nil
}

// PruneFiles deletes the entries of files that buildID neither built nor
// skipped, i.e. files that no longer exist in the workspace.
func (s *Store) PruneFiles(buildID string) (int64, error) {
	res, err := s.db.Exec("DELETE FROM files WHERE build_id IS NULL OR build_id != ?", buildID)
	if err != nil {
		return 0, fmt.Errorf("prune files: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// FileDeps returns the recorded dependencies of a file.
func (s *Store) FileDeps(fileID int64) ([]FileDep, error) {
	rows, err := s.db.Query("SELECT file_id, path, mtime_ns FROM file_deps WHERE file_id = ? ORDER BY id", fileID)
	if err != nil {
		return nil, fmt.Errorf("file deps: %w", err)
	}
	defer rows.Close()

	var deps []FileDep
	for rows.Next() {
		var d FileDep
		var ns int64
		if err := rows.Scan(&d.FileID, &d.Path, &ns); err != nil {
			return nil, fmt.Errorf("file deps: scan: %w", err)
		}
		d.Mtime = time.Unix(0, ns)
		deps = append(deps, d)
	}
	return deps, rows.Err()
}

// DiagnosticsByFile returns the stored diagnostics of a file in the order
// they were recorded.
func (s *Store) DiagnosticsByFile(fileID int64) ([]Diagnostic, error) {
	return s.queryDiagnostics(
		`SELECT d.id, d.file_id, f.path, d.kind, d.node_id, d.node_name, d.message
FROM diagnostics d JOIN files f ON f.id = d.file_id
WHERE d.file_id = ? ORDER BY d.id`, fileID)
}

// Diagnostics returns every stored diagnostic of the files last processed
// by buildID, ordered by file path.
func (s *Store) Diagnostics(buildID string) ([]Diagnostic, error) {
	return s.queryDiagnostics(
		`SELECT d.id, d.file_id, f.path, d.kind, d.node_id, d.node_name, d.message
FROM diagnostics d JOIN files f ON f.id = d.file_id
WHERE f.build_id = ? ORDER BY f.path, d.id`, buildID)
}

func (s *Store) queryDiagnostics(query string, arg any) ([]Diagnostic, error) {
	rows, err := s.db.Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("diagnostics: %w", err)
	}
	defer rows.Close()

	var out []Diagnostic
	for rows.Next() {
		var d Diagnostic
		var nodeID, nodeName sql.NullString
		if err := rows.Scan(&d.ID, &d.FileID, &d.Path, &d.Kind, &nodeID, &nodeName, &d.Message); err != nil {
			return nil, fmt.Errorf("diagnostics: scan: %w", err)
		}
		d.NodeID = nodeID.String
		d.NodeName = nodeName.String
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetMetadata returns the value stored under key, or "" if unset.
func (s *Store) GetMetadata(key string) (string, error) {
	var v string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %s: %w", key, err)
	}
	return v, nil
}

// SetMetadata stores value under key.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
