package archive

import (
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Schema is the layout of a SQLite archive bundle. Paths are canonical
// identifiers.
const Schema = `
CREATE TABLE IF NOT EXISTS entries (
  path     TEXT PRIMARY KEY,
  content  BLOB NOT NULL
);
`

// SQLite serves an archive from a read-only SQLite bundle.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens the bundle at dbPath read-only.
func OpenSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("archive: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: ping database: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Exists reports whether id has an entry.
func (s *SQLite) Exists(id string) bool {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM entries WHERE path = ?`, id).Scan(&n)
	return err == nil && n > 0
}

// ReadText returns the content stored under id.
func (s *SQLite) ReadText(id string) ([]byte, error) {
	var content []byte
	err := s.db.QueryRow(`SELECT content FROM entries WHERE path = ?`, id).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, id)
	}
	if err != nil {
		return nil, fmt.Errorf("archive: reading %s: %w", id, err)
	}
	return content, nil
}

// FindFirstByName returns the lexically smallest entry whose base name is
// name. LIKE folds ASCII case, so candidates are checked exactly.
func (s *SQLite) FindFirstByName(name string) (string, bool) {
	rows, err := s.db.Query(
		`SELECT path FROM entries WHERE path LIKE ? ESCAPE '\' ORDER BY path`,
		"%/"+escapeLike(name),
	)
	if err != nil {
		return "", false
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", false
		}
		if path.Base(id) == name {
			return id, true
		}
	}
	return "", false
}

// List returns every entry identifier in lexical order.
func (s *SQLite) List() ([]string, error) {
	rows, err := s.db.Query(`SELECT path FROM entries ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("archive: listing: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("archive: listing: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
