// Package archive persists marshaled unit images in SQLite so a
// generator can reuse previously synthesized units across runs.
package archive

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/chazu/loom/pkg/unit"
)

// ErrUnitNotFound indicates the requested unit isn't archived.
var ErrUnitNotFound = errors.New("unit not found")

// Entry describes one archived unit.
type Entry struct {
	Name      string
	Hash      string
	Size      int64
	CreatedAt time.Time
}

// Archive stores unit images keyed by name, with a content hash over
// the marshaled bytes for change detection.
type Archive struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens (or creates) an archive at the given path.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("archive: opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS units (
		name TEXT PRIMARY KEY,
		hash TEXT NOT NULL,
		data BLOB NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: creating table: %w", err)
	}

	return &Archive{db: db, path: path}, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Save persists a unit image, replacing any previous image of the same
// name.
func (a *Archive) Save(img *unit.Image) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := img.Marshal()
	if err != nil {
		return err
	}
	sum := sha256.Sum256(data)

	_, err = a.db.Exec(
		"INSERT OR REPLACE INTO units (name, hash, data, created_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)",
		img.Name, hex.EncodeToString(sum[:]), data,
	)
	if err != nil {
		return fmt.Errorf("archive: saving unit %q: %w", img.Name, err)
	}
	return nil
}

// Load retrieves a unit image by name.
func (a *Archive) Load(name string) (*unit.Image, error) {
	var data []byte
	err := a.db.QueryRow("SELECT data FROM units WHERE name = ?", name).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("archive: %q: %w", name, ErrUnitNotFound)
		}
		return nil, fmt.Errorf("archive: querying unit %q: %w", name, err)
	}
	return unit.Unmarshal(data)
}

// Bytes retrieves the marshaled form of a unit, ready for injection.
func (a *Archive) Bytes(name string) ([]byte, error) {
	var data []byte
	err := a.db.QueryRow("SELECT data FROM units WHERE name = ?", name).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("archive: %q: %w", name, ErrUnitNotFound)
		}
		return nil, fmt.Errorf("archive: querying unit %q: %w", name, err)
	}
	return data, nil
}

// List returns all archived units ordered by name.
func (a *Archive) List() ([]Entry, error) {
	rows, err := a.db.Query("SELECT name, hash, length(data), created_at FROM units ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("archive: listing units: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Name, &e.Hash, &e.Size, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("archive: scanning unit row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: listing units: %w", err)
	}
	return entries, nil
}

// Delete removes a unit by name. Deleting an absent unit is not an
// error.
func (a *Archive) Delete(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.db.Exec("DELETE FROM units WHERE name = ?", name); err != nil {
		return fmt.Errorf("archive: deleting unit %q: %w", name, err)
	}
	return nil
}
