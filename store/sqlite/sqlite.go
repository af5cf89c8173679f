/*
Package sqlite provides a SQLite-backed ledger.Backend.

PURPOSE:
  Persistent committed world state for the dev host. The same contract the
  in-memory backend implements, over one key/value table; a commit batch
  applies inside a single SQL transaction, so the all-or-nothing property
  of the host's write-set survives a process restart.

SCHEMA:
  world_state(key BLOB PRIMARY KEY, value BLOB, version INTEGER)

  Keys and values are BLOBs: composite keys embed zero bytes, and memcmp
  ordering on BLOBs matches the byte order prefix scans rely on.

WAL MODE:
  Opened with WAL (Write-Ahead Logging): readers don't block the single
  writer, better crash recovery.

USAGE:
  backend, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer backend.Close()
  host := ledger.NewHost(backend)

SEE ALSO:
  - ledger/store.go:        Backend contract
  - ledger/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/metering-engine/ledger"
)

// Store implements ledger.Backend over SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS world_state (
		key     BLOB PRIMARY KEY,
		value   BLOB NOT NULL,
		version INTEGER NOT NULL
	);`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// BACKEND IMPLEMENTATION
// =============================================================================

var _ ledger.Backend = (*Store)(nil)

func (s *Store) GetState(key string) (ledger.Versioned, bool, error) {
	var v ledger.Versioned
	row := s.db.QueryRow(`SELECT value, version FROM world_state WHERE key = ?`, []byte(key))
	if err := row.Scan(&v.Value, &v.Version); err != nil {
		if err == sql.ErrNoRows {
			return ledger.Versioned{}, false, nil
		}
		return ledger.Versioned{}, false, err
	}
	return v, true, nil
}

func (s *Store) ScanState(prefix string, fn func(key string, v ledger.Versioned) error) error {
	// Keys sharing a prefix are contiguous under memcmp order, so scan from
	// the prefix and stop at the first key that no longer carries it. No
	// upper-bound arithmetic: a computed bound like prefix+0xFF would drop
	// keys whose next byte is 0xFF.
	rows, err := s.db.Query(
		`SELECT key, value, version FROM world_state WHERE key >= ? ORDER BY key`,
		[]byte(prefix))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key []byte
		var v ledger.Versioned
		if err := rows.Scan(&key, &v.Value, &v.Version); err != nil {
			return err
		}
		if !strings.HasPrefix(string(key), prefix) {
			break
		}
		if err := fn(string(key), v); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ApplyBatch commits a write-set in one SQL transaction.
func (s *Store) ApplyBatch(writes map[string][]byte) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO world_state (key, value, version) VALUES (?, ?, 1)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			version = world_state.version + 1`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for key, value := range writes {
		if _, err := stmt.Exec([]byte(key), value); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
