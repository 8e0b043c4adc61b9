package sqlite

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// dsnOptions puts the snapshot index in WAL mode so list queries keep working
// while a flush inserts rows.
const dsnOptions = "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"

// migrations[i] moves the schema from user_version i to i+1.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		filepath TEXT NOT NULL,
		filesize INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_timestamp ON snapshots(timestamp);`,

	`ALTER TABLE snapshots ADD COLUMN thumbnail TEXT NOT NULL DEFAULT '';
	CREATE INDEX IF NOT EXISTS idx_snapshots_kind ON snapshots(kind);`,
}

// DB is the snapshot index. Writers take Lock, readers RLock.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// New opens the snapshot index at dbPath and applies pending migrations.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot index %s: %w", dbPath, err)
	}

	// One connection: sqlite serializes writers anyway.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate snapshot index %s: %w", dbPath, err)
	}
	return db, nil
}

// SchemaVersion returns how many migrations have been applied.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	if err := db.conn.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read snapshot schema version: %w", err)
	}
	return version, nil
}

func (db *DB) migrate() error {
	version, err := db.SchemaVersion()
	if err != nil {
		return err
	}
	if version > len(migrations) {
		return fmt.Errorf("snapshot schema version %d is newer than supported version %d", version, len(migrations))
	}

	for next := version; next < len(migrations); next++ {
		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[next]); err != nil {
			tx.Rollback()
			return fmt.Errorf("snapshot migration %d: %w", next+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, next+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("snapshot migration %d: %w", next+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("snapshot migration %d: %w", next+1, err)
		}
	}
	return nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the connection for repositories; callers hold Lock or RLock.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) Lock()    { db.mu.Lock() }
func (db *DB) Unlock()  { db.mu.Unlock() }
func (db *DB) RLock()   { db.mu.RLock() }
func (db *DB) RUnlock() { db.mu.RUnlock() }
