package statedb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// SchemaVersion tracks the current database schema version.
// Bump this when adding migrations.
const SchemaVersion = 1

// StateDB wraps a SQLite database for session/group persistence.
// Multiple OS processes can safely read/write via WAL mode + busy timeout.
type StateDB struct {
	db *sql.DB
}

// InstanceRow represents a session row in the database.
type InstanceRow struct {
	ID          string
	Title       string
	ProjectPath string
	GroupPath   string
	Order       int
	Command     string
	Tool        string
	Status      string
	CreatedAt   time.Time
}

// GroupRow represents a group row in the database.
type GroupRow struct {
	Path      string
	Name      string
	Collapsed bool
}

// Open creates or opens a SQLite database at dbPath with WAL mode and busy timeout.
func Open(dbPath string) (*StateDB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("statedb: mkdir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("statedb: open: %w", err)
	}

	// WAL mode: allows concurrent readers while writing
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("statedb: wal mode: %w", err)
	}

	// Busy timeout: wait up to 5s if another process holds a lock
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("statedb: busy timeout: %w", err)
	}

	return &StateDB{db: db}, nil
}

// Close checkpoints WAL and closes the database.
func (s *StateDB) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// Migrate creates tables if they don't exist and records the schema version.
func (s *StateDB) Migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("statedb: begin migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("statedb: create metadata: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS instances (
			id           TEXT PRIMARY KEY,
			title        TEXT NOT NULL,
			project_path TEXT NOT NULL,
			group_path   TEXT NOT NULL DEFAULT '',
			sort_order   INTEGER NOT NULL DEFAULT 0,
			command      TEXT NOT NULL DEFAULT '',
			tool         TEXT NOT NULL DEFAULT 'shell',
			status       TEXT NOT NULL DEFAULT 'idle',
			created_at   INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("statedb: create instances: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS groups (
			path      TEXT PRIMARY KEY,
			name      TEXT NOT NULL,
			collapsed INTEGER NOT NULL DEFAULT 0
		)
	`); err != nil {
		return fmt.Errorf("statedb: create groups: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)
	`, strconv.Itoa(SchemaVersion)); err != nil {
		return fmt.Errorf("statedb: set schema version: %w", err)
	}

	return tx.Commit()
}

// IsEmpty returns true if neither instances nor groups have rows.
func (s *StateDB) IsEmpty() (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT (SELECT COUNT(*) FROM instances) + (SELECT COUNT(*) FROM groups)").Scan(&count)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// SaveState replaces every instance and group row in a single transaction.
// Either both collections are written or neither is.
func (s *StateDB) SaveState(insts []*InstanceRow, groups []*GroupRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("statedb: begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM instances"); err != nil {
		return fmt.Errorf("statedb: clear instances: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM groups"); err != nil {
		return fmt.Errorf("statedb: clear groups: %w", err)
	}

	instStmt, err := tx.Prepare(`
		INSERT INTO instances (
			id, title, project_path, group_path, sort_order,
			command, tool, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer instStmt.Close()

	for _, inst := range insts {
		if _, err := instStmt.Exec(
			inst.ID, inst.Title, inst.ProjectPath, inst.GroupPath, inst.Order,
			inst.Command, inst.Tool, inst.Status, inst.CreatedAt.Unix(),
		); err != nil {
			return fmt.Errorf("statedb: insert instance %s: %w", inst.ID, err)
		}
	}

	groupStmt, err := tx.Prepare(`
		INSERT INTO groups (path, name, collapsed) VALUES (?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer groupStmt.Close()

	for _, g := range groups {
		collapsed := 0
		if g.Collapsed {
			collapsed = 1
		}
		if _, err := groupStmt.Exec(g.Path, g.Name, collapsed); err != nil {
			return fmt.Errorf("statedb: insert group %s: %w", g.Path, err)
		}
	}

	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO metadata (key, value) VALUES ('last_modified', ?)",
		strconv.FormatInt(time.Now().UnixNano(), 10),
	); err != nil {
		return fmt.Errorf("statedb: touch: %w", err)
	}

	return tx.Commit()
}

// LoadInstances returns all instances in their saved order.
func (s *StateDB) LoadInstances() ([]*InstanceRow, error) {
	rows, err := s.db.Query(`
		SELECT id, title, project_path, group_path, sort_order,
			command, tool, status, created_at
		FROM instances ORDER BY sort_order, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*InstanceRow
	for rows.Next() {
		r := &InstanceRow{}
		var createdUnix int64
		if err := rows.Scan(
			&r.ID, &r.Title, &r.ProjectPath, &r.GroupPath, &r.Order,
			&r.Command, &r.Tool, &r.Status, &createdUnix,
		); err != nil {
			return nil, err
		}
		r.CreatedAt = time.Unix(createdUnix, 0)
		result = append(result, r)
	}
	return result, rows.Err()
}

// LoadGroups returns all groups ordered by path.
func (s *StateDB) LoadGroups() ([]*GroupRow, error) {
	rows, err := s.db.Query("SELECT path, name, collapsed FROM groups ORDER BY path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*GroupRow
	for rows.Next() {
		g := &GroupRow{}
		var collapsed int
		if err := rows.Scan(&g.Path, &g.Name, &collapsed); err != nil {
			return nil, err
		}
		g.Collapsed = collapsed != 0
		result = append(result, g)
	}
	return result, rows.Err()
}

// WriteStatus updates the status of a single instance. Used by the process
// monitor outside this repository; the group engine never calls it.
func (s *StateDB) WriteStatus(id, status string) error {
	res, err := s.db.Exec("UPDATE instances SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("statedb: instance %s not found", id)
	}
	return s.Touch()
}

// --- Metadata ---

// SetMeta sets a key-value pair in the metadata table.
func (s *StateDB) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta gets a value from the metadata table. Returns "" if not found.
func (s *StateDB) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Touch updates a metadata timestamp that other processes can poll to detect changes.
func (s *StateDB) Touch() error {
	return s.SetMeta("last_modified", strconv.FormatInt(time.Now().UnixNano(), 10))
}

// LastModified returns the last_modified timestamp from metadata (0 if never written).
func (s *StateDB) LastModified() (int64, error) {
	val, err := s.GetMeta("last_modified")
	if err != nil || val == "" {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}
