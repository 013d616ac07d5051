// Package graph provides the SQLite-backed commit graph storage for the native backend.
package graph

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	_ "modernc.org/sqlite"

	"revq/internal/store"
	"revq/internal/util"
)

const schema = `
CREATE TABLE IF NOT EXISTS commits (
	id BLOB PRIMARY KEY,
	payload TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS parents (
	child BLOB NOT NULL,
	ord INTEGER NOT NULL,
	parent BLOB NOT NULL,
	PRIMARY KEY (child, ord)
);
CREATE INDEX IF NOT EXISTS parents_parent ON parents(parent);
CREATE TABLE IF NOT EXISTS refs (
	name TEXT PRIMARY KEY,
	target_id BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS view (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL
);
`

const checkoutKey = "checkout"

// commitPayload is the JSON stored in commits.payload.
type commitPayload struct {
	Description string `json:"description"`
	Author      string `json:"author"`
	Timestamp   int64  `json:"timestamp"`
}

// DB wraps the SQLite database connection.
type DB struct {
	conn *sql.DB
}

// Open opens or creates the database at the given path.
func Open(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Wait up to 5s on lock instead of failing immediately
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// EnsureSchema creates the tables if they don't exist.
func (db *DB) EnsureSchema() error {
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// InitRoot stores the root commit and points the checkout at it.
func (db *DB) InitRoot() (store.CommitID, error) {
	root := &store.Commit{ID: store.RootCommitID(util.IDSize)}

	tx, err := db.BeginTx()
	if err != nil {
		return store.CommitID{}, err
	}
	defer tx.Rollback()

	if err := db.InsertCommit(tx, root); err != nil {
		return store.CommitID{}, err
	}
	if err := setCheckout(tx, root.ID); err != nil {
		return store.CommitID{}, err
	}
	return root.ID, tx.Commit()
}

// BeginTx starts a new transaction.
func (db *DB) BeginTx() (*sql.Tx, error) {
	return db.conn.Begin()
}

// InsertCommit inserts a commit and its parent edges if it doesn't already exist (idempotent).
func (db *DB) InsertCommit(tx *sql.Tx, c *store.Commit) error {
	payload, err := json.Marshal(commitPayload{
		Description: c.Description,
		Author:      c.Author,
		Timestamp:   c.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	res, err := tx.Exec(`
		INSERT OR IGNORE INTO commits (id, payload, created_at)
		VALUES (?, ?, ?)
	`, c.ID.Bytes(), string(payload), util.NowMs())
	if err != nil {
		return fmt.Errorf("inserting commit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	for i, p := range c.Parents {
		if _, err := tx.Exec(`
			INSERT INTO parents (child, ord, parent) VALUES (?, ?, ?)
		`, c.ID.Bytes(), i, p.Bytes()); err != nil {
			return fmt.Errorf("inserting parent edge: %w", err)
		}
	}
	return nil
}

// CreateCommit creates a new commit with the given parents and stores it.
// Every parent must already be stored.
func (db *DB) CreateCommit(parents []store.CommitID, description, author string) (*store.Commit, error) {
	for _, p := range parents {
		parent, err := db.GetCommit(p)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, fmt.Errorf("parent: %w", &store.CommitNotFoundError{ID: p})
		}
	}

	c, err := store.NewCommit(parents, description, author, util.NowMs())
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := db.InsertCommit(tx, c); err != nil {
		return nil, err
	}
	return c, tx.Commit()
}

// GetCommit retrieves a commit by ID. It returns nil, nil if there is no such commit.
func (db *DB) GetCommit(id store.CommitID) (*store.Commit, error) {
	var payloadJSON string
	err := db.conn.QueryRow(`SELECT payload FROM commits WHERE id = ?`, id.Bytes()).Scan(&payloadJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying commit: %w", err)
	}

	var payload commitPayload
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return nil, fmt.Errorf("unmarshaling payload: %w", err)
	}

	rows, err := db.conn.Query(`SELECT parent FROM parents WHERE child = ? ORDER BY ord`, id.Bytes())
	if err != nil {
		return nil, fmt.Errorf("querying parents: %w", err)
	}
	defer rows.Close()

	var parents []store.CommitID
	for rows.Next() {
		var parent []byte
		if err := rows.Scan(&parent); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		parents = append(parents, store.NewCommitID(parent))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &store.Commit{
		ID:          id,
		Parents:     parents,
		Description: payload.Description,
		Author:      payload.Author,
		Timestamp:   payload.Timestamp,
	}, nil
}

// LoadCommits adds every stored commit to b, with parents in authorship order.
func (db *DB) LoadCommits(b *store.Builder) error {
	parents := make(map[store.CommitID][]store.CommitID)
	rows, err := db.conn.Query(`SELECT child, parent FROM parents ORDER BY child, ord`)
	if err != nil {
		return fmt.Errorf("querying parents: %w", err)
	}
	for rows.Next() {
		var child, parent []byte
		if err := rows.Scan(&child, &parent); err != nil {
			rows.Close()
			return fmt.Errorf("scanning row: %w", err)
		}
		id := store.NewCommitID(child)
		parents[id] = append(parents[id], store.NewCommitID(parent))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = db.conn.Query(`SELECT id, payload FROM commits`)
	if err != nil {
		return fmt.Errorf("querying commits: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var rawID []byte
		var payloadJSON string
		if err := rows.Scan(&rawID, &payloadJSON); err != nil {
			return fmt.Errorf("scanning row: %w", err)
		}

		var payload commitPayload
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return fmt.Errorf("unmarshaling payload: %w", err)
		}

		id := store.NewCommitID(rawID)
		if err := b.Add(&store.Commit{
			ID:          id,
			Parents:     parents[id],
			Description: payload.Description,
			Author:      payload.Author,
			Timestamp:   payload.Timestamp,
		}); err != nil {
			return err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	log.Printf("graph: loaded %d commits", count)
	return nil
}

// SetCheckout points the checkout at id.
func (db *DB) SetCheckout(id store.CommitID) error {
	tx, err := db.BeginTx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := setCheckout(tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

func setCheckout(tx *sql.Tx, id store.CommitID) error {
	_, err := tx.Exec(`
		INSERT INTO view (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, checkoutKey, id.Bytes())
	if err != nil {
		return fmt.Errorf("setting checkout: %w", err)
	}
	return nil
}

// Checkout returns the checkout commit id. It returns the zero id if none was set.
func (db *DB) Checkout() (store.CommitID, error) {
	var value []byte
	err := db.conn.QueryRow(`SELECT value FROM view WHERE key = ?`, checkoutKey).Scan(&value)
	if err == sql.ErrNoRows {
		return store.CommitID{}, nil
	}
	if err != nil {
		return store.CommitID{}, fmt.Errorf("querying checkout: %w", err)
	}
	return store.NewCommitID(value), nil
}

// Query executes a query that returns rows.
func (db *DB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return db.conn.Query(query, args...)
}

// QueryRow executes a query that returns a single row.
func (db *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	return db.conn.QueryRow(query, args...)
}

// Exec executes a query that doesn't return rows.
func (db *DB) Exec(query string, args ...interface{}) (sql.Result, error) {
	return db.conn.Exec(query, args...)
}
