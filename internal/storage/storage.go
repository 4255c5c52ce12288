// Package storage provides the two-tier document persistence for stint.
//
// The primary tier is a SQLite-backed key-value table holding whole JSON
// documents, one row per document key. The secondary tier is a plain JSON
// snapshot file per mirrored key with a one-year expiry stamp, written on
// every mirrored save so a lost or corrupted database can still be recovered.
// Every write is a full-document replace; there are no partial updates.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// MirrorTTL is how long a snapshot file stays trustworthy.
const MirrorTTL = 365 * 24 * time.Hour

// Store persists JSON documents keyed by name.
type Store struct {
	db        *sql.DB
	mirrorDir string
}

// mirrorEnvelope wraps a mirrored document with its expiry stamp.
type mirrorEnvelope struct {
	ExpiresAt int64           `json:"expires_at"`
	Payload   json.RawMessage `json:"payload"`
}

// New opens (creating if needed) the store at dbPath. Mirrored documents are
// written as snapshot files under mirrorDir; an empty mirrorDir disables the
// secondary tier.
func New(dbPath, mirrorDir string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if mirrorDir != "" {
		if err := os.MkdirAll(mirrorDir, 0755); err != nil {
			return nil, fmt.Errorf("create mirror directory: %w", err)
		}
	}

	// Open with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, mirrorDir: mirrorDir}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		key TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Save replaces the document stored under key with v.
func (s *Store) Save(key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode document %q: %w", key, err)
	}

	_, err = s.db.Exec(
		`INSERT INTO documents (key, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		key, string(payload), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save document %q: %w", key, err)
	}
	return nil
}

// SaveMirrored replaces the document under key and refreshes its snapshot
// file. A failed mirror write is logged but does not fail the save; the
// primary tier has already been updated.
func (s *Store) SaveMirrored(key string, v any) error {
	if err := s.Save(key, v); err != nil {
		return err
	}
	if s.mirrorDir == "" {
		return nil
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode mirror %q: %w", key, err)
	}
	env := mirrorEnvelope{
		ExpiresAt: time.Now().Add(MirrorTTL).UnixMilli(),
		Payload:   payload,
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encode mirror envelope %q: %w", key, err)
	}
	if err := os.WriteFile(s.mirrorFile(key), data, 0644); err != nil {
		log.Printf("storage: mirror write for %q failed: %v", key, err)
	}
	return nil
}

// Load reads the document stored under key into v. When the primary copy is
// absent or corrupt it falls back to the snapshot file; a corrupt primary is
// logged, never fatal. The boolean reports whether any usable copy was found.
func (s *Store) Load(key string, v any) (bool, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM documents WHERE key = ?`, key).Scan(&payload)
	switch {
	case err == sql.ErrNoRows:
		return s.loadMirror(key, v)
	case err != nil:
		return false, fmt.Errorf("query document %q: %w", key, err)
	}

	if err := json.Unmarshal([]byte(payload), v); err != nil {
		log.Printf("storage: corrupt primary copy of %q, trying mirror: %v", key, err)
		return s.loadMirror(key, v)
	}
	return true, nil
}

// loadMirror reads the snapshot file for key. Missing, expired or corrupt
// snapshots all report not-found so the caller can seed fresh state.
func (s *Store) loadMirror(key string, v any) (bool, error) {
	if s.mirrorDir == "" {
		return false, nil
	}
	data, err := os.ReadFile(s.mirrorFile(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read mirror %q: %w", key, err)
	}

	var env mirrorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("storage: corrupt mirror of %q: %v", key, err)
		return false, nil
	}
	if env.ExpiresAt < time.Now().UnixMilli() {
		log.Printf("storage: mirror of %q expired, ignoring", key)
		return false, nil
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		log.Printf("storage: corrupt mirror payload of %q: %v", key, err)
		return false, nil
	}
	return true, nil
}

func (s *Store) mirrorFile(key string) string {
	return filepath.Join(s.mirrorDir, key+".json")
}
