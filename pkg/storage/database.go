// Package storage implements the encrypted local message store on
// SQLite. Message text, attachments and identity seeds are AES
// encrypted at rest with a key derived from the user's password.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/MurmurLink/murmur-core/pkg/crypto"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrNoIdentity      = errors.New("no identity stored")
	ErrInvalidPassword = errors.New("invalid password")
)

// MessageStatus represents message delivery status
type MessageStatus string

const (
	MessageStatusSending    MessageStatus = "sending"
	MessageStatusSent       MessageStatus = "sent"
	MessageStatusFailed     MessageStatus = "failed"
	MessageStatusSyncFailed MessageStatus = "sync_failed"
	MessageStatusDeleted    MessageStatus = "deleted"
)

// DB manages the encrypted local store.
type DB struct {
	db            *sql.DB
	encryptionKey []byte // Derived from user password

	mu       sync.RWMutex
	identity *crypto.IdentityKeyPair
}

// Open opens (creating if needed) the encrypted store at dbPath.
func Open(dbPath string, password string) (*DB, error) {
	encryptionKey := crypto.DeriveStorageKey(password)

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %v", err)
	}

	s := &DB{
		db:            db,
		encryptionKey: encryptionKey,
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.loadIdentity(); err != nil && err != ErrNoIdentity {
		db.Close()
		return nil, err
	}
	return s, nil
}

// initSchema creates database tables
func (s *DB) initSchema() error {
	schema := `
	-- Conversation threads
	CREATE TABLE IF NOT EXISTS threads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation TEXT UNIQUE NOT NULL,
		is_blinded INTEGER NOT NULL DEFAULT 0,
		auto_download INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	-- Messages table
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		thread_id INTEGER NOT NULL,
		author TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		server_hash TEXT,
		server_id INTEGER DEFAULT 0,
		content BLOB,
		quote_json BLOB,
		attachments_json BLOB,
		is_mention INTEGER NOT NULL DEFAULT 0,
		banner INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		is_outgoing INTEGER NOT NULL,
		expires_mode INTEGER NOT NULL DEFAULT 0,
		expires_seconds INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		FOREIGN KEY (thread_id) REFERENCES threads(id)
	);

	-- Contacts table
	CREATE TABLE IF NOT EXISTS contacts (
		account TEXT PRIMARY KEY,
		display_name TEXT,
		profile_key BLOB,
		picture_url TEXT,
		is_pro INTEGER NOT NULL DEFAULT 0
	);

	-- Reaction rows, replaced wholesale from community polls
	CREATE TABLE IF NOT EXISTS reactions (
		message_id INTEGER NOT NULL,
		emoji TEXT NOT NULL,
		author TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		sort_id INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (message_id, emoji, author),
		FOREIGN KEY (message_id) REFERENCES messages(id)
	);

	-- Per-thread disappearing-message configuration
	CREATE TABLE IF NOT EXISTS expiration_config (
		thread_id INTEGER PRIMARY KEY,
		mode INTEGER NOT NULL,
		duration_seconds INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		FOREIGN KEY (thread_id) REFERENCES threads(id)
	);

	-- Identity and profile, single row
	CREATE TABLE IF NOT EXISTS identity (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		seed BLOB NOT NULL,
		display_name TEXT,
		profile_key BLOB,
		picture_url TEXT
	);

	-- Timestamps of our own messages seen back from the swarm
	CREATE TABLE IF NOT EXISTS received_timestamps (
		timestamp INTEGER PRIMARY KEY
	);

	-- Indexes for performance
	CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_messages_author_ts ON messages(author, timestamp);
	CREATE INDEX IF NOT EXISTS idx_reactions_message ON reactions(message_id, sort_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %v", err)
	}
	return nil
}

// Close closes the database connection
func (s *DB) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int) bool {
	return i != 0
}
