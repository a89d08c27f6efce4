package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/MurmurLink/murmur-core/pkg/protocol"
)

// ===== THREAD OPERATIONS =====

// ThreadID looks up the thread for a conversation key.
func (s *DB) ThreadID(conversation string) (int64, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM threads WHERE conversation = ?`, conversation).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, protocol.ErrNoThread
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetOrCreateThread returns the conversation's thread, creating it on
// first contact. Blinded-prefixed conversations are flagged so the
// approval merge can find them later.
func (s *DB) GetOrCreateThread(conversation string) (int64, error) {
	if id, err := s.ThreadID(conversation); err == nil {
		return id, nil
	}
	blinded := 0
	if prefix, _, err := protocol.DecodeAccountID(conversation); err == nil && prefix == protocol.PrefixBlinded {
		blinded = 1
	}
	return s.createThread(conversation, blinded)
}

func (s *DB) createThread(conversation string, blinded int) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO threads (conversation, is_blinded) VALUES (?, ?)
		ON CONFLICT(conversation) DO NOTHING
	`, conversation, blinded)
	if err != nil {
		return 0, fmt.Errorf("failed to create thread: %v", err)
	}
	// A conflicted insert is a no-op and LastInsertId would report the
	// connection's previous rowid, so only trust it for a real insert.
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		if id, err := res.LastInsertId(); err == nil && id != 0 {
			return id, nil
		}
	}
	return s.ThreadID(conversation)
}

// BlindedThreadID finds the thread for a blinded conversation key.
func (s *DB) BlindedThreadID(blindedID string) (int64, bool) {
	var id int64
	err := s.db.QueryRow(`
		SELECT id FROM threads WHERE conversation = ? AND is_blinded = 1
	`, blindedID).Scan(&id)
	return id, err == nil
}

// MergeThreads re-points all messages of one thread at another and
// deletes the emptied thread. Used when a blinded conversation is
// deanonymized into a standard contact thread.
func (s *DB) MergeThreads(fromThreadID, toThreadID int64) error {
	if fromThreadID == toThreadID || fromThreadID == 0 || toThreadID == 0 {
		return protocol.ErrInvalidThreadMerge
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE messages SET thread_id = ? WHERE thread_id = ?`, toThreadID, fromThreadID); err != nil {
		return fmt.Errorf("failed to re-point messages: %v", err)
	}
	if _, err := tx.Exec(`DELETE FROM expiration_config WHERE thread_id = ?`, fromThreadID); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM threads WHERE id = ?`, fromThreadID)
	if err != nil {
		return fmt.Errorf("failed to delete merged thread: %v", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return protocol.ErrInvalidThreadMerge
	}
	return tx.Commit()
}

// AttachmentAutoDownload reports the thread's auto-download setting.
func (s *DB) AttachmentAutoDownload(threadID int64) bool {
	var auto int
	s.db.QueryRow(`SELECT auto_download FROM threads WHERE id = ?`, threadID).Scan(&auto)
	return intToBool(auto)
}

// SetAttachmentAutoDownload flips the thread's auto-download setting.
func (s *DB) SetAttachmentAutoDownload(threadID int64, enabled bool) error {
	_, err := s.db.Exec(`UPDATE threads SET auto_download = ? WHERE id = ?`, boolToInt(enabled), threadID)
	return err
}

// ===== EXPIRATION CONFIGURATION =====

// ExpirationConfig returns the thread's disappearing-message config, or
// nil when none is set.
func (s *DB) ExpirationConfig(threadID int64) (*protocol.ExpirationConfig, error) {
	var mode, seconds int64
	var updatedAt int64
	err := s.db.QueryRow(`
		SELECT mode, duration_seconds, updated_at FROM expiration_config WHERE thread_id = ?
	`, threadID).Scan(&mode, &seconds, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &protocol.ExpirationConfig{
		Mode:      protocol.ExpirationMode(mode),
		Duration:  time.Duration(seconds) * time.Second,
		UpdatedAt: uint64(updatedAt),
	}, nil
}

// SetExpirationConfig writes the thread's disappearing-message config.
func (s *DB) SetExpirationConfig(threadID int64, cfg protocol.ExpirationConfig) error {
	_, err := s.db.Exec(`
		INSERT INTO expiration_config (thread_id, mode, duration_seconds, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET
			mode = excluded.mode,
			duration_seconds = excluded.duration_seconds,
			updated_at = excluded.updated_at
	`, threadID, int64(cfg.Mode), int64(cfg.Duration/time.Second), int64(cfg.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to set expiration config: %v", err)
	}
	return nil
}
