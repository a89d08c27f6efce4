package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/MurmurLink/murmur-core/pkg/crypto"
	"github.com/MurmurLink/murmur-core/pkg/network"
	"github.com/MurmurLink/murmur-core/pkg/protocol"
)

// ===== MESSAGE OPERATIONS =====

// PersistMessage stores a materialized inbound message. Text, quote and
// attachment metadata are encrypted at rest.
func (s *DB) PersistMessage(rec *network.IncomingRecord) (int64, error) {
	content, err := crypto.AESEncrypt([]byte(rec.Text), s.encryptionKey)
	if err != nil {
		return 0, fmt.Errorf("failed to encrypt content: %v", err)
	}
	var quoteJSON []byte
	if rec.Quote != nil {
		if quoteJSON, err = s.encryptJSON(rec.Quote); err != nil {
			return 0, err
		}
	}
	var attachmentsJSON []byte
	if len(rec.Attachments) > 0 {
		if attachmentsJSON, err = s.encryptJSON(rec.Attachments); err != nil {
			return 0, err
		}
	}

	res, err := s.db.Exec(`
		INSERT INTO messages (
			thread_id, author, timestamp, server_hash, server_id,
			content, quote_json, attachments_json, is_mention, banner,
			status, is_outgoing
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
	`,
		rec.ThreadID,
		rec.Sender,
		int64(rec.Timestamp),
		rec.ServerHash,
		rec.CommunityServerID,
		content,
		quoteJSON,
		attachmentsJSON,
		boolToInt(rec.IsMention),
		int(rec.Banner),
		string(MessageStatusSent),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save message: %v", err)
	}
	return res.LastInsertId()
}

// SaveOutgoingMessage records an outgoing message in sending state
// before dispatch; the send bookkeeping updates it afterwards.
func (s *DB) SaveOutgoingMessage(threadID int64, msg *protocol.Message, text string, attachments []protocol.AttachmentPointer) (int64, error) {
	content, err := crypto.AESEncrypt([]byte(text), s.encryptionKey)
	if err != nil {
		return 0, fmt.Errorf("failed to encrypt content: %v", err)
	}
	var attachmentsJSON []byte
	if len(attachments) > 0 {
		if attachmentsJSON, err = s.encryptJSON(attachments); err != nil {
			return 0, err
		}
	}
	res, err := s.db.Exec(`
		INSERT INTO messages (thread_id, author, timestamp, content, attachments_json, status, is_outgoing)
		VALUES (?, ?, ?, ?, ?, ?, 1)
	`, threadID, msg.Sender, int64(msg.SentTimestamp), content, attachmentsJSON, string(MessageStatusSending))
	if err != nil {
		return 0, fmt.Errorf("failed to save outgoing message: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	msg.ID = id
	return id, nil
}

// MessageByTimestampAuthor finds a message by its protocol identity.
func (s *DB) MessageByTimestampAuthor(timestamp uint64, author string) (*network.StoredMessageRef, bool) {
	var ref network.StoredMessageRef
	var content, attachmentsJSON []byte
	var serverHash sql.NullString
	var outgoing int
	err := s.db.QueryRow(`
		SELECT id, thread_id, author, content, attachments_json, server_hash, is_outgoing
		FROM messages
		WHERE timestamp = ? AND author = ? AND status != ?
	`, int64(timestamp), author, string(MessageStatusDeleted)).Scan(
		&ref.ID, &ref.ThreadID, &ref.Author, &content, &attachmentsJSON, &serverHash, &outgoing,
	)
	if err != nil {
		return nil, false
	}
	ref.ServerHash = serverHash.String
	ref.Outgoing = intToBool(outgoing)
	if text, err := crypto.AESDecrypt(content, s.encryptionKey); err == nil {
		ref.Text = string(text)
	}
	s.decryptJSON(attachmentsJSON, &ref.Attachments)
	return &ref, true
}

// DeleteMessage tombstones a message and clears its content. The row is
// kept so late reactions and receipts resolve to nothing rather than a
// resurrected message.
func (s *DB) DeleteMessage(messageID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM reactions WHERE message_id = ?`, messageID); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		UPDATE messages SET content = NULL, quote_json = NULL, attachments_json = NULL, status = ?
		WHERE id = ?
	`, string(MessageStatusDeleted), messageID); err != nil {
		return fmt.Errorf("failed to delete message: %v", err)
	}
	return tx.Commit()
}

// ScrubExpirationMetadata clears disappearing-timer fields from a
// message that cannot expire.
func (s *DB) ScrubExpirationMetadata(messageID int64) {
	s.db.Exec(`UPDATE messages SET expires_mode = 0, expires_seconds = 0 WHERE id = ?`, messageID)
}

// InsertApprovalMarker inserts the one-off "they approved you" control
// row into a thread.
func (s *DB) InsertApprovalMarker(threadID int64, sender string, timestamp uint64) {
	s.db.Exec(`
		INSERT INTO messages (thread_id, author, timestamp, status, is_outgoing)
		VALUES (?, ?, ?, 'approval_marker', 0)
	`, threadID, sender, int64(timestamp))
}

// ===== OUTGOING STATUS BOOKKEEPING =====

// MarkSent flips an outgoing message to sent and records its swarm hash.
func (s *DB) MarkSent(msg *protocol.Message) {
	s.db.Exec(`
		UPDATE messages SET status = ?, server_hash = ?, server_id = ?
		WHERE timestamp = ? AND is_outgoing = 1
	`, string(MessageStatusSent), msg.ServerHash, msg.ServerID, int64(msg.SentTimestamp))
}

// MarkSentFailed flips an outgoing message to failed.
func (s *DB) MarkSentFailed(msg *protocol.Message, sendErr error) {
	s.db.Exec(`
		UPDATE messages SET status = ? WHERE timestamp = ? AND is_outgoing = 1
	`, string(MessageStatusFailed), int64(msg.SentTimestamp))
}

// MarkSyncFailed records a failed sync duplication without touching the
// primary send's status.
func (s *DB) MarkSyncFailed(msg *protocol.Message, sendErr error) {
	s.db.Exec(`
		UPDATE messages SET status = ? WHERE timestamp = ? AND is_outgoing = 1 AND status = ?
	`, string(MessageStatusSyncFailed), int64(msg.SentTimestamp), string(MessageStatusSent))
}

// ClearErrorState drops any failure marker left from an earlier
// attempt of the same message.
func (s *DB) ClearErrorState(msg *protocol.Message) {
	s.db.Exec(`
		UPDATE messages SET status = ? WHERE timestamp = ? AND is_outgoing = 1 AND status IN (?, ?)
	`, string(MessageStatusSent), int64(msg.SentTimestamp),
		string(MessageStatusFailed), string(MessageStatusSyncFailed))
}

// ===== HELPERS =====

func (s *DB) encryptJSON(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal: %v", err)
	}
	enc, err := crypto.AESEncrypt(raw, s.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt: %v", err)
	}
	return enc, nil
}

func (s *DB) decryptJSON(data []byte, out interface{}) {
	if len(data) == 0 {
		return
	}
	raw, err := crypto.AESDecrypt(data, s.encryptionKey)
	if err != nil {
		return
	}
	json.Unmarshal(raw, out)
}
