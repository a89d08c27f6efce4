package storage

import (
	"database/sql"
	"fmt"

	"github.com/MurmurLink/murmur-core/pkg/network"
	"github.com/MurmurLink/murmur-core/pkg/protocol"
)

// ===== CONTACT OPERATIONS =====

// ContactProfile returns a contact's cached profile.
func (s *DB) ContactProfile(account string) (protocol.Profile, bool) {
	var p protocol.Profile
	var name, url sql.NullString
	err := s.db.QueryRow(`
		SELECT display_name, profile_key, picture_url FROM contacts WHERE account = ?
	`, account).Scan(&name, &p.ProfileKey, &url)
	if err != nil {
		return protocol.Profile{}, false
	}
	p.DisplayName = name.String
	p.PictureURL = url.String
	return p, true
}

// SetContactProfile upserts a contact's profile.
func (s *DB) SetContactProfile(account string, p protocol.Profile) {
	s.db.Exec(`
		INSERT INTO contacts (account, display_name, profile_key, picture_url)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account) DO UPDATE SET
			display_name = excluded.display_name,
			profile_key = excluded.profile_key,
			picture_url = excluded.picture_url
	`, account, p.DisplayName, p.ProfileKey, p.PictureURL)
}

// SenderIsPro reports the contact's subscription tier for text caps.
func (s *DB) SenderIsPro(account string) bool {
	var pro int
	s.db.QueryRow(`SELECT is_pro FROM contacts WHERE account = ?`, account).Scan(&pro)
	return intToBool(pro)
}

// SetSenderPro flips a contact's subscription tier.
func (s *DB) SetSenderPro(account string, pro bool) error {
	_, err := s.db.Exec(`
		INSERT INTO contacts (account, is_pro) VALUES (?, ?)
		ON CONFLICT(account) DO UPDATE SET is_pro = excluded.is_pro
	`, account, boolToInt(pro))
	if err != nil {
		return fmt.Errorf("failed to set pro flag: %v", err)
	}
	return nil
}

// ===== REACTION OPERATIONS =====

// ReplaceReactions swaps a message's reaction rows wholesale, as built
// by a community poll reconciliation.
func (s *DB) ReplaceReactions(messageID int64, recs []network.ReactionRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM reactions WHERE message_id = ?`, messageID); err != nil {
		return fmt.Errorf("failed to clear reactions: %v", err)
	}
	for _, rec := range recs {
		if _, err := tx.Exec(`
			INSERT INTO reactions (message_id, emoji, author, count, sort_id)
			VALUES (?, ?, ?, ?, ?)
		`, messageID, rec.Emoji, rec.Author, rec.Count, rec.SortID); err != nil {
			return fmt.Errorf("failed to insert reaction: %v", err)
		}
	}
	return tx.Commit()
}

// AddReaction inserts one reactor row, replacing a duplicate from the
// same author.
func (s *DB) AddReaction(rec network.ReactionRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO reactions (message_id, emoji, author, count, sort_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(message_id, emoji, author) DO UPDATE SET count = excluded.count
	`, rec.MessageID, rec.Emoji, rec.Author, rec.Count, rec.SortID)
	if err != nil {
		return fmt.Errorf("failed to add reaction: %v", err)
	}
	return nil
}

// RemoveReaction deletes one reactor row.
func (s *DB) RemoveReaction(messageID int64, emoji, author string) error {
	_, err := s.db.Exec(`
		DELETE FROM reactions WHERE message_id = ? AND emoji = ? AND author = ?
	`, messageID, emoji, author)
	if err != nil {
		return fmt.Errorf("failed to remove reaction: %v", err)
	}
	return nil
}

// Reactions returns a message's reaction rows in sort order.
func (s *DB) Reactions(messageID int64) ([]network.ReactionRecord, error) {
	rows, err := s.db.Query(`
		SELECT message_id, emoji, author, count, sort_id
		FROM reactions WHERE message_id = ? ORDER BY sort_id
	`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []network.ReactionRecord
	for rows.Next() {
		var rec network.ReactionRecord
		if err := rows.Scan(&rec.MessageID, &rec.Emoji, &rec.Author, &rec.Count, &rec.SortID); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
