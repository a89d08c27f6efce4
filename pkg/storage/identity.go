package storage

import (
	"database/sql"
	"fmt"

	"github.com/MurmurLink/murmur-core/pkg/crypto"
	"github.com/MurmurLink/murmur-core/pkg/protocol"
)

// ===== IDENTITY AND PROFILE =====

// SetIdentity stores the user's master seed (encrypted at rest) and
// caches the derived key material.
func (s *DB) SetIdentity(seed []byte) error {
	identity, err := crypto.IdentityFromSeed(seed)
	if err != nil {
		return err
	}
	encryptedSeed, err := crypto.AESEncrypt(seed, s.encryptionKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt seed: %v", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO identity (id, seed) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET seed = excluded.seed
	`, encryptedSeed)
	if err != nil {
		return fmt.Errorf("failed to store identity: %v", err)
	}

	s.mu.Lock()
	s.identity = identity
	s.mu.Unlock()
	return nil
}

// loadIdentity decrypts and caches the stored seed, if any.
func (s *DB) loadIdentity() error {
	var encryptedSeed []byte
	err := s.db.QueryRow(`SELECT seed FROM identity WHERE id = 1`).Scan(&encryptedSeed)
	if err == sql.ErrNoRows {
		return ErrNoIdentity
	}
	if err != nil {
		return err
	}
	seed, err := crypto.AESDecrypt(encryptedSeed, s.encryptionKey)
	if err != nil {
		return ErrInvalidPassword
	}
	identity, err := crypto.IdentityFromSeed(seed)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.identity = identity
	s.mu.Unlock()
	return nil
}

// UserIdentity returns the cached identity key pair.
func (s *DB) UserIdentity() (*crypto.IdentityKeyPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil, protocol.ErrNoUserED25519KeyPair
	}
	return s.identity, nil
}

// UserPublicKey returns the user's account ID, or "" before onboarding.
func (s *DB) UserPublicKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return ""
	}
	return s.identity.AccountID()
}

// UserProfile returns the user's own profile.
func (s *DB) UserProfile() protocol.Profile {
	var p protocol.Profile
	var name, url sql.NullString
	err := s.db.QueryRow(`
		SELECT display_name, profile_key, picture_url FROM identity WHERE id = 1
	`).Scan(&name, &p.ProfileKey, &url)
	if err != nil {
		return protocol.Profile{}
	}
	p.DisplayName = name.String
	p.PictureURL = url.String
	return p
}

// SetUserProfile updates the user's own profile fields.
func (s *DB) SetUserProfile(p protocol.Profile) error {
	res, err := s.db.Exec(`
		UPDATE identity SET display_name = ?, profile_key = ?, picture_url = ? WHERE id = 1
	`, p.DisplayName, p.ProfileKey, p.PictureURL)
	if err != nil {
		return fmt.Errorf("failed to update profile: %v", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoIdentity
	}
	return nil
}

// RecordReceivedTimestamp remembers a timestamp of our own making so
// echoed copies can be recognized.
func (s *DB) RecordReceivedTimestamp(timestamp uint64) {
	s.db.Exec(`INSERT OR IGNORE INTO received_timestamps (timestamp) VALUES (?)`, int64(timestamp))
}

// TimestampSeen reports whether we recorded this timestamp ourselves.
func (s *DB) TimestampSeen(timestamp uint64) bool {
	var n int
	s.db.QueryRow(`SELECT COUNT(*) FROM received_timestamps WHERE timestamp = ?`, int64(timestamp)).Scan(&n)
	return n > 0
}
