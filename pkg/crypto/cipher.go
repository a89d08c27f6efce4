package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/pbkdf2"

	"github.com/MurmurLink/murmur-core/pkg/protocol"
)

const (
	// AES-GCM nonce size (96 bits is the standard).
	gcmNonceSize = 12

	storageKeySize   = 32
	pbkdf2Iterations = 100000
	derivationSalt   = "murmur-local-storage-v1"
)

// DeriveStorageKey derives the local database encryption key from the
// user's password with PBKDF2-SHA256.
func DeriveStorageKey(password string) []byte {
	return pbkdf2.Key([]byte(password), []byte(derivationSalt), pbkdf2Iterations, storageKeySize, sha256.New)
}

// AESEncrypt encrypts data with AES-256-GCM. The random nonce is
// prepended to the ciphertext.
func AESEncrypt(data, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "create cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "create gcm")
	}
	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Wrap(err, "generate nonce")
	}
	return gcm.Seal(nonce, nonce, data, nil), nil
}

// AESDecrypt reverses AESEncrypt.
func AESDecrypt(data, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "create cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "create gcm")
	}
	if len(data) < gcmNonceSize {
		return nil, errors.New("ciphertext too short")
	}
	plaintext, err := gcm.Open(nil, data[:gcmNonceSize], data[gcmNonceSize:], nil)
	if err != nil {
		return nil, errors.Wrap(err, "decrypt")
	}
	return plaintext, nil
}

// EncryptWithGroupKey encrypts a serialized envelope under a v2 closed
// group's current symmetric key. Members authenticate to the group, not
// to each other, so the whole envelope is encrypted after wrapping.
func EncryptWithGroupKey(data []byte, groupKey [32]byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, protocol.ErrEncryptionFailed
	}
	return secretbox.Seal(nonce[:], data, &nonce, &groupKey), nil
}

// DecryptWithGroupKey reverses EncryptWithGroupKey.
func DecryptWithGroupKey(data []byte, groupKey [32]byte) ([]byte, error) {
	if len(data) < 24+secretbox.Overhead {
		return nil, protocol.ErrDecryptionFailed
	}
	var nonce [24]byte
	copy(nonce[:], data[:24])
	plaintext, ok := secretbox.Open(nil, data[24:], &nonce, &groupKey)
	if !ok {
		return nil, protocol.ErrDecryptionFailed
	}
	return plaintext, nil
}
