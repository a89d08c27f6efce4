package crypto

import (
	"crypto/ed25519"
	"crypto/rand"

	"golang.org/x/crypto/nacl/box"

	"github.com/MurmurLink/murmur-core/pkg/protocol"
)

const (
	ed25519PublicKeySize = 32
	ed25519SignatureSize = 64
	sealOverhead         = ed25519PublicKeySize + ed25519SignatureSize
)

// Seal signs plaintext with the local Ed25519 identity and seals it
// anonymously for the recipient's X25519 key. The recipient's key is
// bound into the signature, so a ciphertext re-sealed for a different
// recipient fails verification.
//
// Wire layout inside the sealed box: plaintext || senderEdPub || sig.
func Seal(plaintext []byte, recipientXPublic [32]byte, sender *IdentityKeyPair) ([]byte, error) {
	if sender == nil || len(sender.EdPrivate) != ed25519.PrivateKeySize {
		return nil, protocol.ErrNoUserED25519KeyPair
	}

	toSign := make([]byte, 0, len(plaintext)+ed25519PublicKeySize+32)
	toSign = append(toSign, plaintext...)
	toSign = append(toSign, sender.EdPublic...)
	toSign = append(toSign, recipientXPublic[:]...)
	sig := ed25519.Sign(sender.EdPrivate, toSign)

	inner := make([]byte, 0, len(plaintext)+sealOverhead)
	inner = append(inner, plaintext...)
	inner = append(inner, sender.EdPublic...)
	inner = append(inner, sig...)

	sealed, err := box.SealAnonymous(nil, inner, &recipientXPublic, rand.Reader)
	if err != nil {
		return nil, protocol.ErrEncryptionFailed
	}
	return sealed, nil
}

// Open opens a sealed envelope with the supplied key scope (own
// identity or a legacy group's shared keypair), verifies the embedded
// signature, and recovers the verified sender account ID. No partial
// state is returned on any failure.
func Open(ciphertext []byte, keyPair X25519KeyPair) ([]byte, string, error) {
	inner, ok := box.OpenAnonymous(nil, ciphertext, &keyPair.Public, &keyPair.Private)
	if !ok {
		return nil, "", protocol.ErrDecryptionFailed
	}
	if len(inner) < sealOverhead {
		return nil, "", protocol.ErrDecryptionFailed
	}

	plaintext := inner[:len(inner)-sealOverhead]
	senderEdPub := ed25519.PublicKey(inner[len(inner)-sealOverhead : len(inner)-ed25519SignatureSize])
	sig := inner[len(inner)-ed25519SignatureSize:]

	toVerify := make([]byte, 0, len(plaintext)+ed25519PublicKeySize+32)
	toVerify = append(toVerify, plaintext...)
	toVerify = append(toVerify, senderEdPub...)
	toVerify = append(toVerify, keyPair.Public[:]...)
	if !ed25519.Verify(senderEdPub, toVerify, sig) {
		return nil, "", protocol.ErrDecryptionFailed
	}

	senderX, err := Ed25519PublicToX25519(senderEdPub)
	if err != nil {
		return nil, "", protocol.ErrDecryptionFailed
	}
	sender := protocol.EncodeAccountID(protocol.PrefixStandard, senderX[:])
	return plaintext, sender, nil
}
