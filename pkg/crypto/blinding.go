package crypto

import (
	"crypto/ed25519"
	"crypto/rand"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/MurmurLink/murmur-core/pkg/protocol"
)

const blindedNonceSize = 24

// BlindedKeyPair is a per-community pseudonymous identity derived
// deterministically from the user's Ed25519 key and the community
// server's public key. The same user gets unlinkable identities across
// communities.
type BlindedKeyPair struct {
	scalar *edwards25519.Scalar
	Public [32]byte
}

// AccountID returns the blinded (0x15-prefixed) account ID.
func (b *BlindedKeyPair) AccountID() string {
	return protocol.EncodeAccountID(protocol.PrefixBlinded, b.Public[:])
}

// DeriveBlindedKeyPair derives the community-scoped blinded keypair:
// the blinding factor k is the wide reduction of BLAKE2b-512 over the
// server's public key, and the blinded secret is k*a for the user's
// clamped identity scalar a.
func DeriveBlindedKeyPair(identity *IdentityKeyPair, serverPublicKey []byte) (*BlindedKeyPair, error) {
	if identity == nil || len(identity.EdPrivate) != ed25519.PrivateKeySize {
		return nil, protocol.ErrNoUserED25519KeyPair
	}
	if len(serverPublicKey) != 32 {
		return nil, protocol.ErrNoKeyPair
	}

	wide := blake2b.Sum512(serverPublicKey)
	k, err := edwards25519.NewScalar().SetUniformBytes(wide[:])
	if err != nil {
		return nil, protocol.ErrEncryptionFailed
	}
	a, err := ed25519Scalar(identity.EdPrivate)
	if err != nil {
		return nil, protocol.ErrEncryptionFailed
	}

	ka := edwards25519.NewScalar().Multiply(k, a)
	pub := new(edwards25519.Point).ScalarBaseMult(ka)

	bk := &BlindedKeyPair{scalar: ka}
	copy(bk.Public[:], pub.Bytes())
	return bk, nil
}

// SealBlinded encrypts plaintext from the local blinded identity to
// another blinded public key within the same community. The sender's
// blinded public key is embedded so the recipient learns who (in
// community scope) sent the message.
func SealBlinded(plaintext []byte, sender *BlindedKeyPair, recipientBlinded []byte) ([]byte, error) {
	if sender == nil || sender.scalar == nil {
		return nil, protocol.ErrNoKeyPair
	}
	key, err := blindedSharedKey(sender.scalar, recipientBlinded, sender.Public[:], recipientBlinded)
	if err != nil {
		return nil, protocol.ErrEncryptionFailed
	}

	inner := make([]byte, 0, len(plaintext)+32)
	inner = append(inner, plaintext...)
	inner = append(inner, sender.Public[:]...)

	var nonce [blindedNonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, protocol.ErrEncryptionFailed
	}
	return secretbox.Seal(nonce[:], inner, &nonce, &key), nil
}

// OpenBlinded decrypts a community direct message. Direction matters:
// for an incoming message the other party is the sender, for a fetched
// copy of an outgoing message the local blinded key is. Any mismatch or
// underlying failure collapses to DecryptionFailed with no partial
// state.
func OpenBlinded(ciphertext []byte, own *BlindedKeyPair, otherBlinded []byte, isOutgoing bool) ([]byte, string, error) {
	if own == nil || own.scalar == nil {
		return nil, "", protocol.ErrNoKeyPair
	}
	if len(ciphertext) < blindedNonceSize+secretbox.Overhead+32 {
		return nil, "", protocol.ErrDecryptionFailed
	}

	senderPub, recipientPub := otherBlinded, own.Public[:]
	if isOutgoing {
		senderPub, recipientPub = own.Public[:], otherBlinded
	}

	key, err := blindedSharedKey(own.scalar, otherBlinded, senderPub, recipientPub)
	if err != nil {
		return nil, "", protocol.ErrDecryptionFailed
	}

	var nonce [blindedNonceSize]byte
	copy(nonce[:], ciphertext[:blindedNonceSize])
	inner, ok := secretbox.Open(nil, ciphertext[blindedNonceSize:], &nonce, &key)
	if !ok || len(inner) < 32 {
		return nil, "", protocol.ErrDecryptionFailed
	}

	plaintext := inner[:len(inner)-32]
	embedded := inner[len(inner)-32:]
	if !bytesEqual(embedded, senderPub) {
		return nil, "", protocol.ErrDecryptionFailed
	}
	sender := protocol.EncodeAccountID(protocol.PrefixBlinded, embedded)
	return plaintext, sender, nil
}

// blindedSharedKey computes the symmetric key for a blinded exchange:
// BLAKE2b-256 over the shared DH point and the (sender, recipient)
// blinded public keys in message order.
func blindedSharedKey(ownScalar *edwards25519.Scalar, otherBlinded, senderPub, recipientPub []byte) ([32]byte, error) {
	var key [32]byte
	other, err := new(edwards25519.Point).SetBytes(otherBlinded)
	if err != nil {
		return key, err
	}
	shared := new(edwards25519.Point).ScalarMult(ownScalar, other)

	h, err := blake2b.New256(nil)
	if err != nil {
		return key, err
	}
	h.Write(shared.Bytes())
	h.Write(senderPub)
	h.Write(recipientPub)
	copy(key[:], h.Sum(nil))
	return key, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
