// Package crypto implements the envelope and blinding cryptography for
// the messaging protocol core: sender-authenticated sealed boxes for
// 1:1 and legacy-group messages, and per-community blinded identities
// for anonymous community participation.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"

	"filippo.io/edwards25519"
	"github.com/pkg/errors"

	"github.com/MurmurLink/murmur-core/pkg/protocol"
)

// IdentityKeyPair is the user's long-term identity: an Ed25519 signing
// key and its birationally equivalent X25519 key agreement pair. The
// X25519 public key is the account ID body.
type IdentityKeyPair struct {
	EdPublic  ed25519.PublicKey
	EdPrivate ed25519.PrivateKey
	XPublic   [32]byte
	XPrivate  [32]byte
}

// X25519KeyPair is a bare key-agreement pair: the user's own converted
// identity, or a legacy group's shared encryption keypair.
type X25519KeyPair struct {
	Public  [32]byte
	Private [32]byte
}

// GenerateIdentityKeyPair creates a fresh identity.
func GenerateIdentityKeyPair() (*IdentityKeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generate identity")
	}
	return IdentityFromEd25519(pub, priv)
}

// IdentityFromSeed rebuilds the identity from a 32-byte Ed25519 seed.
func IdentityFromSeed(seed []byte) (*IdentityKeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Errorf("identity seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return IdentityFromEd25519(priv.Public().(ed25519.PublicKey), priv)
}

// IdentityFromEd25519 derives the X25519 half from an Ed25519 pair.
func IdentityFromEd25519(pub ed25519.PublicKey, priv ed25519.PrivateKey) (*IdentityKeyPair, error) {
	xPub, err := Ed25519PublicToX25519(pub)
	if err != nil {
		return nil, err
	}
	kp := &IdentityKeyPair{
		EdPublic:  append(ed25519.PublicKey(nil), pub...),
		EdPrivate: append(ed25519.PrivateKey(nil), priv...),
		XPublic:   xPub,
	}
	kp.XPrivate = ed25519PrivateToX25519(priv)
	return kp, nil
}

// AccountID returns the user's standard (0x05-prefixed) account ID.
func (k *IdentityKeyPair) AccountID() string {
	return protocol.EncodeAccountID(protocol.PrefixStandard, k.XPublic[:])
}

// X25519 returns the key-agreement half of the identity.
func (k *IdentityKeyPair) X25519() X25519KeyPair {
	return X25519KeyPair{Public: k.XPublic, Private: k.XPrivate}
}

// Ed25519PublicToX25519 converts an Ed25519 public key to its X25519
// (Montgomery) form.
func Ed25519PublicToX25519(pub ed25519.PublicKey) ([32]byte, error) {
	var out [32]byte
	p, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return out, errors.Wrap(err, "invalid ed25519 public key")
	}
	copy(out[:], p.BytesMontgomery())
	return out, nil
}

func ed25519PrivateToX25519(priv ed25519.PrivateKey) [32]byte {
	h := sha512.Sum512(priv.Seed())
	var out [32]byte
	copy(out[:], h[:32])
	out[0] &= 248
	out[31] &= 127
	out[31] |= 64
	return out
}

// ed25519Scalar returns the clamped secret scalar of an Ed25519 key.
func ed25519Scalar(priv ed25519.PrivateKey) (*edwards25519.Scalar, error) {
	h := sha512.Sum512(priv.Seed())
	s, err := edwards25519.NewScalar().SetBytesWithClamping(h[:32])
	if err != nil {
		return nil, errors.Wrap(err, "derive secret scalar")
	}
	return s, nil
}
