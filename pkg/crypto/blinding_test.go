package crypto

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/MurmurLink/murmur-core/pkg/protocol"
)

func testServerKey(t *testing.T, fill byte) []byte {
	t.Helper()
	// Server keys are Ed25519 points in practice; any 32 bytes work for
	// the blinding factor derivation.
	key := bytes.Repeat([]byte{fill}, 32)
	return key
}

func TestDeriveBlindedKeyPair(t *testing.T) {
	identity, err := GenerateIdentityKeyPair()
	if err != nil {
		t.Fatalf("failed to generate identity: %v", err)
	}
	serverA := testServerKey(t, 0x01)
	serverB := testServerKey(t, 0x02)

	blindedA1, err := DeriveBlindedKeyPair(identity, serverA)
	if err != nil {
		t.Fatalf("DeriveBlindedKeyPair failed: %v", err)
	}
	blindedA2, err := DeriveBlindedKeyPair(identity, serverA)
	if err != nil {
		t.Fatalf("DeriveBlindedKeyPair failed: %v", err)
	}
	blindedB, err := DeriveBlindedKeyPair(identity, serverB)
	if err != nil {
		t.Fatalf("DeriveBlindedKeyPair failed: %v", err)
	}

	if blindedA1.AccountID() != blindedA2.AccountID() {
		t.Errorf("same server produced different blinded IDs")
	}
	if blindedA1.AccountID() == blindedB.AccountID() {
		t.Errorf("different servers produced the same blinded ID")
	}
	if blindedA1.AccountID() == identity.AccountID() {
		t.Errorf("blinded ID equals the unblinded account ID")
	}
	prefix, _, err := protocol.DecodeAccountID(blindedA1.AccountID())
	if err != nil || prefix != protocol.PrefixBlinded {
		t.Errorf("blinded ID prefix = 0x%02x, want 0x15", prefix)
	}
	t.Logf("✅ Blinded IDs are deterministic per server and unlinkable across servers")
}

func TestBlindedSealOpen(t *testing.T) {
	server := testServerKey(t, 0x07)

	aliceID, _ := GenerateIdentityKeyPair()
	bobID, _ := GenerateIdentityKeyPair()
	alice, err := DeriveBlindedKeyPair(aliceID, server)
	if err != nil {
		t.Fatalf("derive alice: %v", err)
	}
	bob, err := DeriveBlindedKeyPair(bobID, server)
	if err != nil {
		t.Fatalf("derive bob: %v", err)
	}

	plaintext := []byte("meet at the usual place")
	sealed, err := SealBlinded(plaintext, alice, bob.Public[:])
	if err != nil {
		t.Fatalf("SealBlinded failed: %v", err)
	}

	// Bob receives: the other party is the sender.
	opened, senderID, err := OpenBlinded(sealed, bob, alice.Public[:], false)
	if err != nil {
		t.Fatalf("OpenBlinded (incoming) failed: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("plaintext changed in round trip")
	}
	if senderID != alice.AccountID() {
		t.Errorf("recovered sender = %s, want %s", senderID, alice.AccountID())
	}

	// Alice fetches her own outgoing copy: the local key is the sender.
	opened, senderID, err = OpenBlinded(sealed, alice, bob.Public[:], true)
	if err != nil {
		t.Fatalf("OpenBlinded (outgoing) failed: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("outgoing copy plaintext changed")
	}
	if senderID != alice.AccountID() {
		t.Errorf("outgoing copy sender = %s, want %s", senderID, alice.AccountID())
	}
	t.Logf("✅ Blinded seal/open round trips in both directions")
}

func TestBlindedOpenWrongDirection(t *testing.T) {
	server := testServerKey(t, 0x09)
	aliceID, _ := GenerateIdentityKeyPair()
	bobID, _ := GenerateIdentityKeyPair()
	alice, _ := DeriveBlindedKeyPair(aliceID, server)
	bob, _ := DeriveBlindedKeyPair(bobID, server)

	sealed, err := SealBlinded([]byte("x"), alice, bob.Public[:])
	if err != nil {
		t.Fatalf("SealBlinded failed: %v", err)
	}

	// Bob claiming the message is his own outgoing copy swaps the key
	// assignment and must fail.
	if _, _, err := OpenBlinded(sealed, bob, alice.Public[:], true); err != protocol.ErrDecryptionFailed {
		t.Errorf("wrong direction flag = %v, want ErrDecryptionFailed", err)
	} else {
		t.Logf("✅ Direction flag is bound into the key")
	}
}

func TestBlindedOpenWrongParty(t *testing.T) {
	server := testServerKey(t, 0x0b)
	aliceID, _ := GenerateIdentityKeyPair()
	bobID, _ := GenerateIdentityKeyPair()
	malloryID, _ := GenerateIdentityKeyPair()
	alice, _ := DeriveBlindedKeyPair(aliceID, server)
	bob, _ := DeriveBlindedKeyPair(bobID, server)
	mallory, _ := DeriveBlindedKeyPair(malloryID, server)

	sealed, err := SealBlinded([]byte("for bob only"), alice, bob.Public[:])
	if err != nil {
		t.Fatalf("SealBlinded failed: %v", err)
	}
	if _, _, err := OpenBlinded(sealed, mallory, alice.Public[:], false); err != protocol.ErrDecryptionFailed {
		t.Errorf("third party open = %v, want ErrDecryptionFailed", err)
	} else {
		t.Logf("✅ Third party cannot open a blinded message")
	}
}

func TestBlindedOpenTruncated(t *testing.T) {
	server := testServerKey(t, 0x0d)
	id, _ := GenerateIdentityKeyPair()
	own, _ := DeriveBlindedKeyPair(id, server)

	short := make([]byte, 10)
	rand.Read(short)
	if _, _, err := OpenBlinded(short, own, own.Public[:], false); err != protocol.ErrDecryptionFailed {
		t.Errorf("truncated ciphertext = %v, want ErrDecryptionFailed", err)
	} else {
		t.Logf("✅ Truncated ciphertext rejected")
	}
}
