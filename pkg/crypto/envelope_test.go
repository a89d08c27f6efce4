package crypto

import (
	"bytes"
	"testing"

	"github.com/MurmurLink/murmur-core/pkg/protocol"
)

func TestSealOpenRoundTrip(t *testing.T) {
	sender, err := GenerateIdentityKeyPair()
	if err != nil {
		t.Fatalf("failed to generate sender: %v", err)
	}
	recipient, err := GenerateIdentityKeyPair()
	if err != nil {
		t.Fatalf("failed to generate recipient: %v", err)
	}

	tests := []struct {
		name     string
		sizeHint int
	}{
		{name: "Empty plaintext", sizeHint: 0},
		{name: "Short plaintext", sizeHint: 13},
		{name: "One padding block", sizeHint: 160},
		{name: "Large plaintext", sizeHint: 10 * 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plaintext := make([]byte, tt.sizeHint)
			for i := range plaintext {
				plaintext[i] = byte(i * 7)
			}

			sealed, err := Seal(plaintext, recipient.XPublic, sender)
			if err != nil {
				t.Fatalf("Seal failed: %v", err)
			}

			opened, senderID, err := Open(sealed, recipient.X25519())
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if !bytes.Equal(opened, plaintext) {
				t.Errorf("plaintext changed in round trip")
				return
			}
			if senderID != sender.AccountID() {
				t.Errorf("recovered sender = %s, want %s", senderID, sender.AccountID())
				return
			}
			t.Logf("✅ %s: %d → %d bytes, sender recovered", tt.name, len(plaintext), len(sealed))
		})
	}
}

func TestOpenWrongRecipient(t *testing.T) {
	sender, _ := GenerateIdentityKeyPair()
	recipient, _ := GenerateIdentityKeyPair()
	eavesdropper, _ := GenerateIdentityKeyPair()

	sealed, err := Seal([]byte("secret"), recipient.XPublic, sender)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	if _, _, err := Open(sealed, eavesdropper.X25519()); err != protocol.ErrDecryptionFailed {
		t.Errorf("Open with wrong key = %v, want ErrDecryptionFailed", err)
	} else {
		t.Logf("✅ Wrong recipient cannot open")
	}
}

func TestOpenTamperedCiphertext(t *testing.T) {
	sender, _ := GenerateIdentityKeyPair()
	recipient, _ := GenerateIdentityKeyPair()

	sealed, err := Seal([]byte("payload"), recipient.XPublic, sender)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	sealed[len(sealed)/2] ^= 0xff

	plaintext, senderID, err := Open(sealed, recipient.X25519())
	if err != protocol.ErrDecryptionFailed {
		t.Errorf("Open of tampered ciphertext = %v, want ErrDecryptionFailed", err)
	}
	if plaintext != nil || senderID != "" {
		t.Errorf("partial state returned on failure: %q %q", plaintext, senderID)
	} else {
		t.Logf("✅ Tampered ciphertext rejected with no partial state")
	}
}

func TestSealWithoutIdentity(t *testing.T) {
	recipient, _ := GenerateIdentityKeyPair()
	if _, err := Seal([]byte("x"), recipient.XPublic, nil); err != protocol.ErrNoUserED25519KeyPair {
		t.Errorf("Seal(nil sender) = %v, want ErrNoUserED25519KeyPair", err)
	} else {
		t.Logf("✅ Missing identity rejected")
	}
}

func TestIdentityFromSeedDeterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{0x42}, 32)
	a, err := IdentityFromSeed(seed)
	if err != nil {
		t.Fatalf("IdentityFromSeed failed: %v", err)
	}
	b, err := IdentityFromSeed(seed)
	if err != nil {
		t.Fatalf("IdentityFromSeed failed: %v", err)
	}
	if a.AccountID() != b.AccountID() {
		t.Errorf("same seed produced different account IDs")
	}
	if len(a.AccountID()) != 66 {
		t.Errorf("account ID length = %d, want 66 hex chars", len(a.AccountID()))
	}
	if _, err := IdentityFromSeed(seed[:16]); err == nil {
		t.Errorf("short seed accepted")
	}
	t.Logf("✅ Identity derivation is deterministic: %s", a.AccountID()[:12])
}
