package protocol

import (
	"bytes"
	"testing"
)

func TestPadPlaintext(t *testing.T) {
	tests := []struct {
		name         string
		inputLen     int
		expectedSize int
	}{
		{name: "Empty plaintext", inputLen: 0, expectedSize: 160},
		{name: "One byte", inputLen: 1, expectedSize: 160},
		{name: "Just below boundary", inputLen: 159, expectedSize: 160},
		{name: "Exactly one block", inputLen: 160, expectedSize: 320},
		{name: "Just above boundary", inputLen: 161, expectedSize: 320},
		{name: "Several blocks", inputLen: 1000, expectedSize: 1120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plaintext := bytes.Repeat([]byte{0x41}, tt.inputLen)
			padded := PadPlaintext(plaintext)
			if len(padded) != tt.expectedSize {
				t.Errorf("PadPlaintext(%d bytes) = %d bytes, want %d", tt.inputLen, len(padded), tt.expectedSize)
				return
			}
			if padded[tt.inputLen] != 0x80 {
				t.Errorf("terminator byte = 0x%02x, want 0x80", padded[tt.inputLen])
				return
			}
			t.Logf("✅ %s: %d → %d bytes", tt.name, tt.inputLen, len(padded))
		})
	}
}

func TestPadUnpadRoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 7, 159, 160, 161, 500, 4800} {
		plaintext := make([]byte, size)
		for i := range plaintext {
			plaintext[i] = byte(i)
		}
		unpadded, err := UnpadPlaintext(PadPlaintext(plaintext))
		if err != nil {
			t.Fatalf("round trip failed at size %d: %v", size, err)
		}
		if !bytes.Equal(unpadded, plaintext) {
			t.Fatalf("round trip mismatch at size %d", size)
		}
	}
	t.Logf("✅ Pad/unpad round trips preserved plaintext")
}

func TestUnpadPlaintextMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{name: "No terminator", input: make([]byte, 160)},
		{name: "Garbage after terminator", input: append(append(bytes.Repeat([]byte{1}, 10), 0x80), 0x07)},
		{name: "Empty input", input: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := UnpadPlaintext(tt.input); err == nil {
				t.Errorf("UnpadPlaintext accepted malformed padding")
			} else {
				t.Logf("✅ %s rejected: %v", tt.name, err)
			}
		})
	}
}
