package protocol

import "fmt"

// PaddingBlockSize is the block boundary plaintexts are padded to before
// encryption, so ciphertext length leaks only a coarse size bucket.
const PaddingBlockSize = 160

// PadPlaintext pads a serialized content plaintext to the next
// PaddingBlockSize boundary. A 0x80 terminator byte is always appended
// first, so padding is removable without a length prefix.
func PadPlaintext(plaintext []byte) []byte {
	paddedSize := ((len(plaintext) + 1 + PaddingBlockSize - 1) / PaddingBlockSize) * PaddingBlockSize
	padded := make([]byte, paddedSize)
	copy(padded, plaintext)
	padded[len(plaintext)] = 0x80
	return padded
}

// UnpadPlaintext removes block padding added by PadPlaintext. It is the
// symmetric inverse: the last non-zero byte must be the 0x80 terminator.
func UnpadPlaintext(padded []byte) ([]byte, error) {
	for i := len(padded) - 1; i >= 0; i-- {
		if padded[i] == 0x80 {
			return padded[:i], nil
		}
		if padded[i] != 0x00 {
			return nil, fmt.Errorf("malformed padding at offset %d", i)
		}
	}
	return nil, fmt.Errorf("padding terminator not found")
}
