package protocol

import "github.com/pkg/errors"

// Error is a protocol-layer failure. Structural, missing-local-state
// and crypto errors are never retryable; transport failures surface as
// ordinary errors and default to retryable so the external job system
// picks them up.
type Error struct {
	code      string
	retryable bool
}

func (e *Error) Error() string { return e.code }

// Retryable reports whether the external job system should retry.
func (e *Error) Retryable() bool { return e.retryable }

var (
	// Structural / validation.
	ErrInvalidMessage           = &Error{code: "invalid message"}
	ErrProtoConversionFailed    = &Error{code: "proto conversion failed"}
	ErrInvalidDestination       = &Error{code: "invalid destination"}
	ErrInvalidClosedGroupUpdate = &Error{code: "invalid closed group update"}
	ErrInvalidThreadMerge       = &Error{code: "invalid thread merge"}

	// Missing local state.
	ErrNoUserED25519KeyPair = &Error{code: "no user ed25519 key pair"}
	ErrNoKeyPair            = &Error{code: "no key pair"}
	ErrNoThread             = &Error{code: "no thread"}

	// Crypto.
	ErrSigningFailed    = &Error{code: "signing failed"}
	ErrEncryptionFailed = &Error{code: "encryption failed"}
	ErrDecryptionFailed = &Error{code: "decryption failed"}
)

// IsRetryable classifies an error for the job system. Protocol errors
// carry their own flag; anything else is assumed to be a transport
// fault and retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.retryable
	}
	return true
}
