package protocol

import (
	"encoding/hex"
	"fmt"
	"time"
)

// Account ID prefixes. Every account identifier on the wire is a hex
// string of one prefix byte followed by a 32-byte public key.
const (
	PrefixStandard  byte = 0x05 // X25519-derived account ID
	PrefixBlinded   byte = 0x15 // per-community blinded ID
	PrefixUnblinded byte = 0x00 // community ID on servers without blinding
	PrefixGroup     byte = 0x03 // signature-authenticated closed group
)

// AccountIDSize is the byte length of a decoded account ID.
const AccountIDSize = 33

// Namespace is a logical partition on a swarm distinguishing message
// categories.
type Namespace int

const (
	NamespaceDefault             Namespace = 0
	NamespaceLegacyClosedGroup   Namespace = -10
	NamespaceClosedGroupMessages Namespace = 11
)

// RequiresGroupAuth reports whether sends to this namespace must carry
// group-level signing material instead of the user's own.
func (n Namespace) RequiresGroupAuth() bool {
	return n == NamespaceClosedGroupMessages
}

func (n Namespace) String() string {
	switch n {
	case NamespaceDefault:
		return "default"
	case NamespaceLegacyClosedGroup:
		return "legacy-closed-group"
	case NamespaceClosedGroupMessages:
		return "closed-group-messages"
	default:
		return fmt.Sprintf("namespace(%d)", int(n))
	}
}

// TTLs for stored messages. Structural group control messages are pinned
// to the default TTL and never shortened by disappearing-message
// configuration.
const (
	DefaultTTL         = 14 * 24 * time.Hour
	TypingIndicatorTTL = 20 * time.Second
)

// Message length caps applied before persistence, by sender tier.
const (
	MaxTextLengthStandard = 2000
	MaxTextLengthPro      = 10000
)

// MaxPlaintextSize caps the serialized content accepted for encryption.
const MaxPlaintextSize = 1 << 20

// EncodeAccountID builds the hex account ID for a prefix and 32-byte key.
func EncodeAccountID(prefix byte, pub []byte) string {
	buf := make([]byte, 0, AccountIDSize)
	buf = append(buf, prefix)
	buf = append(buf, pub...)
	return hex.EncodeToString(buf)
}

// DecodeAccountID splits an account ID into prefix and raw key bytes.
func DecodeAccountID(id string) (byte, []byte, error) {
	raw, err := hex.DecodeString(id)
	if err != nil {
		return 0, nil, fmt.Errorf("malformed account id: %w", err)
	}
	if len(raw) != AccountIDSize {
		return 0, nil, fmt.Errorf("account id must be %d bytes, got %d", AccountIDSize, len(raw))
	}
	return raw[0], raw[1:], nil
}

// SnodeMessage is the wire envelope handed to the swarm transport.
// Value object: produced once per namespace send attempt, never mutated.
type SnodeMessage struct {
	Recipient string // hex account ID of the swarm owner
	Data      string // base64 ciphertext
	TTL       time.Duration
	Timestamp uint64 // unix ms
}

// ExpirationMode describes a thread's disappearing-message behavior.
type ExpirationMode int

const (
	ExpirationNone ExpirationMode = iota
	ExpirationAfterRead
	ExpirationAfterSend
)

// ExpirationConfig is a thread's disappearing-message configuration.
type ExpirationConfig struct {
	Mode      ExpirationMode
	Duration  time.Duration
	UpdatedAt uint64 // unix ms of the last config change
}

// Enabled reports whether messages in the thread expire at all.
func (c ExpirationConfig) Enabled() bool {
	return c.Mode != ExpirationNone && c.Duration > 0
}
