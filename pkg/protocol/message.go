package protocol

import "time"

// Message is the logical unit handed to the dispatcher. Common fields
// are mutated in place by the envelope builder exactly once per send
// attempt; once a ServerHash is recorded the message is immutable.
type Message struct {
	ID             int64  // local database ID, 0 until persisted
	Sender         string // hex account ID, assigned by the builder
	Recipient      string // hex account ID, assigned by the builder
	SentTimestamp  uint64 // unix ms, set exactly once
	ServerHash     string // swarm hash, assigned post-send
	ServerID       int64  // community server message ID, assigned post-send
	ThreadID       int64
	GroupPublicKey string
	TTLOverride    time.Duration // explicit per-message TTL, 0 means unset

	Kind MessageKind
}

// MessageKind is the closed set of message variants.
type MessageKind interface {
	kindName() string
}

// KindName names the message variant for logging and persistence.
func (m *Message) KindName() string {
	if m.Kind == nil {
		return "unknown"
	}
	return m.Kind.kindName()
}

// Profile is the sender profile attached to visible messages and
// message-request responses only.
type Profile struct {
	DisplayName string
	ProfileKey  []byte // 16 or 32 bytes when set
	PictureURL  string
}

// Quote references an earlier message by (timestamp, author).
type Quote struct {
	Timestamp   uint64
	Author      string
	Text        string
	Attachments []AttachmentPointer
}

// LinkPreview is a URL preview carried inside a visible message.
type LinkPreview struct {
	URL   string
	Title string
	Image *AttachmentPointer
}

// AttachmentPointer references an uploaded attachment by server ID.
type AttachmentPointer struct {
	ID          uint64
	Key         []byte
	Digest      []byte
	ContentType string
	FileName    string
	Size        uint64
	URL         string
}

// ReactionAction distinguishes adding a reaction from retracting one.
type ReactionAction int

const (
	ReactionAdd ReactionAction = iota
	ReactionRemove
)

// Reaction is an emoji reaction to a message identified by
// (timestamp, author).
type Reaction struct {
	Timestamp uint64
	Author    string
	Emoji     string
	Action    ReactionAction
}

// VisibleMessage is a user-visible chat message.
type VisibleMessage struct {
	Text        string
	Profile     *Profile
	Quote       *Quote
	Preview     *LinkPreview
	Attachments []AttachmentPointer
	Reaction    *Reaction
	SyncTarget  string // original recipient when this is a sync copy
}

// ExpirationTimerUpdate changes a thread's disappearing-message timer.
type ExpirationTimerUpdate struct {
	Mode     ExpirationMode
	Duration time.Duration
}

// TypingIndicator signals typing started/stopped.
type TypingIndicator struct {
	Stopped bool
}

// ReadReceipt acknowledges that messages were read.
type ReadReceipt struct {
	Timestamps []uint64
}

// UnsendRequest retracts a previously sent message.
type UnsendRequest struct {
	Timestamp uint64
	Author    string
}

// MessageRequestResponse signals approval of a message request.
type MessageRequestResponse struct {
	Approved bool
	Profile  *Profile
}

// CallKind enumerates call signaling payloads.
type CallKind int

const (
	CallOffer CallKind = iota
	CallAnswer
	CallICECandidates
	CallEnd
)

// CallMessage carries WebRTC call signaling.
type CallMessage struct {
	Kind CallKind
	SDP  string
	UUID string
}

// DataExtractionKind enumerates data-extraction notifications.
type DataExtractionKind int

const (
	DataExtractionScreenshot DataExtractionKind = iota
	DataExtractionMediaSaved
)

// DataExtractionNotification tells the peer their content was captured.
type DataExtractionNotification struct {
	Kind      DataExtractionKind
	Timestamp uint64
}

// GroupUpdated wraps one closed-group control command.
type GroupUpdated struct {
	GroupID string
	Command GroupCommand
}

func (VisibleMessage) kindName() string             { return "visible" }
func (ExpirationTimerUpdate) kindName() string      { return "expiration-timer-update" }
func (TypingIndicator) kindName() string            { return "typing-indicator" }
func (ReadReceipt) kindName() string                { return "read-receipt" }
func (UnsendRequest) kindName() string              { return "unsend-request" }
func (MessageRequestResponse) kindName() string     { return "message-request-response" }
func (CallMessage) kindName() string                { return "call" }
func (DataExtractionNotification) kindName() string { return "data-extraction" }
func (GroupUpdated) kindName() string               { return "group-updated" }

// IsGroupControl reports whether the message is a structural group
// control command that must survive to be processed by all members.
// These are exempt from disappearing-message TTLs.
func (m *Message) IsGroupControl() bool {
	gu, ok := m.Kind.(GroupUpdated)
	if !ok {
		return false
	}
	switch gu.Command.(type) {
	case GroupInvite, GroupPromote, GroupMemberChange, GroupMemberLeft,
		GroupMemberLeftNotification, GroupDeleteMemberContent:
		return true
	default:
		return false
	}
}

// ResolveTTL walks the TTL policy: explicit override, then thread
// expiration config when the mode is delete-after-send (or this is a
// sync copy), then the default. Group control messages always get the
// default TTL regardless of thread configuration.
func (m *Message) ResolveTTL(cfg *ExpirationConfig, isSync bool) time.Duration {
	if m.IsGroupControl() {
		return DefaultTTL
	}
	if _, ok := m.Kind.(TypingIndicator); ok {
		return TypingIndicatorTTL
	}
	if m.TTLOverride > 0 {
		return m.TTLOverride
	}
	if cfg != nil && cfg.Enabled() && (cfg.Mode == ExpirationAfterSend || isSync) {
		return cfg.Duration
	}
	return DefaultTTL
}
