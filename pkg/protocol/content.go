package protocol

import "time"

// EnvelopeType tags the outer wire envelope.
type EnvelopeType int

const (
	// EnvelopeDirect wraps a sealed-box ciphertext for 1:1 and legacy
	// group messages.
	EnvelopeDirect EnvelopeType = 1
	// EnvelopeClosedGroup wraps plaintext content; the whole envelope is
	// then encrypted under the group's key material.
	EnvelopeClosedGroup EnvelopeType = 2
)

// Envelope is the signed/encrypted wire wrapper around serialized
// message content.
type Envelope struct {
	Type      EnvelopeType
	Source    string // sender account ID; empty for sealed 1:1 envelopes
	Timestamp uint64 // unix ms
	Content   []byte
}

// Content is the protobuf content schema: exactly one payload field is
// set, plus the expiration fields and the signed inner timestamp.
type Content struct {
	DataMessage    *DataMessage
	Typing         *TypingIndicator
	Receipt        *ReadReceipt
	Unsend         *UnsendRequest
	MessageRequest *MessageRequestResponse
	Call           *CallMessage
	DataExtraction *DataExtractionNotification
	GroupUpdate    *GroupUpdated

	// New-style expiration fields. HasExpirationMode distinguishes a
	// sender that knows about expiration types from a legacy one.
	HasExpirationMode bool
	ExpirationMode    ExpirationMode
	ExpirationTimer   uint32 // seconds

	// SigTimestamp is stamped into the signed content so tampering with
	// the outer envelope timestamp is detectable.
	SigTimestamp uint64
}

// DataMessage is the visible-message payload.
type DataMessage struct {
	Body        string
	Profile     *Profile
	Quote       *Quote
	Preview     *LinkPreview
	Attachments []AttachmentPointer
	Reaction    *Reaction

	// LegacyExpireTimer is the old-style disappearing timer (seconds)
	// sent by clients that predate typed expiration.
	LegacyExpireTimer uint32
	SyncTarget        string
}

// ContentProto projects a Message into its wire content. Fails with
// ErrInvalidMessage when the message has no kind.
func (m *Message) ContentProto() (*Content, error) {
	c := &Content{}
	switch k := m.Kind.(type) {
	case VisibleMessage:
		c.DataMessage = &DataMessage{
			Body:        k.Text,
			Profile:     k.Profile,
			Quote:       k.Quote,
			Preview:     k.Preview,
			Attachments: k.Attachments,
			Reaction:    k.Reaction,
			SyncTarget:  k.SyncTarget,
		}
	case ExpirationTimerUpdate:
		c.HasExpirationMode = true
		c.ExpirationMode = k.Mode
		c.ExpirationTimer = uint32(k.Duration / time.Second)
	case TypingIndicator:
		t := k
		c.Typing = &t
	case ReadReceipt:
		r := k
		c.Receipt = &r
	case UnsendRequest:
		u := k
		c.Unsend = &u
	case MessageRequestResponse:
		r := k
		c.MessageRequest = &r
	case CallMessage:
		cm := k
		c.Call = &cm
	case DataExtractionNotification:
		d := k
		c.DataExtraction = &d
	case GroupUpdated:
		g := k
		c.GroupUpdate = &g
	default:
		return nil, ErrInvalidMessage
	}
	return c, nil
}

// KindName names the single payload set on the content, for logging.
func (c *Content) KindName() string {
	switch {
	case c.DataMessage != nil:
		return "visible"
	case c.Typing != nil:
		return "typing-indicator"
	case c.Receipt != nil:
		return "read-receipt"
	case c.Unsend != nil:
		return "unsend-request"
	case c.MessageRequest != nil:
		return "message-request-response"
	case c.Call != nil:
		return "call"
	case c.DataExtraction != nil:
		return "data-extraction"
	case c.GroupUpdate != nil:
		return "group-updated"
	case c.HasExpirationMode:
		return "expiration-timer-update"
	default:
		return "unknown"
	}
}
