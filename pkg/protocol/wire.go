package protocol

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Wire field numbers for the content schema. The schema is stable and
// shared with the upstream protocol definition; numbers are never
// reused.
const (
	envFieldType      = 1
	envFieldSource    = 2
	envFieldTimestamp = 3
	envFieldContent   = 4

	contentFieldData           = 1
	contentFieldTyping         = 2
	contentFieldReceipt        = 3
	contentFieldUnsend         = 4
	contentFieldMessageRequest = 5
	contentFieldCall           = 6
	contentFieldDataExtraction = 7
	contentFieldGroupUpdate    = 8
	contentFieldExpirationMode = 9
	contentFieldExpirationTime = 10
	contentFieldSigTimestamp   = 11

	dataFieldBody        = 1
	dataFieldProfile     = 2
	dataFieldQuote       = 3
	dataFieldPreview     = 4
	dataFieldAttachment  = 5
	dataFieldReaction    = 6
	dataFieldLegacyTimer = 7
	dataFieldSyncTarget  = 8

	profileFieldName = 1
	profileFieldKey  = 2
	profileFieldURL  = 3

	quoteFieldTimestamp  = 1
	quoteFieldAuthor     = 2
	quoteFieldText       = 3
	quoteFieldAttachment = 4

	previewFieldURL   = 1
	previewFieldTitle = 2
	previewFieldImage = 3

	attachmentFieldID          = 1
	attachmentFieldKey         = 2
	attachmentFieldDigest      = 3
	attachmentFieldContentType = 4
	attachmentFieldFileName    = 5
	attachmentFieldSize        = 6
	attachmentFieldURL         = 7

	reactionFieldTimestamp = 1
	reactionFieldAuthor    = 2
	reactionFieldEmoji     = 3
	reactionFieldAction    = 4

	typingFieldStopped = 1

	receiptFieldTimestamp = 1

	unsendFieldTimestamp = 1
	unsendFieldAuthor    = 2

	requestFieldApproved = 1
	requestFieldProfile  = 2

	callFieldKind = 1
	callFieldSDP  = 2
	callFieldUUID = 3

	extractionFieldKind      = 1
	extractionFieldTimestamp = 2

	groupFieldInvite           = 1
	groupFieldInviteResponse   = 2
	groupFieldPromote          = 3
	groupFieldInfoChange       = 4
	groupFieldMemberChange     = 5
	groupFieldMemberLeft       = 6
	groupFieldLeftNotification = 7
	groupFieldDeleteContent    = 8
	groupFieldGroupID          = 9

	inviteFieldName      = 1
	inviteFieldInvitee   = 2
	inviteFieldAuthData  = 3
	inviteFieldSignature = 4

	inviteResponseFieldApproved = 1

	promoteFieldName      = 1
	promoteFieldMember    = 2
	promoteFieldSignature = 3

	infoChangeFieldKind       = 1
	infoChangeFieldName       = 2
	infoChangeFieldExpiration = 3
	infoChangeFieldSignature  = 4

	memberChangeFieldKind      = 1
	memberChangeFieldMember    = 2
	memberChangeFieldHistory   = 3
	memberChangeFieldSignature = 4

	deleteContentFieldMember    = 1
	deleteContentFieldHash      = 2
	deleteContentFieldSignature = 3
)

// ===== ENVELOPE =====

// MarshalEnvelope serializes an envelope to protobuf wire format.
func MarshalEnvelope(e *Envelope) []byte {
	var b []byte
	b = protowire.AppendTag(b, envFieldType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Type))
	if e.Source != "" {
		b = protowire.AppendTag(b, envFieldSource, protowire.BytesType)
		b = protowire.AppendString(b, e.Source)
	}
	b = protowire.AppendTag(b, envFieldTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, e.Timestamp)
	b = protowire.AppendTag(b, envFieldContent, protowire.BytesType)
	b = protowire.AppendBytes(b, e.Content)
	return b
}

// UnmarshalEnvelope parses an envelope from protobuf wire format.
func UnmarshalEnvelope(b []byte) (*Envelope, error) {
	e := &Envelope{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case envFieldType:
			v, rest, err := consumeVarint(b)
			if err != nil {
				return nil, err
			}
			e.Type, b = EnvelopeType(v), rest
		case envFieldSource:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			e.Source, b = string(v), rest
		case envFieldTimestamp:
			v, rest, err := consumeVarint(b)
			if err != nil {
				return nil, err
			}
			e.Timestamp, b = v, rest
		case envFieldContent:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			e.Content, b = append([]byte(nil), v...), rest
		default:
			rest, err := skipField(b, num, typ)
			if err != nil {
				return nil, err
			}
			b = rest
		}
	}
	return e, nil
}

// ===== CONTENT =====

// Marshal serializes the content to protobuf wire format.
func (c *Content) Marshal() ([]byte, error) {
	var b []byte
	if c.DataMessage != nil {
		b = appendMessage(b, contentFieldData, marshalDataMessage(c.DataMessage))
	}
	if c.Typing != nil {
		b = appendMessage(b, contentFieldTyping, marshalTyping(c.Typing))
	}
	if c.Receipt != nil {
		b = appendMessage(b, contentFieldReceipt, marshalReceipt(c.Receipt))
	}
	if c.Unsend != nil {
		b = appendMessage(b, contentFieldUnsend, marshalUnsend(c.Unsend))
	}
	if c.MessageRequest != nil {
		b = appendMessage(b, contentFieldMessageRequest, marshalMessageRequest(c.MessageRequest))
	}
	if c.Call != nil {
		b = appendMessage(b, contentFieldCall, marshalCall(c.Call))
	}
	if c.DataExtraction != nil {
		b = appendMessage(b, contentFieldDataExtraction, marshalDataExtraction(c.DataExtraction))
	}
	if c.GroupUpdate != nil {
		gb, err := marshalGroupUpdate(c.GroupUpdate)
		if err != nil {
			return nil, err
		}
		b = appendMessage(b, contentFieldGroupUpdate, gb)
	}
	if c.HasExpirationMode {
		b = protowire.AppendTag(b, contentFieldExpirationMode, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(c.ExpirationMode))
		b = protowire.AppendTag(b, contentFieldExpirationTime, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(c.ExpirationTimer))
	}
	if c.SigTimestamp != 0 {
		b = protowire.AppendTag(b, contentFieldSigTimestamp, protowire.VarintType)
		b = protowire.AppendVarint(b, c.SigTimestamp)
	}
	return b, nil
}

// UnmarshalContent parses content from protobuf wire format.
func UnmarshalContent(b []byte) (*Content, error) {
	c := &Content{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case contentFieldData:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			dm, err := unmarshalDataMessage(v)
			if err != nil {
				return nil, err
			}
			c.DataMessage, b = dm, rest
		case contentFieldTyping:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			t, err := unmarshalTyping(v)
			if err != nil {
				return nil, err
			}
			c.Typing, b = t, rest
		case contentFieldReceipt:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			r, err := unmarshalReceipt(v)
			if err != nil {
				return nil, err
			}
			c.Receipt, b = r, rest
		case contentFieldUnsend:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			u, err := unmarshalUnsend(v)
			if err != nil {
				return nil, err
			}
			c.Unsend, b = u, rest
		case contentFieldMessageRequest:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			r, err := unmarshalMessageRequest(v)
			if err != nil {
				return nil, err
			}
			c.MessageRequest, b = r, rest
		case contentFieldCall:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			cm, err := unmarshalCall(v)
			if err != nil {
				return nil, err
			}
			c.Call, b = cm, rest
		case contentFieldDataExtraction:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			d, err := unmarshalDataExtraction(v)
			if err != nil {
				return nil, err
			}
			c.DataExtraction, b = d, rest
		case contentFieldGroupUpdate:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			g, err := unmarshalGroupUpdate(v)
			if err != nil {
				return nil, err
			}
			c.GroupUpdate, b = g, rest
		case contentFieldExpirationMode:
			v, rest, err := consumeVarint(b)
			if err != nil {
				return nil, err
			}
			c.HasExpirationMode = true
			c.ExpirationMode, b = ExpirationMode(v), rest
		case contentFieldExpirationTime:
			v, rest, err := consumeVarint(b)
			if err != nil {
				return nil, err
			}
			c.ExpirationTimer, b = uint32(v), rest
		case contentFieldSigTimestamp:
			v, rest, err := consumeVarint(b)
			if err != nil {
				return nil, err
			}
			c.SigTimestamp, b = v, rest
		default:
			rest, err := skipField(b, num, typ)
			if err != nil {
				return nil, err
			}
			b = rest
		}
	}
	return c, nil
}

// ===== DATA MESSAGE =====

func marshalDataMessage(m *DataMessage) []byte {
	var b []byte
	if m.Body != "" {
		b = protowire.AppendTag(b, dataFieldBody, protowire.BytesType)
		b = protowire.AppendString(b, m.Body)
	}
	if m.Profile != nil {
		b = appendMessage(b, dataFieldProfile, marshalProfile(m.Profile))
	}
	if m.Quote != nil {
		b = appendMessage(b, dataFieldQuote, marshalQuote(m.Quote))
	}
	if m.Preview != nil {
		b = appendMessage(b, dataFieldPreview, marshalPreview(m.Preview))
	}
	for i := range m.Attachments {
		b = appendMessage(b, dataFieldAttachment, marshalAttachment(&m.Attachments[i]))
	}
	if m.Reaction != nil {
		b = appendMessage(b, dataFieldReaction, marshalReaction(m.Reaction))
	}
	if m.LegacyExpireTimer != 0 {
		b = protowire.AppendTag(b, dataFieldLegacyTimer, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.LegacyExpireTimer))
	}
	if m.SyncTarget != "" {
		b = protowire.AppendTag(b, dataFieldSyncTarget, protowire.BytesType)
		b = protowire.AppendString(b, m.SyncTarget)
	}
	return b
}

func unmarshalDataMessage(b []byte) (*DataMessage, error) {
	m := &DataMessage{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case dataFieldBody:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			m.Body, b = string(v), rest
		case dataFieldProfile:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			p, err := unmarshalProfile(v)
			if err != nil {
				return nil, err
			}
			m.Profile, b = p, rest
		case dataFieldQuote:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			q, err := unmarshalQuote(v)
			if err != nil {
				return nil, err
			}
			m.Quote, b = q, rest
		case dataFieldPreview:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			p, err := unmarshalPreview(v)
			if err != nil {
				return nil, err
			}
			m.Preview, b = p, rest
		case dataFieldAttachment:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			a, err := unmarshalAttachment(v)
			if err != nil {
				return nil, err
			}
			m.Attachments, b = append(m.Attachments, *a), rest
		case dataFieldReaction:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			r, err := unmarshalReaction(v)
			if err != nil {
				return nil, err
			}
			m.Reaction, b = r, rest
		case dataFieldLegacyTimer:
			v, rest, err := consumeVarint(b)
			if err != nil {
				return nil, err
			}
			m.LegacyExpireTimer, b = uint32(v), rest
		case dataFieldSyncTarget:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			m.SyncTarget, b = string(v), rest
		default:
			rest, err := skipField(b, num, typ)
			if err != nil {
				return nil, err
			}
			b = rest
		}
	}
	return m, nil
}

// ===== NESTED MESSAGES =====

func marshalProfile(p *Profile) []byte {
	var b []byte
	if p.DisplayName != "" {
		b = protowire.AppendTag(b, profileFieldName, protowire.BytesType)
		b = protowire.AppendString(b, p.DisplayName)
	}
	if len(p.ProfileKey) > 0 {
		b = protowire.AppendTag(b, profileFieldKey, protowire.BytesType)
		b = protowire.AppendBytes(b, p.ProfileKey)
	}
	if p.PictureURL != "" {
		b = protowire.AppendTag(b, profileFieldURL, protowire.BytesType)
		b = protowire.AppendString(b, p.PictureURL)
	}
	return b
}

func unmarshalProfile(b []byte) (*Profile, error) {
	p := &Profile{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case profileFieldName:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			p.DisplayName, b = string(v), rest
		case profileFieldKey:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			p.ProfileKey, b = append([]byte(nil), v...), rest
		case profileFieldURL:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			p.PictureURL, b = string(v), rest
		default:
			rest, err := skipField(b, num, typ)
			if err != nil {
				return nil, err
			}
			b = rest
		}
	}
	return p, nil
}

func marshalQuote(q *Quote) []byte {
	var b []byte
	b = protowire.AppendTag(b, quoteFieldTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, q.Timestamp)
	b = protowire.AppendTag(b, quoteFieldAuthor, protowire.BytesType)
	b = protowire.AppendString(b, q.Author)
	if q.Text != "" {
		b = protowire.AppendTag(b, quoteFieldText, protowire.BytesType)
		b = protowire.AppendString(b, q.Text)
	}
	for i := range q.Attachments {
		b = appendMessage(b, quoteFieldAttachment, marshalAttachment(&q.Attachments[i]))
	}
	return b
}

func unmarshalQuote(b []byte) (*Quote, error) {
	q := &Quote{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case quoteFieldTimestamp:
			v, rest, err := consumeVarint(b)
			if err != nil {
				return nil, err
			}
			q.Timestamp, b = v, rest
		case quoteFieldAuthor:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			q.Author, b = string(v), rest
		case quoteFieldText:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			q.Text, b = string(v), rest
		case quoteFieldAttachment:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			a, err := unmarshalAttachment(v)
			if err != nil {
				return nil, err
			}
			q.Attachments, b = append(q.Attachments, *a), rest
		default:
			rest, err := skipField(b, num, typ)
			if err != nil {
				return nil, err
			}
			b = rest
		}
	}
	return q, nil
}

func marshalPreview(p *LinkPreview) []byte {
	var b []byte
	b = protowire.AppendTag(b, previewFieldURL, protowire.BytesType)
	b = protowire.AppendString(b, p.URL)
	if p.Title != "" {
		b = protowire.AppendTag(b, previewFieldTitle, protowire.BytesType)
		b = protowire.AppendString(b, p.Title)
	}
	if p.Image != nil {
		b = appendMessage(b, previewFieldImage, marshalAttachment(p.Image))
	}
	return b
}

func unmarshalPreview(b []byte) (*LinkPreview, error) {
	p := &LinkPreview{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case previewFieldURL:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			p.URL, b = string(v), rest
		case previewFieldTitle:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			p.Title, b = string(v), rest
		case previewFieldImage:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			a, err := unmarshalAttachment(v)
			if err != nil {
				return nil, err
			}
			p.Image, b = a, rest
		default:
			rest, err := skipField(b, num, typ)
			if err != nil {
				return nil, err
			}
			b = rest
		}
	}
	return p, nil
}

func marshalAttachment(a *AttachmentPointer) []byte {
	var b []byte
	b = protowire.AppendTag(b, attachmentFieldID, protowire.VarintType)
	b = protowire.AppendVarint(b, a.ID)
	if len(a.Key) > 0 {
		b = protowire.AppendTag(b, attachmentFieldKey, protowire.BytesType)
		b = protowire.AppendBytes(b, a.Key)
	}
	if len(a.Digest) > 0 {
		b = protowire.AppendTag(b, attachmentFieldDigest, protowire.BytesType)
		b = protowire.AppendBytes(b, a.Digest)
	}
	if a.ContentType != "" {
		b = protowire.AppendTag(b, attachmentFieldContentType, protowire.BytesType)
		b = protowire.AppendString(b, a.ContentType)
	}
	if a.FileName != "" {
		b = protowire.AppendTag(b, attachmentFieldFileName, protowire.BytesType)
		b = protowire.AppendString(b, a.FileName)
	}
	if a.Size != 0 {
		b = protowire.AppendTag(b, attachmentFieldSize, protowire.VarintType)
		b = protowire.AppendVarint(b, a.Size)
	}
	if a.URL != "" {
		b = protowire.AppendTag(b, attachmentFieldURL, protowire.BytesType)
		b = protowire.AppendString(b, a.URL)
	}
	return b
}

func unmarshalAttachment(b []byte) (*AttachmentPointer, error) {
	a := &AttachmentPointer{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case attachmentFieldID:
			v, rest, err := consumeVarint(b)
			if err != nil {
				return nil, err
			}
			a.ID, b = v, rest
		case attachmentFieldKey:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			a.Key, b = append([]byte(nil), v...), rest
		case attachmentFieldDigest:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			a.Digest, b = append([]byte(nil), v...), rest
		case attachmentFieldContentType:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			a.ContentType, b = string(v), rest
		case attachmentFieldFileName:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			a.FileName, b = string(v), rest
		case attachmentFieldSize:
			v, rest, err := consumeVarint(b)
			if err != nil {
				return nil, err
			}
			a.Size, b = v, rest
		case attachmentFieldURL:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			a.URL, b = string(v), rest
		default:
			rest, err := skipField(b, num, typ)
			if err != nil {
				return nil, err
			}
			b = rest
		}
	}
	return a, nil
}

func marshalReaction(r *Reaction) []byte {
	var b []byte
	b = protowire.AppendTag(b, reactionFieldTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, r.Timestamp)
	b = protowire.AppendTag(b, reactionFieldAuthor, protowire.BytesType)
	b = protowire.AppendString(b, r.Author)
	b = protowire.AppendTag(b, reactionFieldEmoji, protowire.BytesType)
	b = protowire.AppendString(b, r.Emoji)
	b = protowire.AppendTag(b, reactionFieldAction, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Action))
	return b
}

func unmarshalReaction(b []byte) (*Reaction, error) {
	r := &Reaction{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case reactionFieldTimestamp:
			v, rest, err := consumeVarint(b)
			if err != nil {
				return nil, err
			}
			r.Timestamp, b = v, rest
		case reactionFieldAuthor:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			r.Author, b = string(v), rest
		case reactionFieldEmoji:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			r.Emoji, b = string(v), rest
		case reactionFieldAction:
			v, rest, err := consumeVarint(b)
			if err != nil {
				return nil, err
			}
			r.Action, b = ReactionAction(v), rest
		default:
			rest, err := skipField(b, num, typ)
			if err != nil {
				return nil, err
			}
			b = rest
		}
	}
	return r, nil
}

func marshalTyping(t *TypingIndicator) []byte {
	var b []byte
	if t.Stopped {
		b = protowire.AppendTag(b, typingFieldStopped, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	return b
}

func unmarshalTyping(b []byte) (*TypingIndicator, error) {
	t := &TypingIndicator{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case typingFieldStopped:
			v, rest, err := consumeVarint(b)
			if err != nil {
				return nil, err
			}
			t.Stopped, b = v != 0, rest
		default:
			rest, err := skipField(b, num, typ)
			if err != nil {
				return nil, err
			}
			b = rest
		}
	}
	return t, nil
}

func marshalReceipt(r *ReadReceipt) []byte {
	var b []byte
	for _, ts := range r.Timestamps {
		b = protowire.AppendTag(b, receiptFieldTimestamp, protowire.VarintType)
		b = protowire.AppendVarint(b, ts)
	}
	return b
}

func unmarshalReceipt(b []byte) (*ReadReceipt, error) {
	r := &ReadReceipt{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case receiptFieldTimestamp:
			v, rest, err := consumeVarint(b)
			if err != nil {
				return nil, err
			}
			r.Timestamps, b = append(r.Timestamps, v), rest
		default:
			rest, err := skipField(b, num, typ)
			if err != nil {
				return nil, err
			}
			b = rest
		}
	}
	return r, nil
}

func marshalUnsend(u *UnsendRequest) []byte {
	var b []byte
	b = protowire.AppendTag(b, unsendFieldTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, u.Timestamp)
	b = protowire.AppendTag(b, unsendFieldAuthor, protowire.BytesType)
	b = protowire.AppendString(b, u.Author)
	return b
}

func unmarshalUnsend(b []byte) (*UnsendRequest, error) {
	u := &UnsendRequest{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case unsendFieldTimestamp:
			v, rest, err := consumeVarint(b)
			if err != nil {
				return nil, err
			}
			u.Timestamp, b = v, rest
		case unsendFieldAuthor:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			u.Author, b = string(v), rest
		default:
			rest, err := skipField(b, num, typ)
			if err != nil {
				return nil, err
			}
			b = rest
		}
	}
	return u, nil
}

func marshalMessageRequest(r *MessageRequestResponse) []byte {
	var b []byte
	if r.Approved {
		b = protowire.AppendTag(b, requestFieldApproved, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	if r.Profile != nil {
		b = appendMessage(b, requestFieldProfile, marshalProfile(r.Profile))
	}
	return b
}

func unmarshalMessageRequest(b []byte) (*MessageRequestResponse, error) {
	r := &MessageRequestResponse{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case requestFieldApproved:
			v, rest, err := consumeVarint(b)
			if err != nil {
				return nil, err
			}
			r.Approved, b = v != 0, rest
		case requestFieldProfile:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			p, err := unmarshalProfile(v)
			if err != nil {
				return nil, err
			}
			r.Profile, b = p, rest
		default:
			rest, err := skipField(b, num, typ)
			if err != nil {
				return nil, err
			}
			b = rest
		}
	}
	return r, nil
}

func marshalCall(c *CallMessage) []byte {
	var b []byte
	b = protowire.AppendTag(b, callFieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.Kind))
	if c.SDP != "" {
		b = protowire.AppendTag(b, callFieldSDP, protowire.BytesType)
		b = protowire.AppendString(b, c.SDP)
	}
	if c.UUID != "" {
		b = protowire.AppendTag(b, callFieldUUID, protowire.BytesType)
		b = protowire.AppendString(b, c.UUID)
	}
	return b
}

func unmarshalCall(b []byte) (*CallMessage, error) {
	c := &CallMessage{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case callFieldKind:
			v, rest, err := consumeVarint(b)
			if err != nil {
				return nil, err
			}
			c.Kind, b = CallKind(v), rest
		case callFieldSDP:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			c.SDP, b = string(v), rest
		case callFieldUUID:
			v, rest, err := consumeBytes(b)
			if err != nil {
				return nil, err
			}
			c.UUID, b = string(v), rest
		default:
			rest, err := skipField(b, num, typ)
			if err != nil {
				return nil, err
			}
			b = rest
		}
	}
	return c, nil
}

func marshalDataExtraction(d *DataExtractionNotification) []byte {
	var b []byte
	b = protowire.AppendTag(b, extractionFieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(d.Kind))
	if d.Timestamp != 0 {
		b = protowire.AppendTag(b, extractionFieldTimestamp, protowire.VarintType)
		b = protowire.AppendVarint(b, d.Timestamp)
	}
	return b
}

func unmarshalDataExtraction(b []byte) (*DataExtractionNotification, error) {
	d := &DataExtractionNotification{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case extractionFieldKind:
			v, rest, err := consumeVarint(b)
			if err != nil {
				return nil, err
			}
			d.Kind, b = DataExtractionKind(v), rest
		case extractionFieldTimestamp:
			v, rest, err := consumeVarint(b)
			if err != nil {
				return nil, err
			}
			d.Timestamp, b = v, rest
		default:
			rest, err := skipField(b, num, typ)
			if err != nil {
				return nil, err
			}
			b = rest
		}
	}
	return d, nil
}

// ===== HELPERS =====

func appendMessage(b []byte, num protowire.Number, sub []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, sub)
}

func consumeVarint(b []byte) (uint64, []byte, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, nil, protowire.ParseError(n)
	}
	return v, b[n:], nil
}

func consumeBytes(b []byte) ([]byte, []byte, error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, nil, protowire.ParseError(n)
	}
	return v, b[n:], nil
}

func skipField(b []byte, num protowire.Number, typ protowire.Type) ([]byte, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return nil, protowire.ParseError(n)
	}
	return b[n:], nil
}
