package network

import (
	"encoding/base64"

	"github.com/MurmurLink/murmur-core/pkg/crypto"
	"github.com/MurmurLink/murmur-core/pkg/protocol"
)

// BuildWrappedMessageToSnode turns a message into the base64 payload a
// storage node accepts: content serialization, block padding, the
// destination's encryption layering and TTL resolution. The message is
// mutated in place (timestamp, sender, recipient, attached profile) so
// retries reuse the same identity fields.
func (s *MessageSender) BuildWrappedMessageToSnode(dst protocol.Destination, msg *protocol.Message, isSyncMessage bool) (*protocol.SnodeMessage, error) {
	// Step 1: timestamp and sender. Idempotent so a retry keeps the
	// original ordering position.
	if msg.SentTimestamp == 0 {
		msg.SentTimestamp = uint64(s.now().UnixMilli())
	}
	userPublicKey := s.storage.UserPublicKey()
	msg.Sender = userPublicKey

	// Step 2: recipient per destination variant. Community shapes are a
	// routing bug at this layer, not a runtime condition.
	var conversation string
	switch d := dst.(type) {
	case protocol.ContactDestination:
		msg.Recipient = d.PublicKey
		conversation = d.PublicKey
	case protocol.LegacyClosedGroupDestination:
		msg.Recipient = d.GroupPublicKey
		msg.GroupPublicKey = d.GroupPublicKey
		conversation = d.GroupPublicKey
	case protocol.ClosedGroupDestination:
		msg.Recipient = d.PublicKey
		msg.GroupPublicKey = d.PublicKey
		conversation = d.PublicKey
	default:
		panic("network: community destination routed to snode builder")
	}

	// Step 3: a non-sync message to our own swarm only makes sense as
	// an unsend of our own content.
	if msg.Recipient == userPublicKey && !isSyncMessage {
		if _, ok := msg.Kind.(protocol.UnsendRequest); !ok {
			return nil, protocol.ErrInvalidMessage
		}
	}

	// Step 4: only user-facing kinds carry the sender's profile.
	s.attachProfile(msg)

	// Steps 5 and 6: serialize with the signed inner timestamp, then
	// pad to the block size before any encryption sees the length.
	content, err := msg.ContentProto()
	if err != nil {
		return nil, err
	}
	content.SigTimestamp = msg.SentTimestamp
	plaintext, err := content.Marshal()
	if err != nil {
		return nil, protocol.ErrProtoConversionFailed
	}
	if len(plaintext) > protocol.MaxPlaintextSize {
		return nil, protocol.ErrInvalidMessage
	}
	padded := protocol.PadPlaintext(plaintext)

	// Step 7: encryption layering per destination.
	wire, err := s.encryptForDestination(dst, msg, padded)
	if err != nil {
		return nil, err
	}

	// Step 8: TTL from the explicit override, then the thread's
	// disappearing-message config, then the default.
	var cfg *protocol.ExpirationConfig
	if threadID, err := s.storage.ThreadID(conversation); err == nil {
		cfg, _ = s.storage.ExpirationConfig(threadID)
	}
	ttl := msg.ResolveTTL(cfg, isSyncMessage)

	return &protocol.SnodeMessage{
		Recipient: msg.Recipient,
		Data:      base64.StdEncoding.EncodeToString(wire),
		TTL:       ttl,
		Timestamp: msg.SentTimestamp,
	}, nil
}

func (s *MessageSender) encryptForDestination(dst protocol.Destination, msg *protocol.Message, padded []byte) ([]byte, error) {
	identity, err := s.storage.UserIdentity()
	if err != nil {
		return nil, protocol.ErrNoUserED25519KeyPair
	}

	switch d := dst.(type) {
	case protocol.ContactDestination:
		prefix, recipientPub, err := protocol.DecodeAccountID(d.PublicKey)
		if err != nil || prefix != protocol.PrefixStandard {
			return nil, protocol.ErrInvalidDestination
		}
		var xpub [32]byte
		copy(xpub[:], recipientPub)
		sealed, err := crypto.Seal(padded, xpub, identity)
		if err != nil {
			return nil, err
		}
		return protocol.MarshalEnvelope(&protocol.Envelope{
			Type:      protocol.EnvelopeDirect,
			Timestamp: msg.SentTimestamp,
			Content:   sealed,
		}), nil

	case protocol.LegacyClosedGroupDestination:
		// Legacy groups seal to the shared group keypair; the envelope
		// source tells the receiver which keypair opens it.
		keyPair, err := s.config.LegacyGroupKeyPair(d.GroupPublicKey)
		if err != nil {
			return nil, protocol.ErrNoKeyPair
		}
		sealed, err := crypto.Seal(padded, keyPair.Public, identity)
		if err != nil {
			return nil, err
		}
		return protocol.MarshalEnvelope(&protocol.Envelope{
			Type:      protocol.EnvelopeClosedGroup,
			Source:    d.GroupPublicKey,
			Timestamp: msg.SentTimestamp,
			Content:   sealed,
		}), nil

	case protocol.ClosedGroupDestination:
		// Wrap first, then encrypt the whole envelope under the current
		// group key so rotation invalidates old ciphertexts wholesale.
		envelope := protocol.MarshalEnvelope(&protocol.Envelope{
			Type:      protocol.EnvelopeClosedGroup,
			Source:    d.PublicKey,
			Timestamp: msg.SentTimestamp,
			Content:   padded,
		})
		groupKey, err := s.config.GroupEncryptionKey(d.PublicKey)
		if err != nil {
			return nil, protocol.ErrNoKeyPair
		}
		wire, err := crypto.EncryptWithGroupKey(envelope, groupKey)
		if err != nil {
			return nil, protocol.ErrEncryptionFailed
		}
		return wire, nil

	default:
		return nil, protocol.ErrInvalidDestination
	}
}

// attachProfile stamps the current user profile onto kinds that render
// a sender identity. Other kinds never leak profile data.
func (s *MessageSender) attachProfile(msg *protocol.Message) {
	profile := s.storage.UserProfile()
	switch k := msg.Kind.(type) {
	case protocol.VisibleMessage:
		k.Profile = &profile
		msg.Kind = k
	case protocol.MessageRequestResponse:
		k.Profile = &profile
		msg.Kind = k
	}
}
