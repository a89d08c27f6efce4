package network

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MurmurLink/murmur-core/pkg/crypto"
	"github.com/MurmurLink/murmur-core/pkg/protocol"
)

// CapabilityBlind marks a community server that supports blinded IDs.
const CapabilityBlind = "blind"

// MessageSender builds, encrypts and dispatches outgoing messages to
// swarm namespaces and community servers.
type MessageSender struct {
	storage     Storage
	config      ConfigFactory
	snode       SnodeTransport
	community   CommunityClient
	expiration  ExpirationManager
	broadcaster Broadcaster
	policy      NamespacePolicy
	log         *zap.Logger
	now         func() time.Time
}

// SenderConfig wires a MessageSender's collaborators.
type SenderConfig struct {
	Storage     Storage
	Config      ConfigFactory
	Snode       SnodeTransport
	Community   CommunityClient
	Expiration  ExpirationManager
	Broadcaster Broadcaster
	Policy      NamespacePolicy
	Logger      *zap.Logger
}

// NewMessageSender creates a dispatcher. A nil policy gets the default
// migration policy, a nil logger a no-op one.
func NewMessageSender(cfg SenderConfig) *MessageSender {
	policy := cfg.Policy
	if policy == nil {
		policy = &MigrationNamespacePolicy{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageSender{
		storage:     cfg.Storage,
		config:      cfg.Config,
		snode:       cfg.Snode,
		community:   cfg.Community,
		expiration:  cfg.Expiration,
		broadcaster: cfg.Broadcaster,
		policy:      policy,
		log:         logger,
		now:         time.Now,
	}
}

// Send routes a message to its destination kind.
func (s *MessageSender) Send(ctx context.Context, dst protocol.Destination, msg *protocol.Message) error {
	if protocol.IsCommunityShape(dst) {
		return s.SendToCommunityDestination(ctx, dst, msg)
	}
	return s.SendToSnodeDestination(ctx, dst, msg, false)
}

type namespaceAttempt struct {
	idx  int
	hash string
	err  error
}

// SendToSnodeDestination sends one message to every candidate namespace
// of a swarm destination concurrently. First success wins and applies
// its hash; remaining attempts are discarded. If every attempt fails,
// the first (lowest-index) attempt's error is reported.
func (s *MessageSender) SendToSnodeDestination(ctx context.Context, dst protocol.Destination, msg *protocol.Message, isSyncMessage bool) error {
	snodeMsg, err := s.BuildWrappedMessageToSnode(dst, msg, isSyncMessage)
	if err != nil {
		s.handleFailedMessageSend(dst, msg, err, isSyncMessage)
		return err
	}

	namespaces := s.policy.NamespacesFor(dst)
	if len(namespaces) == 0 {
		s.handleFailedMessageSend(dst, msg, protocol.ErrInvalidDestination, isSyncMessage)
		return protocol.ErrInvalidDestination
	}

	// Auth material is a precondition, not a network failure: resolve
	// it for every namespace before anything is in flight.
	auths := make([]*SwarmAuth, len(namespaces))
	for i, ns := range namespaces {
		auth, err := s.authFor(dst, ns)
		if err != nil {
			s.handleFailedMessageSend(dst, msg, err, isSyncMessage)
			return err
		}
		auths[i] = auth
	}

	results := make(chan namespaceAttempt, len(namespaces))
	for i, ns := range namespaces {
		go func(idx int, ns protocol.Namespace, auth *SwarmAuth) {
			hash, err := s.snode.SendMessage(ctx, snodeMsg, auth, ns)
			results <- namespaceAttempt{idx: idx, hash: hash, err: err}
		}(i, ns, auths[i])
	}

	errs := make([]error, len(namespaces))
	for received := 0; received < len(namespaces); received++ {
		r := <-results
		if r.err == nil {
			s.handleSuccessfulMessageSend(dst, msg, r.hash, isSyncMessage)
			return nil
		}
		errs[r.idx] = r.err
		s.log.Debug("namespace send attempt failed",
			zap.Stringer("namespace", namespaces[r.idx]),
			zap.String("destination", dst.String()),
			zap.Error(r.err))
	}

	first := errs[0]
	s.handleFailedMessageSend(dst, msg, first, isSyncMessage)
	return first
}

func (s *MessageSender) authFor(dst protocol.Destination, ns protocol.Namespace) (*SwarmAuth, error) {
	if ns.RequiresGroupAuth() {
		group, ok := dst.(protocol.ClosedGroupDestination)
		if !ok {
			return nil, protocol.ErrInvalidDestination
		}
		return s.config.GroupAuth(group.PublicKey)
	}
	identity, err := s.storage.UserIdentity()
	if err != nil {
		return nil, protocol.ErrNoUserED25519KeyPair
	}
	return &SwarmAuth{AccountID: identity.AccountID(), Ed25519PrivateKey: identity.EdPrivate}, nil
}

func (s *MessageSender) handleSuccessfulMessageSend(dst protocol.Destination, msg *protocol.Message, hash string, isSyncMessage bool) {
	msg.ServerHash = hash
	s.storage.RecordReceivedTimestamp(msg.SentTimestamp)
	s.storage.MarkSent(msg)
	s.storage.ClearErrorState(msg)
	if !isSyncMessage {
		// The sync copy is the same logical message; its timer already
		// started on the original send.
		s.expiration.OnMessageSent(msg)
	}

	if unsend, ok := msg.Kind.(protocol.UnsendRequest); ok && !isSyncMessage {
		go s.deleteFromSwarm(msg, unsend)
	}

	contact, isContact := dst.(protocol.ContactDestination)
	if isContact && !isSyncMessage && contact.PublicKey != s.storage.UserPublicKey() {
		go s.sendSyncCopy(msg, contact.PublicKey)
	}
}

// sendSyncCopy re-sends an outgoing 1:1 message to the user's own swarm
// as a durable multi-device record. Fire and forget: failures are
// logged here and never retried at this layer.
func (s *MessageSender) sendSyncCopy(msg *protocol.Message, originalRecipient string) {
	clone := *msg
	clone.ServerHash = ""
	if vm, ok := clone.Kind.(protocol.VisibleMessage); ok {
		vm.SyncTarget = originalRecipient
		clone.Kind = vm
	}
	self := protocol.ContactDestination{PublicKey: s.storage.UserPublicKey()}
	if err := s.SendToSnodeDestination(context.Background(), self, &clone, true); err != nil {
		s.log.Warn("sync copy send failed",
			zap.String("kind", msg.KindName()),
			zap.Error(err))
	}
}

// deleteFromSwarm asks the swarm to drop the unsent message's stored
// copy. Detached: the unsend itself already succeeded.
func (s *MessageSender) deleteFromSwarm(msg *protocol.Message, unsend protocol.UnsendRequest) {
	target, ok := s.storage.MessageByTimestampAuthor(unsend.Timestamp, unsend.Author)
	if !ok || target.ServerHash == "" {
		return
	}
	identity, err := s.storage.UserIdentity()
	if err != nil {
		s.log.Warn("swarm delete skipped: no identity", zap.Error(err))
		return
	}
	auth := &SwarmAuth{AccountID: identity.AccountID(), Ed25519PrivateKey: identity.EdPrivate}
	if err := s.snode.DeleteMessages(context.Background(), auth, []string{target.ServerHash}); err != nil {
		s.log.Warn("swarm delete failed",
			zap.Int64("message", target.ID),
			zap.Error(err))
	}
}

func (s *MessageSender) handleFailedMessageSend(dst protocol.Destination, msg *protocol.Message, sendErr error, isSyncMessage bool) {
	s.log.Warn("message send failed",
		zap.String("kind", msg.KindName()),
		zap.String("destination", dst.String()),
		zap.Bool("retryable", protocol.IsRetryable(sendErr)),
		zap.Error(sendErr))
	if isSyncMessage {
		s.storage.MarkSyncFailed(msg, sendErr)
	} else {
		s.storage.MarkSentFailed(msg, sendErr)
	}

	_, isVisible := msg.Kind.(protocol.VisibleMessage)
	_, isContact := dst.(protocol.ContactDestination)
	if isVisible && isContact && !isSyncMessage && s.broadcaster != nil {
		s.broadcaster.MessageFailed(msg, msg.ThreadID)
	}
}

// SendToCommunityDestination posts a message to a community room or a
// blinded community inbox. There is no namespace fan-out; the server's
// returned timestamp becomes the message's sent timestamp.
func (s *MessageSender) SendToCommunityDestination(ctx context.Context, dst protocol.Destination, msg *protocol.Message) error {
	err := s.sendToCommunity(ctx, dst, msg)
	if err != nil {
		s.handleFailedMessageSend(dst, msg, err, false)
	}
	return err
}

func (s *MessageSender) sendToCommunity(ctx context.Context, dst protocol.Destination, msg *protocol.Message) error {
	if msg.SentTimestamp == 0 {
		msg.SentTimestamp = uint64(s.now().UnixMilli())
	}
	identity, err := s.storage.UserIdentity()
	if err != nil {
		return protocol.ErrNoUserED25519KeyPair
	}

	switch d := dst.(type) {
	case protocol.CommunityDestination:
		sender, _, err := s.communitySender(identity, d.Server)
		if err != nil {
			return err
		}
		msg.Sender = sender
		msg.Recipient = communityRecipientTag(d)

		plaintext, err := s.contentPlaintext(msg)
		if err != nil {
			return err
		}
		res, err := s.community.SendMessage(ctx, &CommunityPost{
			Server:      d.Server,
			Room:        d.Room,
			WhisperTo:   d.WhisperTo,
			WhisperMods: d.WhisperMods,
			FileIDs:     d.FileIDs,
			Data:        plaintext,
		})
		if err != nil {
			return err
		}
		s.applyCommunityResult(msg, res)
		return nil

	case protocol.CommunityInboxDestination:
		sender, blinded, err := s.communitySender(identity, d.Server)
		if err != nil {
			return err
		}
		if blinded == nil {
			serverPub, err := s.config.CommunityServerPublicKey(d.Server)
			if err != nil {
				return protocol.ErrNoKeyPair
			}
			blinded, err = crypto.DeriveBlindedKeyPair(identity, serverPub)
			if err != nil {
				return err
			}
		}
		msg.Sender = sender
		msg.Recipient = d.BlindedPublicKey

		plaintext, err := s.contentPlaintext(msg)
		if err != nil {
			return err
		}
		prefix, recipientPub, err := protocol.DecodeAccountID(d.BlindedPublicKey)
		if err != nil || prefix != protocol.PrefixBlinded {
			return protocol.ErrInvalidDestination
		}
		ciphertext, err := crypto.SealBlinded(plaintext, blinded, recipientPub)
		if err != nil {
			return err
		}
		res, err := s.community.SendDirectMessage(ctx, d.Server, d.BlindedPublicKey, ciphertext)
		if err != nil {
			return err
		}
		s.applyCommunityResult(msg, res)
		return nil

	default:
		panic("network: swarm destination routed to community dispatcher")
	}
}

// communitySender resolves the effective sender identity for a server:
// the community-scoped blinded ID when the server advertises blinding,
// otherwise the plain unblinded-prefixed account ID.
func (s *MessageSender) communitySender(identity *crypto.IdentityKeyPair, server string) (string, *crypto.BlindedKeyPair, error) {
	caps := s.config.CommunityCapabilities(server)
	for _, c := range caps {
		if strings.EqualFold(c, CapabilityBlind) {
			serverPub, err := s.config.CommunityServerPublicKey(server)
			if err != nil {
				return "", nil, protocol.ErrNoKeyPair
			}
			blinded, err := crypto.DeriveBlindedKeyPair(identity, serverPub)
			if err != nil {
				return "", nil, err
			}
			return blinded.AccountID(), blinded, nil
		}
	}
	return protocol.EncodeAccountID(protocol.PrefixUnblinded, identity.XPublic[:]), nil, nil
}

func (s *MessageSender) applyCommunityResult(msg *protocol.Message, res *CommunityPostResult) {
	msg.ServerID = res.ServerID
	if res.ServerTimestamp != 0 {
		// The community server is the ordering authority for the room.
		msg.SentTimestamp = res.ServerTimestamp
	}
	s.storage.MarkSent(msg)
	s.storage.ClearErrorState(msg)
}

// contentPlaintext runs the shared content steps for community sends:
// profile attachment, serialization with the signed inner timestamp,
// and block padding.
func (s *MessageSender) contentPlaintext(msg *protocol.Message) ([]byte, error) {
	s.attachProfile(msg)
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
	return protocol.PadPlaintext(plaintext), nil
}

// communityRecipientTag builds the whisper-aware recipient tag:
// server.room[.whisperTo][.mods].
func communityRecipientTag(d protocol.CommunityDestination) string {
	tag := d.Server + "." + d.Room
	if d.WhisperTo != "" {
		tag += "." + d.WhisperTo
	}
	if d.WhisperMods {
		tag += ".mods"
	}
	return tag
}
