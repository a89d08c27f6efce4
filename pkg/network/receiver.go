package network

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MurmurLink/murmur-core/pkg/crypto"
	"github.com/MurmurLink/murmur-core/pkg/protocol"
)

// MessageReceiver decrypts inbound envelopes, gates outdated messages
// and materializes visible messages into storage.
type MessageReceiver struct {
	storage    Storage
	config     ConfigFactory
	jobs       JobQueue
	groups     GroupStateManager
	expiration ExpirationManager
	log        *zap.Logger
}

// ReceiverConfig wires a MessageReceiver's collaborators.
type ReceiverConfig struct {
	Storage    Storage
	Config     ConfigFactory
	Jobs       JobQueue
	Groups     GroupStateManager
	Expiration ExpirationManager
	Logger     *zap.Logger
}

func NewMessageReceiver(cfg ReceiverConfig) *MessageReceiver {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageReceiver{
		storage:    cfg.Storage,
		config:     cfg.Config,
		jobs:       cfg.Jobs,
		groups:     cfg.Groups,
		expiration: cfg.Expiration,
		log:        logger,
	}
}

// ReceiveContext describes where an inbound message came from. The
// transport layer fills it from swarm or community polling state.
type ReceiveContext struct {
	Conversation string
	Variant      ConversationVariant

	// CommunityServer is set for community-sourced messages, which do
	// not support disappearing timers.
	CommunityServer string
	// OwnBlindedID is the user's blinded alias on that server, when
	// blinding is active.
	OwnBlindedID string
	ServerHash   string
	ServerID     int64
}

// ProcessEnvelope decrypts a swarm envelope from the default or legacy
// namespaces and dispatches its content.
func (r *MessageReceiver) ProcessEnvelope(ctx context.Context, raw []byte, rc ReceiveContext) error {
	envelope, err := protocol.UnmarshalEnvelope(raw)
	if err != nil {
		return protocol.ErrInvalidMessage
	}

	var padded []byte
	var sender string
	switch envelope.Type {
	case protocol.EnvelopeDirect:
		identity, err := r.storage.UserIdentity()
		if err != nil {
			return protocol.ErrNoUserED25519KeyPair
		}
		padded, sender, err = crypto.Open(envelope.Content, identity.X25519())
		if err != nil {
			return err
		}
	case protocol.EnvelopeClosedGroup:
		keyPair, err := r.config.LegacyGroupKeyPair(envelope.Source)
		if err != nil {
			return protocol.ErrNoKeyPair
		}
		padded, sender, err = crypto.Open(envelope.Content, *keyPair)
		if err != nil {
			return err
		}
		if rc.Conversation == "" {
			rc.Conversation = envelope.Source
			rc.Variant = VariantLegacyGroup
		}
	default:
		return protocol.ErrInvalidMessage
	}

	return r.processContent(ctx, padded, sender, envelope.Timestamp, rc)
}

// ProcessGroupEnvelope handles the group-messages namespace: the whole
// envelope is encrypted under the group's current key.
func (r *MessageReceiver) ProcessGroupEnvelope(ctx context.Context, raw []byte, groupID string, rc ReceiveContext) error {
	groupKey, err := r.config.GroupEncryptionKey(groupID)
	if err != nil {
		return protocol.ErrNoKeyPair
	}
	envelopeBytes, err := crypto.DecryptWithGroupKey(raw, groupKey)
	if err != nil {
		return protocol.ErrDecryptionFailed
	}
	envelope, err := protocol.UnmarshalEnvelope(envelopeBytes)
	if err != nil {
		return protocol.ErrInvalidMessage
	}
	if rc.Conversation == "" {
		rc.Conversation = groupID
		rc.Variant = VariantGroup
	}
	return r.processContent(ctx, envelope.Content, envelope.Source, envelope.Timestamp, rc)
}

// ProcessBlindedMessage handles a community inbox ciphertext.
func (r *MessageReceiver) ProcessBlindedMessage(ctx context.Context, raw []byte, rc ReceiveContext, otherBlinded []byte, isOutgoing bool) error {
	identity, err := r.storage.UserIdentity()
	if err != nil {
		return protocol.ErrNoUserED25519KeyPair
	}
	serverPub, err := r.config.CommunityServerPublicKey(rc.CommunityServer)
	if err != nil {
		return protocol.ErrNoKeyPair
	}
	own, err := crypto.DeriveBlindedKeyPair(identity, serverPub)
	if err != nil {
		return err
	}
	padded, sender, err := crypto.OpenBlinded(raw, own, otherBlinded, isOutgoing)
	if err != nil {
		return err
	}
	rc.OwnBlindedID = own.AccountID()
	return r.processContent(ctx, padded, sender, 0, rc)
}

func (r *MessageReceiver) processContent(ctx context.Context, padded []byte, sender string, envelopeTimestamp uint64, rc ReceiveContext) error {
	plaintext, err := protocol.UnpadPlaintext(padded)
	if err != nil {
		return protocol.ErrInvalidMessage
	}
	content, err := protocol.UnmarshalContent(plaintext)
	if err != nil {
		return protocol.ErrInvalidMessage
	}

	msg, err := messageFromContent(content)
	if err != nil {
		return err
	}
	msg.Sender = sender
	msg.SentTimestamp = content.SigTimestamp
	if msg.SentTimestamp == 0 {
		msg.SentTimestamp = envelopeTimestamp
	}
	msg.ServerHash = rc.ServerHash
	msg.ServerID = rc.ServerID
	if rc.Conversation == "" {
		rc.Conversation = sender
		rc.Variant = VariantContact
	}

	return r.dispatch(ctx, msg, content, rc)
}

func (r *MessageReceiver) dispatch(ctx context.Context, msg *protocol.Message, content *protocol.Content, rc ReceiveContext) error {
	if r.MessageIsOutdated(msg, rc.Conversation, rc.Variant) {
		r.log.Debug("dropping outdated message",
			zap.String("kind", msg.KindName()),
			zap.String("conversation", rc.Conversation))
		return nil
	}

	switch kind := msg.Kind.(type) {
	case protocol.VisibleMessage:
		_, err := r.HandleVisibleMessage(ctx, msg, kind, content, rc)
		return err
	case protocol.ExpirationTimerUpdate:
		return r.handleExpirationTimerUpdate(msg, kind, rc)
	case protocol.UnsendRequest:
		return r.handleUnsendRequest(msg, kind)
	case protocol.MessageRequestResponse:
		return r.HandleMessageRequestResponse(msg, kind)
	case protocol.GroupUpdated:
		return r.HandleGroupControl(ctx, msg, kind)
	case protocol.ReadReceipt, protocol.TypingIndicator,
		protocol.CallMessage, protocol.DataExtractionNotification:
		// Ephemeral kinds never persist; downstream consumers observe
		// them through their own channels.
		return nil
	default:
		return protocol.ErrInvalidMessage
	}
}

// MessageIsOutdated reports whether an inbound message predates the
// conversation's last config-change watermark while the conversation is
// hidden. Receipts and unsends are never outdated: receipts must apply
// to old messages and an unsend must be able to retract anything.
func (r *MessageReceiver) MessageIsOutdated(msg *protocol.Message, conversation string, variant ConversationVariant) bool {
	switch msg.Kind.(type) {
	case protocol.ReadReceipt, protocol.UnsendRequest:
		return false
	}
	if r.config.ConversationVisible(conversation, variant) {
		return false
	}
	return msg.SentTimestamp < r.config.ChangeWatermark(conversation, variant)
}

// HandleVisibleMessage materializes one inbound visible message:
// profile update, quote and preview resolution, mention detection,
// truncation, persistence and post-persist side effects. Returns the
// stored message ID, or 0 when the message carried only a reaction.
func (r *MessageReceiver) HandleVisibleMessage(ctx context.Context, msg *protocol.Message, vm protocol.VisibleMessage, content *protocol.Content, rc ReceiveContext) (int64, error) {
	threadID, err := r.storage.GetOrCreateThread(rc.Conversation)
	if err != nil {
		return 0, protocol.ErrNoThread
	}

	r.applyProfileUpdate(msg.Sender, vm.Profile, rc)

	// A reaction-only visible message mutates an existing message's
	// reaction rows instead of materializing a new row.
	if vm.Reaction != nil && vm.Text == "" {
		return 0, r.applyReaction(msg.Sender, *vm.Reaction)
	}

	quote := r.resolveQuote(vm.Quote)
	preview := r.filterPreview(vm.Preview)
	mention := r.detectMention(vm.Text, quote, rc.OwnBlindedID)
	text := r.truncateForSender(vm.Text, msg.Sender)

	rec := &IncomingRecord{
		ThreadID:          threadID,
		Sender:            msg.Sender,
		Timestamp:         msg.SentTimestamp,
		ServerHash:        msg.ServerHash,
		CommunityServerID: rc.ServerID,
		Text:              text,
		Quote:             quote,
		Preview:           preview,
		Attachments:       vm.Attachments,
		IsMention:         mention,
		Banner:            bannerFor(content),
	}
	messageID, err := r.storage.PersistMessage(rec)
	if err != nil {
		return 0, err
	}

	selfSender := msg.Sender == r.storage.UserPublicKey() ||
		(rc.OwnBlindedID != "" && msg.Sender == rc.OwnBlindedID)
	if r.storage.AttachmentAutoDownload(threadID) || selfSender {
		for _, att := range vm.Attachments {
			r.jobs.EnqueueAttachmentDownload(messageID, att)
		}
	}

	if rc.CommunityServer != "" {
		// Communities do not support disappearing messages.
		r.storage.ScrubExpirationMetadata(messageID)
	} else {
		cfg, _ := r.storage.ExpirationConfig(threadID)
		r.expiration.OnMessageReceived(messageID, threadID, cfg)
	}
	return messageID, nil
}

// applyProfileUpdate applies sender display-name and picture changes.
// Never applied for self or the user's own blinded alias. The picture
// is only re-fetched when the key actually changed or nothing is cached
// yet; the key must be 16 or 32 bytes with a non-empty URL.
func (r *MessageReceiver) applyProfileUpdate(sender string, p *protocol.Profile, rc ReceiveContext) {
	if p == nil {
		return
	}
	if sender == r.storage.UserPublicKey() {
		return
	}
	if rc.OwnBlindedID != "" && sender == rc.OwnBlindedID {
		return
	}

	existing, known := r.storage.ContactProfile(sender)
	updated := existing
	changed := !known
	if p.DisplayName != "" && p.DisplayName != existing.DisplayName {
		updated.DisplayName = p.DisplayName
		changed = true
	}

	keyValid := (len(p.ProfileKey) == 16 || len(p.ProfileKey) == 32) && p.PictureURL != ""
	if keyValid {
		keyChanged := !known ||
			len(existing.ProfileKey) != len(p.ProfileKey) ||
			subtle.ConstantTimeCompare(existing.ProfileKey, p.ProfileKey) != 1
		if keyChanged || existing.PictureURL == "" {
			updated.ProfileKey = p.ProfileKey
			updated.PictureURL = p.PictureURL
			changed = true
		}
	}
	if changed {
		r.storage.SetContactProfile(sender, updated)
	}
}

// resolveQuote looks the quoted message up by (timestamp, author). If
// stored locally its attachments are reused; otherwise the quote is
// reconstructed from the pointer references the quoting message itself
// carries.
func (r *MessageReceiver) resolveQuote(q *protocol.Quote) *QuoteRecord {
	if q == nil {
		return nil
	}
	rec := &QuoteRecord{
		Timestamp: q.Timestamp,
		Author:    q.Author,
		Text:      q.Text,
	}
	if stored, ok := r.storage.MessageByTimestampAuthor(q.Timestamp, q.Author); ok {
		rec.QuotedMessageID = stored.ID
		rec.Text = stored.Text
		rec.Attachments = stored.Attachments
	} else {
		rec.Attachments = q.Attachments
	}
	return rec
}

// filterPreview discards previews with neither a title nor an image.
func (r *MessageReceiver) filterPreview(p *protocol.LinkPreview) *protocol.LinkPreview {
	if p == nil {
		return nil
	}
	if p.Title == "" && p.Image == nil {
		r.log.Debug("discarding empty link preview", zap.String("url", p.URL))
		return nil
	}
	return p
}

// detectMention scans for a literal @-tag of the user's own IDs, and
// also counts quoting the user's own message as a mention.
func (r *MessageReceiver) detectMention(text string, quote *QuoteRecord, ownBlindedID string) bool {
	own := r.storage.UserPublicKey()
	if strings.Contains(text, "@"+own) {
		return true
	}
	if ownBlindedID != "" && strings.Contains(text, "@"+ownBlindedID) {
		return true
	}
	if quote != nil && (quote.Author == own || (ownBlindedID != "" && quote.Author == ownBlindedID)) {
		return true
	}
	return false
}

// truncateForSender caps text at the sender's subscription-tier
// maximum before persistence, never after.
func (r *MessageReceiver) truncateForSender(text, sender string) string {
	max := protocol.MaxTextLengthStandard
	if r.storage.SenderIsPro(sender) {
		max = protocol.MaxTextLengthPro
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}

func (r *MessageReceiver) applyReaction(sender string, reaction protocol.Reaction) error {
	target, ok := r.storage.MessageByTimestampAuthor(reaction.Timestamp, reaction.Author)
	if !ok {
		return nil
	}
	switch reaction.Action {
	case protocol.ReactionAdd:
		return r.storage.AddReaction(ReactionRecord{
			MessageID: target.ID,
			Emoji:     reaction.Emoji,
			Author:    sender,
			Count:     1,
		})
	case protocol.ReactionRemove:
		return r.storage.RemoveReaction(target.ID, reaction.Emoji, sender)
	}
	return nil
}

func (r *MessageReceiver) handleExpirationTimerUpdate(msg *protocol.Message, update protocol.ExpirationTimerUpdate, rc ReceiveContext) error {
	if rc.CommunityServer != "" {
		return nil
	}
	threadID, err := r.storage.GetOrCreateThread(rc.Conversation)
	if err != nil {
		return protocol.ErrNoThread
	}
	cfg := protocol.ExpirationConfig{
		Mode:      update.Mode,
		Duration:  update.Duration,
		UpdatedAt: msg.SentTimestamp,
	}
	if err := r.storage.SetExpirationConfig(threadID, cfg); err != nil {
		return err
	}
	r.expiration.InsertExpirationTimerMessage(threadID, msg.Sender, update.Mode, update.Duration, msg.SentTimestamp)
	return nil
}

// handleUnsendRequest retracts a message. Only the original author may
// unsend; a mismatched sender is dropped silently.
func (r *MessageReceiver) handleUnsendRequest(msg *protocol.Message, unsend protocol.UnsendRequest) error {
	if msg.Sender != unsend.Author {
		r.log.Debug("dropping unsend from non-author",
			zap.String("sender", msg.Sender))
		return nil
	}
	target, ok := r.storage.MessageByTimestampAuthor(unsend.Timestamp, unsend.Author)
	if !ok {
		return nil
	}
	return r.storage.DeleteMessage(target.ID)
}

// bannerFor derives the disappearing-message migration marker: legacy
// when the sender only knows the old-style timer field, updated when it
// carries the typed expiration fields.
func bannerFor(c *protocol.Content) ExpirationBanner {
	if c.HasExpirationMode {
		return BannerUpdated
	}
	if c.DataMessage != nil && c.DataMessage.LegacyExpireTimer > 0 {
		return BannerLegacy
	}
	return BannerNone
}

// messageFromContent lifts wire content into a Message. Exactly one
// payload must be set; typed expiration fields with no payload are an
// expiration timer update.
func messageFromContent(c *protocol.Content) (*protocol.Message, error) {
	msg := &protocol.Message{}
	switch {
	case c.DataMessage != nil:
		dm := c.DataMessage
		msg.Kind = protocol.VisibleMessage{
			Text:        dm.Body,
			Profile:     dm.Profile,
			Quote:       dm.Quote,
			Preview:     dm.Preview,
			Attachments: dm.Attachments,
			Reaction:    dm.Reaction,
			SyncTarget:  dm.SyncTarget,
		}
	case c.Typing != nil:
		msg.Kind = *c.Typing
	case c.Receipt != nil:
		msg.Kind = *c.Receipt
	case c.Unsend != nil:
		msg.Kind = *c.Unsend
	case c.MessageRequest != nil:
		msg.Kind = *c.MessageRequest
	case c.Call != nil:
		msg.Kind = *c.Call
	case c.DataExtraction != nil:
		msg.Kind = *c.DataExtraction
	case c.GroupUpdate != nil:
		msg.Kind = *c.GroupUpdate
	case c.HasExpirationMode:
		msg.Kind = protocol.ExpirationTimerUpdate{
			Mode:     c.ExpirationMode,
			Duration: time.Duration(c.ExpirationTimer) * time.Second,
		}
	default:
		return nil, protocol.ErrInvalidMessage
	}
	return msg, nil
}
