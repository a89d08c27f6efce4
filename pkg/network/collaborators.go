// Package network implements the message dispatch and receive protocol
// layer: envelope building, per-destination encryption, namespace
// fan-out sends, the receive-side outdated gate, visible-message
// materialization, and the signature-verified group control pipeline.
//
// All external state lives behind the collaborator interfaces below.
// The core never mutates shared state except through them; they are
// assumed to provide single-writer, strongly consistent semantics.
package network

import (
	"context"
	"crypto/ed25519"
	"time"

	"github.com/MurmurLink/murmur-core/pkg/crypto"
	"github.com/MurmurLink/murmur-core/pkg/protocol"
)

// Storage is the persistent message/thread store.
type Storage interface {
	// Identity and profile.
	UserIdentity() (*crypto.IdentityKeyPair, error)
	UserPublicKey() string
	UserProfile() protocol.Profile
	SenderIsPro(account string) bool

	// Threads.
	ThreadID(conversation string) (int64, error)
	GetOrCreateThread(conversation string) (int64, error)
	BlindedThreadID(blindedID string) (int64, bool)
	MergeThreads(fromThreadID, toThreadID int64) error

	// Expiration configuration.
	ExpirationConfig(threadID int64) (*protocol.ExpirationConfig, error)
	SetExpirationConfig(threadID int64, cfg protocol.ExpirationConfig) error

	// Outgoing bookkeeping.
	MarkSent(msg *protocol.Message)
	MarkSentFailed(msg *protocol.Message, sendErr error)
	MarkSyncFailed(msg *protocol.Message, sendErr error)
	ClearErrorState(msg *protocol.Message)
	RecordReceivedTimestamp(timestamp uint64)

	// Incoming persistence.
	PersistMessage(rec *IncomingRecord) (int64, error)
	MessageByTimestampAuthor(timestamp uint64, author string) (*StoredMessageRef, bool)
	DeleteMessage(messageID int64) error
	ScrubExpirationMetadata(messageID int64)
	AttachmentAutoDownload(threadID int64) bool
	InsertApprovalMarker(threadID int64, sender string, timestamp uint64)

	// Contacts.
	ContactProfile(account string) (protocol.Profile, bool)
	SetContactProfile(account string, p protocol.Profile)

	// Reactions.
	ReplaceReactions(messageID int64, recs []ReactionRecord) error
	AddReaction(rec ReactionRecord) error
	RemoveReaction(messageID int64, emoji, author string) error
}

// ConversationVariant distinguishes config trees on the receive gate.
type ConversationVariant int

const (
	VariantContact ConversationVariant = iota
	VariantLegacyGroup
	VariantGroup
	VariantCommunity
)

// ConfigFactory exposes the synced configuration trees.
type ConfigFactory interface {
	ConversationVisible(conversation string, variant ConversationVariant) bool
	ChangeWatermark(conversation string, variant ConversationVariant) uint64

	SetApprovedMe(account string, approved bool) (firstTime bool)
	SetApproved(account string, approved bool)
	BlindedIDsFor(account string) []string

	GroupAuth(groupID string) (*SwarmAuth, error)
	GroupEncryptionKey(groupID string) ([32]byte, error)
	LegacyGroupKeyPair(groupPublicKey string) (*crypto.X25519KeyPair, error)

	CommunityCapabilities(server string) []string
	CommunityServerPublicKey(server string) ([]byte, error)
}

// SwarmAuth is the signing material a swarm requires for a namespace
// send: the user's own identity for default namespaces, the group's for
// group-authenticated ones.
type SwarmAuth struct {
	AccountID         string
	Ed25519PrivateKey ed25519.PrivateKey
}

// SnodeTransport delivers envelopes to storage-server swarms. The
// implementation owns routing, retries live with the external job
// system.
type SnodeTransport interface {
	SendMessage(ctx context.Context, msg *protocol.SnodeMessage, auth *SwarmAuth, ns protocol.Namespace) (hash string, err error)
	DeleteMessages(ctx context.Context, auth *SwarmAuth, serverHashes []string) error
}

// CommunityPost is a message posted to a community room.
type CommunityPost struct {
	Server      string
	Room        string
	WhisperTo   string
	WhisperMods bool
	FileIDs     []string
	Data        []byte
}

// CommunityPostResult carries the server-assigned ID and timestamp. The
// community server, not the client clock, is the ordering authority.
type CommunityPostResult struct {
	ServerID        int64
	ServerTimestamp uint64
}

// CommunityClient is the external community HTTP client.
type CommunityClient interface {
	SendMessage(ctx context.Context, post *CommunityPost) (*CommunityPostResult, error)
	SendDirectMessage(ctx context.Context, server, blindedRecipient string, data []byte) (*CommunityPostResult, error)
}

// JobQueue is the durable background job system.
type JobQueue interface {
	EnqueueAttachmentDownload(messageID int64, att protocol.AttachmentPointer)
}

// GroupStateManager receives verified group control commands.
type GroupStateManager interface {
	HandleInvite(ctx context.Context, groupID string, invite protocol.GroupInvite, timestamp uint64) error
	HandleInviteResponse(ctx context.Context, groupID, member string, approved bool) error
	HandlePromote(ctx context.Context, groupID string, promote protocol.GroupPromote, timestamp uint64) error
	HandleInfoChange(ctx context.Context, groupID string, change protocol.GroupInfoChange, timestamp uint64) error
	HandleMemberChange(ctx context.Context, groupID string, change protocol.GroupMemberChange, timestamp uint64) error
	HandleMemberLeft(ctx context.Context, groupID, member string, timestamp uint64) error
	HandleMemberLeftNotification(ctx context.Context, groupID, member string, timestamp uint64) error
	HandleDeleteMemberContent(ctx context.Context, groupID string, cmd protocol.GroupDeleteMemberContent, timestamp uint64) error
}

// ExpirationManager owns disappearing-message timers.
type ExpirationManager interface {
	OnMessageSent(msg *protocol.Message)
	OnMessageReceived(messageID, threadID int64, cfg *protocol.ExpirationConfig)
	InsertExpirationTimerMessage(threadID int64, sender string, mode protocol.ExpirationMode, duration time.Duration, timestamp uint64)
}

// Broadcaster raises UI-facing events. Only failed 1:1 visible sends
// ever reach it.
type Broadcaster interface {
	MessageFailed(msg *protocol.Message, threadID int64)
}

// ExpirationBanner is the migration-compatibility marker attached to
// inbound messages that carry disappearing-timer fields.
type ExpirationBanner int

const (
	BannerNone ExpirationBanner = iota
	BannerLegacy
	BannerUpdated
)

// QuoteRecord is a resolved quote ready for persistence.
type QuoteRecord struct {
	QuotedMessageID int64 // 0 when the quoted message is not stored locally
	Timestamp       uint64
	Author          string
	Text            string
	Attachments     []protocol.AttachmentPointer
}

// IncomingRecord is a materialized inbound visible message.
type IncomingRecord struct {
	ThreadID          int64
	Sender            string
	Timestamp         uint64
	ServerHash        string
	CommunityServerID int64
	Text              string
	Quote             *QuoteRecord
	Preview           *protocol.LinkPreview
	Attachments       []protocol.AttachmentPointer
	IsMention         bool
	Banner            ExpirationBanner
}

// StoredMessageRef is a lightweight view of a persisted message.
type StoredMessageRef struct {
	ID          int64
	ThreadID    int64
	Author      string
	Text        string
	ServerHash  string
	Attachments []protocol.AttachmentPointer
	Outgoing    bool
}
