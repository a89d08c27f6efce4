package network

import (
	"context"
	"sync"
	"time"

	"github.com/MurmurLink/murmur-core/pkg/crypto"
	"github.com/MurmurLink/murmur-core/pkg/protocol"
)

// fakeStorage is an in-memory Storage for tests.
type fakeStorage struct {
	mu sync.Mutex

	identity *crypto.IdentityKeyPair
	profile  protocol.Profile
	pro      map[string]bool

	threads    map[string]int64
	blinded    map[string]int64
	nextThread int64
	expiration map[int64]*protocol.ExpirationConfig

	persisted  []*IncomingRecord
	persistErr error

	sent       []*protocol.Message
	sentFailed []error
	syncFailed []error
	cleared    int
	received   []uint64

	byTimestamp  map[uint64]*StoredMessageRef
	deleted      []int64
	scrubbed     []int64
	markers      []int64
	merges       [][2]int64
	mergeErr     error
	autoDownload map[int64]bool

	contacts map[string]protocol.Profile

	addedReactions   []ReactionRecord
	removedReactions []string
	replaced         map[int64][]ReactionRecord
}

func newFakeStorage(identity *crypto.IdentityKeyPair) *fakeStorage {
	return &fakeStorage{
		identity:     identity,
		pro:          make(map[string]bool),
		threads:      make(map[string]int64),
		blinded:      make(map[string]int64),
		nextThread:   1,
		expiration:   make(map[int64]*protocol.ExpirationConfig),
		byTimestamp:  make(map[uint64]*StoredMessageRef),
		autoDownload: make(map[int64]bool),
		contacts:     make(map[string]protocol.Profile),
		replaced:     make(map[int64][]ReactionRecord),
	}
}

func (f *fakeStorage) UserIdentity() (*crypto.IdentityKeyPair, error) {
	if f.identity == nil {
		return nil, protocol.ErrNoUserED25519KeyPair
	}
	return f.identity, nil
}

func (f *fakeStorage) UserPublicKey() string {
	if f.identity == nil {
		return ""
	}
	return f.identity.AccountID()
}

func (f *fakeStorage) UserProfile() protocol.Profile { return f.profile }

func (f *fakeStorage) SenderIsPro(account string) bool { return f.pro[account] }

func (f *fakeStorage) ThreadID(conversation string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.threads[conversation]
	if !ok {
		return 0, protocol.ErrNoThread
	}
	return id, nil
}

func (f *fakeStorage) GetOrCreateThread(conversation string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.threads[conversation]; ok {
		return id, nil
	}
	id := f.nextThread
	f.nextThread++
	f.threads[conversation] = id
	return id, nil
}

func (f *fakeStorage) BlindedThreadID(blindedID string) (int64, bool) {
	id, ok := f.blinded[blindedID]
	return id, ok
}

func (f *fakeStorage) MergeThreads(fromThreadID, toThreadID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mergeErr != nil {
		return f.mergeErr
	}
	f.merges = append(f.merges, [2]int64{fromThreadID, toThreadID})
	return nil
}

func (f *fakeStorage) ExpirationConfig(threadID int64) (*protocol.ExpirationConfig, error) {
	return f.expiration[threadID], nil
}

func (f *fakeStorage) SetExpirationConfig(threadID int64, cfg protocol.ExpirationConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expiration[threadID] = &cfg
	return nil
}

// waitSent polls until at least n MarkSent calls were recorded.
func (f *fakeStorage) waitSent(n int, timeout time.Duration) int {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		count := len(f.sent)
		f.mu.Unlock()
		if count >= n {
			return count
		}
		time.Sleep(5 * time.Millisecond)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeStorage) MarkSent(msg *protocol.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
}

func (f *fakeStorage) MarkSentFailed(msg *protocol.Message, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentFailed = append(f.sentFailed, err)
}

func (f *fakeStorage) MarkSyncFailed(msg *protocol.Message, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncFailed = append(f.syncFailed, err)
}

func (f *fakeStorage) ClearErrorState(msg *protocol.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
}

func (f *fakeStorage) RecordReceivedTimestamp(timestamp uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, timestamp)
}

func (f *fakeStorage) PersistMessage(rec *IncomingRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.persistErr != nil {
		return 0, f.persistErr
	}
	f.persisted = append(f.persisted, rec)
	return int64(len(f.persisted)), nil
}

func (f *fakeStorage) MessageByTimestampAuthor(timestamp uint64, author string) (*StoredMessageRef, bool) {
	ref, ok := f.byTimestamp[timestamp]
	if !ok || ref.Author != author {
		return nil, false
	}
	return ref, true
}

func (f *fakeStorage) DeleteMessage(messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeStorage) ScrubExpirationMetadata(messageID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrubbed = append(f.scrubbed, messageID)
}

func (f *fakeStorage) AttachmentAutoDownload(threadID int64) bool { return f.autoDownload[threadID] }

func (f *fakeStorage) InsertApprovalMarker(threadID int64, sender string, timestamp uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markers = append(f.markers, threadID)
}

func (f *fakeStorage) ContactProfile(account string) (protocol.Profile, bool) {
	p, ok := f.contacts[account]
	return p, ok
}

func (f *fakeStorage) SetContactProfile(account string, p protocol.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contacts[account] = p
}

func (f *fakeStorage) ReplaceReactions(messageID int64, recs []ReactionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaced[messageID] = recs
	return nil
}

func (f *fakeStorage) AddReaction(rec ReactionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addedReactions = append(f.addedReactions, rec)
	return nil
}

func (f *fakeStorage) RemoveReaction(messageID int64, emoji, author string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removedReactions = append(f.removedReactions, emoji+":"+author)
	return nil
}

// fakeConfig is an in-memory ConfigFactory.
type fakeConfig struct {
	mu sync.Mutex

	hidden     map[string]bool
	watermarks map[string]uint64

	approvedMe map[string]bool
	approved   map[string]bool
	blindedIDs map[string][]string

	groupAuth    *SwarmAuth
	groupAuthErr error
	groupKey     [32]byte
	groupKeyErr  error
	legacyPair   *crypto.X25519KeyPair

	capabilities map[string][]string
	serverPubs   map[string][]byte
}

func newFakeConfig() *fakeConfig {
	return &fakeConfig{
		hidden:       make(map[string]bool),
		watermarks:   make(map[string]uint64),
		approvedMe:   make(map[string]bool),
		approved:     make(map[string]bool),
		blindedIDs:   make(map[string][]string),
		capabilities: make(map[string][]string),
		serverPubs:   make(map[string][]byte),
	}
}

func (f *fakeConfig) ConversationVisible(conversation string, variant ConversationVariant) bool {
	return !f.hidden[conversation]
}

func (f *fakeConfig) ChangeWatermark(conversation string, variant ConversationVariant) uint64 {
	return f.watermarks[conversation]
}

func (f *fakeConfig) SetApprovedMe(account string, approved bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	first := !f.approvedMe[account]
	f.approvedMe[account] = approved
	return first
}

func (f *fakeConfig) SetApproved(account string, approved bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approved[account] = approved
}

func (f *fakeConfig) BlindedIDsFor(account string) []string { return f.blindedIDs[account] }

func (f *fakeConfig) GroupAuth(groupID string) (*SwarmAuth, error) {
	if f.groupAuthErr != nil {
		return nil, f.groupAuthErr
	}
	return f.groupAuth, nil
}

func (f *fakeConfig) GroupEncryptionKey(groupID string) ([32]byte, error) {
	return f.groupKey, f.groupKeyErr
}

func (f *fakeConfig) LegacyGroupKeyPair(groupPublicKey string) (*crypto.X25519KeyPair, error) {
	if f.legacyPair == nil {
		return nil, protocol.ErrNoKeyPair
	}
	return f.legacyPair, nil
}

func (f *fakeConfig) CommunityCapabilities(server string) []string { return f.capabilities[server] }

func (f *fakeConfig) CommunityServerPublicKey(server string) ([]byte, error) {
	pub, ok := f.serverPubs[server]
	if !ok {
		return nil, protocol.ErrNoKeyPair
	}
	return pub, nil
}

// fakeSnode scripts per-namespace outcomes for the dispatcher race.
type snodeResult struct {
	hash  string
	err   error
	delay time.Duration
}

type snodeCall struct {
	msg  *protocol.SnodeMessage
	auth *SwarmAuth
	ns   protocol.Namespace
}

type fakeSnode struct {
	mu      sync.Mutex
	results map[protocol.Namespace]snodeResult
	calls   []snodeCall
	deletes [][]string
}

func newFakeSnode() *fakeSnode {
	return &fakeSnode{results: make(map[protocol.Namespace]snodeResult)}
}

func (f *fakeSnode) SendMessage(ctx context.Context, msg *protocol.SnodeMessage, auth *SwarmAuth, ns protocol.Namespace) (string, error) {
	f.mu.Lock()
	res := f.results[ns]
	f.calls = append(f.calls, snodeCall{msg: msg, auth: auth, ns: ns})
	f.mu.Unlock()
	if res.delay > 0 {
		time.Sleep(res.delay)
	}
	return res.hash, res.err
}

func (f *fakeSnode) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// waitCalls polls until at least n sends were recorded, for asserting
// on detached send paths.
func (f *fakeSnode) waitCalls(n int, timeout time.Duration) []snodeCall {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		if len(f.calls) >= n {
			out := append([]snodeCall(nil), f.calls...)
			f.mu.Unlock()
			return out
		}
		f.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]snodeCall(nil), f.calls...)
}

// waitDeletes polls until at least n delete batches were recorded.
func (f *fakeSnode) waitDeletes(n int, timeout time.Duration) [][]string {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		if len(f.deletes) >= n {
			out := append([][]string(nil), f.deletes...)
			f.mu.Unlock()
			return out
		}
		f.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.deletes...)
}

func (f *fakeSnode) DeleteMessages(ctx context.Context, auth *SwarmAuth, serverHashes []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, serverHashes)
	return nil
}

type fakeCommunity struct {
	mu      sync.Mutex
	result  *CommunityPostResult
	err     error
	posts   []*CommunityPost
	directs [][]byte
}

func (f *fakeCommunity) SendMessage(ctx context.Context, post *CommunityPost) (*CommunityPostResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, post)
	return f.result, f.err
}

func (f *fakeCommunity) SendDirectMessage(ctx context.Context, server, blindedRecipient string, data []byte) (*CommunityPostResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.directs = append(f.directs, data)
	return f.result, f.err
}

type fakeJobs struct {
	mu       sync.Mutex
	enqueued []protocol.AttachmentPointer
}

func (f *fakeJobs) EnqueueAttachmentDownload(messageID int64, att protocol.AttachmentPointer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, att)
}

// fakeGroups records forwarded commands and signals arrival, since the
// receiver forwards them on detached goroutines.
type fakeGroups struct {
	mu       sync.Mutex
	commands []string
	notify   chan string
}

func newFakeGroups() *fakeGroups {
	return &fakeGroups{notify: make(chan string, 16)}
}

func (f *fakeGroups) record(name string) error {
	f.mu.Lock()
	f.commands = append(f.commands, name)
	f.mu.Unlock()
	f.notify <- name
	return nil
}

func (f *fakeGroups) HandleInvite(ctx context.Context, groupID string, invite protocol.GroupInvite, ts uint64) error {
	return f.record("invite")
}

func (f *fakeGroups) HandleInviteResponse(ctx context.Context, groupID, member string, approved bool) error {
	return f.record("invite-response")
}

func (f *fakeGroups) HandlePromote(ctx context.Context, groupID string, promote protocol.GroupPromote, ts uint64) error {
	return f.record("promote")
}

func (f *fakeGroups) HandleInfoChange(ctx context.Context, groupID string, change protocol.GroupInfoChange, ts uint64) error {
	return f.record("info-change")
}

func (f *fakeGroups) HandleMemberChange(ctx context.Context, groupID string, change protocol.GroupMemberChange, ts uint64) error {
	return f.record("member-change")
}

func (f *fakeGroups) HandleMemberLeft(ctx context.Context, groupID, member string, ts uint64) error {
	return f.record("member-left")
}

func (f *fakeGroups) HandleMemberLeftNotification(ctx context.Context, groupID, member string, ts uint64) error {
	return f.record("member-left-notification")
}

func (f *fakeGroups) HandleDeleteMemberContent(ctx context.Context, groupID string, cmd protocol.GroupDeleteMemberContent, ts uint64) error {
	return f.record("delete-member-content")
}

type fakeExpiration struct {
	mu           sync.Mutex
	sentCount    int
	receivedIDs  []int64
	timerInserts int
}

// waitSentCount polls until the sent counter stops short of n or the
// timeout passes, then returns the final count.
func (f *fakeExpiration) waitSentCount(n int, timeout time.Duration) int {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		count := f.sentCount
		f.mu.Unlock()
		if count >= n {
			// Give a wrongly detached second start a moment to land.
			time.Sleep(20 * time.Millisecond)
			f.mu.Lock()
			count = f.sentCount
			f.mu.Unlock()
			return count
		}
		time.Sleep(5 * time.Millisecond)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sentCount
}

func (f *fakeExpiration) OnMessageSent(msg *protocol.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentCount++
}

func (f *fakeExpiration) OnMessageReceived(messageID, threadID int64, cfg *protocol.ExpirationConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receivedIDs = append(f.receivedIDs, messageID)
}

func (f *fakeExpiration) InsertExpirationTimerMessage(threadID int64, sender string, mode protocol.ExpirationMode, d time.Duration, ts uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timerInserts++
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	failed []*protocol.Message
}

func (f *fakeBroadcaster) MessageFailed(msg *protocol.Message, threadID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, msg)
}

// testSender wires a MessageSender over fresh fakes.
func testSender(identity *crypto.IdentityKeyPair) (*MessageSender, *fakeStorage, *fakeConfig, *fakeSnode, *fakeCommunity, *fakeExpiration, *fakeBroadcaster) {
	store := newFakeStorage(identity)
	cfg := newFakeConfig()
	snode := newFakeSnode()
	community := &fakeCommunity{}
	expiration := &fakeExpiration{}
	broadcaster := &fakeBroadcaster{}
	sender := NewMessageSender(SenderConfig{
		Storage:     store,
		Config:      cfg,
		Snode:       snode,
		Community:   community,
		Expiration:  expiration,
		Broadcaster: broadcaster,
	})
	return sender, store, cfg, snode, community, expiration, broadcaster
}

// testReceiver wires a MessageReceiver over fresh fakes.
func testReceiver(identity *crypto.IdentityKeyPair) (*MessageReceiver, *fakeStorage, *fakeConfig, *fakeJobs, *fakeGroups, *fakeExpiration) {
	store := newFakeStorage(identity)
	cfg := newFakeConfig()
	jobs := &fakeJobs{}
	groups := newFakeGroups()
	expiration := &fakeExpiration{}
	receiver := NewMessageReceiver(ReceiverConfig{
		Storage:    store,
		Config:     cfg,
		Jobs:       jobs,
		Groups:     groups,
		Expiration: expiration,
	})
	return receiver, store, cfg, jobs, groups, expiration
}
