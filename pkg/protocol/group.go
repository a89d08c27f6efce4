package protocol

import "encoding/binary"

// GroupCommand is the closed set of closed-group control commands.
// Each signed command defines its own canonical payload: a domain tag,
// the relevant fields, and the message timestamp. An admin signature is
// an ED25519 signature by the group's signing key over that payload.
type GroupCommand interface {
	commandName() string
}

// Domain tags keep signatures from one command kind from being replayed
// as another.
const (
	signingDomainInvite        = "GroupInvite"
	signingDomainPromote       = "GroupPromote"
	signingDomainInfoChange    = "GroupInfoChange"
	signingDomainMemberChange  = "GroupMemberChange"
	signingDomainDeleteContent = "GroupDeleteMemberContent"
)

// GroupInvite invites an account into the group. Fabricated invites can
// deceive targets, so an unsigned or invalid invite is rejected outright.
type GroupInvite struct {
	Name           string
	Invitee        string // account ID of the invited member
	MemberAuthData []byte // swarm auth material for the new member
	AdminSignature []byte
}

// GroupInviteResponse is the invitee's answer; it carries no admin
// signature because it originates from the member, not the group.
type GroupInviteResponse struct {
	Approved bool
}

// GroupPromote hands a member the group's signing material.
type GroupPromote struct {
	Name           string
	Member         string
	AdminSignature []byte
}

// GroupInfoChangeKind enumerates what an info change touches.
type GroupInfoChangeKind int

const (
	GroupInfoName GroupInfoChangeKind = iota + 1
	GroupInfoAvatar
	GroupInfoExpiration
)

// GroupInfoChange updates group metadata.
type GroupInfoChange struct {
	Kind           GroupInfoChangeKind
	Name           string
	Expiration     uint32 // seconds, for GroupInfoExpiration
	AdminSignature []byte
}

// GroupMemberChangeKind enumerates membership transitions.
type GroupMemberChangeKind int

const (
	GroupMembersAdded GroupMemberChangeKind = iota + 1
	GroupMembersRemoved
	GroupMembersPromoted
)

// GroupMemberChange announces members being added, removed or promoted.
type GroupMemberChange struct {
	Kind           GroupMemberChangeKind
	Members        []string
	HistoryShared  bool
	AdminSignature []byte
}

// GroupMemberLeft is the leaver's departure record. It carries no
// signature; the sender is identified by the sealed envelope alone.
type GroupMemberLeft struct{}

// GroupMemberLeftNotification is advisory only: a member announcing
// their own departure never held the group's signing key, so no
// signature is required or checked.
type GroupMemberLeftNotification struct{}

// GroupDeleteMemberContent removes a member's messages from the group.
type GroupDeleteMemberContent struct {
	Members        []string
	MessageHashes  []string
	AdminSignature []byte
}

func (GroupInvite) commandName() string                 { return "invite" }
func (GroupInviteResponse) commandName() string         { return "invite-response" }
func (GroupPromote) commandName() string                { return "promote" }
func (GroupInfoChange) commandName() string             { return "info-change" }
func (GroupMemberChange) commandName() string           { return "member-change" }
func (GroupMemberLeft) commandName() string             { return "member-left" }
func (GroupMemberLeftNotification) commandName() string { return "member-left-notification" }
func (GroupDeleteMemberContent) commandName() string    { return "delete-member-content" }

// CommandName names the command variant for logging.
func CommandName(c GroupCommand) string {
	if c == nil {
		return "unknown"
	}
	return c.commandName()
}

// ===== CANONICAL SIGNING PAYLOADS =====

// SigningPayload encodes the invite fields the admin signature covers.
func (c GroupInvite) SigningPayload(timestamp uint64) []byte {
	return signingPayload(signingDomainInvite, timestamp, []byte(c.Invitee))
}

// SigningPayload encodes the promote fields the admin signature covers.
func (c GroupPromote) SigningPayload(timestamp uint64) []byte {
	return signingPayload(signingDomainPromote, timestamp, []byte(c.Member))
}

// SigningPayload encodes the info-change fields the admin signature
// covers.
func (c GroupInfoChange) SigningPayload(timestamp uint64) []byte {
	var fields []byte
	fields = append(fields, byte(c.Kind))
	fields = append(fields, []byte(c.Name)...)
	var exp [4]byte
	binary.BigEndian.PutUint32(exp[:], c.Expiration)
	fields = append(fields, exp[:]...)
	return signingPayload(signingDomainInfoChange, timestamp, fields)
}

// SigningPayload encodes the member-change fields the admin signature
// covers. Member order is part of the payload.
func (c GroupMemberChange) SigningPayload(timestamp uint64) []byte {
	var fields []byte
	fields = append(fields, byte(c.Kind))
	for _, m := range c.Members {
		fields = append(fields, []byte(m)...)
	}
	return signingPayload(signingDomainMemberChange, timestamp, fields)
}

// SigningPayload encodes the delete-content fields the admin signature
// covers.
func (c GroupDeleteMemberContent) SigningPayload(timestamp uint64) []byte {
	var fields []byte
	for _, m := range c.Members {
		fields = append(fields, []byte(m)...)
	}
	for _, h := range c.MessageHashes {
		fields = append(fields, []byte(h)...)
	}
	return signingPayload(signingDomainDeleteContent, timestamp, fields)
}

func signingPayload(domain string, timestamp uint64, fields []byte) []byte {
	buf := make([]byte, 0, len(domain)+len(fields)+8)
	buf = append(buf, []byte(domain)...)
	buf = append(buf, fields...)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], timestamp)
	buf = append(buf, ts[:]...)
	return buf
}
