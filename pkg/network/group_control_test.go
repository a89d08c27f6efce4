package network

import (
	"context"
	"crypto/ed25519"
	"errors"
	"testing"
	"time"

	"github.com/MurmurLink/murmur-core/pkg/crypto"
	"github.com/MurmurLink/murmur-core/pkg/protocol"
)

// testGroup is a closed group with its signing key, for forging and
// verifying control commands.
type testGroup struct {
	id      string
	signing *crypto.IdentityKeyPair
}

func newTestGroup(t *testing.T) testGroup {
	t.Helper()
	signer := mustIdentity(t)
	return testGroup{
		id:      protocol.EncodeAccountID(protocol.PrefixGroup, signer.EdPublic),
		signing: signer,
	}
}

func (g testGroup) sign(payload []byte) []byte {
	return ed25519.Sign(g.signing.EdPrivate, payload)
}

// waitForward expects the named command to reach the group manager.
func waitForward(t *testing.T, groups *fakeGroups, want string) {
	t.Helper()
	select {
	case got := <-groups.notify:
		if got != want {
			t.Fatalf("forwarded command = %q, want %q", got, want)
		}
	case <-time.After(time.Second):
		t.Fatalf("command %q never reached the group manager", want)
	}
}

// expectNoForward asserts nothing reaches the group manager.
func expectNoForward(t *testing.T, groups *fakeGroups) {
	t.Helper()
	select {
	case got := <-groups.notify:
		t.Fatalf("unexpected command %q reached the group manager", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGroupInviteVerified(t *testing.T) {
	bob := mustIdentity(t)
	receiver, _, _, _, groups, _ := testReceiver(bob)
	group := newTestGroup(t)

	invite := protocol.GroupInvite{
		Name:    "book club",
		Invitee: bob.AccountID(),
	}
	msg := &protocol.Message{Sender: "admin", SentTimestamp: 1234}
	invite.AdminSignature = group.sign(invite.SigningPayload(msg.SentTimestamp))

	err := receiver.HandleGroupControl(context.Background(), msg, protocol.GroupUpdated{GroupID: group.id, Command: invite})
	if err != nil {
		t.Fatalf("valid invite rejected: %v", err)
	}
	waitForward(t, groups, "invite")
	t.Log("✅ Admin-signed invite forwarded to the group manager")
}

func TestGroupInviteInvalidSignatureRejected(t *testing.T) {
	bob := mustIdentity(t)
	receiver, _, _, _, groups, _ := testReceiver(bob)
	group := newTestGroup(t)
	forger := newTestGroup(t)

	invite := protocol.GroupInvite{Name: "trap", Invitee: bob.AccountID()}
	msg := &protocol.Message{Sender: "attacker", SentTimestamp: 1}
	invite.AdminSignature = forger.sign(invite.SigningPayload(msg.SentTimestamp))

	err := receiver.HandleGroupControl(context.Background(), msg, protocol.GroupUpdated{GroupID: group.id, Command: invite})
	if !errors.Is(err, protocol.ErrInvalidClosedGroupUpdate) {
		t.Fatalf("forged invite must hard-fail, got %v", err)
	}
	expectNoForward(t, groups)
	t.Log("✅ Forged invite rejected before reaching group state")
}

func TestGroupInviteSignatureBindsTimestamp(t *testing.T) {
	bob := mustIdentity(t)
	receiver, _, _, _, groups, _ := testReceiver(bob)
	group := newTestGroup(t)

	invite := protocol.GroupInvite{Invitee: bob.AccountID()}
	invite.AdminSignature = group.sign(invite.SigningPayload(1000))

	// Replaying the same signed invite under a different timestamp must
	// fail verification.
	msg := &protocol.Message{Sender: "admin", SentTimestamp: 2000}
	err := receiver.HandleGroupControl(context.Background(), msg, protocol.GroupUpdated{GroupID: group.id, Command: invite})
	if !errors.Is(err, protocol.ErrInvalidClosedGroupUpdate) {
		t.Fatalf("replayed invite must fail, got %v", err)
	}
	expectNoForward(t, groups)
	t.Log("✅ Invite signature bound to the message timestamp")
}

func TestGroupSignedCommandsDropOnBadSignature(t *testing.T) {
	bob := mustIdentity(t)
	group := newTestGroup(t)
	forged := []byte("not a signature")

	cases := []struct {
		name string
		cmd  protocol.GroupCommand
	}{
		{"promote", protocol.GroupPromote{Member: "m", AdminSignature: forged}},
		{"info change", protocol.GroupInfoChange{Kind: protocol.GroupInfoName, Name: "x", AdminSignature: forged}},
		{"member change", protocol.GroupMemberChange{Kind: protocol.GroupMembersAdded, Members: []string{"m"}, AdminSignature: forged}},
		{"delete content", protocol.GroupDeleteMemberContent{Members: []string{"m"}, AdminSignature: forged}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			receiver, _, _, _, groups, _ := testReceiver(bob)
			msg := &protocol.Message{Sender: "x", SentTimestamp: 1}
			// Dropped silently: group state self-heals on the next valid
			// command, so no hard error surfaces.
			if err := receiver.HandleGroupControl(context.Background(), msg, protocol.GroupUpdated{GroupID: group.id, Command: tc.cmd}); err != nil {
				t.Fatalf("expected silent drop, got %v", err)
			}
			expectNoForward(t, groups)
		})
	}
	t.Log("✅ Invalid non-invite signatures dropped without hard errors")
}

func TestGroupSignedCommandsForwardWhenValid(t *testing.T) {
	bob := mustIdentity(t)
	group := newTestGroup(t)
	ts := uint64(555)

	promote := protocol.GroupPromote{Name: "g", Member: "m"}
	promote.AdminSignature = group.sign(promote.SigningPayload(ts))
	info := protocol.GroupInfoChange{Kind: protocol.GroupInfoName, Name: "renamed"}
	info.AdminSignature = group.sign(info.SigningPayload(ts))
	members := protocol.GroupMemberChange{Kind: protocol.GroupMembersRemoved, Members: []string{"m1", "m2"}}
	members.AdminSignature = group.sign(members.SigningPayload(ts))
	del := protocol.GroupDeleteMemberContent{Members: []string{"m1"}, MessageHashes: []string{"h1"}}
	del.AdminSignature = group.sign(del.SigningPayload(ts))

	cases := []struct {
		want string
		cmd  protocol.GroupCommand
	}{
		{"promote", promote},
		{"info-change", info},
		{"member-change", members},
		{"delete-member-content", del},
	}
	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			receiver, _, _, _, groups, _ := testReceiver(bob)
			msg := &protocol.Message{Sender: "admin", SentTimestamp: ts}
			if err := receiver.HandleGroupControl(context.Background(), msg, protocol.GroupUpdated{GroupID: group.id, Command: tc.cmd}); err != nil {
				t.Fatalf("valid %s rejected: %v", tc.want, err)
			}
			waitForward(t, groups, tc.want)
		})
	}
	t.Log("✅ All admin-signed commands verified and forwarded")
}

func TestGroupUnsignedCommandsForward(t *testing.T) {
	bob := mustIdentity(t)
	group := newTestGroup(t)

	cases := []struct {
		want string
		cmd  protocol.GroupCommand
	}{
		{"invite-response", protocol.GroupInviteResponse{Approved: true}},
		{"member-left", protocol.GroupMemberLeft{}},
		{"member-left-notification", protocol.GroupMemberLeftNotification{}},
	}
	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			receiver, _, _, _, groups, _ := testReceiver(bob)
			msg := &protocol.Message{Sender: "member", SentTimestamp: 9}
			if err := receiver.HandleGroupControl(context.Background(), msg, protocol.GroupUpdated{GroupID: group.id, Command: tc.cmd}); err != nil {
				t.Fatalf("unsigned %s rejected: %v", tc.want, err)
			}
			waitForward(t, groups, tc.want)
		})
	}
	t.Log("✅ Member-originated commands forwarded without signatures")
}

func TestGroupControlRequiresGroupPrefix(t *testing.T) {
	bob := mustIdentity(t)
	receiver, _, _, _, groups, _ := testReceiver(bob)
	wrongPrefix := mustIdentity(t).AccountID() // standard prefix

	msg := &protocol.Message{Sender: "x", SentTimestamp: 1}
	err := receiver.HandleGroupControl(context.Background(), msg, protocol.GroupUpdated{
		GroupID: wrongPrefix,
		Command: protocol.GroupMemberLeft{},
	})
	if !errors.Is(err, protocol.ErrInvalidClosedGroupUpdate) {
		t.Fatalf("non-group ID must fail, got %v", err)
	}
	expectNoForward(t, groups)
	t.Log("✅ Group control demands a group-prefixed account ID")
}
