package network

import (
	"context"
	"crypto/ed25519"

	"go.uber.org/zap"

	"github.com/MurmurLink/murmur-core/pkg/protocol"
)

// HandleGroupControl verifies and forwards one inbound group control
// command. Signed commands are checked against the group's own ED25519
// public key before anything reaches the group-state manager. An
// invalid invite is a hard error since fabricated invites can deceive
// their target; every other invalid command is logged and dropped,
// group state self-heals on the next valid control message.
func (r *MessageReceiver) HandleGroupControl(ctx context.Context, msg *protocol.Message, update protocol.GroupUpdated) error {
	groupPub, err := groupSigningKey(update.GroupID)
	if err != nil {
		return protocol.ErrInvalidClosedGroupUpdate
	}

	switch cmd := update.Command.(type) {
	case protocol.GroupInvite:
		if !ed25519.Verify(groupPub, cmd.SigningPayload(msg.SentTimestamp), cmd.AdminSignature) {
			return protocol.ErrInvalidClosedGroupUpdate
		}
		r.forward(msg, update.Command, func(ctx context.Context) error {
			return r.groups.HandleInvite(ctx, update.GroupID, cmd, msg.SentTimestamp)
		})
		return nil

	case protocol.GroupInviteResponse:
		r.forward(msg, update.Command, func(ctx context.Context) error {
			return r.groups.HandleInviteResponse(ctx, update.GroupID, msg.Sender, cmd.Approved)
		})
		return nil

	case protocol.GroupPromote:
		if !ed25519.Verify(groupPub, cmd.SigningPayload(msg.SentTimestamp), cmd.AdminSignature) {
			r.dropInvalid(msg, update.Command)
			return nil
		}
		r.forward(msg, update.Command, func(ctx context.Context) error {
			return r.groups.HandlePromote(ctx, update.GroupID, cmd, msg.SentTimestamp)
		})
		return nil

	case protocol.GroupInfoChange:
		if !ed25519.Verify(groupPub, cmd.SigningPayload(msg.SentTimestamp), cmd.AdminSignature) {
			r.dropInvalid(msg, update.Command)
			return nil
		}
		r.forward(msg, update.Command, func(ctx context.Context) error {
			return r.groups.HandleInfoChange(ctx, update.GroupID, cmd, msg.SentTimestamp)
		})
		return nil

	case protocol.GroupMemberChange:
		if !ed25519.Verify(groupPub, cmd.SigningPayload(msg.SentTimestamp), cmd.AdminSignature) {
			r.dropInvalid(msg, update.Command)
			return nil
		}
		r.forward(msg, update.Command, func(ctx context.Context) error {
			return r.groups.HandleMemberChange(ctx, update.GroupID, cmd, msg.SentTimestamp)
		})
		return nil

	case protocol.GroupMemberLeft:
		r.forward(msg, update.Command, func(ctx context.Context) error {
			return r.groups.HandleMemberLeft(ctx, update.GroupID, msg.Sender, msg.SentTimestamp)
		})
		return nil

	case protocol.GroupMemberLeftNotification:
		// Advisory only. The leaver never held the group signing key,
		// so there is no signature to check.
		r.forward(msg, update.Command, func(ctx context.Context) error {
			return r.groups.HandleMemberLeftNotification(ctx, update.GroupID, msg.Sender, msg.SentTimestamp)
		})
		return nil

	case protocol.GroupDeleteMemberContent:
		if !ed25519.Verify(groupPub, cmd.SigningPayload(msg.SentTimestamp), cmd.AdminSignature) {
			r.dropInvalid(msg, update.Command)
			return nil
		}
		r.forward(msg, update.Command, func(ctx context.Context) error {
			return r.groups.HandleDeleteMemberContent(ctx, update.GroupID, cmd, msg.SentTimestamp)
		})
		return nil

	default:
		return protocol.ErrInvalidClosedGroupUpdate
	}
}

// forward hands a verified command to the group-state manager as a
// detached task. Failures are terminal-logged; the manager owns retry.
func (r *MessageReceiver) forward(msg *protocol.Message, cmd protocol.GroupCommand, handle func(context.Context) error) {
	go func() {
		if err := handle(context.Background()); err != nil {
			r.log.Warn("group control handling failed",
				zap.String("command", protocol.CommandName(cmd)),
				zap.String("sender", msg.Sender),
				zap.Error(err))
		}
	}()
}

func (r *MessageReceiver) dropInvalid(msg *protocol.Message, cmd protocol.GroupCommand) {
	r.log.Warn("dropping group control command with invalid signature",
		zap.String("command", protocol.CommandName(cmd)),
		zap.String("sender", msg.Sender))
}

// groupSigningKey extracts the group's ED25519 public key from its
// 0x03-prefixed account ID.
func groupSigningKey(groupID string) (ed25519.PublicKey, error) {
	prefix, pub, err := protocol.DecodeAccountID(groupID)
	if err != nil {
		return nil, err
	}
	if prefix != protocol.PrefixGroup {
		return nil, protocol.ErrInvalidClosedGroupUpdate
	}
	return ed25519.PublicKey(pub), nil
}
