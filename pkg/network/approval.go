package network

import (
	"go.uber.org/zap"

	"github.com/MurmurLink/murmur-core/pkg/protocol"
)

// HandleMessageRequestResponse reconciles an approval from another
// account: marks the sender approved-me, inserts a one-off marker on
// the first approval, and folds any anonymous blinded threads for the
// same now-deanonymized sender into the standard thread. If any thread
// was merged, the contact is retroactively marked approved too, since
// the relationship was previously only known under the blinded alias.
func (r *MessageReceiver) HandleMessageRequestResponse(msg *protocol.Message, resp protocol.MessageRequestResponse) error {
	if !resp.Approved {
		return nil
	}
	if msg.Sender == r.storage.UserPublicKey() {
		return nil
	}

	r.applyProfileUpdate(msg.Sender, resp.Profile, ReceiveContext{})

	firstTime := r.config.SetApprovedMe(msg.Sender, true)

	threadID, err := r.storage.GetOrCreateThread(msg.Sender)
	if err != nil {
		return protocol.ErrNoThread
	}
	if firstTime {
		r.storage.InsertApprovalMarker(threadID, msg.Sender, msg.SentTimestamp)
	}

	merged := false
	for _, blindedID := range r.config.BlindedIDsFor(msg.Sender) {
		blindedThreadID, ok := r.storage.BlindedThreadID(blindedID)
		if !ok {
			continue
		}
		if err := r.mergeThreads(blindedThreadID, threadID); err != nil {
			return err
		}
		merged = true
		r.log.Info("merged blinded thread into approved contact",
			zap.Int64("from", blindedThreadID),
			zap.Int64("to", threadID))
	}
	if merged {
		r.config.SetApproved(msg.Sender, true)
	}
	return nil
}

// mergeThreads re-points a blinded thread's messages at the standard
// thread and deletes the emptied thread. Equal or absent thread IDs are
// an invalid state, not a soft no-op.
func (r *MessageReceiver) mergeThreads(fromThreadID, toThreadID int64) error {
	if fromThreadID == 0 || toThreadID == 0 || fromThreadID == toThreadID {
		return protocol.ErrInvalidThreadMerge
	}
	return r.storage.MergeThreads(fromThreadID, toThreadID)
}
