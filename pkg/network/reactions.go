package network

import "github.com/MurmurLink/murmur-core/pkg/protocol"

// maxReactorRows caps how many reactor rows a single emoji materializes
// locally. The server count still reflects everyone.
const maxReactorRows = 5

// ServerReaction is one emoji's authoritative state as reported by a
// community server poll.
type ServerReaction struct {
	Emoji    string
	Count    int
	Reactors []string // server-ordered reactor IDs, possibly truncated
	You      bool     // server already counts the current user
	Index    int      // server ordering position
}

// PendingReaction is a local optimistic reaction not yet confirmed by
// the server.
type PendingReaction struct {
	Emoji  string
	Action protocol.ReactionAction
}

// ReactionRecord is one materialized reactor row. Count carries the
// emoji's server total on the first row only.
type ReactionRecord struct {
	MessageID int64
	Emoji     string
	Author    string
	Count     int
	SortID    int
}

// ConstructReactionRecords reconciles a server reaction map with the
// user's pending local actions into reaction rows for one message.
//
// A pending add for an emoji the server already counts the user under
// must not bump the count again; a pending add the server has not seen
// yet does. Reactor rows are capped at maxReactorRows, or one less when
// the user's own reaction needs a synthetic row appended because the
// server's (truncated) reactor list does not include them.
func ConstructReactionRecords(messageID int64, ownID string, serverReactions []ServerReaction, pending []PendingReaction) []ReactionRecord {
	var out []ReactionRecord
	sortID := 0

	for _, sr := range serverReactions {
		count := sr.Count
		you := sr.You

		for _, p := range pending {
			if p.Emoji != sr.Emoji {
				continue
			}
			switch p.Action {
			case protocol.ReactionAdd:
				// Only adjust when the server has not seen the add yet.
				if !you {
					you = true
					count++
				}
			case protocol.ReactionRemove:
				if you {
					you = false
					if count > 0 {
						count--
					}
				}
			}
		}
		if count <= 0 {
			continue
		}

		selfListed := false
		for _, reactor := range sr.Reactors {
			if reactor == ownID {
				selfListed = true
				break
			}
		}
		needSynthetic := you && !selfListed

		limit := maxReactorRows
		if needSynthetic {
			limit = maxReactorRows - 1
		}
		reactors := sr.Reactors
		if len(reactors) > limit {
			reactors = reactors[:limit]
		}

		first := true
		for _, reactor := range reactors {
			rec := ReactionRecord{
				MessageID: messageID,
				Emoji:     sr.Emoji,
				Author:    reactor,
				SortID:    sortID,
			}
			if first {
				rec.Count = count
				first = false
			}
			out = append(out, rec)
			sortID++
		}
		if needSynthetic {
			rec := ReactionRecord{
				MessageID: messageID,
				Emoji:     sr.Emoji,
				Author:    ownID,
				SortID:    sortID,
			}
			if first {
				rec.Count = count
			}
			out = append(out, rec)
			sortID++
		}
	}
	return out
}

// ReconcileCommunityReactions replaces a message's reaction rows from a
// community poll result.
func (r *MessageReceiver) ReconcileCommunityReactions(messageID int64, ownBlindedID string, serverReactions []ServerReaction, pending []PendingReaction) error {
	recs := ConstructReactionRecords(messageID, ownBlindedID, serverReactions, pending)
	return r.storage.ReplaceReactions(messageID, recs)
}
