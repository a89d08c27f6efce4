package protocol

import "fmt"

// Destination is the closed set of places a message can be sent.
// Selecting the wrong encryption path for a destination is a programming
// error, not a runtime condition: the snode builder panics on community
// shapes and the community dispatcher panics on swarm shapes.
type Destination interface {
	fmt.Stringer
	destination()
}

// ContactDestination is a 1:1 conversation with a standard account.
type ContactDestination struct {
	PublicKey string // hex account ID, 0x05 prefix
}

// LegacyClosedGroupDestination is a pre-migration closed group keyed by
// a shared X25519 encryption keypair.
type LegacyClosedGroupDestination struct {
	GroupPublicKey string
}

// ClosedGroupDestination is a signature-authenticated (v2) closed group.
type ClosedGroupDestination struct {
	PublicKey string // hex group ID, 0x03 prefix
}

// CommunityDestination is an open community room on an HTTP server.
type CommunityDestination struct {
	Server      string
	Room        string
	WhisperTo   string // blinded ID of a single recipient, or empty
	WhisperMods bool
	FileIDs     []string
}

// CommunityInboxDestination is an anonymous direct message delivered
// through a community server to a blinded recipient.
type CommunityInboxDestination struct {
	Server           string
	ServerPublicKey  string // hex, 32 bytes
	BlindedPublicKey string // hex account ID, 0x15 prefix
}

func (ContactDestination) destination()           {}
func (LegacyClosedGroupDestination) destination() {}
func (ClosedGroupDestination) destination()       {}
func (CommunityDestination) destination()         {}
func (CommunityInboxDestination) destination()    {}

func (d ContactDestination) String() string {
	return fmt.Sprintf("contact(%s)", shortID(d.PublicKey))
}

func (d LegacyClosedGroupDestination) String() string {
	return fmt.Sprintf("legacy-group(%s)", shortID(d.GroupPublicKey))
}

func (d ClosedGroupDestination) String() string {
	return fmt.Sprintf("group(%s)", shortID(d.PublicKey))
}

func (d CommunityDestination) String() string {
	tag := d.Server + "." + d.Room
	if d.WhisperTo != "" {
		tag += "." + shortID(d.WhisperTo)
	}
	if d.WhisperMods {
		tag += ".mods"
	}
	return fmt.Sprintf("community(%s)", tag)
}

func (d CommunityInboxDestination) String() string {
	return fmt.Sprintf("community-inbox(%s@%s)", shortID(d.BlindedPublicKey), d.Server)
}

// IsCommunityShape reports whether the destination is served by a
// community HTTP server rather than a storage-server swarm.
func IsCommunityShape(d Destination) bool {
	switch d.(type) {
	case CommunityDestination, CommunityInboxDestination:
		return true
	default:
		return false
	}
}

func shortID(id string) string {
	if len(id) > 16 {
		return id[:16]
	}
	return id
}
