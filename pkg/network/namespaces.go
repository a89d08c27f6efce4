package network

import "github.com/MurmurLink/murmur-core/pkg/protocol"

// NamespacePolicy decides which swarm namespaces a destination should
// be sent to. The legacy-group fallback condition encodes a migration
// window between swarm protocol versions, so it is pluggable rather
// than hard-coded.
type NamespacePolicy interface {
	NamespacesFor(dst protocol.Destination) []protocol.Namespace
}

// MigrationNamespacePolicy is the conservative default: legacy closed
// groups fan out to both the unauthenticated legacy namespace and the
// default namespace while the network migrates.
type MigrationNamespacePolicy struct {
	// LegacyGroupsMigrated drops the default-namespace duplicate once
	// the network's advertised capabilities say every swarm understands
	// the legacy namespace.
	LegacyGroupsMigrated bool
}

// NamespacesFor implements NamespacePolicy. Community shapes have no
// namespaces; callers must not route them here.
func (p *MigrationNamespacePolicy) NamespacesFor(dst protocol.Destination) []protocol.Namespace {
	switch dst.(type) {
	case protocol.ContactDestination:
		return []protocol.Namespace{protocol.NamespaceDefault}
	case protocol.LegacyClosedGroupDestination:
		if p.LegacyGroupsMigrated {
			return []protocol.Namespace{protocol.NamespaceLegacyClosedGroup}
		}
		return []protocol.Namespace{protocol.NamespaceLegacyClosedGroup, protocol.NamespaceDefault}
	case protocol.ClosedGroupDestination:
		return []protocol.Namespace{protocol.NamespaceClosedGroupMessages}
	default:
		return nil
	}
}
