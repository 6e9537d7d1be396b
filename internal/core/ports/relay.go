package ports

import (
	"context"

	"relaychat/internal/core/domain"
)

// Connection is one live transport session bound to an identity.
// Send must not block; it queues the event or fails.
type Connection interface {
	Identity() domain.UserID
	Send(event domain.Event) error
	Close(reason string) error
}

// Registration reports the effect of ConnectionRegistry.Register.
type Registration struct {
	Session    domain.SessionID
	Joined     bool       // identity was not present before
	Superseded Connection // previous connection for the identity, if any
}

type ConnectionRegistry interface {
	Register(identity domain.UserID, conn Connection) Registration
	Unregister(identity domain.UserID, session domain.SessionID) bool
	Lookup(identity domain.UserID) (Connection, bool)
	Snapshot() []domain.UserID
	Connections() []Connection
	Count() int
}

type PresenceBroadcaster interface {
	Announce(ctx context.Context)
	SyncTo(ctx context.Context, conn Connection)
}

type SignalingRouter interface {
	Route(ctx context.Context, origin Connection, env domain.Envelope) domain.RouteOutcome
}

type LifecycleHandler interface {
	Connect(ctx context.Context, identity domain.UserID, conn Connection) (domain.SessionID, error)
	Disconnect(ctx context.Context, identity domain.UserID, session domain.SessionID)
}

// RelayMetrics receives relay events. Implementations must be safe for
// concurrent use.
type RelayMetrics interface {
	ConnectionOpened()
	ConnectionClosed()
	HandshakeRejected(reason string)
	OnlineUsers(count int)
	PresenceAnnounced()
	SignalRouted(kind domain.SignalKind, outcome domain.RouteOutcome)
	SendDropped()
}
