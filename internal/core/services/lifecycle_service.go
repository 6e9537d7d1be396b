package services

import (
	"context"
	"strings"

	"relaychat/internal/core/domain"
	"relaychat/internal/core/ports"

	"go.uber.org/zap"
)

const supersededReason = "superseded"

// LifecycleService binds connections to identities and keeps presence in
// step with the registry.
type LifecycleService struct {
	registry ports.ConnectionRegistry
	presence ports.PresenceBroadcaster
	metrics  ports.RelayMetrics
	logger   *zap.SugaredLogger
}

func NewLifecycleService(
	registry ports.ConnectionRegistry,
	presence ports.PresenceBroadcaster,
	metrics ports.RelayMetrics,
	logger *zap.SugaredLogger,
) *LifecycleService {
	return &LifecycleService{
		registry: registry,
		presence: presence,
		metrics:  metricsOrNop(metrics),
		logger:   logger,
	}
}

// Connect registers conn under identity. An empty identity is rejected
// without touching the registry.
func (s *LifecycleService) Connect(ctx context.Context, identity domain.UserID, conn ports.Connection) (domain.SessionID, error) {
	if strings.TrimSpace(identity.String()) == "" {
		s.metrics.HandshakeRejected("empty_identity")
		return 0, domain.ErrEmptyIdentity
	}

	reg := s.registry.Register(identity, conn)
	s.metrics.ConnectionOpened()

	if reg.Superseded != nil && reg.Superseded != conn {
		s.logger.Infow("connection superseded",
			"user_id", identity,
			"session_id", reg.Session,
		)
		if err := reg.Superseded.Close(supersededReason); err != nil {
			s.logger.Debugw("closing superseded connection failed",
				"user_id", identity,
				"error", err,
			)
		}
	}

	if reg.Joined {
		s.presence.Announce(ctx)
	} else {
		// membership unchanged, but the new connection has not seen the list yet
		s.presence.SyncTo(ctx, conn)
	}

	s.logger.Infow("user connected",
		"user_id", identity,
		"session_id", reg.Session,
		"online", s.registry.Count(),
	)
	return reg.Session, nil
}

// Disconnect drops the binding if session is still current and re-announces
// presence only when membership actually changed.
func (s *LifecycleService) Disconnect(ctx context.Context, identity domain.UserID, session domain.SessionID) {
	s.metrics.ConnectionClosed()

	if !s.registry.Unregister(identity, session) {
		s.logger.Debugw("stale disconnect ignored",
			"user_id", identity,
			"session_id", session,
		)
		return
	}

	s.presence.Announce(ctx)
	s.logger.Infow("user disconnected",
		"user_id", identity,
		"session_id", session,
		"online", s.registry.Count(),
	)
}
