package services

import (
	"context"
	"sync"

	"relaychat/internal/core/domain"
	"relaychat/internal/core/ports"

	"go.uber.org/zap"
)

// PresenceService pushes the online-user snapshot to connected clients.
// mu orders announcements: a snapshot is read and queued on every connection
// before the next one is read, so the last frame a client gets is never older
// than the last membership change.
type PresenceService struct {
	mu       sync.Mutex
	registry ports.ConnectionRegistry
	metrics  ports.RelayMetrics
	logger   *zap.SugaredLogger
}

func NewPresenceService(registry ports.ConnectionRegistry, metrics ports.RelayMetrics, logger *zap.SugaredLogger) *PresenceService {
	return &PresenceService{
		registry: registry,
		metrics:  metricsOrNop(metrics),
		logger:   logger,
	}
}

// Announce sends the current snapshot to every registered connection. A
// failed send only affects that connection.
func (s *PresenceService) Announce(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	online := s.registry.Snapshot()
	event := domain.OnlineUsersEvent(online)

	conns := s.registry.Connections()
	for _, conn := range conns {
		if err := conn.Send(event); err != nil {
			s.metrics.SendDropped()
			s.logger.Debugw("presence send failed",
				"user_id", conn.Identity(),
				"error", err,
			)
		}
	}

	s.metrics.OnlineUsers(len(online))
	s.metrics.PresenceAnnounced()
	s.logger.Debugw("presence announced",
		"online", len(online),
		"recipients", len(conns),
	)
}

// SyncTo sends the current snapshot to a single connection.
func (s *PresenceService) SyncTo(ctx context.Context, conn ports.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := conn.Send(domain.OnlineUsersEvent(s.registry.Snapshot())); err != nil {
		s.metrics.SendDropped()
		s.logger.Debugw("presence sync failed",
			"user_id", conn.Identity(),
			"error", err,
		)
	}
}
