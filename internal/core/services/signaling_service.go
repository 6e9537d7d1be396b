package services

import (
	"context"

	"relaychat/internal/core/domain"
	"relaychat/internal/core/ports"

	"go.uber.org/zap"
)

// SignalingService relays call-signaling envelopes between two identities.
// It never inspects the payload.
type SignalingService struct {
	registry ports.ConnectionRegistry
	metrics  ports.RelayMetrics
	logger   *zap.SugaredLogger
}

func NewSignalingService(registry ports.ConnectionRegistry, metrics ports.RelayMetrics, logger *zap.SugaredLogger) *SignalingService {
	return &SignalingService{
		registry: registry,
		metrics:  metricsOrNop(metrics),
		logger:   logger,
	}
}

// Route forwards env to the live connection of env.To, stamped with the
// origin's identity as sender. When the target is offline or its send fails,
// the origin alone receives one unreachable notice. Every kind takes this path.
func (s *SignalingService) Route(ctx context.Context, origin ports.Connection, env domain.Envelope) domain.RouteOutcome {
	env.From = origin.Identity()

	outcome := s.forward(env)
	if outcome == domain.RouteUnreachable {
		if err := origin.Send(domain.UnreachableEvent(env.To)); err != nil {
			s.metrics.SendDropped()
			s.logger.Debugw("unreachable notice not delivered",
				"user_id", env.From,
				"error", err,
			)
		}
	}

	s.metrics.SignalRouted(env.Kind, outcome)
	s.logger.Debugw("signal routed",
		"kind", env.Kind,
		"from", env.From,
		"to", env.To,
		"outcome", outcome.String(),
	)
	return outcome
}

func (s *SignalingService) forward(env domain.Envelope) domain.RouteOutcome {
	target, ok := s.registry.Lookup(env.To)
	if !ok {
		return domain.RouteUnreachable
	}

	if err := target.Send(domain.SignalEvent(env)); err != nil {
		// target went away between lookup and send
		s.metrics.SendDropped()
		s.logger.Infow("signal send failed",
			"kind", env.Kind,
			"to", env.To,
			"error", err,
		)
		return domain.RouteUnreachable
	}
	return domain.RouteDelivered
}
