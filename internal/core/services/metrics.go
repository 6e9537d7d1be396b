package services

import (
	"relaychat/internal/core/domain"
	"relaychat/internal/core/ports"
)

type nopMetrics struct{}

func (nopMetrics) ConnectionOpened()                                   {}
func (nopMetrics) ConnectionClosed()                                   {}
func (nopMetrics) HandshakeRejected(string)                            {}
func (nopMetrics) OnlineUsers(int)                                     {}
func (nopMetrics) PresenceAnnounced()                                  {}
func (nopMetrics) SignalRouted(domain.SignalKind, domain.RouteOutcome) {}
func (nopMetrics) SendDropped()                                        {}

func metricsOrNop(m ports.RelayMetrics) ports.RelayMetrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
