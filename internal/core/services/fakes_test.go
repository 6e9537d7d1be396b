package services_test

import (
	"context"
	"encoding/json"
	"sync"

	"relaychat/internal/core/domain"

	"github.com/stretchr/testify/mock"
)

// fakeConn records every event it is sent.
type fakeConn struct {
	id domain.UserID

	mu      sync.Mutex
	events  []domain.Event
	closed  bool
	reason  string
	sendErr error
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: domain.UserID(id)}
}

func (c *fakeConn) Identity() domain.UserID { return c.id }

func (c *fakeConn) Send(event domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrConnectionClosed
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.events = append(c.events, event)
	return nil
}

func (c *fakeConn) Close(reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.reason = reason
	return nil
}

func (c *fakeConn) Events() []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Event(nil), c.events...)
}

func (c *fakeConn) Named(name string) []domain.Event {
	var out []domain.Event
	for _, e := range c.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func (c *fakeConn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

func (c *fakeConn) Closed() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.reason
}

// lastOnline returns the identities carried by the most recent online-users event.
func (c *fakeConn) lastOnline() []domain.UserID {
	events := c.Named(domain.EventOnlineUsers)
	if len(events) == 0 {
		return nil
	}
	return events[len(events)-1].Data.(domain.OnlineUsers).Identities
}

// pausingConn blocks inside Send the first time it is handed an online-users
// snapshot that lists holdFor, until release is closed.
type pausingConn struct {
	*fakeConn
	holdFor domain.UserID
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newPausingConn(id, holdFor string) *pausingConn {
	return &pausingConn{
		fakeConn: newFakeConn(id),
		holdFor:  domain.UserID(holdFor),
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
}

func (c *pausingConn) Send(event domain.Event) error {
	if online, ok := event.Data.(domain.OnlineUsers); ok && contains(online.Identities, c.holdFor) {
		c.once.Do(func() {
			close(c.entered)
			<-c.release
		})
	}
	return c.fakeConn.Send(event)
}

func contains(list []domain.UserID, id domain.UserID) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func ids(names ...string) []domain.UserID {
	out := make([]domain.UserID, len(names))
	for i, n := range names {
		out[i] = domain.UserID(n)
	}
	return out
}

func field(t interface{ Fatalf(string, ...any) }, e domain.Event, key string) string {
	fields, ok := e.Data.(map[string]json.RawMessage)
	if !ok {
		t.Fatalf("event %s has no signal fields", e.Name)
	}
	var v string
	if err := json.Unmarshal(fields[key], &v); err != nil {
		t.Fatalf("field %s: %v", key, err)
	}
	return v
}

type MockRelayMetrics struct {
	mock.Mock
}

func (m *MockRelayMetrics) ConnectionOpened()               { m.Called() }
func (m *MockRelayMetrics) ConnectionClosed()               { m.Called() }
func (m *MockRelayMetrics) HandshakeRejected(reason string) { m.Called(reason) }
func (m *MockRelayMetrics) OnlineUsers(count int)           { m.Called(count) }
func (m *MockRelayMetrics) PresenceAnnounced()              { m.Called() }
func (m *MockRelayMetrics) SendDropped()                    { m.Called() }
func (m *MockRelayMetrics) SignalRouted(kind domain.SignalKind, outcome domain.RouteOutcome) {
	m.Called(kind, outcome)
}

type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, data, contentType)
	return args.String(0), args.Error(1)
}
