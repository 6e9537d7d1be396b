package signal

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"relaychat/internal/core/domain"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Close reasons the server uses. Each maps onto a websocket close code.
const (
	ReasonSuperseded      = "superseded"
	ReasonSlowConsumer    = "send buffer full"
	ReasonShutdown        = "server shutdown"
	ReasonMissingIdentity = "identity required"
)

func closeCode(reason string) int {
	switch reason {
	case ReasonMissingIdentity:
		return websocket.ClosePolicyViolation
	case ReasonSlowConsumer:
		return websocket.CloseTryAgainLater
	case ReasonShutdown:
		return websocket.CloseGoingAway
	default:
		return websocket.CloseNormalClosure
	}
}

// wsConnection is the ports.Connection of one websocket client. Writes go
// through a bounded queue drained by writePump, so Send never blocks.
type wsConnection struct {
	identity domain.UserID
	session  domain.SessionID // set once registered, read only by the read loop
	conn     *websocket.Conn

	send    chan []byte
	done    chan struct{}
	stopped chan struct{} // closed when writePump returns

	closeOnce   sync.Once
	mu          sync.Mutex
	closeReason string

	pingInterval time.Duration
	writeTimeout time.Duration
	logger       *zap.SugaredLogger
}

func newWSConnection(identity domain.UserID, conn *websocket.Conn, opts Options, logger *zap.SugaredLogger) *wsConnection {
	return &wsConnection{
		identity:     identity,
		conn:         conn,
		send:         make(chan []byte, opts.SendBuffer),
		done:         make(chan struct{}),
		stopped:      make(chan struct{}),
		pingInterval: opts.PingInterval,
		writeTimeout: opts.WriteTimeout,
		logger:       logger,
	}
}

func (c *wsConnection) Identity() domain.UserID {
	return c.identity
}

// Send queues event for delivery. A connection whose queue is full is
// closed, since it is no longer keeping up. A frame queued while Close runs
// may or may not be flushed; Send reports ErrConnectionClosed for it.
func (c *wsConnection) Send(event domain.Event) error {
	select {
	case <-c.done:
		return domain.ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Name, err)
	}

	select {
	case c.send <- data:
		select {
		case <-c.done:
			return domain.ErrConnectionClosed
		default:
			return nil
		}
	default:
		c.logger.Warnw("outbound buffer full, closing connection",
			"user_id", c.identity,
			"buffered", len(c.send),
		)
		_ = c.Close(ReasonSlowConsumer)
		return domain.ErrSendBufferFull
	}
}

// Close stops the write pump, which sends a close frame carrying reason and
// then closes the socket. Only the first call has an effect.
func (c *wsConnection) Close(reason string) error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeReason = reason
		c.mu.Unlock()
		close(c.done)
	})
	return nil
}

func (c *wsConnection) reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeReason
}

func (c *wsConnection) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.stopped)
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debugw("websocket write failed", "user_id", c.identity, "error", err)
				c.Close("")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debugw("websocket ping failed", "user_id", c.identity, "error", err)
				c.Close("")
				return
			}

		case <-c.done:
			c.flush()
			reason := c.reason()
			msg := websocket.FormatCloseMessage(closeCode(reason), reason)
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
			return
		}
	}
}

// flush writes whatever is already queued so a client sees the events that
// preceded its close frame.
func (c *wsConnection) flush() {
	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}
