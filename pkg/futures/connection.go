package futures

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/veiloq/futures-stream/pkg/logging"
	"github.com/veiloq/futures-stream/pkg/ratelimit"
)

// ConnectionState is the lifecycle state of one stream connection.
type ConnectionState int32

const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

// String returns the state name.
func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// The exchange rejects connections that send more than a handful of control
// messages per second, so every outbound frame goes through a per-connection
// token bucket.
const sendRatePerSecond = 10

// subscribeFrame is the control message sent after the handshake naming the
// channels to receive.
type subscribeFrame struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// controlReply is the exchange's response to a control frame. Replies carry
// the request id and are not stream payloads.
type controlReply struct {
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
	ID     int64           `json:"id"`
}

// Connection owns one transport socket bound to one subscription request. It
// runs the connect/subscribe/receive loop on its own goroutine, registers
// with the shared watchdog while open, and applies the reconnect policy when
// the transport drops.
type Connection struct {
	id       string
	endpoint string
	req      *subscriptionRequest

	watchdog       *WatchDog
	receiveLimit   time.Duration
	autoReconnect  bool
	reconnectDelay time.Duration

	limiter ratelimit.RateLimiter
	logger  logging.Logger

	state          atomic.Int32
	closedByCaller atomic.Bool
	stale          atomic.Bool

	mu      sync.Mutex // guards conn
	conn    *websocket.Conn
	writeMu sync.Mutex

	done     chan struct{}
	doneOnce sync.Once
}

type connectionConfig struct {
	endpoint       string
	receiveLimit   time.Duration
	autoReconnect  bool
	reconnectDelay time.Duration
	logger         logging.Logger
}

func newConnection(req *subscriptionRequest, watchdog *WatchDog, cfg connectionConfig) *Connection {
	c := &Connection{
		id:             uuid.NewString(),
		endpoint:       cfg.endpoint,
		req:            req,
		watchdog:       watchdog,
		receiveLimit:   cfg.receiveLimit,
		autoReconnect:  cfg.autoReconnect,
		reconnectDelay: cfg.reconnectDelay,
		limiter:        ratelimit.NewTokenBucketLimiter(ratelimit.PerSecond(sendRatePerSecond)),
		logger: cfg.logger.WithFields(
			logging.String("channel", req.channel()),
		),
		done: make(chan struct{}),
	}
	c.state.Store(int32(StateIdle))
	return c
}

// ID returns the connection's identity, used as its watchdog registry key.
func (c *Connection) ID() string { return c.id }

// Channel returns the primary stream name this connection subscribes.
func (c *Connection) Channel() string { return c.req.channel() }

// State returns the connection's current lifecycle state.
func (c *Connection) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// start launches the connection's run loop. The subscription handle is live
// immediately; connect failures are reported through the error callback and
// retried under the reconnect policy.
func (c *Connection) start(ctx context.Context) {
	go c.run(ctx)
}

// Close terminates the connection on behalf of the caller. No reconnect
// follows. Idempotent.
func (c *Connection) Close() error {
	c.closedByCaller.Store(true)
	c.doneOnce.Do(func() {
		close(c.done)
		c.watchdog.Unregister(c.id)
		c.closeTransport()
	})
	return nil
}

// run drives the state machine: CONNECTING, OPEN while the receive loop is
// healthy, then either CLOSED or back to CONNECTING after the reconnect
// delay.
func (c *Connection) run(ctx context.Context) {
	for {
		c.stale.Store(false)
		c.setState(StateConnecting)

		conn, err := c.dial(ctx)
		switch {
		case err != nil:
			c.emitError(&ConnectionError{Channel: c.req.channel(), Err: err})
		case c.closedByCaller.Load():
			_ = conn.Close()
		default:
			c.setConn(conn)
			if err := c.sendSubscribe(ctx); err != nil {
				c.emitError(&ConnectionError{Channel: c.req.channel(), Err: err})
			} else {
				c.setState(StateOpen)
				c.watchdog.Register(c.id, c.receiveLimit, c.forceClose)
				c.logger.Info("subscribed", logging.String("connection", c.id))
				c.readLoop()
			}
		}

		c.setState(StateClosing)
		c.watchdog.Unregister(c.id)
		c.closeTransport()

		if c.stale.Load() {
			c.emitError(&ConnectionError{Channel: c.req.channel(), Err: ErrConnectionStale})
		}

		if c.closedByCaller.Load() || !c.autoReconnect || ctx.Err() != nil {
			c.setState(StateClosed)
			return
		}

		c.logger.Info("reconnecting",
			logging.String("connection", c.id),
			logging.Duration("delay", c.reconnectDelay),
		)
		select {
		case <-time.After(c.reconnectDelay):
		case <-c.done:
			c.setState(StateClosed)
			return
		case <-ctx.Done():
			c.setState(StateClosed)
			return
		}
	}
}

func (c *Connection) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// sendSubscribe writes the SUBSCRIBE control frame for the request's
// channels. The per-connection limiter spaces this and any later control
// frames to the exchange's per-connection message rate.
func (c *Connection) sendSubscribe(ctx context.Context) error {
	frame := subscribeFrame{
		Method: "SUBSCRIBE",
		Params: c.req.channels(),
		ID:     time.Now().UnixNano(),
	}
	return c.send(ctx, frame)
}

func (c *Connection) send(ctx context.Context, v interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrConnectionClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// readLoop receives frames until the transport drops. Every frame refreshes
// the watchdog timestamp before decoding, so a connection is live as long as
// anything arrives, even frames that fail to parse.
func (c *Connection) readLoop() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if !c.closedByCaller.Load() && !c.stale.Load() {
				c.logger.Warn("read error", logging.Error(err))
			}
			return
		}

		c.watchdog.Touch(c.id)

		if c.handleControlReply(payload) {
			continue
		}
		c.dispatch(payload)
	}
}

// handleControlReply filters subscribe acknowledgements and control errors
// out of the payload stream. Returns true when the frame was a reply rather
// than stream data.
func (c *Connection) handleControlReply(payload []byte) bool {
	var reply controlReply
	if err := json.Unmarshal(payload, &reply); err != nil || reply.ID == 0 {
		return false
	}
	if len(reply.Error) > 0 {
		c.emitError(&ConnectionError{Channel: c.req.channel(), Err: &controlError{raw: reply.Error}})
	}
	return true
}

type controlError struct {
	raw json.RawMessage
}

func (e *controlError) Error() string {
	return "exchange rejected control frame: " + string(e.raw)
}

// dispatch hands one frame to the request's decoder. Parse failures and
// handler panics are routed to the error callback; neither terminates the
// receive loop.
func (c *Connection) dispatch(payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.emitError(&CallbackError{Channel: c.req.channel(), Value: r})
		}
	}()

	if err := c.req.decode(payload); err != nil {
		c.emitError(&ParseError{Channel: c.req.channel(), Payload: payload, Err: err})
	}
}

func (c *Connection) emitError(err error) {
	if c.req.onError == nil {
		c.logger.Warn("unhandled subscription error", logging.Error(err))
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("error handler panicked",
				logging.String("connection", c.id),
				logging.String("panic", panicString(r)),
			)
		}
	}()
	c.req.onError(err)
}

// forceClose is the watchdog hook. It only shuts the transport; the read
// loop notices on the connection's own goroutine and the run loop applies
// the reconnect policy there.
func (c *Connection) forceClose() {
	c.stale.Store(true)
	c.closeTransport()
}

func (c *Connection) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Connection) closeTransport() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return
	}
	c.writeMu.Lock()
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closed connection"))
	c.writeMu.Unlock()
	_ = conn.Close()
}

func (c *Connection) setState(s ConnectionState) {
	old := ConnectionState(c.state.Swap(int32(s)))
	if old != s {
		c.logger.Debug("connection state changed",
			logging.String("connection", c.id),
			logging.String("from", old.String()),
			logging.String("to", s.String()),
		)
	}
}

func panicString(r interface{}) string {
	return fmt.Sprintf("%v", r)
}
