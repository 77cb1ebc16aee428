package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-hub/internal/event"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
)

// sendBufferSize is the per-connection outbound frame buffer.
const sendBufferSize = 256

// session is one established connection.
type session struct {
	send chan []byte
	done chan struct{}
}

// Client is the hub websocket client.
//
// Thread Safety: all methods are safe for concurrent use. Run must be
// called once.
type Client struct {
	cfg     config.HubConfig
	dialer  *websocket.Dialer
	pending *event.Pending
	queue   *queue
	logger  Logger

	initialDelay time.Duration
	maxDelay     time.Duration
	timeout      time.Duration

	nextID    atomic.Int64
	snapshots sync.Map // get_states ids whose result reseeds the store

	mu        sync.RWMutex
	current   *session
	haVersion string
}

// New creates a client. pending is shared with the event dispatcher,
// which completes waiters as results arrive.
func New(cfg config.HubConfig, pending *event.Pending) *Client {
	return &Client{
		cfg:          cfg,
		dialer:       &websocket.Dialer{HandshakeTimeout: seconds(cfg.RequestTimeout)},
		pending:      pending,
		queue:        newQueue(),
		logger:       noopLogger{},
		initialDelay: seconds(cfg.Reconnect.InitialDelay),
		maxDelay:     seconds(cfg.Reconnect.MaxDelay),
		timeout:      seconds(cfg.RequestTimeout),
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.logger = logger
}

// Events returns the inbound envelope stream. The same channel is used
// across reconnects; it is closed when Run returns.
func (c *Client) Events() <-chan event.Envelope {
	return c.queue.out
}

// IsConnected reports whether a connection is currently established.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current != nil
}

// HAVersion returns the hub version reported by the last auth_ok.
func (c *Client) HAVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.haVersion
}

// Run connects and keeps the connection alive until ctx is cancelled.
//
// Returns:
//   - error: nil on cancellation, ErrAuthInvalid if the token is rejected,
//     ErrReconnectExhausted when reconnect.max_attempts is reached
func (c *Client) Run(ctx context.Context) error {
	go c.queue.run(ctx)
	defer func() {
		c.pending.Close()
		c.queue.close()
	}()

	if c.cfg.TokenExpiryWarning > 0 {
		checkToken(c.cfg.Token, time.Duration(c.cfg.TokenExpiryWarning)*time.Hour, time.Now(), c.logger)
	}

	delay := c.initialDelay
	failures := 0
	for {
		connected, err := c.session(ctx)
		if n := c.pending.FailAll(ErrDisconnected); n > 0 {
			c.logger.Warn("failed pending commands after disconnect", "count", n)
		}
		if ctx.Err() != nil {
			return nil
		}

		if errors.Is(err, ErrAuthInvalid) {
			c.logger.Error("hub rejected access token", "error", err)
			c.queue.push(event.TransportError(err))
			return err
		}

		if connected {
			delay = c.initialDelay
			failures = 0
		}
		failures++
		if limit := c.cfg.Reconnect.MaxAttempts; limit > 0 && failures > limit {
			err = fmt.Errorf("%w after %d attempts: %w", ErrReconnectExhausted, limit, err)
			c.logger.Error("giving up on hub connection", "error", err)
			c.queue.push(event.TransportError(err))
			return err
		}

		c.logger.Warn("hub connection lost, reconnecting", "error", err, "delay", delay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, c.maxDelay) //nolint:mnd // exponential backoff
	}
}

// session runs one connection until it fails. connected reports whether
// the handshake succeeded.
func (c *Client) session(ctx context.Context) (connected bool, err error) {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return false, fmt.Errorf("dialing hub: %w", err)
	}
	defer conn.Close()

	if c.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(int64(c.cfg.MaxMessageSize))
	}

	auth, err := c.authenticate(conn)
	if err != nil {
		return false, err
	}

	s := &session{
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
	c.mu.Lock()
	c.current = s
	c.haVersion = auth.HAVersion
	c.mu.Unlock()
	c.logger.Info("connected to hub", "url", c.cfg.URL, "ha_version", auth.HAVersion)

	defer func() {
		c.mu.Lock()
		c.current = nil
		c.mu.Unlock()
		close(s.done)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readPump(conn) })
	g.Go(func() error { return c.writePump(gctx, conn, s) })
	g.Go(func() error { return c.subscribe(gctx) })

	return true, g.Wait()
}

// authenticate performs the auth handshake.
func (c *Client) authenticate(conn *websocket.Conn) (AuthResponse, error) {
	deadline := time.Now().Add(c.timeout)
	_ = conn.SetReadDeadline(deadline)  //nolint:errcheck // best-effort; read error caught below
	_ = conn.SetWriteDeadline(deadline) //nolint:errcheck // best-effort; write error caught below
	defer func() {
		_ = conn.SetReadDeadline(time.Time{})  //nolint:errcheck // cleared for the pumps
		_ = conn.SetWriteDeadline(time.Time{}) //nolint:errcheck // cleared for the pumps
	}()

	var hello AuthResponse
	if err := conn.ReadJSON(&hello); err != nil {
		return AuthResponse{}, fmt.Errorf("%w: reading auth_required: %w", ErrHandshake, err)
	}
	if hello.Type != typeAuthRequired {
		return AuthResponse{}, fmt.Errorf("%w: expected %s, got %q", ErrHandshake, typeAuthRequired, hello.Type)
	}

	if err := conn.WriteJSON(authMessage{Type: typeAuth, AccessToken: c.cfg.Token}); err != nil {
		return AuthResponse{}, fmt.Errorf("%w: sending auth: %w", ErrHandshake, err)
	}

	var resp AuthResponse
	if err := conn.ReadJSON(&resp); err != nil {
		return AuthResponse{}, fmt.Errorf("%w: reading auth response: %w", ErrHandshake, err)
	}
	switch resp.Type {
	case typeAuthOK:
		return resp, nil
	case typeAuthInvalid:
		return AuthResponse{}, fmt.Errorf("%w: %s", ErrAuthInvalid, resp.Message)
	default:
		return AuthResponse{}, fmt.Errorf("%w: unexpected auth response %q", ErrHandshake, resp.Type)
	}
}

// subscribe issues subscribe_events and the initial get_states. The hub
// answers in order, so the snapshot is never older than the subscription.
func (c *Client) subscribe(ctx context.Context) error {
	types := c.cfg.EventTypes
	if len(types) == 0 {
		types = []string{""}
	} else if !containsString(types, eventStateChanged) {
		types = append([]string{eventStateChanged}, types...)
	}

	waits := make([]<-chan event.Result, 0, len(types)+1)
	for _, t := range types {
		id := c.nextID.Add(1)
		ch := c.pending.Expect(id)
		msg := subscribeEventsMessage{request: request{ID: id, Type: typeSubscribeEvents}, EventType: t}
		if err := c.write(ctx, msg); err != nil {
			c.pending.Forget(id)
			return err
		}
		waits = append(waits, ch)
	}

	id := c.nextID.Add(1)
	c.snapshots.Store(id, struct{}{})
	ch := c.pending.Expect(id)
	if err := c.write(ctx, request{ID: id, Type: typeGetStates}); err != nil {
		c.snapshots.Delete(id)
		c.pending.Forget(id)
		return err
	}
	waits = append(waits, ch)

	for _, w := range waits {
		r, err := c.await(ctx, w)
		if err != nil {
			return err
		}
		if r.Err != nil {
			return fmt.Errorf("subscribing to hub: %w", r.Err)
		}
	}
	c.logger.Debug("hub subscription established", "event_types", c.cfg.EventTypes)
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// readPump decodes inbound frames onto the queue.
func (c *Client) readPump(conn *websocket.Conn) error {
	pongWait := seconds(c.cfg.PingInterval + c.cfg.PongTimeout)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck // best-effort deadline
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return fmt.Errorf("reading from hub: %w", err)
			}
			return fmt.Errorf("%w: %w", ErrDisconnected, err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck // any frame proves liveness

		env := decode(frame)
		if env.Kind == event.KindResult {
			if _, ok := c.snapshots.LoadAndDelete(env.ID); ok {
				env = c.snapshotEnvelope(*env.Result)
			}
		}
		c.queue.push(env)
	}
}

// snapshotEnvelope turns a get_states result into a snapshot envelope.
// A payload that fails to decode is passed on as a failed result.
func (c *Client) snapshotEnvelope(r event.Result) event.Envelope {
	if r.Err != nil || !r.Success {
		return event.ResultOf(r)
	}
	records, err := decodeStates(r.Data)
	if err != nil {
		r.Success = false
		r.Err = fmt.Errorf("%w: %w", event.ErrMalformed, err)
		return event.ResultOf(r)
	}
	return event.SnapshotOf(r, records)
}

// writePump writes queued frames and keepalive pings. It closes the
// connection when ctx is cancelled, which also stops readPump.
func (c *Client) writePump(ctx context.Context, conn *websocket.Conn, s *session) error {
	ticker := time.NewTicker(seconds(c.cfg.PingInterval))
	defer ticker.Stop()
	writeWait := seconds(c.cfg.PongTimeout)

	for {
		select {
		case <-ctx.Done():
			//nolint:errcheck // best-effort close frame
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			conn.Close()
			return nil
		case frame := <-s.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // write error caught below
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				conn.Close()
				return fmt.Errorf("writing to hub: %w", err)
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // ping error caught below
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return fmt.Errorf("pinging hub: %w", err)
			}
		}
	}
}

// write queues msg on the current connection.
func (c *Client) write(ctx context.Context, msg any) error {
	frame, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	c.mu.RLock()
	s := c.current
	c.mu.RUnlock()
	if s == nil {
		return ErrNotConnected
	}

	select {
	case s.send <- frame:
		return nil
	case <-s.done:
		return ErrDisconnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// await waits for a result, bounded by the request timeout.
func (c *Client) await(ctx context.Context, ch <-chan event.Result) (event.Result, error) {
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		if errors.Is(r.Err, ErrDisconnected) || errors.Is(r.Err, event.ErrPendingClosed) {
			return r, r.Err
		}
		return r, nil
	case <-timer.C:
		return event.Result{}, ErrTimeout
	case <-ctx.Done():
		return event.Result{}, ctx.Err()
	}
}
