package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-hub/internal/entity"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/logging"
)

// Stream message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypeGetStates   = "get_states"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// wsSendBufferSize is the per-client outbound queue. A client that
	// falls this far behind loses messages rather than stalling the relay.
	wsSendBufferSize = 256
)

// Stream channels.
const (
	// ChannelStateChanged carries a StateResponse for every recorded change.
	ChannelStateChanged = "state_changed"

	// ChannelEvent carries every named hub event.
	ChannelEvent = "event"
)

// WSMessage is one frame on the stream, in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// inbound is a client frame with the payload left undecoded.
type inbound struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// WSSubscribePayload selects channels. EntityIDs and Domains narrow
// state_changed; when both are empty every entity is delivered.
type WSSubscribePayload struct {
	Channels  []string `json:"channels"`
	EntityIDs []string `json:"entity_ids,omitempty"`
	Domains   []string `json:"domains,omitempty"`
}

// entityFilter matches entity ids. The zero value matches everything.
type entityFilter struct {
	ids     map[string]struct{}
	domains map[string]struct{}
}

func newEntityFilter(ids, domains []string) entityFilter {
	var f entityFilter
	if len(ids) > 0 {
		f.ids = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			f.ids[id] = struct{}{}
		}
	}
	if len(domains) > 0 {
		f.domains = make(map[string]struct{}, len(domains))
		for _, d := range domains {
			f.domains[d] = struct{}{}
		}
	}
	return f
}

func (f entityFilter) match(id entity.ID) bool {
	if f.ids == nil && f.domains == nil {
		return true
	}
	if _, ok := f.ids[id.String()]; ok {
		return true
	}
	_, ok := f.domains[id.Domain]
	return ok
}

// Hub fans observer output out to stream clients.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}

	// snapshot serves get_states. Nil answers with an error.
	snapshot func() []StateResponse

	dropped atomic.Uint64
}

// WSClient is one stream connection.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	subs   map[string]entityFilter
	closed bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // CORS middleware decides
	},
}

// NewHub creates a stream hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// SetSnapshot sets the source answering get_states requests.
func (h *Hub) SetSnapshot(fn func() []StateResponse) {
	h.mu.Lock()
	h.snapshot = fn
	h.mu.Unlock()
}

// Run blocks until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

func (h *Hub) newClient(conn *websocket.Conn) *WSClient {
	return &WSClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, wsSendBufferSize),
		subs: make(map[string]entityFilter),
	}
}

// Register adds a client.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("stream client connected", "clients", n)
}

// Unregister removes a client and closes its queue. Repeated calls are
// harmless.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.close()
	h.logger.Debug("stream client disconnected", "clients", n)
}

// Broadcast sends payload to every client subscribed to channel.
func (h *Hub) Broadcast(channel string, payload any) {
	h.fanout(channel, payload, func(entityFilter) bool { return true })
}

// BroadcastState sends a state change to state_changed subscribers whose
// filter matches id.
func (h *Hub) BroadcastState(id entity.ID, payload StateResponse) {
	h.fanout(ChannelStateChanged, payload, func(f entityFilter) bool { return f.match(id) })
}

func (h *Hub) fanout(channel string, payload any, match func(entityFilter) bool) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("encoding stream message", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if f, ok := c.subscription(channel); ok && match(f) {
			c.enqueue(data)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many messages were discarded for slow clients.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// handleWebSocket upgrades the request to a stream connection.
// authMiddleware has already checked the token.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := s.ws.newClient(conn)
	s.ws.Register(c)

	t := newStreamTimings(s.cfg.WebSocket)
	go c.writePump(t)
	go c.readPump(t, int64(s.cfg.WebSocket.MaxMessageSize))
}

// streamTimings are the keepalive durations derived from config.
type streamTimings struct {
	ping     time.Duration
	pongWait time.Duration
}

func newStreamTimings(cfg config.WebSocketConfig) streamTimings {
	return streamTimings{
		ping:     time.Duration(cfg.PingInterval) * time.Second,
		pongWait: time.Duration(cfg.PongTimeout) * time.Second,
	}
}

func (t streamTimings) readDeadline() time.Time {
	return time.Now().Add(t.ping + t.pongWait)
}

func (c *WSClient) readPump(t streamTimings, limit int64) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(limit)
	//nolint:errcheck // best-effort deadline
	c.conn.SetReadDeadline(t.readDeadline())
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(t.readDeadline())
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("stream read error", "error", err)
			}
			return
		}
		// Browsers do not always answer protocol pings; any frame counts.
		//nolint:errcheck // best-effort deadline
		c.conn.SetReadDeadline(t.readDeadline())
		c.handleMessage(data)
	}
}

func (c *WSClient) writePump(t streamTimings) {
	ticker := time.NewTicker(t.ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			//nolint:errcheck // write error surfaces below
			c.conn.SetWriteDeadline(time.Now().Add(t.pongWait))
			if !ok {
				//nolint:errcheck // best-effort close frame
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // write error surfaces below
			c.conn.SetWriteDeadline(time.Now().Add(t.pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply("", WSTypeError, errorBody("invalid JSON message"))
		return
	}

	switch msg.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var p WSSubscribePayload
		if len(msg.Payload) == 0 || json.Unmarshal(msg.Payload, &p) != nil || len(p.Channels) == 0 {
			c.reply(msg.ID, WSTypeError, errorBody("payload must name at least one channel"))
			return
		}
		if msg.Type == WSTypeSubscribe {
			c.subscribe(p)
			c.reply(msg.ID, WSTypeResponse, map[string]any{"subscribed": p.Channels})
			return
		}
		c.unsubscribe(p.Channels)
		c.reply(msg.ID, WSTypeResponse, map[string]any{"unsubscribed": p.Channels})
	case WSTypeGetStates:
		c.hub.mu.RLock()
		snapshot := c.hub.snapshot
		c.hub.mu.RUnlock()
		if snapshot == nil {
			c.reply(msg.ID, WSTypeError, errorBody("states unavailable"))
			return
		}
		c.reply(msg.ID, WSTypeResponse, snapshot())
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	default:
		c.reply(msg.ID, WSTypeError, errorBody("unknown message type: "+msg.Type))
	}
}

func errorBody(message string) map[string]string {
	return map[string]string{"message": message}
}

// subscribe replaces the filter of every named channel.
func (c *WSClient) subscribe(p WSSubscribePayload) {
	f := newEntityFilter(p.EntityIDs, p.Domains)
	c.mu.Lock()
	for _, ch := range p.Channels {
		c.subs[ch] = f
	}
	c.mu.Unlock()
	c.hub.logger.Debug("stream client subscribed", "channels", p.Channels)
}

func (c *WSClient) unsubscribe(channels []string) {
	c.mu.Lock()
	for _, ch := range channels {
		delete(c.subs, ch)
	}
	c.mu.Unlock()
}

func (c *WSClient) subscription(channel string) (entityFilter, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.subs[channel]
	return f, ok
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		c.hub.logger.Error("encoding stream reply", "type", msgType, "error", err)
		return
	}
	c.enqueue(data)
}

// enqueue queues data unless the client is closed. A full queue drops
// the message.
func (c *WSClient) enqueue(data []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.hub.dropped.Add(1)
	}
}

// close closes the send queue once; writePump then sends a close frame.
func (c *WSClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
