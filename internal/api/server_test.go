package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-hub/internal/audit"
	"github.com/nerrad567/gray-logic-hub/internal/entity"
	"github.com/nerrad567/gray-logic-hub/internal/event"
	"github.com/nerrad567/gray-logic-hub/internal/hub"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-hub/internal/observer"
	"github.com/nerrad567/gray-logic-hub/internal/service"
)

// ─── Mocks ─────────────────────────────────────────────────────────

type mockHubStatus struct {
	connected bool
	version   string
}

func (m mockHubStatus) IsConnected() bool { return m.connected }
func (m mockHubStatus) HAVersion() string { return m.version }

type mockChecker struct{ err error }

func (m mockChecker) HealthCheck(context.Context) error { return m.err }

type mockSubmitter struct {
	mu   sync.Mutex
	cmds []service.Command
	err  error
}

func (m *mockSubmitter) Submit(_ context.Context, cmd service.Command) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.cmds = append(m.cmds, cmd)
	return int64(len(m.cmds)), nil
}

type mockAuditRepo struct {
	entries []audit.Entry
	filter  audit.Filter
	err     error
}

func (m *mockAuditRepo) Create(context.Context, *audit.Entry) error       { return nil }
func (m *mockAuditRepo) Complete(context.Context, audit.Completion) error { return nil }

func (m *mockAuditRepo) Get(_ context.Context, id string) (*audit.Entry, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.entries {
		if m.entries[i].ID == id {
			return &m.entries[i], nil
		}
	}
	return nil, audit.ErrNotFound
}

func (m *mockAuditRepo) List(_ context.Context, f audit.Filter) (*audit.ListResult, error) {
	m.filter = f
	if m.err != nil {
		return nil, m.err
	}
	return &audit.ListResult{Entries: m.entries, Total: len(m.entries), Limit: f.Limit, Offset: f.Offset}, nil
}

// ─── Fixture ───────────────────────────────────────────────────────

type fixture struct {
	srv       *Server
	store     *entity.Store
	observers *event.Observers
	submitter *mockSubmitter
	auditRepo *mockAuditRepo
}

func newFixture(t *testing.T, mutate func(*Deps)) *fixture {
	t.Helper()

	f := &fixture{
		store:     entity.NewStore(entity.DefaultHistorySize),
		observers: event.NewObservers(observer.Options{Workers: 2}),
		submitter: &mockSubmitter{},
		auditRepo: &mockAuditRepo{},
	}
	t.Cleanup(f.observers.Close)

	deps := Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
			WebSocket: config.WebSocketConfig{
				MaxMessageSize: 8192,
				PingInterval:   30,
				PongTimeout:    10,
			},
		},
		Logger:    logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test"),
		Store:     f.store,
		Observers: f.observers,
		Hub:       mockHubStatus{connected: true, version: "2026.10.1"},
		Commands:  f.submitter,
		Audit:     f.auditRepo,
		Version:   "test",
	}
	if mutate != nil {
		mutate(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	f.srv = srv
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	f.srv.buildRouter().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
}

func seed(f *fixture, id, value string, attrs entity.Attributes) {
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	f.store.Seed(entity.MustParseID(id), entity.NewState(value, attrs, now, now))
}

// ─── Construction ──────────────────────────────────────────────────

func TestNew_RequiresLoggerAndStore(t *testing.T) {
	log := logging.Default()
	if _, err := New(Deps{Store: entity.NewStore(0)}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: log}); err == nil {
		t.Error("New() without store should fail")
	}
}

// ─── Health ────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		hubUp      bool
		checkErr   error
		wantCode   int
		wantStatus string
	}{
		{"all healthy", true, nil, http.StatusOK, "ok"},
		{"hub down", false, nil, http.StatusServiceUnavailable, "degraded"},
		{"component down", true, errors.New("mqtt: not connected"), http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func(d *Deps) {
				d.Hub = mockHubStatus{connected: tt.hubUp, version: "2026.10.1"}
				d.Checks = map[string]HealthChecker{"mqtt": mockChecker{err: tt.checkErr}}
			})
			seed(f, "light.hall", "on", nil)

			w := f.do(t, http.MethodGet, "/api/v1/health", "")
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}

			var resp struct {
				Status     string            `json:"status"`
				Version    string            `json:"version"`
				Hub        map[string]any    `json:"hub"`
				Components map[string]string `json:"components"`
				Entities   int               `json:"entities"`
			}
			decode(t, w, &resp)
			if resp.Status != tt.wantStatus || resp.Version != "test" || resp.Entities != 1 {
				t.Errorf("resp = %+v", resp)
			}
			if resp.Hub["ha_version"] != "2026.10.1" {
				t.Errorf("hub = %v", resp.Hub)
			}
			if tt.checkErr == nil && resp.Components["mqtt"] != "ok" {
				t.Errorf("components = %v", resp.Components)
			}
		})
	}
}

// ─── Middleware ────────────────────────────────────────────────────

func TestRequestID(t *testing.T) {
	f := newFixture(t, nil)

	if got := f.do(t, http.MethodGet, "/api/v1/health", "").Header().Get("X-Request-ID"); got == "" {
		t.Error("expected X-Request-ID header to be set")
	}
	if got := f.do(t, http.MethodGet, "/api/v1/health", "", "X-Request-ID", "client-123").Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want client-123", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Config.CORS.AllowedOrigins = []string{"http://panel.local"} })

	w := f.do(t, http.MethodOptions, "/api/v1/health", "", "Origin", "http://panel.local")
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://panel.local" {
		t.Errorf("ACAO = %q", got)
	}

	w = f.do(t, http.MethodOptions, "/api/v1/health", "", "Origin", "http://evil.example")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("ACAO for disallowed origin = %q", got)
	}
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		header   []string
		wantCode int
	}{
		{"no token", "/api/v1/commands", nil, http.StatusUnauthorized},
		{"wrong token", "/api/v1/commands", []string{"Authorization", "Bearer nope"}, http.StatusUnauthorized},
		{"wrong scheme", "/api/v1/commands", []string{"Authorization", "Basic c2VjcmV0"}, http.StatusUnauthorized},
		{"bearer", "/api/v1/commands", []string{"Authorization", "Bearer secret"}, http.StatusOK},
		{"query parameter", "/api/v1/commands?access_token=secret", nil, http.StatusOK},
		{"public route", "/api/v1/states", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func(d *Deps) { d.Config.Token = "secret" })
			if w := f.do(t, http.MethodGet, tt.target, "", tt.header...); w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	f := newFixture(t, nil)
	handler := f.srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestNotFound(t *testing.T) {
	f := newFixture(t, nil)
	if w := f.do(t, http.MethodGet, "/api/v1/nonexistent", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── States ────────────────────────────────────────────────────────

func TestListStates(t *testing.T) {
	f := newFixture(t, nil)
	seed(f, "switch.kitchen", "on", nil)
	seed(f, "light.hall", "off", entity.Attributes{"brightness": 0})
	seed(f, "light.porch", "on", nil)

	tests := []struct {
		target string
		want   []string
	}{
		{"/api/v1/states", []string{"light.hall", "light.porch", "switch.kitchen"}},
		{"/api/v1/states?domain=light", []string{"light.hall", "light.porch"}},
		{"/api/v1/states?domain=cover", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			w := f.do(t, http.MethodGet, tt.target, "")
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			var resp struct {
				States []StateResponse `json:"states"`
				Count  int             `json:"count"`
			}
			decode(t, w, &resp)
			if resp.Count != len(tt.want) || len(resp.States) != len(tt.want) {
				t.Fatalf("got %d states, want %d", len(resp.States), len(tt.want))
			}
			for i, id := range tt.want {
				if resp.States[i].EntityID != id {
					t.Errorf("states[%d] = %s, want %s", i, resp.States[i].EntityID, id)
				}
			}
		})
	}
}

func TestGetState(t *testing.T) {
	f := newFixture(t, nil)
	seed(f, "media_player.tv", "playing", entity.Attributes{"volume_level": 0.4})

	w := f.do(t, http.MethodGet, "/api/v1/states/media_player.tv", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp StateResponse
	decode(t, w, &resp)
	if resp.NewState.Value != "playing" {
		t.Errorf("state = %q", resp.NewState.Value)
	}
	if v, _ := resp.NewState.Float("volume_level"); v != 0.4 {
		t.Errorf("volume_level = %v", v)
	}

	if w := f.do(t, http.MethodGet, "/api/v1/states/media_player.radio", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown entity status = %d, want 404", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/v1/states/notanid", ""); w.Code != http.StatusBadRequest {
		t.Errorf("invalid id status = %d, want 400", w.Code)
	}
}

func TestGetHistory(t *testing.T) {
	f := newFixture(t, nil)
	id := entity.MustParseID("switch.kitchen")
	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	f.store.Seed(id, entity.NewState("off", nil, base, base))
	f.store.Record(id, entity.NewState("on", nil, base.Add(time.Minute), base.Add(time.Minute)))

	w := f.do(t, http.MethodGet, "/api/v1/states/switch.kitchen/history", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp HistoryResponse
	decode(t, w, &resp)
	if len(resp.States) != 2 || resp.States[0].Value != "on" || resp.States[1].Value != "off" {
		t.Errorf("history = %+v", resp.States)
	}

	if w := f.do(t, http.MethodGet, "/api/v1/states/switch.garage/history", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown entity status = %d, want 404", w.Code)
	}
}

// ─── Service calls ─────────────────────────────────────────────────

func TestCallService(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodPost, "/api/v1/services/light/turn_on", `{"entity_id":"light.hall","brightness":200}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	var resp map[string]any
	decode(t, w, &resp)
	if resp["id"] != float64(1) || resp["service"] != "light.turn_on" || resp["entity_id"] != "light.hall" {
		t.Errorf("resp = %v", resp)
	}

	if len(f.submitter.cmds) != 1 {
		t.Fatalf("submitted %d commands", len(f.submitter.cmds))
	}
	cmd := f.submitter.cmds[0]
	if cmd.Target == nil || cmd.Target.String() != "light.hall" || cmd.Data["brightness"] != float64(200) {
		t.Errorf("cmd = %+v", cmd)
	}
}

func TestCallService_Errors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		submitErr error
		noSubmit  bool
		wantCode  int
	}{
		{name: "malformed body", body: `{"entity_id":`, wantCode: http.StatusBadRequest},
		{name: "bad entity id", body: `{"entity_id":"hall"}`, wantCode: http.StatusBadRequest},
		{name: "hub not connected", submitErr: hub.ErrNotConnected, wantCode: http.StatusServiceUnavailable},
		{name: "hub failure", submitErr: errors.New("write failed"), wantCode: http.StatusBadGateway},
		{name: "no submitter", noSubmit: true, wantCode: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func(d *Deps) {
				if tt.noSubmit {
					d.Commands = nil
				}
			})
			f.submitter.err = tt.submitErr

			w := f.do(t, http.MethodPost, "/api/v1/services/switch/toggle", tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantCode, w.Body)
			}
		})
	}
}

// ─── Command log ───────────────────────────────────────────────────

func TestListCommands(t *testing.T) {
	f := newFixture(t, nil)
	f.auditRepo.entries = []audit.Entry{{ID: "cmd-1", Domain: "light", Service: "turn_on", Status: audit.StatusSucceeded}}

	w := f.do(t, http.MethodGet, "/api/v1/commands?domain=light&status=succeeded&limit=10&offset=5&entity_id=light.hall", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	want := audit.Filter{Domain: "light", EntityID: "light.hall", Status: audit.StatusSucceeded, Limit: 10, Offset: 5}
	if f.auditRepo.filter != want {
		t.Errorf("filter = %+v, want %+v", f.auditRepo.filter, want)
	}

	var resp audit.ListResult
	decode(t, w, &resp)
	if resp.Total != 1 || resp.Entries[0].ID != "cmd-1" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestGetCommand(t *testing.T) {
	f := newFixture(t, nil)
	f.auditRepo.entries = []audit.Entry{{ID: "cmd-1", Domain: "cover", Service: "open_cover"}}

	if w := f.do(t, http.MethodGet, "/api/v1/commands/cmd-1", ""); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/v1/commands/cmd-2", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}

	f.auditRepo.err = errors.New("disk I/O error")
	if w := f.do(t, http.MethodGet, "/api/v1/commands/cmd-1", ""); w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestCommands_NotConfigured(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Audit = nil })
	if w := f.do(t, http.MethodGet, "/api/v1/commands", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

// ─── Metrics ───────────────────────────────────────────────────────

func TestMetrics(t *testing.T) {
	f := newFixture(t, nil)
	seed(f, "light.a", "on", nil)
	seed(f, "light.b", "on", nil)
	seed(f, "sensor.t", "21", nil)
	f.observers.Errors.AttachAll(func(event.ErrorEvent) error { return nil })

	w := f.do(t, http.MethodGet, "/api/v1/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var m SystemMetrics
	decode(t, w, &m)
	if m.Entities.Total != 3 || m.Entities.ByDomain["light"] != 2 {
		t.Errorf("entities = %+v", m.Entities)
	}
	if !m.Hub.Connected || m.Observers.Errors != 1 {
		t.Errorf("metrics = %+v", m)
	}
}

// ─── WebSocket hub ─────────────────────────────────────────────────

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	h := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	return h
}

func TestHub_BroadcastToSubscribed(t *testing.T) {
	h := newTestHub(t)

	subscribed := h.newClient(nil)
	subscribed.subscribe(WSSubscribePayload{Channels: []string{ChannelStateChanged}})
	other := h.newClient(nil)
	other.subscribe(WSSubscribePayload{Channels: []string{ChannelEvent}})
	h.Register(subscribed)
	h.Register(other)

	h.BroadcastState(entity.MustParseID("light.hall"), StateResponse{EntityID: "light.hall"})

	select {
	case msg := <-subscribed.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.EventType != ChannelStateChanged {
			t.Errorf("event_type = %q", wsMsg.EventType)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for broadcast message")
	}

	select {
	case <-other.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_StateFilter(t *testing.T) {
	tests := []struct {
		name    string
		sub     WSSubscribePayload
		id      string
		deliver bool
	}{
		{"no filter", WSSubscribePayload{}, "sensor.outside", true},
		{"listed entity", WSSubscribePayload{EntityIDs: []string{"light.hall"}}, "light.hall", true},
		{"unlisted entity", WSSubscribePayload{EntityIDs: []string{"light.hall"}}, "light.desk", false},
		{"matching domain", WSSubscribePayload{Domains: []string{"light"}}, "light.desk", true},
		{"other domain", WSSubscribePayload{Domains: []string{"light"}}, "switch.fan", false},
		{"entity or domain", WSSubscribePayload{EntityIDs: []string{"switch.fan"}, Domains: []string{"light"}}, "switch.fan", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHub(t)
			c := h.newClient(nil)
			tt.sub.Channels = []string{ChannelStateChanged}
			c.subscribe(tt.sub)
			h.Register(c)

			h.BroadcastState(entity.MustParseID(tt.id), StateResponse{EntityID: tt.id})

			if got := len(c.send) == 1; got != tt.deliver {
				t.Errorf("delivered = %v, want %v", got, tt.deliver)
			}
		})
	}
}

func TestHub_SlowClientDropsMessages(t *testing.T) {
	h := newTestHub(t)
	c := h.newClient(nil)
	c.subscribe(WSSubscribePayload{Channels: []string{ChannelEvent}})
	h.Register(c)

	for iter := 0; iter < wsSendBufferSize+3; iter++ {
		h.Broadcast(ChannelEvent, map[string]any{"event_type": "call_service"})
	}

	if len(c.send) != wsSendBufferSize {
		t.Errorf("queued = %d, want %d", len(c.send), wsSendBufferSize)
	}
	if h.Dropped() != 3 {
		t.Errorf("Dropped() = %d, want 3", h.Dropped())
	}
}

func TestHub_ClientCount(t *testing.T) {
	h := newTestHub(t)
	client := h.newClient(nil)

	h.Register(client)
	if h.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", h.ClientCount())
	}
	h.Unregister(client)
	h.Unregister(client)
	if h.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", h.ClientCount())
	}

	// A closed client ignores late messages.
	client.enqueue([]byte("{}"))
	if _, open := <-client.send; open {
		t.Error("message queued on a closed client")
	}
}

// ─── WebSocket end to end ──────────────────────────────────────────

func dialStream(t *testing.T, f *fixture, query string) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go f.srv.ws.Run(ctx)
	f.srv.attachRelay()
	t.Cleanup(f.srv.detachRelay)

	ts := httptest.NewServer(f.srv.buildRouter())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestWebSocket_StreamsStateChanges(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Config.Token = "secret" })
	disp := event.NewDispatcher(f.store, f.observers, event.NewPending())
	conn := dialStream(t, f, "?access_token=secret")

	if err := conn.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelStateChanged}},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	if resp := readMessage(t, conn); resp.Type != WSTypeResponse || resp.ID != "sub-1" {
		t.Fatalf("subscribe response = %+v", resp)
	}

	on := entity.NewState("on", nil, time.Now(), time.Now())
	disp.Handle(event.StateChanged(event.StateChange{EntityID: entity.MustParseID("switch.kitchen"), New: &on}))

	msg := readMessage(t, conn)
	if msg.Type != WSTypeEvent || msg.EventType != ChannelStateChanged {
		t.Fatalf("message = %+v", msg)
	}
	payload, _ := msg.Payload.(map[string]any)
	if payload["entity_id"] != "switch.kitchen" {
		t.Errorf("payload = %v", msg.Payload)
	}
}

func TestWebSocket_GetStates(t *testing.T) {
	f := newFixture(t, nil)
	seed(f, "light.hall", "on", nil)
	conn := dialStream(t, f, "")

	if err := conn.WriteJSON(WSMessage{Type: WSTypeGetStates, ID: "g1"}); err != nil {
		t.Fatal(err)
	}
	resp := readMessage(t, conn)
	if resp.Type != WSTypeResponse || resp.ID != "g1" {
		t.Fatalf("get_states response = %+v", resp)
	}
	states, _ := resp.Payload.([]any)
	if len(states) != 1 {
		t.Fatalf("states = %v, want 1 entry", resp.Payload)
	}
	if first, _ := states[0].(map[string]any); first["entity_id"] != "light.hall" {
		t.Errorf("state = %v", states[0])
	}

	if err := conn.WriteJSON(WSMessage{Type: WSTypeSubscribe, ID: "s1"}); err != nil {
		t.Fatal(err)
	}
	if resp := readMessage(t, conn); resp.Type != WSTypeError || resp.ID != "s1" {
		t.Errorf("subscribe without channels = %+v, want error", resp)
	}
}

func TestWebSocket_PingAndInvalid(t *testing.T) {
	f := newFixture(t, nil)
	conn := dialStream(t, f, "")

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatal(err)
	}
	if resp := readMessage(t, conn); resp.Type != WSTypePong || resp.ID != "p1" {
		t.Errorf("ping response = %+v", resp)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{")); err != nil {
		t.Fatal(err)
	}
	if resp := readMessage(t, conn); resp.Type != WSTypeError {
		t.Errorf("invalid JSON response = %+v", resp)
	}

	if err := conn.WriteJSON(WSMessage{Type: "get_config", ID: "x"}); err != nil {
		t.Fatal(err)
	}
	if resp := readMessage(t, conn); resp.Type != WSTypeError || resp.ID != "x" {
		t.Errorf("unknown type response = %+v", resp)
	}
}

func TestWebSocket_RequiresToken(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Config.Token = "secret" })
	ts := httptest.NewServer(f.srv.buildRouter())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected error connecting without token")
	}
	if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

// ─── Lifecycle ─────────────────────────────────────────────────────

func TestServer_StartAndClose(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Config.Port = 18931 })

	if err := f.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if err := f.srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := f.srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if f.observers.States.Count() != 1 || f.observers.Events.Count() != 1 {
		t.Error("Start() should attach the websocket relay")
	}
	if err := f.srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if f.observers.States.Count() != 0 {
		t.Error("Close() should detach the websocket relay")
	}

	var notStarted Server
	if err := notStarted.Close(); err != nil {
		t.Errorf("Close() on unstarted server = %v", err)
	}
}
