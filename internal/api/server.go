package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/actuator"
	"github.com/nerrad567/gray-logic-hub/internal/audit"
	"github.com/nerrad567/gray-logic-hub/internal/entity"
	"github.com/nerrad567/gray-logic-hub/internal/event"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-hub/internal/observer"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HubStatus reports the upstream hub connection.
type HubStatus interface {
	IsConnected() bool
	HAVersion() string
}

// HealthChecker is implemented by every infrastructure client.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Logger    *logging.Logger
	Store     *entity.Store
	Observers *event.Observers // optional: enables the WebSocket stream
	Hub       HubStatus        // optional
	Commands  actuator.Submitter
	Audit     audit.Repository // optional: enables /commands

	// Checks are reported by /health under their map key.
	Checks  map[string]HealthChecker
	Version string
}

// Server is the HTTP API server.
//
// It is created with New(), started with Start() and stopped with Close().
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	store     *entity.Store
	observers *event.Observers
	hubStatus HubStatus
	commands  actuator.Submitter
	auditRepo audit.Repository
	checks    map[string]HealthChecker
	version   string
	startTime time.Time

	server *http.Server
	ws     *Hub
	cancel context.CancelFunc

	stateHandle observer.Handle
	eventHandle observer.Handle
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, store) plus optional ones
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("entity store is required")
	}

	s := &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		store:     deps.Store,
		observers: deps.Observers,
		hubStatus: deps.Hub,
		commands:  deps.Commands,
		auditRepo: deps.Audit,
		checks:    deps.Checks,
		version:   deps.Version,
		startTime: time.Now(),
		ws:        NewHub(deps.Config.WebSocket, deps.Logger),
	}
	s.ws.SetSnapshot(s.allStates)
	return s, nil
}

// Start begins listening for HTTP connections.
//
// It attaches the WebSocket relay to the observers and launches the HTTP
// listener in a background goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for the WebSocket hub
//
// Returns:
//   - error: If the server fails to start
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.ws.Run(srvCtx)
	s.attachRelay()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	s.detachRelay()
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// attachRelay forwards state changes and named events to WebSocket
// subscribers.
func (s *Server) attachRelay() {
	if s.observers == nil {
		return
	}
	s.stateHandle = s.observers.States.AttachAll(func(c event.Change) error {
		s.ws.BroadcastState(c.EntityID, statePayload(c.EntityID, c.Entry))
		return nil
	})
	s.eventHandle = s.observers.Events.AttachAll(func(ev event.NamedEvent) error {
		s.ws.Broadcast(ChannelEvent, ev)
		return nil
	})
}

func (s *Server) detachRelay() {
	if s.observers == nil {
		return
	}
	s.observers.States.Detach(s.stateHandle)
	s.observers.Events.Detach(s.eventHandle)
}
