package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-dali-bridge/internal/device"
	"github.com/nerrad567/gray-logic-dali-bridge/internal/gateway"
	"github.com/nerrad567/gray-logic-dali-bridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dali-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-dali-bridge/internal/infrastructure/mqtt"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// BusClient is the slice of the bus MQTT client the API server uses.
// Satisfied by *mqtt.Client.
type BusClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// GatewayLink exposes the live connection state of one gateway link.
// Satisfied by *gateway.Connection.
type GatewayLink interface {
	State() gateway.State
}

// GatewayInfo describes one configured gateway link for the status endpoints.
type GatewayInfo struct {
	SerialNumber string
	Name         string
	Conn         GatewayLink
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Registry *device.Registry
	Bus      BusClient // optional: commands and scans fail with 503 when nil
	Gateways []GatewayInfo
	Version  string
}

// Server is the local HTTP API server for the DALI bridge.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	logger   *logging.Logger
	registry *device.Registry
	bus      BusClient
	gateways []GatewayInfo
	version  string
	server   *http.Server
	hub      *Hub
	cancel   context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, registry)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	// Bus is optional: reads and WebSocket still function without it.

	return &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		registry: deps.Registry,
		bus:      deps.Bus,
		gateways: deps.Gateways,
		version:  deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, subscribes to bus state
// topics for real-time WebSocket broadcast, and launches the HTTP listener
// in a background goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.logger)
	go s.hub.Run(srvCtx)

	// Relay device state and event publications to WebSocket clients
	if err := s.subscribeBusUpdates(); err != nil {
		s.logger.Warn("failed to subscribe to bus updates for WebSocket", "error", err)
	}

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
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
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub, bus relay)
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

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
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
