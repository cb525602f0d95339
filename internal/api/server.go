package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/fieldlink/fieldlink-core/internal/auth"
	"github.com/fieldlink/fieldlink-core/internal/command"
	"github.com/fieldlink/fieldlink-core/internal/coordinator"
	"github.com/fieldlink/fieldlink-core/internal/dispatch"
	"github.com/fieldlink/fieldlink-core/internal/eventbus"
	"github.com/fieldlink/fieldlink-core/internal/infrastructure/config"
	"github.com/fieldlink/fieldlink-core/internal/infrastructure/logging"
	"github.com/fieldlink/fieldlink-core/internal/infrastructure/mqtt"
	"github.com/fieldlink/fieldlink-core/internal/usage"
)

// gracefulShutdownTimeout bounds how long Close waits for in-flight requests.
const gracefulShutdownTimeout = 10 * time.Second

// IdentityResolver turns bearer tokens into users.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token string) (*auth.User, error)
}

// CommandLister lists the command catalog.
type CommandLister interface {
	List() []command.Command
}

// Dispatcher accepts command requests.
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) (dispatch.Result, error)
}

// BrokerStatus reports the broker connection status.
type BrokerStatus interface {
	Status() mqtt.Status
}

// NodeLister lists coordinator membership.
type NodeLister interface {
	NodesByCoordinator(ctx context.Context) (map[int][]coordinator.Node, error)
}

// UsageSummary reports per-command usage.
type UsageSummary interface {
	Summary(ctx context.Context) ([]usage.CommandCount, error)
}

// EventPublisher publishes development echo events.
type EventPublisher interface {
	Publish(topic eventbus.Topic, payload any)
}

// Gateway admits WebSocket subscribers. *gateway.Gateway implements it.
type Gateway interface {
	Authenticate(r *http.Request) (*auth.User, error)
	Accept(w http.ResponseWriter, r *http.Request, user *auth.User) error
}

// HealthChecker is a dependency checked by /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the server's collaborators. Usage, Metrics, Database, MQTT
// and InfluxDB are optional.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	DevMode  bool
	Version  string
	Logger   *logging.Logger
	Resolver IdentityResolver
	Catalog  CommandLister
	Dispatch Dispatcher
	Broker   BrokerStatus
	Nodes    NodeLister
	Usage    UsageSummary
	Events   EventPublisher
	Gateway  Gateway
	Metrics  http.Handler
	Database HealthChecker
	MQTT     HealthChecker
	InfluxDB HealthChecker
}

// Server is the HTTP API.
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	devMode  bool
	version  string
	logger   *logging.Logger
	resolver IdentityResolver
	catalog  CommandLister
	dispatch Dispatcher
	broker   BrokerStatus
	nodes    NodeLister
	usage    UsageSummary
	events   EventPublisher
	gateway  Gateway
	metrics  http.Handler
	database HealthChecker
	mqtt     HealthChecker
	influxdb HealthChecker

	server *http.Server
}

// New validates deps and builds a server. Nothing listens until Start.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, errors.New("logger is required")
	case deps.Resolver == nil:
		return nil, errors.New("identity resolver is required")
	case deps.Catalog == nil:
		return nil, errors.New("command catalog is required")
	case deps.Dispatch == nil:
		return nil, errors.New("dispatcher is required")
	case deps.Broker == nil:
		return nil, errors.New("broker is required")
	case deps.Nodes == nil:
		return nil, errors.New("coordinator repository is required")
	case deps.Events == nil:
		return nil, errors.New("event bus is required")
	case deps.Gateway == nil:
		return nil, errors.New("gateway is required")
	}

	return &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		devMode:  deps.DevMode,
		version:  deps.Version,
		logger:   deps.Logger.With("component", "api"),
		resolver: deps.Resolver,
		catalog:  deps.Catalog,
		dispatch: deps.Dispatch,
		broker:   deps.Broker,
		nodes:    deps.Nodes,
		usage:    deps.Usage,
		events:   deps.Events,
		gateway:  deps.Gateway,
		metrics:  deps.Metrics,
		database: deps.Database,
		mqtt:     deps.MQTT,
		influxdb: deps.InfluxDB,
	}, nil
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in the background. Binding errors
// are returned; later serve errors are logged.
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", s.server.Addr, err)
	}
	s.logger.Info("API server listening", "address", ln.Addr().String(), "dev_mode", s.devMode)

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Close shuts the server down, waiting for in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
