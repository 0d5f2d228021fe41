// Package api exposes the REST surface of the state store.
//
// Every endpoint is one command: /{command}/{comma-separated-ids}?{query}.
// A request walks a fixed pipeline — parse the query, authenticate,
// authorize, execute the command, render the response — terminating on
// the first failure.
//
// The server follows the usual lifecycle pattern:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: all methods are safe for concurrent use.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/oakhurst-automation/stategate/internal/acl"
	"github.com/oakhurst-automation/stategate/internal/auth"
	"github.com/oakhurst-automation/stategate/internal/await"
	"github.com/oakhurst-automation/stategate/internal/history"
	"github.com/oakhurst-automation/stategate/internal/infrastructure/config"
	"github.com/oakhurst-automation/stategate/internal/infrastructure/logging"
	"github.com/oakhurst-automation/stategate/internal/resolver"
	"github.com/oakhurst-automation/stategate/internal/store"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// WritePublisher announces unacknowledged writes to protocol bridges.
type WritePublisher interface {
	PublishWrite(id string, state store.State)
}

// Recorder receives every successful write for history recording.
type Recorder interface {
	Record(id string, val any, ts time.Time)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	AuthCfg  config.AuthConfig
	Logger   *logging.Logger
	Store    store.Store
	Resolver *resolver.Resolver
	Gate     *acl.Gate
	Tracker  *await.Tracker
	Auth     auth.Authenticator

	// History is the optional time-series source for query and search.
	History history.Source

	// Publisher is the optional bridge announcing writes over MQTT.
	Publisher WritePublisher

	// Recorder is the optional history recorder for successful writes.
	Recorder Recorder

	Version string
}

// Server is the REST gateway over the state store.
type Server struct {
	cfg      config.APIConfig
	authCfg  config.AuthConfig
	logger   *logging.Logger
	store    store.Store
	resolver *resolver.Resolver
	gate     *acl.Gate
	tracker  *await.Tracker
	auth     auth.Authenticator
	history  history.Source
	pub      WritePublisher
	recorder Recorder
	version  string

	server *http.Server
}

// New creates an API server. It is not listening until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Store == nil {
		return nil, errors.New("store is required")
	}
	if deps.Resolver == nil {
		return nil, errors.New("resolver is required")
	}
	if deps.Gate == nil {
		return nil, errors.New("permission gate is required")
	}
	if deps.Tracker == nil {
		return nil, errors.New("tracker is required")
	}
	// Auth is optional when authCfg.Enabled is false; History, Publisher,
	// and Recorder are always optional.
	if deps.AuthCfg.Enabled && deps.Auth == nil {
		return nil, errors.New("authenticator is required when auth is enabled")
	}

	return &Server{
		cfg:      deps.Config,
		authCfg:  deps.AuthCfg,
		logger:   deps.Logger,
		store:    deps.Store,
		resolver: deps.Resolver,
		gate:     deps.Gate,
		tracker:  deps.Tracker,
		auth:     deps.Auth,
		history:  deps.History,
		pub:      deps.Publisher,
		recorder: deps.Recorder,
		version:  deps.Version,
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the server, waiting up to ten seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
