// Package app wires the showcase HTTP API, its gRPC health endpoint, and
// storage into one runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/showcase/internal/platform/timeouts"
	"github.com/louisbranch/showcase/internal/services/showcase/api/httpapi"
	"github.com/louisbranch/showcase/internal/services/showcase/bootstrap"
	"github.com/louisbranch/showcase/internal/services/showcase/invitation"
	showcasesqlite "github.com/louisbranch/showcase/internal/services/showcase/storage/sqlite"
	"github.com/louisbranch/showcase/internal/services/showcase/tenantauth"
	"github.com/louisbranch/showcase/internal/services/showcase/wallet"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the gRPC health service name reported while the HTTP API
// is serving.
const HealthService = "showcase"

// Config carries everything needed to start a server.
type Config struct {
	GRPCPort          int
	HTTPAddr          string
	DBPath            string
	BootstrapPath     string
	WalletAdminURL    string
	WalletAdminAPIKey string
	Token             tenantauth.Config
	// HTTPClient is used for wallet agent calls. Nil uses a default client.
	HTTPClient *http.Client
}

// Server hosts the showcase service.
type Server struct {
	listener     net.Listener
	grpcServer   *grpc.Server
	health       *health.Server
	store        *showcasesqlite.Store
	httpListener net.Listener
	httpServer   *http.Server
}

// New creates a configured showcase server. Listeners are bound before New
// returns.
func New(ctx context.Context, cfg Config) (*Server, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return nil, errors.New("http address is required")
	}
	remote, err := wallet.NewClient(cfg.WalletAdminURL, cfg.WalletAdminAPIKey, cfg.HTTPClient)
	if err != nil {
		return nil, err
	}
	bridge, err := tenantauth.NewBridge(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("configure bearer bridge: %w", err)
	}
	authenticator, err := tenantauth.NewAuthenticator(remote, cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("configure authenticator: %w", err)
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if _, err := bootstrap.ApplyFile(ctx, store, cfg.BootstrapPath, time.Now()); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("bootstrap tenants: %w", err)
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen on port %d: %w", cfg.GRPCPort, err)
	}
	httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, fmt.Errorf("listen on http addr %s: %w", cfg.HTTPAddr, err)
	}

	handler := httpapi.NewHandler(invitation.NewCoordinator(store, remote), authenticator, bridge)
	httpServer := &http.Server{
		Handler:           handler.Routes(),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		listener:     listener,
		grpcServer:   grpcServer,
		health:       healthServer,
		store:        store,
		httpListener: httpListener,
		httpServer:   httpServer,
	}, nil
}

// Addr returns the gRPC health listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// HTTPAddr returns the HTTP listener address.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// Run creates and serves a showcase server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts both listeners and blocks until one stops or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.closeStore()

	log.Printf("showcase gRPC health listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	log.Printf("showcase HTTP server listening at %v", s.httpListener.Addr())
	httpErr := make(chan error, 1)
	go func() {
		httpErr <- s.httpServer.Serve(s.httpListener)
	}()

	handleErr := func(err error) error {
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}

	shutdownGRPC := func() {
		if s.health != nil {
			s.health.Shutdown()
		}
		s.grpcServer.GracefulStop()
	}
	shutdownHTTP := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown showcase HTTP server: %v", err)
		}
	}

	select {
	case <-ctx.Done():
		shutdownHTTP()
		shutdownGRPC()
		err := <-serveErr
		return handleErr(err)
	case err := <-serveErr:
		shutdownHTTP()
		return handleErr(err)
	case err := <-httpErr:
		shutdownGRPC()
		grpcErr := <-serveErr
		if errors.Is(err, http.ErrServerClosed) {
			return handleErr(grpcErr)
		}
		if handled := handleErr(grpcErr); handled != nil {
			return handled
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
}

func openStore(path string) (*showcasesqlite.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = filepath.Join("data", "showcase.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	store, err := showcasesqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open showcase sqlite store: %w", err)
	}
	return store, nil
}

func (s *Server) closeStore() {
	if s == nil {
		return
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close showcase store: %v", err)
		}
	}
}
