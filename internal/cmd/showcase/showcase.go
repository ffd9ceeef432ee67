// Package showcase parses showcase command flags and launches the service.
package showcase

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/showcase/internal/platform/cmd"
	platformgrpc "github.com/louisbranch/showcase/internal/platform/grpc"
	server "github.com/louisbranch/showcase/internal/services/showcase/app"
	"github.com/louisbranch/showcase/internal/services/showcase/tenantauth"
)

// Config holds showcase command configuration.
type Config struct {
	HTTPAddr          string        `env:"SHOWCASE_HTTP_ADDR" envDefault:":5100"`
	GRPCPort          int           `env:"SHOWCASE_GRPC_PORT" envDefault:"5101"`
	DBPath            string        `env:"SHOWCASE_DB_PATH" envDefault:"data/showcase.db"`
	WalletAdminURL    string        `env:"SHOWCASE_ACAPY_ADMIN_URL"`
	WalletAdminAPIKey string        `env:"SHOWCASE_ACAPY_ADMIN_API_KEY"`
	BootstrapPath     string        `env:"SHOWCASE_BOOTSTRAP_PATH"`
	Probe             bool
	ProbeTimeout      time.Duration `env:"SHOWCASE_PROBE_TIMEOUT" envDefault:"5s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The showcase HTTP server address")
	fs.IntVar(&cfg.GRPCPort, "port", cfg.GRPCPort, "The showcase gRPC health server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The showcase SQLite database path")
	fs.StringVar(&cfg.WalletAdminURL, "acapy-admin-url", cfg.WalletAdminURL, "The wallet agent admin API base URL")
	fs.StringVar(&cfg.BootstrapPath, "bootstrap", cfg.BootstrapPath, "Optional sandbox/tenant bootstrap manifest")
	fs.BoolVar(&cfg.Probe, "probe", false, "Check the health of a running server and exit")
	fs.DurationVar(&cfg.ProbeTimeout, "probe-timeout", cfg.ProbeTimeout, "Health probe timeout")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	cfg.WalletAdminURL = strings.TrimSpace(cfg.WalletAdminURL)
	if !cfg.Probe && cfg.WalletAdminURL == "" {
		return Config{}, fmt.Errorf("SHOWCASE_ACAPY_ADMIN_URL is required")
	}
	return cfg, nil
}

// Run starts the showcase server, or probes a running one when Probe is set.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Probe {
		return probe(ctx, cfg)
	}
	token, err := tenantauth.LoadConfigFromEnv(time.Now)
	if err != nil {
		return err
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceShowcase, func(ctx context.Context) error {
		return server.Run(ctx, server.Config{
			GRPCPort:          cfg.GRPCPort,
			HTTPAddr:          cfg.HTTPAddr,
			DBPath:            cfg.DBPath,
			BootstrapPath:     cfg.BootstrapPath,
			WalletAdminURL:    cfg.WalletAdminURL,
			WalletAdminAPIKey: cfg.WalletAdminAPIKey,
			Token:             token,
		})
	})
}

func probe(ctx context.Context, cfg Config) error {
	addr := net.JoinHostPort("localhost", strconv.Itoa(cfg.GRPCPort))
	if err := platformgrpc.Probe(ctx, addr, server.HealthService, cfg.ProbeTimeout, log.Printf); err != nil {
		return err
	}
	return nil
}
