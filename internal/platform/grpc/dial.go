// Package grpc holds the gRPC client helpers used to probe showcase health.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/showcase/internal/platform/timeouts"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// ProbeStage describes where a probe failed.
type ProbeStage string

const (
	// ProbeStageConnect indicates the client could not be created.
	ProbeStageConnect ProbeStage = "connect"
	// ProbeStageHealth indicates the health check never reported SERVING.
	ProbeStageHealth ProbeStage = "health"
)

const (
	probeFirstRetry = 200 * time.Millisecond
	probeMaxRetry   = time.Second
)

// ProbeError wraps probe failures with a stage indicator.
type ProbeError struct {
	Stage ProbeStage
	Err   error
}

// Error implements the error interface.
func (e *ProbeError) Error() string {
	if e == nil {
		return "gRPC probe error"
	}
	return fmt.Sprintf("gRPC %s error: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProbeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// DefaultClientDialOptions returns the dial options for local health clients.
// Calls carry trace context when a TracerProvider is registered.
func DefaultClientDialOptions() []gogrpc.DialOption {
	return []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
}

// Probe connects to addr and polls the health service until service reports
// SERVING or timeout elapses. A zero timeout relies on ctx alone. An empty
// service checks the server as a whole.
func Probe(ctx context.Context, addr string, service string, timeout time.Duration, logf func(string, ...any)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, err := gogrpc.NewClient(addr, DefaultClientDialOptions()...)
	if err != nil {
		return &ProbeError{Stage: ProbeStageConnect, Err: err}
	}
	defer conn.Close()

	if err := pollServing(ctx, grpc_health_v1.NewHealthClient(conn), service, logf); err != nil {
		return &ProbeError{Stage: ProbeStageHealth, Err: err}
	}
	return nil
}

// pollServing checks health with a doubling retry delay until SERVING or ctx
// ends. The returned error names the last observed status or failure.
func pollServing(ctx context.Context, client grpc_health_v1.HealthClient, service string, logf func(string, ...any)) error {
	target := service
	if target == "" {
		target = "server"
	}
	delay := probeFirstRetry
	var last error
	for attempt := 1; ; attempt++ {
		checkCtx, cancel := context.WithTimeout(ctx, timeouts.HealthCheck)
		resp, err := client.Check(checkCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
		cancel()
		switch {
		case err != nil:
			last = err
		case resp.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING:
			logf("%s is SERVING after %d check(s)", target, attempt)
			return nil
		default:
			last = fmt.Errorf("status %s", resp.GetStatus())
		}
		logf("%s not ready (check %d): %v", target, attempt, last)

		retry := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			retry.Stop()
			return fmt.Errorf("%s not serving: %w", target, errors.Join(ctx.Err(), last))
		case <-retry.C:
		}
		delay = min(delay*2, probeMaxRetry)
	}
}
