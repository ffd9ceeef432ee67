// Package timeouts defines shared timeout constants used across the service.
package timeouts

import "time"

// WalletRequest caps a single call to the wallet agent admin API. Inbound
// request deadlines still apply when they are shorter.
const WalletRequest = 15 * time.Second

// HealthCheck caps one gRPC health probe.
const HealthCheck = time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight requests during
// graceful shutdown.
const Shutdown = 5 * time.Second
