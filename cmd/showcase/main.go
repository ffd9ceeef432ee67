// Package main starts the showcase service process lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	showcasecmd "github.com/louisbranch/showcase/internal/cmd/showcase"
	entrypoint "github.com/louisbranch/showcase/internal/platform/cmd"
	"github.com/louisbranch/showcase/internal/platform/config"
)

func main() {
	cfg, err := showcasecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[SHOWCASE] ")
	ctx, stop := entrypoint.SignalContext(context.Background())
	defer stop()

	if err := showcasecmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
