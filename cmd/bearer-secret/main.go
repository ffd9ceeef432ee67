package main

import (
	"flag"
	"os"

	"github.com/louisbranch/showcase/internal/platform/config"
	"github.com/louisbranch/showcase/internal/tools/bearersecret"
)

func main() {
	cfg, err := bearersecret.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := bearersecret.Run(cfg, os.Stdout, nil); err != nil {
		config.Exitf("generate secret: %v", err)
	}
}
