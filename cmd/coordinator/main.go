// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/djpetti/meshwire/internal/config"
	"github.com/djpetti/meshwire/internal/logging"
	"github.com/djpetti/meshwire/internal/pool"
	"github.com/djpetti/meshwire/internal/relaycoord"
)

func main() {
	configPath := flag.String("config", "/etc/meshwire/coordinator.yaml", "path to coordinator config file")
	flag.Parse()

	cfg, err := config.LoadCoordinatorConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, closer := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	defer closer.Close()

	tcpAddr, err := net.ResolveTCPAddr("tcp", cfg.Listen)
	if err != nil {
		logger.Error("failed to resolve listen address", "address", cfg.Listen, "error", err)
		os.Exit(1)
	}
	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		logger.Error("failed to bind control listener", "address", cfg.Listen, "error", err)
		os.Exit(1)
	}

	p := pool.New(0)
	coord, err := relaycoord.NewCoordinator(ln, p, cfg.ReplayThreshold, cfg.RetentionSweep, cfg.SessionLogDir, logger)
	if err != nil {
		logger.Error("failed to start coordinator", "error", err)
		os.Exit(1)
	}

	logger.Info("coordinator started",
		"listen", cfg.Listen,
		"replay_threshold", cfg.ReplayThreshold,
		"retention_sweep", cfg.RetentionSweep)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)

	coord.Close()
	p.Close()
}
