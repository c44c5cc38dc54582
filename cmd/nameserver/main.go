// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/djpetti/meshwire/internal/config"
	"github.com/djpetti/meshwire/internal/hashring"
	"github.com/djpetti/meshwire/internal/logging"
)

func main() {
	configPath := flag.String("config", "/etc/meshwire/nameserver.yaml", "path to name server config file")
	flag.Parse()

	cfg, err := config.LoadHashRingConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, closer := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	defer closer.Close()

	self, err := parseEndpoint(cfg.Listen)
	if err != nil {
		logger.Error("failed to parse listen address", "address", cfg.Listen, "error", err)
		os.Exit(1)
	}

	var bootstrap hashring.Endpoint
	if cfg.BootstrapAddress != "" {
		bootstrap, err = parseEndpoint(cfg.BootstrapAddress)
		if err != nil {
			logger.Error("failed to parse bootstrap address", "address", cfg.BootstrapAddress, "error", err)
			os.Exit(1)
		}
	}

	node := hashring.NewNode(self, bootstrap, logger)
	node.LogUnimplemented()

	logger.Info("name server started", "self", node.Self, "bootstrap", node.Bootstrap)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
}

func parseEndpoint(addr string) (hashring.Endpoint, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return hashring.Endpoint{}, fmt.Errorf("parsing %q: %w", addr, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return hashring.Endpoint{}, fmt.Errorf("parsing port in %q: %w", addr, err)
	}
	return hashring.Endpoint{Host: host, Port: uint16(port)}, nil
}
