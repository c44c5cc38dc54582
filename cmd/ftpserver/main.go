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
	"github.com/djpetti/meshwire/internal/ftpsvc"
	"github.com/djpetti/meshwire/internal/logging"
	"github.com/djpetti/meshwire/internal/pool"
)

func main() {
	configPath := flag.String("config", "/etc/meshwire/ftpserver.yaml", "path to FTP server config file")
	flag.Parse()

	cfg, err := config.LoadFTPServerConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, closer := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	defer closer.Close()

	commandLn, err := listenTCP(cfg.CommandListen)
	if err != nil {
		logger.Error("failed to bind command listener", "address", cfg.CommandListen, "error", err)
		os.Exit(1)
	}
	terminateLn, err := listenTCP(cfg.TerminateListen)
	if err != nil {
		logger.Error("failed to bind terminate listener", "address", cfg.TerminateListen, "error", err)
		os.Exit(1)
	}

	p := pool.New(0)
	server := ftpsvc.NewServer(commandLn, terminateLn, p, cfg.RootDir, logger)

	logger.Info("ftp server started",
		"command_listen", cfg.CommandListen,
		"terminate_listen", cfg.TerminateListen,
		"root_dir", cfg.RootDir)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)

	server.Close()
	p.Close()
}

func listenTCP(addr string) (*net.TCPListener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", addr, err)
	}
	return net.ListenTCP("tcp", tcpAddr)
}
