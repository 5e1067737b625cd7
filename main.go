package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"crypto-signal-engine/config"
	"crypto-signal-engine/internal/logging"
	"crypto-signal-engine/internal/system"
)

func main() {
	configPath := flag.String("config", "", "path to JSON configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(&logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     cfg.LoggingConfig.Output,
		Component:  "main",
		JSONFormat: cfg.LoggingConfig.JSONFormat,
	})
	logging.SetDefault(logger)

	sys, err := system.New(cfg)
	if err != nil {
		logger.Error("Failed to initialize system", "error", err.Error())
		os.Exit(1)
	}

	if err := sys.Start(); err != nil {
		logger.Error("Failed to start system", "error", err.Error())
		sys.Close()
		os.Exit(1)
	}
	logger.Info("Signal engine running", "db", cfg.DatabaseConfig.Path)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Shutting down", "signal", sig.String())

	if err := sys.Stop(); err != nil {
		logger.Error("Shutdown error", "error", err.Error())
	}
	if err := sys.Close(); err != nil {
		logger.Error("Failed to close store", "error", err.Error())
	}
}
