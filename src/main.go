package main

import (
	"log"
	"log/slog"
	"os"

	"interview-copilot-service/logger"
	"interview-copilot-service/src/config"
	"interview-copilot-service/src/server"
)

// @title Interview Copilot Service API
// @version 1.0
// @description Real-time copilot session coordination and usage billing

func main() {
	cfg := loadConfig()
	setupLogging(cfg)

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	if err := srv.Run(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() *config.GlobalConfig {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return cfg
}

func setupLogging(cfg *config.GlobalConfig) {
	logger.Init(cfg.LogLevel)

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(slogger)
}
