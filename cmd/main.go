package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/victornm/quizportal/internal/config"
	"github.com/victornm/quizportal/internal/server"
)

func main() {
	setupLogger()

	c, err := loadConfig()
	if err != nil {
		fatal("main: load config failed", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGTERM, os.Interrupt)

	s, err := server.Init(c)
	if err != nil {
		fatal("main: init server failed", err)
	}

	go s.Start()

	sig := <-shutdown
	slog.Info("main: shutting down", "signal", sig.String())
	s.Shutdown()
}

// setupLogger logs JSON to stdout at LOG_LEVEL (debug, info, warn, error), info by default.
func setupLogger() {
	var lvl slog.Level
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := lvl.UnmarshalText([]byte(v)); err != nil {
			lvl = slog.LevelInfo
		}
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}

func loadConfig() (server.Config, error) {
	c := server.DefaultConfig()

	p := os.Getenv("CONFIG_PATH")
	if p == "" {
		return c, fmt.Errorf("CONFIG_PATH not set")
	}

	if err := config.Load(p, &c); err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}

	return c, nil
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
