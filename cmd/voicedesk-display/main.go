package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"voicedesk/internal/display"
	"voicedesk/internal/infra/presentation"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7788", "host presentation address")
	logPath := flag.String("log", "voicedesk-display.log", "log file (the terminal belongs to the UI)")
	flag.Parse()

	_ = godotenv.Load()

	logFile, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := slog.New(slog.NewTextHandler(logFile, nil))

	client := presentation.NewClient(presentation.ClientConfig{
		URL:       "ws://" + *addr + "/ws",
		AuthToken: os.Getenv("VOICEDESK_AUTH_TOKEN"),
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := client.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("host connection", "error", err)
		}
	}()

	program := tea.NewProgram(display.New(client, client.Events()), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		logger.Error("display error", "error", err)
		fmt.Fprintf(os.Stderr, "display error: %v\n", err)
		os.Exit(1)
	}
}
