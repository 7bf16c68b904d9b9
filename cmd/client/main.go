package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tyrowin/directchat/internal/client"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "relay base URL")
	username := flag.String("name", "", "username to register (prompted when empty)")
	logLevel := flag.String("log-level", "warn", "log level: debug, info, warn or error")
	flag.Parse()

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(*logLevel)); err != nil {
		lvl = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(client.Config{
		ServerURL: *serverURL,
		Username:  *username,
	}, os.Stdin, os.Stdout, logger)

	if err := c.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "chat client: %v\n", err)
		stop()
		os.Exit(1)
	}
}
