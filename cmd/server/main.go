package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"rendezvous-api/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Stdout, os.Args[1:]); err != nil {
		log.Fatalf("rendezvous-api: %v", err)
	}
}
