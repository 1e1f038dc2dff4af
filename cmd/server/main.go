package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/ssergeev/studysync/internal/server"
	"github.com/ssergeev/studysync/internal/server/config"
)

func main() {
	// .env is optional; real deployments set environment variables directly.
	_ = godotenv.Load()

	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)
}
