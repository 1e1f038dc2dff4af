package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/ssergeev/studysync/internal/client/cli"
	"github.com/ssergeev/studysync/internal/client/config"
	"github.com/ssergeev/studysync/internal/logging"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	app, err := cli.NewApp(ctx, cfg, logger, os.Stdout)
	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
	defer app.Close()

	// Flags are consumed by config.LoadConfig; re-declare them here only so
	// the parser can skip past them to the command and its positional args.
	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.String("a", "", "sync server base URL")
	fs.String("k", "", "bearer token")
	fs.String("d", "", "sqlite database path")
	fs.String("c", "", "path to JSON config file")
	fs.String("config", "", "path to JSON config file")
	_ = fs.Parse(os.Args[1:])

	if err := app.Run(ctx, fs.Args()); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}
