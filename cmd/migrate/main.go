package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"gopattern/adapters/db/postgres/migrations"
	"gopattern/adapters/postgres"
	"gopattern/internal"
	"gopattern/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate <up|down|status>")
	}

	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.RequireDatabase(); err != nil {
		log.Fatal(err)
	}
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.Log.Level))

	ctx := context.Background()
	db, err := postgres.Open(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	migrator := migrations.NewMigrator(db, logger)
	switch os.Args[1] {
	case "up":
		applied, err := migrator.Up(ctx)
		if err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		fmt.Printf("Applied %d migration(s)\n", len(applied))
	case "down":
		version, err := migrator.Down(ctx)
		if err != nil {
			log.Fatalf("Rollback failed: %v", err)
		}
		fmt.Printf("Rolled back migration record %s\n", version)
	case "status":
		status, err := migrator.Status(ctx)
		if err != nil {
			log.Fatalf("Status failed: %v", err)
		}
		fmt.Println("Migration Status:")
		fmt.Println("=================")
		applied := 0
		for _, s := range status {
			state := "pending"
			if s.Applied {
				state = "applied"
				applied++
			}
			fmt.Printf("  %s: %s\n", s.Name, state)
		}
		fmt.Printf("\nSummary: %d/%d migrations applied\n", applied, len(status))
	default:
		log.Fatalf("Unknown command %q (want up, down or status)", os.Args[1])
	}
}
