package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ssd-technologies/trustgate/internal/config"
	"github.com/ssd-technologies/trustgate/internal/notify"
	"github.com/ssd-technologies/trustgate/internal/server"
	"github.com/ssd-technologies/trustgate/internal/storage"
	"github.com/ssd-technologies/trustgate/internal/token"
	"github.com/ssd-technologies/trustgate/internal/trust"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	dataDir := os.Getenv("TRUSTGATE_DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	secret := os.Getenv("TRUSTGATE_SECRET")
	if secret == "" {
		log.Fatal("TRUSTGATE_SECRET environment variable is required")
	}
	apiKey := os.Getenv("TRUSTGATE_API_KEY")
	if apiKey == "" {
		log.Fatal("TRUSTGATE_API_KEY environment variable is required")
	}

	db, err := storage.NewDB(dataDir + "/trustgate.db")
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	engineCfg := trust.Config{SecretKey: secret}
	if path := os.Getenv("TRUSTGATE_CONFIG"); path != "" {
		file, err := config.Load(path)
		if err != nil {
			log.Fatalf("Failed to load config file: %v", err)
		}
		engineCfg.Weights = file.Weights
		engineCfg.Tiers = file.Tiers
		engineCfg.Policies = file.PolicyTable()
	}

	// Seed the tier table on first run, then load it so administrative
	// updates survive restarts. A config-file tier table takes precedence.
	if engineCfg.Tiers == nil {
		if err := db.SeedTiers(trust.DefaultTiers()); err != nil {
			log.Fatalf("Failed to seed tiers: %v", err)
		}
		tiers, err := db.ListTiers()
		if err != nil {
			log.Fatalf("Failed to load tiers: %v", err)
		}
		engineCfg.Tiers = tiers
	}

	hub := notify.NewHub()
	dispatcher := notify.NewDispatcher(db, hub)
	engineCfg.Notifier = dispatcher

	engine, err := trust.NewEngine(db, engineCfg)
	if err != nil {
		log.Fatalf("Failed to build trust engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Run(ctx)

	srv := server.New(db, engine, token.NewIssuer(secret), hub, apiKey)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		cancel()
	}()

	fmt.Printf("Trustgate running on http://localhost:%s\n", port)
	log.Fatal(http.ListenAndServe(":"+port, srv))
}
