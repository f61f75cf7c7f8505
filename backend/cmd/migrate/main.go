package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"nomnom-api/backend/internal/graph"
	"nomnom-api/backend/internal/schema"
	"nomnom-api/backend/pkg/config"
	"nomnom-api/backend/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	force := pflag.Bool("force", false, "Reapply constraints and indexes even if the schema version is recorded")
	pflag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Get().Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Env, cfg.LogFile); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting Neo4j schema migration...", zap.Bool("force", *force))

	model, err := schema.Load()
	if err != nil {
		log.Fatal("Failed to load type definitions", zap.Error(err))
	}

	ctx := context.Background()
	driver, err := graph.OpenDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jMaxPoolSize)
	if err != nil {
		log.Fatal("Failed to connect to Neo4j", zap.Error(err))
	}

	var opts []graph.Option
	if cfg.Neo4jDatabase != "" {
		opts = append(opts, graph.WithDatabase(cfg.Neo4jDatabase))
	}
	repo := graph.NewRepository(driver, model, opts...)
	defer repo.Close()

	applied, err := repo.EnsureSchema(ctx, *force)
	if err != nil {
		log.Error("Migration failed", zap.Error(err))
		os.Exit(1)
	}
	if !applied {
		log.Info("Migration already applied. Use --force to reapply.")
		return
	}
	log.Info("Migration completed successfully", zap.String("version", graph.SchemaVersion))
}
