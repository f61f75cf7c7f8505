package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
	"nomnom-api/backend/internal/graph"
	"nomnom-api/backend/internal/schema"
	"nomnom-api/backend/pkg/config"
	"nomnom-api/backend/pkg/logger"
	"go.uber.org/zap"
)

// catalogue is the layout of an ingredients seed file.
type catalogue struct {
	Ingredients []graph.IngredientSeed `yaml:"ingredients"`
}

func main() {
	file := pflag.StringP("file", "f", "data/ingredients.yaml", "Ingredient catalogue to load")
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
	log.Info("Starting ingredient seeding...", zap.String("file", *file))

	seeds, err := readCatalogue(*file)
	if err != nil {
		log.Fatal("Failed to read catalogue", zap.Error(err))
	}

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

	created, err := repo.UpsertIngredients(ctx, seeds)
	if err != nil {
		log.Error("Seeding failed", zap.Error(err))
		os.Exit(1)
	}
	log.Info("Seeding completed",
		zap.Int("entries", len(seeds)),
		zap.Int("created", created),
	)
}

func readCatalogue(path string) ([]graph.IngredientSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var c catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(c.Ingredients) == 0 {
		return nil, fmt.Errorf("%s lists no ingredients", path)
	}
	return c.Ingredients, nil
}
