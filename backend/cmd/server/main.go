package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"nomnom-api/backend/internal/adapter"
	"nomnom-api/backend/internal/assistant"
	"nomnom-api/backend/internal/auth"
	"nomnom-api/backend/internal/graph"
	"nomnom-api/backend/internal/policy"
	"nomnom-api/backend/internal/resolver"
	"nomnom-api/backend/internal/schema"
	"nomnom-api/backend/internal/server"
	"nomnom-api/backend/pkg/config"
	"nomnom-api/backend/pkg/logger"
	"go.uber.org/zap"
)

func main() {
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
	log.Info("Starting GraphQL API server...", zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("Server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	model, err := schema.Load()
	if err != nil {
		return fmt.Errorf("failed to load type definitions: %w", err)
	}

	driver, err := graph.OpenDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jMaxPoolSize)
	if err != nil {
		return err
	}

	var repoOpts []graph.Option
	if cfg.Neo4jDatabase != "" {
		repoOpts = append(repoOpts, graph.WithDatabase(cfg.Neo4jDatabase))
	}
	repo := graph.NewRepository(driver, model, repoOpts...)
	defer repo.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	evaluator := policy.NewEvaluator(model, policy.WithMetrics(policy.NewMetrics(reg)))

	var resolverOpts []resolver.Option
	if cfg.AssistantEnabled() {
		llm := adapter.NewLLMAdapter(cfg.AssistantURL, cfg.AssistantAPIKey, cfg.AssistantModel)
		resolverOpts = append(resolverOpts, resolver.WithAssistant(assistant.New(repo, llm)))
		log.Info("Chat assistant enabled", zap.String("model", cfg.AssistantModel))
	}

	root := resolver.New(repo, evaluator, newVerifier(cfg, log), resolverOpts...)
	executable, err := resolver.NewSchema(root, resolver.SchemaOptions{
		Introspection: !cfg.IsProduction(),
	})
	if err != nil {
		return fmt.Errorf("failed to build GraphQL schema: %w", err)
	}

	srv := server.New(executable, server.Options{
		GraphQLPath:    cfg.GraphQLPath,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Playground:     !cfg.IsProduction(),
		Release:        cfg.IsProduction(),
		Gatherer:       reg,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Search and id uniqueness depend on the indexes being in place.
		if _, err := repo.EnsureSchema(gctx, false); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return srv.Run(gctx, ":"+cfg.Port)
	})
	return g.Wait()
}

func newVerifier(cfg *config.Config, log *zap.Logger) auth.Verifier {
	if cfg.JWKSURL == "" {
		log.Warn("JWKS_URL not set, verifying tokens with the shared development secret")
		return auth.NewSecretVerifier(cfg.JWTSecret)
	}
	opts := []auth.JWKSOption{auth.WithKeyTTL(cfg.JWKSCacheTTL)}
	if cfg.JWTIssuer != "" {
		opts = append(opts, auth.WithIssuer(cfg.JWTIssuer))
	}
	if cfg.JWTAudience != "" {
		opts = append(opts, auth.WithAudience(cfg.JWTAudience))
	}
	return auth.NewJWKSVerifier(cfg.JWKSURL, opts...)
}
