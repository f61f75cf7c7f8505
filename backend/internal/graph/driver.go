package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	neo4jconfig "github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
	"nomnom-api/backend/pkg/logger"
	"go.uber.org/zap"
)

// OpenDriver connects to the entity store and verifies it is reachable.
func OpenDriver(ctx context.Context, uri, user, password string, maxPoolSize int) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(
		uri,
		neo4j.BasicAuth(user, password, ""),
		func(c *neo4jconfig.Config) {
			if maxPoolSize > 0 {
				c.MaxConnectionPoolSize = maxPoolSize
			}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify Neo4j connectivity: %w", err)
	}

	logger.Get().Info("Connected to Neo4j",
		zap.String("uri", uri),
		zap.Int("max_pool_size", maxPoolSize),
	)
	return driver, nil
}
