package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"nomnom-api/backend/internal/schema"
	"go.uber.org/zap"
)

// SchemaVersion identifies the constraint and index set EnsureSchema applies.
const SchemaVersion = "nomnom_schema_v1"

// SearchIndexName is the full-text index the search operations query.
const SearchIndexName = "searchRecipeIndex"

type migration struct {
	name        string
	description string
	statements  []string
}

func migrations(m *schema.Model) []migration {
	constraints := make([]string, 0, len(m.Entities))
	for _, name := range m.EntityNames() {
		constraints = append(constraints, fmt.Sprintf(
			"CREATE CONSTRAINT %s_id_unique IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE",
			strings.ToLower(name), quote(name)))
	}

	return []migration{
		{
			name:        "Create Constraints",
			description: "Unique id for every entity",
			statements:  constraints,
		},
		{
			name:        "Create Indexes",
			description: "Lookups used by custom operations",
			statements: []string{
				"CREATE INDEX ingredient_name IF NOT EXISTS FOR (i:Ingredient) ON (i.name)",
				"CREATE INDEX chat_message_created_at IF NOT EXISTS FOR (m:ChatMessage) ON (m.createdAt)",
			},
		},
		{
			name:        "Create Full-Text Indexes",
			description: "Recipe search",
			statements: []string{
				fmt.Sprintf("CREATE FULLTEXT INDEX %s IF NOT EXISTS FOR (r:Recipe) ON EACH [r.name, r.contents, r.ingredients]", SearchIndexName),
			},
		},
	}
}

// EnsureSchema applies constraints and indexes and records the schema
// version. It reports whether anything ran; unless force is set an already
// recorded version is left alone.
func (r *Repository) EnsureSchema(ctx context.Context, force bool) (bool, error) {
	if !force {
		applied, err := r.migrationApplied(ctx)
		if err != nil {
			return false, err
		}
		if applied {
			r.logger.Info("Schema already applied", zap.String("version", SchemaVersion))
			return false, nil
		}
	}

	// Schema statements cannot share a transaction with data writes, so each
	// runs on its own.
	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	steps := migrations(r.model)
	for i, m := range steps {
		r.logger.Info("Running migration",
			zap.Int("step", i+1),
			zap.Int("total", len(steps)),
			zap.String("name", m.name),
			zap.String("description", m.description),
		)
		for _, stmt := range m.statements {
			if _, err := session.Run(ctx, stmt, nil); err != nil {
				return false, r.storeError(fmt.Errorf("migration %q failed: %w", m.name, err))
			}
		}
	}

	if err := r.markMigrationApplied(ctx, session); err != nil {
		return false, err
	}
	r.logger.Info("Schema applied", zap.String("version", SchemaVersion))
	return true, nil
}

func (r *Repository) migrationApplied(ctx context.Context) (bool, error) {
	out, err := r.read(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH (m:Migration {version: $version})
			RETURN m.applied_at AS applied_at
		`, map[string]interface{}{"version": SchemaVersion})
		if err != nil {
			return nil, err
		}
		found := result.Next(ctx)
		return found, result.Err()
	})
	if err != nil {
		return false, err
	}
	return out.(bool), nil
}

func (r *Repository) markMigrationApplied(ctx context.Context, session neo4j.SessionWithContext) error {
	query := `
		MERGE (m:Migration {version: $version})
		SET m.applied_at = datetime(),
		    m.description = 'Entity id constraints, lookup indexes and recipe search index'
	`
	if _, err := session.Run(ctx, query, map[string]interface{}{"version": SchemaVersion}); err != nil {
		return r.storeError(fmt.Errorf("failed to record migration: %w", err))
	}
	return nil
}
