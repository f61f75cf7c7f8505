package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// IngredientSeed is one entry of the ingredient catalogue.
type IngredientSeed struct {
	Name  string `yaml:"name"`
	Group string `yaml:"group"`
}

// NormalizeIngredientName is the stored form of an ingredient name; lookups
// and recipe links compare against it.
func NormalizeIngredientName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// UpsertIngredients merges the catalogue by normalized name and returns how
// many ingredients were new. Existing ingredients keep their id.
func (r *Repository) UpsertIngredients(ctx context.Context, seeds []IngredientSeed) (int, error) {
	items := make([]map[string]interface{}, 0, len(seeds))
	seen := make(map[string]bool, len(seeds))
	for _, s := range seeds {
		name := NormalizeIngredientName(s.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		item := map[string]interface{}{
			"id":   uuid.New().String(),
			"name": name,
		}
		if g := strings.TrimSpace(s.Group); g != "" {
			item["group"] = g
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return 0, nil
	}

	query := `
		UNWIND $items AS item
		MERGE (i:Ingredient {name: item.name})
		ON CREATE SET i.id = item.id
		SET i.group = coalesce(item.group, i.group)
	`

	out, err := r.write(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, query, map[string]interface{}{"items": items})
		if err != nil {
			return nil, fmt.Errorf("failed to upsert ingredients: %w", err)
		}
		summary, err := result.Consume(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert ingredients: %w", err)
		}
		return summary.Counters().NodesCreated(), nil
	})
	if err != nil {
		return 0, err
	}

	created := out.(int)
	r.logger.Info("Ingredients upserted",
		zap.Int("submitted", len(items)),
		zap.Int("created", created),
	)
	return created, nil
}

// syncRecipeIngredients points a recipe's CONTAINS edges at the catalogue
// entries named in its ingredient list.
func syncRecipeIngredients(ctx context.Context, tx neo4j.ManagedTransaction, id string) error {
	query := `
		MATCH (r:Recipe {id: $id})
		OPTIONAL MATCH (r)-[old:CONTAINS]->(:Ingredient)
		DELETE old
		WITH DISTINCT r
		UNWIND coalesce(r.ingredients, []) AS name
		MATCH (i:Ingredient {name: toLower(trim(name))})
		MERGE (r)-[:CONTAINS]->(i)
	`
	if _, err := tx.Run(ctx, query, map[string]interface{}{"id": id}); err != nil {
		return fmt.Errorf("failed to link recipe ingredients: %w", err)
	}
	return nil
}
