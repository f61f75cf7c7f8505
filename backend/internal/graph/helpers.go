package graph

import (
	"context"
	"errors"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"nomnom-api/backend/internal/schema"
)

// ============================================================================
// Helper Functions
// ============================================================================

const constraintViolation = "Neo.ClientError.Schema.ConstraintValidationFailed"

func isConstraintViolation(err error) bool {
	var neoErr *neo4j.Neo4jError
	return errors.As(err, &neoErr) && neoErr.Code == constraintViolation
}

// toNode converts a driver node or a map projection into a schema.Node.
func toNode(v interface{}) (schema.Node, bool) {
	switch n := v.(type) {
	case neo4j.Node:
		return convertProps(n.Props), true
	case map[string]interface{}:
		return convertProps(n), true
	}
	return nil, false
}

func convertProps(props map[string]interface{}) schema.Node {
	out := make(schema.Node, len(props))
	for k, v := range props {
		if v == nil {
			continue
		}
		if nested, ok := toNode(v); ok {
			out[k] = nested
			continue
		}
		out[k] = v
	}
	return out
}

func nodeFromRecord(record *neo4j.Record, key string) (schema.Node, bool) {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return nil, false
	}
	return toNode(val)
}

// collectNodes drains result, converting the key column of every row.
func collectNodes(ctx context.Context, result neo4j.ResultWithContext, key string) ([]schema.Node, error) {
	nodes := []schema.Node{}
	for result.Next(ctx) {
		if n, ok := nodeFromRecord(result.Record(), key); ok {
			nodes = append(nodes, n)
		}
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return nodes, nil
}
