package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"nomnom-api/backend/internal/schema"
	apperrors "nomnom-api/backend/pkg/errors"
	"go.uber.org/zap"
)

// CheckFunc inspects a write before it is applied. current is the stored
// view (nil on create); pending is the view as it will look afterwards (nil
// on delete). A non-nil error aborts the transaction with nothing written.
type CheckFunc func(current, pending schema.Node) error

// RelationCheck inspects both endpoints of a relationship write.
type RelationCheck func(source, target schema.Node) error

// Link attaches a node being created to an existing node.
type Link struct {
	Field    string
	TargetID string
}

// DeleteInfo reports what a delete removed, including dependent nodes.
type DeleteInfo struct {
	NodesDeleted         int
	RelationshipsDeleted int
}

// writeHook runs inside the write transaction after a node of its entity was
// created or updated.
type writeHook func(ctx context.Context, tx neo4j.ManagedTransaction, id string) error

var writeHooks = map[string]writeHook{
	schema.EntityRecipe: syncRecipeIngredients,
}

// Create stores a new node. Fields marked @id get a fresh uuid unless props
// carries one; @timestamp fields are assigned here and ignored in props.
func (r *Repository) Create(ctx context.Context, entity string, props map[string]interface{}, links []Link, check CheckFunc) (schema.Node, error) {
	e, err := r.entity(entity)
	if err != nil {
		return nil, err
	}
	values, err := writableProps(e, props, schema.OperationCreate, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	id, _ := values["id"].(string)

	out, err := r.write(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		pending := schema.Node(values).Clone()
		targets := make([]*schema.Relationship, 0, len(links))
		for _, l := range links {
			rel, ok := e.Relationship(l.Field)
			if !ok {
				return nil, apperrors.NewValidation(l.Field, fmt.Sprintf("%s has no relationship %s", e.Name, l.Field))
			}
			targetEntity, err := r.entity(rel.Target)
			if err != nil {
				return nil, err
			}
			target, err := loadView(ctx, tx, targetEntity, l.TargetID)
			if err != nil {
				return nil, err
			}
			if !rel.List {
				pending[rel.Field] = target
			}
			targets = append(targets, rel)
		}
		for _, rel := range e.SingleRelationships() {
			if _, ok := pending[rel.Field]; rel.Required && !ok {
				return nil, apperrors.NewValidation(rel.Field, "is required")
			}
		}

		if check != nil {
			if err := check(nil, pending); err != nil {
				return nil, err
			}
		}

		if _, err := tx.Run(ctx, createStatement(e), map[string]interface{}{"props": values}); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", e.Name, err)
		}
		for i, rel := range targets {
			if _, err := tx.Run(ctx, linkStatement(e, rel), map[string]interface{}{
				"id":     id,
				"target": links[i].TargetID,
			}); err != nil {
				return nil, fmt.Errorf("failed to link %s.%s: %w", e.Name, rel.Field, err)
			}
		}
		if hook, ok := writeHooks[e.Name]; ok {
			if err := hook(ctx, tx, id); err != nil {
				return nil, err
			}
		}
		return loadView(ctx, tx, e, id)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Node created",
		zap.String("entity", e.Name),
		zap.String("id", id),
	)
	return out.(schema.Node), nil
}

// Update merges props into an existing node. check sees the stored view and
// the merged view, so invariants spanning several fields can be enforced.
func (r *Repository) Update(ctx context.Context, entity, id string, props map[string]interface{}, check CheckFunc) (schema.Node, error) {
	e, err := r.entity(entity)
	if err != nil {
		return nil, err
	}
	values, err := writableProps(e, props, schema.OperationUpdate, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	out, err := r.write(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		current, err := loadView(ctx, tx, e, id)
		if err != nil {
			return nil, err
		}
		pending := current.Clone()
		for k, v := range values {
			pending[k] = v
		}
		if check != nil {
			if err := check(current, pending); err != nil {
				return nil, err
			}
		}

		if _, err := tx.Run(ctx, updateStatement(e), map[string]interface{}{
			"id":    id,
			"props": values,
		}); err != nil {
			return nil, fmt.Errorf("failed to update %s: %w", e.Name, err)
		}
		if hook, ok := writeHooks[e.Name]; ok {
			if err := hook(ctx, tx, id); err != nil {
				return nil, err
			}
		}
		return loadView(ctx, tx, e, id)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Node updated",
		zap.String("entity", e.Name),
		zap.String("id", id),
	)
	return out.(schema.Node), nil
}

// Delete removes a node together with the nodes that cannot exist without
// it, such as the messages of a chat session.
func (r *Repository) Delete(ctx context.Context, entity, id string, check CheckFunc) (DeleteInfo, error) {
	e, err := r.entity(entity)
	if err != nil {
		return DeleteInfo{}, err
	}

	out, err := r.write(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		current, err := loadView(ctx, tx, e, id)
		if err != nil {
			return nil, err
		}
		if check != nil {
			if err := check(current, nil); err != nil {
				return nil, err
			}
		}

		result, err := tx.Run(ctx, deleteStatement(r.model, e), map[string]interface{}{"id": id})
		if err != nil {
			return nil, fmt.Errorf("failed to delete %s: %w", e.Name, err)
		}
		summary, err := result.Consume(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to delete %s: %w", e.Name, err)
		}
		counters := summary.Counters()
		return DeleteInfo{
			NodesDeleted:         counters.NodesDeleted(),
			RelationshipsDeleted: counters.RelationshipsDeleted(),
		}, nil
	})
	if err != nil {
		return DeleteInfo{}, err
	}

	info := out.(DeleteInfo)
	r.logger.Info("Node deleted",
		zap.String("entity", e.Name),
		zap.String("id", id),
		zap.Int("nodes_deleted", info.NodesDeleted),
	)
	return info, nil
}

// Connect creates the relationship declared on field between two existing
// nodes. It reports whether a new edge was written; connecting twice is a
// no-op.
func (r *Repository) Connect(ctx context.Context, entity, id, field, targetID string, check RelationCheck) (bool, error) {
	return r.relate(ctx, entity, id, field, targetID, check, true)
}

// Disconnect removes the relationship declared on field. It reports whether
// an edge existed.
func (r *Repository) Disconnect(ctx context.Context, entity, id, field, targetID string, check RelationCheck) (bool, error) {
	return r.relate(ctx, entity, id, field, targetID, check, false)
}

func (r *Repository) relate(ctx context.Context, entity, id, field, targetID string, check RelationCheck, connect bool) (bool, error) {
	e, err := r.entity(entity)
	if err != nil {
		return false, err
	}
	rel, ok := e.Relationship(field)
	if !ok {
		return false, apperrors.NewValidation(field, fmt.Sprintf("%s has no relationship %s", entity, field))
	}
	if !rel.List {
		return false, apperrors.NewValidation(field, "single relationships are set on create")
	}
	if rel.Target == e.Name && id == targetID {
		return false, apperrors.NewValidation(field, "a node cannot be related to itself")
	}
	targetEntity, err := r.entity(rel.Target)
	if err != nil {
		return false, err
	}

	out, err := r.write(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		source, err := loadView(ctx, tx, e, id)
		if err != nil {
			return nil, err
		}
		target, err := loadView(ctx, tx, targetEntity, targetID)
		if err != nil {
			return nil, err
		}
		if check != nil {
			if err := check(source, target); err != nil {
				return nil, err
			}
		}

		stmt := unlinkStatement(e, rel)
		if connect {
			stmt = linkStatement(e, rel)
		}
		result, err := tx.Run(ctx, stmt, map[string]interface{}{"id": id, "target": targetID})
		if err != nil {
			return nil, fmt.Errorf("failed to write %s.%s: %w", e.Name, field, err)
		}
		summary, err := result.Consume(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to write %s.%s: %w", e.Name, field, err)
		}
		if connect {
			return summary.Counters().RelationshipsCreated() > 0, nil
		}
		return summary.Counters().RelationshipsDeleted() > 0, nil
	})
	if err != nil {
		return false, err
	}
	return out.(bool), nil
}

// writableProps filters client values down to the entity's writable scalar
// fields and adds the server-assigned ones for op.
func writableProps(e *schema.Entity, props map[string]interface{}, op schema.Operation, now time.Time) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(props)+2)
	for k, v := range props {
		f, ok := e.Field(k)
		if !ok {
			return nil, apperrors.NewValidation(k, fmt.Sprintf("%s has no field %s", e.Name, k))
		}
		if len(f.Timestamp) > 0 || (f.ID && op != schema.OperationCreate) {
			continue
		}
		if v == nil && f.Required {
			return nil, apperrors.NewValidation(k, "cannot be null")
		}
		out[k] = v
	}

	for _, f := range e.Fields {
		if f.IsTimestampFor(op) {
			out[f.Name] = now
		}
		if op != schema.OperationCreate {
			continue
		}
		if f.ID {
			if s, _ := out[f.Name].(string); s == "" {
				out[f.Name] = uuid.New().String()
			}
			continue
		}
		if _, ok := out[f.Name]; f.Required && !ok && len(f.Timestamp) == 0 {
			return nil, apperrors.NewValidation(f.Name, "is required")
		}
	}
	return out, nil
}
