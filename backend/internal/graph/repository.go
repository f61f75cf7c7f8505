package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"nomnom-api/backend/internal/schema"
	apperrors "nomnom-api/backend/pkg/errors"
	"nomnom-api/backend/pkg/logger"
	"go.uber.org/zap"
)

// Repository handles all Neo4j database operations. Every statement is
// generated from the entity model or taken from its custom operations.
type Repository struct {
	driver   neo4j.DriverWithContext
	model    *schema.Model
	database string
	logger   *zap.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithDatabase targets a named database instead of the server default.
func WithDatabase(name string) Option {
	return func(r *Repository) { r.database = name }
}

// NewRepository creates a new graph repository
func NewRepository(driver neo4j.DriverWithContext, model *schema.Model, opts ...Option) *Repository {
	r := &Repository{
		driver: driver,
		model:  model,
		logger: logger.Get(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Close closes the Neo4j driver connection
func (r *Repository) Close() error {
	return r.driver.Close(context.Background())
}

func (r *Repository) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: r.database})
}

func (r *Repository) entity(name string) (*schema.Entity, error) {
	e, ok := r.model.Entity(name)
	if !ok {
		return nil, fmt.Errorf("unknown entity %s", name)
	}
	return e, nil
}

// read runs work in a managed read transaction and maps driver failures to
// upstream errors. Categorized errors returned by work pass through.
func (r *Repository) read(ctx context.Context, work func(tx neo4j.ManagedTransaction) (interface{}, error)) (interface{}, error) {
	session := r.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, work)
	return out, r.storeError(err)
}

func (r *Repository) write(ctx context.Context, work func(tx neo4j.ManagedTransaction) (interface{}, error)) (interface{}, error) {
	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, work)
	return out, r.storeError(err)
}

func (r *Repository) storeError(err error) error {
	if err == nil {
		return nil
	}
	if coded := apperrors.Find(err); coded != nil {
		return coded
	}
	if isConstraintViolation(err) {
		return apperrors.NewValidation("id", "a node with this id already exists")
	}
	return apperrors.NewUpstream("entity store", err)
}

// Get returns the authorization view of one node: its properties plus every
// single-valued relationship target nested under the field name.
func (r *Repository) Get(ctx context.Context, entity, id string) (schema.Node, error) {
	e, err := r.entity(entity)
	if err != nil {
		return nil, err
	}
	out, err := r.read(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		return loadView(ctx, tx, e, id)
	})
	if err != nil {
		return nil, err
	}
	return out.(schema.Node), nil
}

// List returns nodes of one entity.
func (r *Repository) List(ctx context.Context, entity string, opts ListOptions) ([]schema.Node, error) {
	e, err := r.entity(entity)
	if err != nil {
		return nil, err
	}
	query, params, err := listStatement(e, opts)
	if err != nil {
		return nil, apperrors.NewValidation("filter", err.Error())
	}
	out, err := r.read(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", entity, err)
		}
		return collectNodes(ctx, result, nodeColumn)
	})
	if err != nil {
		return nil, err
	}
	return out.([]schema.Node), nil
}

// Related returns the nodes reached from (entity, id) through field.
func (r *Repository) Related(ctx context.Context, entity, id, field string, opts ListOptions) ([]schema.Node, error) {
	e, err := r.entity(entity)
	if err != nil {
		return nil, err
	}
	rel, ok := e.Relationship(field)
	if !ok {
		return nil, apperrors.NewValidation(field, fmt.Sprintf("%s has no relationship %s", entity, field))
	}
	target, err := r.entity(rel.Target)
	if err != nil {
		return nil, err
	}
	query, params, err := relatedStatement(e, rel, target, opts)
	if err != nil {
		return nil, apperrors.NewValidation("filter", err.Error())
	}
	params["id"] = id

	out, err := r.read(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, fmt.Errorf("failed to traverse %s.%s: %w", entity, field, err)
		}
		return collectNodes(ctx, result, nodeColumn)
	})
	if err != nil {
		return nil, err
	}
	return out.([]schema.Node), nil
}

// loadView reads the authorization view inside tx. A missing node is a
// not-found error.
func loadView(ctx context.Context, tx neo4j.ManagedTransaction, e *schema.Entity, id string) (schema.Node, error) {
	result, err := tx.Run(ctx, viewStatement(e), map[string]interface{}{"id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", e.Name, err)
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, fmt.Errorf("failed to fetch record: %w", err)
		}
		return nil, apperrors.NewNotFound(e.Name, id)
	}
	node, ok := nodeFromRecord(result.Record(), nodeColumn)
	if !ok {
		return nil, apperrors.NewNotFound(e.Name, id)
	}
	return node, nil
}
