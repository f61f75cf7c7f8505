package resolver

import (
	"context"
	_ "embed"

	"github.com/go-playground/validator/v10"
	graphql "github.com/graph-gophers/graphql-go"
	"nomnom-api/backend/internal/auth"
	"nomnom-api/backend/internal/graph"
	"nomnom-api/backend/internal/policy"
	"nomnom-api/backend/internal/schema"
	"nomnom-api/backend/pkg/logger"
	"go.uber.org/zap"
)

//go:embed api.graphql
var apiSchema string

// Store is the entity store the resolvers read and write through.
// *graph.Repository implements it.
type Store interface {
	Get(ctx context.Context, entity, id string) (schema.Node, error)
	List(ctx context.Context, entity string, opts graph.ListOptions) ([]schema.Node, error)
	Related(ctx context.Context, entity, id, field string, opts graph.ListOptions) ([]schema.Node, error)

	Create(ctx context.Context, entity string, props map[string]interface{}, links []graph.Link, check graph.CheckFunc) (schema.Node, error)
	Update(ctx context.Context, entity, id string, props map[string]interface{}, check graph.CheckFunc) (schema.Node, error)
	Delete(ctx context.Context, entity, id string, check graph.CheckFunc) (graph.DeleteInfo, error)
	Connect(ctx context.Context, entity, id, field, targetID string, check graph.RelationCheck) (bool, error)
	Disconnect(ctx context.Context, entity, id, field, targetID string, check graph.RelationCheck) (bool, error)

	SearchRecipes(ctx context.Context, term string, skip, limit int) ([]schema.Node, error)
	SearchRecipesCount(ctx context.Context, term string) (int, error)
	FindIngredientsByName(ctx context.Context, name string) ([]schema.Node, error)
	ChatHistory(ctx context.Context, sessionID string, limit int) ([]schema.Node, error)
	CreateChatMessage(ctx context.Context, msg graph.NewChatMessage, check func(session schema.Node) error) (schema.Node, error)
}

// Assistant writes the automated side of a chat session.
type Assistant interface {
	Reply(ctx context.Context, sessionID string, check func(session schema.Node) error) (schema.Node, error)
}

// Resolver is the root resolver. Every mutation goes through the policy
// evaluator before the store writes anything.
type Resolver struct {
	store     Store
	policy    *policy.Evaluator
	verifier  auth.Verifier
	validate  *validator.Validate
	assistant Assistant
	logger    *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithAssistant enables generateChatReply.
func WithAssistant(a Assistant) Option {
	return func(r *Resolver) { r.assistant = a }
}

// New creates the root resolver.
func New(store Store, evaluator *policy.Evaluator, verifier auth.Verifier, opts ...Option) *Resolver {
	r := &Resolver{
		store:    store,
		policy:   evaluator,
		verifier: verifier,
		validate: newValidator(),
		logger:   logger.Get(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SchemaOptions tunes the executable schema.
type SchemaOptions struct {
	Introspection bool
	MaxDepth      int
}

// NewSchema binds the API definition to r.
func NewSchema(r *Resolver, opts SchemaOptions) (*graphql.Schema, error) {
	depth := opts.MaxDepth
	if depth <= 0 {
		depth = 12
	}
	schemaOpts := []graphql.SchemaOpt{
		graphql.MaxDepth(depth),
		graphql.Logger(&panicLogger{logger: r.logger}),
	}
	if !opts.Introspection {
		schemaOpts = append(schemaOpts, graphql.DisableIntrospection())
	}
	return graphql.ParseSchema(apiSchema, r, schemaOpts...)
}

// SDL returns the API definition served by NewSchema.
func SDL() string {
	return apiSchema
}
