package resolver

import (
	"context"

	graphql "github.com/graph-gophers/graphql-go"
	"nomnom-api/backend/internal/auth"
	"nomnom-api/backend/internal/graph"
	"nomnom-api/backend/internal/schema"
	apperrors "nomnom-api/backend/pkg/errors"
)

const maxPageSize = 500

// Arguments with a declared default arrive non-null.
type pageArgs struct {
	Skip  int32
	Limit int32
}

type idArgs struct {
	ID graphql.ID
}

func page(args pageArgs) (graph.ListOptions, error) {
	skip, limit := int(args.Skip), int(args.Limit)
	if skip < 0 {
		return graph.ListOptions{}, apperrors.NewValidation("skip", "must not be negative")
	}
	if limit < 0 || limit > maxPageSize {
		return graph.ListOptions{}, apperrors.NewValidation("limit", "must be between 0 and 500")
	}
	return graph.ListOptions{Skip: skip, Limit: limit}, nil
}

func (r *Resolver) list(ctx context.Context, entity string, args pageArgs, orderBy string, desc bool) ([]schema.Node, error) {
	opts, err := page(args)
	if err != nil {
		return nil, err
	}
	// A zero limit means no limit to the store.
	if opts.Limit == 0 {
		return []schema.Node{}, nil
	}
	opts.OrderBy, opts.Desc = orderBy, desc
	nodes, err := r.store.List(ctx, entity, opts)
	if err != nil {
		return nil, fail(err)
	}
	return nodes, nil
}

func (r *Resolver) get(ctx context.Context, entity string, id graphql.ID) (schema.Node, error) {
	n, err := r.store.Get(ctx, entity, string(id))
	if err != nil {
		return nil, fail(err)
	}
	return n, nil
}

func (r *Resolver) Actors(ctx context.Context, args pageArgs) ([]*actorResolver, error) {
	nodes, err := r.list(ctx, schema.EntityActor, args, "name", false)
	if err != nil {
		return nil, err
	}
	return r.actors(nodes), nil
}

func (r *Resolver) Actor(ctx context.Context, args idArgs) (*actorResolver, error) {
	n, err := r.get(ctx, schema.EntityActor, args.ID)
	if err != nil {
		return nil, err
	}
	return &actorResolver{r: r, node: n}, nil
}

func (r *Resolver) Movies(ctx context.Context, args pageArgs) ([]*movieResolver, error) {
	nodes, err := r.list(ctx, schema.EntityMovie, args, "title", false)
	if err != nil {
		return nil, err
	}
	return r.movies(nodes), nil
}

func (r *Resolver) Movie(ctx context.Context, args idArgs) (*movieResolver, error) {
	n, err := r.get(ctx, schema.EntityMovie, args.ID)
	if err != nil {
		return nil, err
	}
	return &movieResolver{r: r, node: n}, nil
}

func (r *Resolver) Users(ctx context.Context, args pageArgs) ([]*userResolver, error) {
	nodes, err := r.list(ctx, schema.EntityUser, args, "display_name", false)
	if err != nil {
		return nil, err
	}
	return r.users(nodes), nil
}

func (r *Resolver) User(ctx context.Context, args idArgs) (*userResolver, error) {
	n, err := r.get(ctx, schema.EntityUser, args.ID)
	if err != nil {
		return nil, err
	}
	return &userResolver{r: r, node: n}, nil
}

// Me returns the caller's user node, or null for anonymous callers and for
// callers who have not created their user yet.
func (r *Resolver) Me(ctx context.Context) (*userResolver, error) {
	caller, err := auth.Identify(ctx, r.verifier)
	if err != nil {
		return nil, fail(err)
	}
	if caller == nil {
		return nil, nil
	}
	n, err := r.store.Get(ctx, schema.EntityUser, caller.Subject)
	if apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fail(err)
	}
	return &userResolver{r: r, node: n}, nil
}

func (r *Resolver) Ingredients(ctx context.Context, args pageArgs) ([]*ingredientResolver, error) {
	nodes, err := r.list(ctx, schema.EntityIngredient, args, "name", false)
	if err != nil {
		return nil, err
	}
	return r.ingredients(nodes), nil
}

func (r *Resolver) Ingredient(ctx context.Context, args idArgs) (*ingredientResolver, error) {
	n, err := r.get(ctx, schema.EntityIngredient, args.ID)
	if err != nil {
		return nil, err
	}
	return &ingredientResolver{r: r, node: n}, nil
}

func (r *Resolver) Recipes(ctx context.Context, args pageArgs) ([]*recipeResolver, error) {
	nodes, err := r.list(ctx, schema.EntityRecipe, args, "createdAt", true)
	if err != nil {
		return nil, err
	}
	return r.recipes(nodes), nil
}

func (r *Resolver) Recipe(ctx context.Context, args idArgs) (*recipeResolver, error) {
	n, err := r.get(ctx, schema.EntityRecipe, args.ID)
	if err != nil {
		return nil, err
	}
	return &recipeResolver{r: r, node: n}, nil
}

func (r *Resolver) ChatSession(ctx context.Context, args idArgs) (*chatSessionResolver, error) {
	n, err := r.get(ctx, schema.EntityChatSession, args.ID)
	if err != nil {
		return nil, err
	}
	return &chatSessionResolver{r: r, node: n}, nil
}

// ============================================================================
// Custom Queries
// ============================================================================

type searchArgs struct {
	SearchTerm *string
	Skip       int32
	Limit      int32
}

func (r *Resolver) SearchRecipes(ctx context.Context, args searchArgs) ([]*recipeResolver, error) {
	skip, limit := int(args.Skip), int(args.Limit)
	if skip < 0 {
		return nil, apperrors.NewValidation("skip", "must not be negative")
	}
	if limit < 0 || limit > maxPageSize {
		return nil, apperrors.NewValidation("limit", "must be between 0 and 500")
	}
	nodes, err := r.store.SearchRecipes(ctx, stringOr(args.SearchTerm, ""), skip, limit)
	if err != nil {
		return nil, fail(err)
	}
	return r.recipes(nodes), nil
}

func (r *Resolver) SearchRecipesCount(ctx context.Context, args struct{ SearchTerm *string }) (int32, error) {
	n, err := r.store.SearchRecipesCount(ctx, stringOr(args.SearchTerm, ""))
	if err != nil {
		return 0, fail(err)
	}
	return int32(n), nil
}

func (r *Resolver) FindIngredientsByName(ctx context.Context, args struct{ Name *string }) ([]*ingredientResolver, error) {
	nodes, err := r.store.FindIngredientsByName(ctx, stringOr(args.Name, ""))
	if err != nil {
		return nil, fail(err)
	}
	return r.ingredients(nodes), nil
}

type chatHistoryArgs struct {
	SessionID graphql.ID
	Limit     int32
}

func (r *Resolver) GetChatHistory(ctx context.Context, args chatHistoryArgs) ([]*chatMessageResolver, error) {
	limit := int(args.Limit)
	if limit < 0 {
		return nil, apperrors.NewValidation("limit", "must not be negative")
	}
	if limit == 0 {
		return []*chatMessageResolver{}, nil
	}
	nodes, err := r.store.ChatHistory(ctx, string(args.SessionID), limit)
	if err != nil {
		return nil, fail(err)
	}
	return r.chatMessages(nodes), nil
}

func (r *Resolver) MessagesBySession(ctx context.Context, args struct{ SessionID graphql.ID }) ([]*chatMessageResolver, error) {
	nodes, err := r.store.ChatHistory(ctx, string(args.SessionID), 0)
	if err != nil {
		return nil, fail(err)
	}
	return r.chatMessages(nodes), nil
}
