package resolver

import (
	"context"
	"errors"

	graphql "github.com/graph-gophers/graphql-go"
	"nomnom-api/backend/internal/graph"
	"nomnom-api/backend/internal/schema"
	apperrors "nomnom-api/backend/pkg/errors"
)

// ============================================================================
// Actors and Movies
// ============================================================================

func (r *Resolver) CreateActor(ctx context.Context, args struct{ Input actorInput }) (*actorResolver, error) {
	n, err := r.create(ctx, schema.EntityActor, args.Input, map[string]interface{}{"name": args.Input.Name}, nil)
	if err != nil {
		return nil, err
	}
	return &actorResolver{r: r, node: n}, nil
}

func (r *Resolver) UpdateActor(ctx context.Context, args struct {
	ID    graphql.ID
	Input actorInput
}) (*actorResolver, error) {
	n, err := r.update(ctx, schema.EntityActor, args.ID, args.Input, map[string]interface{}{"name": args.Input.Name})
	if err != nil {
		return nil, err
	}
	return &actorResolver{r: r, node: n}, nil
}

func (r *Resolver) DeleteActor(ctx context.Context, args idArgs) (*deleteInfoResolver, error) {
	return r.delete(ctx, schema.EntityActor, args.ID)
}

type actorMovieArgs struct {
	ActorID graphql.ID
	MovieID graphql.ID
}

func (r *Resolver) ConnectActorMovie(ctx context.Context, args actorMovieArgs) (*actorResolver, error) {
	return r.actorMovie(ctx, args, schema.OperationCreateRelationship)
}

func (r *Resolver) DisconnectActorMovie(ctx context.Context, args actorMovieArgs) (*actorResolver, error) {
	return r.actorMovie(ctx, args, schema.OperationDeleteRelationship)
}

func (r *Resolver) actorMovie(ctx context.Context, args actorMovieArgs, op schema.Operation) (*actorResolver, error) {
	caller, err := r.relationCaller(ctx, op, schema.EntityActor, schema.EntityMovie)
	if err != nil {
		return nil, fail(err)
	}
	if err := r.relate(ctx, caller, op, schema.EntityActor, string(args.ActorID), "actedInMovies", schema.EntityMovie, string(args.MovieID)); err != nil {
		return nil, fail(err)
	}
	n, err := r.get(ctx, schema.EntityActor, args.ActorID)
	if err != nil {
		return nil, err
	}
	return &actorResolver{r: r, node: n}, nil
}

func (r *Resolver) CreateMovie(ctx context.Context, args struct{ Input movieInput }) (*movieResolver, error) {
	n, err := r.create(ctx, schema.EntityMovie, args.Input, map[string]interface{}{"title": args.Input.Title}, nil)
	if err != nil {
		return nil, err
	}
	return &movieResolver{r: r, node: n}, nil
}

func (r *Resolver) UpdateMovie(ctx context.Context, args struct {
	ID    graphql.ID
	Input movieInput
}) (*movieResolver, error) {
	n, err := r.update(ctx, schema.EntityMovie, args.ID, args.Input, map[string]interface{}{"title": args.Input.Title})
	if err != nil {
		return nil, err
	}
	return &movieResolver{r: r, node: n}, nil
}

func (r *Resolver) DeleteMovie(ctx context.Context, args idArgs) (*deleteInfoResolver, error) {
	return r.delete(ctx, schema.EntityMovie, args.ID)
}

// ============================================================================
// Users
// ============================================================================

// CreateUser registers the caller. The user id is the token subject, so
// every caller owns exactly one user node.
func (r *Resolver) CreateUser(ctx context.Context, args struct{ Input createUserInput }) (*userResolver, error) {
	caller, err := r.authenticate(ctx, schema.OperationCreate, schema.EntityUser)
	if err != nil {
		return nil, fail(err)
	}
	if err := signedIn(caller); err != nil {
		return nil, err
	}
	if err := r.validateInput(args.Input); err != nil {
		return nil, err
	}
	n, err := r.store.Create(ctx, schema.EntityUser, map[string]interface{}{
		"id":           caller.Subject,
		"display_name": args.Input.DisplayName,
		"email":        args.Input.Email,
	}, nil, r.guard(schema.OperationCreate, schema.EntityUser, caller))
	if err != nil {
		return nil, fail(err)
	}
	return &userResolver{r: r, node: n}, nil
}

func (r *Resolver) UpdateUser(ctx context.Context, args struct {
	ID    graphql.ID
	Input updateUserInput
}) (*userResolver, error) {
	n, err := r.update(ctx, schema.EntityUser, args.ID, args.Input, args.Input.props())
	if err != nil {
		return nil, err
	}
	return &userResolver{r: r, node: n}, nil
}

func (r *Resolver) DeleteUser(ctx context.Context, args idArgs) (*deleteInfoResolver, error) {
	return r.delete(ctx, schema.EntityUser, args.ID)
}

type userIDArgs struct {
	UserID graphql.ID
}

// FollowUser makes the caller follow userId and returns the followed user.
func (r *Resolver) FollowUser(ctx context.Context, args userIDArgs) (*userResolver, error) {
	return r.follow(ctx, args.UserID, schema.OperationCreateRelationship)
}

func (r *Resolver) UnfollowUser(ctx context.Context, args userIDArgs) (*userResolver, error) {
	return r.follow(ctx, args.UserID, schema.OperationDeleteRelationship)
}

func (r *Resolver) follow(ctx context.Context, userID graphql.ID, op schema.Operation) (*userResolver, error) {
	caller, err := r.relationCaller(ctx, op, schema.EntityUser, schema.EntityUser)
	if err != nil {
		return nil, fail(err)
	}
	if err := signedIn(caller); err != nil {
		return nil, err
	}
	if err := r.relate(ctx, caller, op, schema.EntityUser, caller.Subject, "following", schema.EntityUser, string(userID)); err != nil {
		return nil, fail(err)
	}
	n, err := r.get(ctx, schema.EntityUser, userID)
	if err != nil {
		return nil, err
	}
	return &userResolver{r: r, node: n}, nil
}

// ============================================================================
// Recipes
// ============================================================================

// CreateRecipe stores a recipe owned by ownerId, or by the caller when no
// owner is given. Only the owner may create it.
func (r *Resolver) CreateRecipe(ctx context.Context, args struct{ Input createRecipeInput }) (*recipeResolver, error) {
	caller, err := r.authenticate(ctx, schema.OperationCreate, schema.EntityRecipe)
	if err != nil {
		return nil, fail(err)
	}
	if err := signedIn(caller); err != nil {
		return nil, err
	}
	in := args.Input
	if err := r.validateInput(in); err != nil {
		return nil, err
	}
	if err := r.validateInput(recipeState{Ingredients: in.Ingredients, IngredientsQty: in.IngredientsQty}); err != nil {
		return nil, err
	}
	owner := caller.Subject
	if in.OwnerID != nil {
		owner = string(*in.OwnerID)
	}
	links := []graph.Link{{Field: "owner", TargetID: owner}}
	n, err := r.store.Create(ctx, schema.EntityRecipe, in.props(), links, r.guard(schema.OperationCreate, schema.EntityRecipe, caller))
	if err != nil {
		return nil, fail(err)
	}
	return &recipeResolver{r: r, node: n}, nil
}

func (r *Resolver) UpdateRecipe(ctx context.Context, args struct {
	ID    graphql.ID
	Input updateRecipeInput
}) (*recipeResolver, error) {
	n, err := r.update(ctx, schema.EntityRecipe, args.ID, args.Input, args.Input.props())
	if err != nil {
		return nil, err
	}
	return &recipeResolver{r: r, node: n}, nil
}

func (r *Resolver) DeleteRecipe(ctx context.Context, args idArgs) (*deleteInfoResolver, error) {
	return r.delete(ctx, schema.EntityRecipe, args.ID)
}

type recipeIDArgs struct {
	RecipeID graphql.ID
}

func (r *Resolver) FavouriteRecipe(ctx context.Context, args recipeIDArgs) (*recipeResolver, error) {
	return r.favourite(ctx, args.RecipeID, schema.OperationCreateRelationship)
}

func (r *Resolver) UnfavouriteRecipe(ctx context.Context, args recipeIDArgs) (*recipeResolver, error) {
	return r.favourite(ctx, args.RecipeID, schema.OperationDeleteRelationship)
}

func (r *Resolver) favourite(ctx context.Context, recipeID graphql.ID, op schema.Operation) (*recipeResolver, error) {
	caller, err := r.relationCaller(ctx, op, schema.EntityUser, schema.EntityRecipe)
	if err != nil {
		return nil, fail(err)
	}
	if err := signedIn(caller); err != nil {
		return nil, err
	}
	if err := r.relate(ctx, caller, op, schema.EntityUser, caller.Subject, "favourite_recipes", schema.EntityRecipe, string(recipeID)); err != nil {
		return nil, fail(err)
	}
	n, err := r.get(ctx, schema.EntityRecipe, recipeID)
	if err != nil {
		return nil, err
	}
	return &recipeResolver{r: r, node: n}, nil
}

// ============================================================================
// Chat
// ============================================================================

func (r *Resolver) CreateChatSession(ctx context.Context, args struct{ OwnerID *graphql.ID }) (*chatSessionResolver, error) {
	caller, err := r.authenticate(ctx, schema.OperationCreate, schema.EntityChatSession)
	if err != nil {
		return nil, fail(err)
	}
	if err := signedIn(caller); err != nil {
		return nil, err
	}
	owner := caller.Subject
	if args.OwnerID != nil {
		owner = string(*args.OwnerID)
	}
	links := []graph.Link{{Field: "owner", TargetID: owner}}
	n, err := r.store.Create(ctx, schema.EntityChatSession, map[string]interface{}{}, links, r.guard(schema.OperationCreate, schema.EntityChatSession, caller))
	if err != nil {
		return nil, fail(err)
	}
	return &chatSessionResolver{r: r, node: n}, nil
}

func (r *Resolver) DeleteChatSession(ctx context.Context, args idArgs) (*deleteInfoResolver, error) {
	return r.delete(ctx, schema.EntityChatSession, args.ID)
}

type createChatMessageArgs struct {
	Content      string
	SessionID    graphql.ID
	IsOwnerHuman bool
}

// CreateChatMessage appends a message to a session. Appending counts as
// creating a relationship on the session, so only its owner may do it.
func (r *Resolver) CreateChatMessage(ctx context.Context, args createChatMessageArgs) (*chatMessageResolver, error) {
	caller, err := r.authenticate(ctx, schema.OperationCreateRelationship, schema.EntityChatSession)
	if err != nil {
		return nil, fail(err)
	}
	if err := r.policy.Authenticate(schema.OperationCreate, schema.EntityChatMessage, caller); err != nil {
		return nil, err
	}
	if err := r.validateInput(chatMessageInput{Content: args.Content, SessionID: string(args.SessionID)}); err != nil {
		return nil, err
	}
	n, err := r.store.CreateChatMessage(ctx, graph.NewChatMessage{
		SessionID:    string(args.SessionID),
		Content:      args.Content,
		IsOwnerHuman: args.IsOwnerHuman,
	}, func(session schema.Node) error {
		return r.policy.Authorize(schema.OperationCreateRelationship, schema.EntityChatSession, caller, session)
	})
	if err != nil {
		return nil, fail(err)
	}
	return &chatMessageResolver{r: r, node: n}, nil
}

// GenerateChatReply asks the assistant to answer the session's latest
// messages and stores the answer as a non-human message.
func (r *Resolver) GenerateChatReply(ctx context.Context, args struct{ SessionID graphql.ID }) (*chatMessageResolver, error) {
	caller, err := r.authenticate(ctx, schema.OperationCreateRelationship, schema.EntityChatSession)
	if err != nil {
		return nil, fail(err)
	}
	if r.assistant == nil {
		return nil, apperrors.NewUpstream("assistant", errors.New("no assistant configured"))
	}
	check := func(session schema.Node) error {
		return r.policy.Authorize(schema.OperationCreateRelationship, schema.EntityChatSession, caller, session)
	}

	// Reject before paying for a completion.
	session, err := r.get(ctx, schema.EntityChatSession, args.SessionID)
	if err != nil {
		return nil, err
	}
	if err := check(session); err != nil {
		return nil, err
	}

	n, err := r.assistant.Reply(ctx, string(args.SessionID), check)
	if err != nil {
		return nil, fail(err)
	}
	return &chatMessageResolver{r: r, node: n}, nil
}

// ============================================================================
// Helper Functions
// ============================================================================

func (r *Resolver) create(ctx context.Context, entity string, input interface{}, props map[string]interface{}, links []graph.Link) (schema.Node, error) {
	caller, err := r.authenticate(ctx, schema.OperationCreate, entity)
	if err != nil {
		return nil, fail(err)
	}
	if err := r.validateInput(input); err != nil {
		return nil, err
	}
	n, err := r.store.Create(ctx, entity, props, links, r.guard(schema.OperationCreate, entity, caller))
	if err != nil {
		return nil, fail(err)
	}
	return n, nil
}

func (r *Resolver) update(ctx context.Context, entity string, id graphql.ID, input interface{}, props map[string]interface{}) (schema.Node, error) {
	caller, err := r.authenticate(ctx, schema.OperationUpdate, entity)
	if err != nil {
		return nil, fail(err)
	}
	if err := r.validateInput(input); err != nil {
		return nil, err
	}
	n, err := r.store.Update(ctx, entity, string(id), props, r.guard(schema.OperationUpdate, entity, caller))
	if err != nil {
		return nil, fail(err)
	}
	return n, nil
}

func (r *Resolver) delete(ctx context.Context, entity string, id graphql.ID) (*deleteInfoResolver, error) {
	caller, err := r.authenticate(ctx, schema.OperationDelete, entity)
	if err != nil {
		return nil, fail(err)
	}
	info, err := r.store.Delete(ctx, entity, string(id), r.guard(schema.OperationDelete, entity, caller))
	if err != nil {
		return nil, fail(err)
	}
	return &deleteInfoResolver{info: info}, nil
}
