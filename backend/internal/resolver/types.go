package resolver

import (
	"context"

	graphql "github.com/graph-gophers/graphql-go"
	"nomnom-api/backend/internal/graph"
	"nomnom-api/backend/internal/schema"
)

// related resolves a list relationship of a node.
func (r *Resolver) related(ctx context.Context, entity string, n schema.Node, field string, opts graph.ListOptions) ([]schema.Node, error) {
	nodes, err := r.store.Related(ctx, entity, n.ID(), field, opts)
	if err != nil {
		return nil, fail(err)
	}
	return nodes, nil
}

// single resolves a single-valued relationship, preferring the copy nested
// in the node's view.
func (r *Resolver) single(ctx context.Context, entity string, n schema.Node, field string) (schema.Node, error) {
	if v, ok := n.Lookup(field); ok {
		if nested, ok := v.(schema.Node); ok {
			return nested, nil
		}
	}
	nodes, err := r.related(ctx, entity, n, field, graph.ListOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return nodes[0], nil
}

type actorResolver struct {
	r    *Resolver
	node schema.Node
}

func (a *actorResolver) ID() graphql.ID { return graphql.ID(a.node.ID()) }
func (a *actorResolver) Name() string   { return a.node.String("name") }

func (a *actorResolver) ActedInMovies(ctx context.Context) ([]*movieResolver, error) {
	nodes, err := a.r.related(ctx, schema.EntityActor, a.node, "actedInMovies", graph.ListOptions{OrderBy: "title"})
	if err != nil {
		return nil, err
	}
	return a.r.movies(nodes), nil
}

type movieResolver struct {
	r    *Resolver
	node schema.Node
}

func (m *movieResolver) ID() graphql.ID { return graphql.ID(m.node.ID()) }
func (m *movieResolver) Title() string  { return m.node.String("title") }

func (m *movieResolver) ActorsActedIn(ctx context.Context) ([]*actorResolver, error) {
	nodes, err := m.r.related(ctx, schema.EntityMovie, m.node, "actorsActedIn", graph.ListOptions{OrderBy: "name"})
	if err != nil {
		return nil, err
	}
	return m.r.actors(nodes), nil
}

type userResolver struct {
	r    *Resolver
	node schema.Node
}

func (u *userResolver) ID() graphql.ID      { return graphql.ID(u.node.ID()) }
func (u *userResolver) DisplayName() string { return u.node.String("display_name") }
func (u *userResolver) Email() string       { return u.node.String("email") }

func (u *userResolver) Recipes(ctx context.Context) ([]*recipeResolver, error) {
	nodes, err := u.r.related(ctx, schema.EntityUser, u.node, "recipes", graph.ListOptions{OrderBy: "createdAt", Desc: true})
	if err != nil {
		return nil, err
	}
	return u.r.recipes(nodes), nil
}

func (u *userResolver) FavouriteRecipes(ctx context.Context) ([]*recipeResolver, error) {
	nodes, err := u.r.related(ctx, schema.EntityUser, u.node, "favourite_recipes", graph.ListOptions{})
	if err != nil {
		return nil, err
	}
	return u.r.recipes(nodes), nil
}

func (u *userResolver) Following(ctx context.Context) ([]*userResolver, error) {
	nodes, err := u.r.related(ctx, schema.EntityUser, u.node, "following", graph.ListOptions{})
	if err != nil {
		return nil, err
	}
	return u.r.users(nodes), nil
}

func (u *userResolver) Followers(ctx context.Context) ([]*userResolver, error) {
	nodes, err := u.r.related(ctx, schema.EntityUser, u.node, "followers", graph.ListOptions{})
	if err != nil {
		return nil, err
	}
	return u.r.users(nodes), nil
}

func (u *userResolver) ChatSession(ctx context.Context) ([]*chatSessionResolver, error) {
	nodes, err := u.r.related(ctx, schema.EntityUser, u.node, "chat_session", graph.ListOptions{OrderBy: "createdAt", Desc: true})
	if err != nil {
		return nil, err
	}
	return u.r.chatSessions(nodes), nil
}

type ingredientResolver struct {
	r    *Resolver
	node schema.Node
}

func (i *ingredientResolver) ID() graphql.ID { return graphql.ID(i.node.ID()) }
func (i *ingredientResolver) Name() string   { return i.node.String("name") }

func (i *ingredientResolver) Group() *string {
	if g := i.node.String("group"); g != "" {
		return &g
	}
	return nil
}

func (i *ingredientResolver) LinkedRecipes(ctx context.Context) ([]*recipeResolver, error) {
	nodes, err := i.r.related(ctx, schema.EntityIngredient, i.node, "linkedRecipes", graph.ListOptions{})
	if err != nil {
		return nil, err
	}
	return i.r.recipes(nodes), nil
}

type recipeResolver struct {
	r    *Resolver
	node schema.Node
}

func (rc *recipeResolver) ID() graphql.ID           { return graphql.ID(rc.node.ID()) }
func (rc *recipeResolver) Name() string             { return rc.node.String("name") }
func (rc *recipeResolver) Ingredients() []string    { return rc.node.Strings("ingredients") }
func (rc *recipeResolver) IngredientsQty() []string { return rc.node.Strings("ingredients_qty") }
func (rc *recipeResolver) Serving() float64         { return rc.node.Float("serving") }
func (rc *recipeResolver) TimeTakenMins() float64   { return rc.node.Float("time_taken_mins") }
func (rc *recipeResolver) ThumbnailURL() string     { return rc.node.String("thumbnail_url") }
func (rc *recipeResolver) Contents() string         { return rc.node.String("contents") }
func (rc *recipeResolver) CreatedAt() DateTime      { return dateTimeOf(rc.node["createdAt"]) }
func (rc *recipeResolver) UpdatedAt() DateTime      { return dateTimeOf(rc.node["updatedAt"]) }

func (rc *recipeResolver) Owner(ctx context.Context) (*userResolver, error) {
	n, err := rc.r.single(ctx, schema.EntityRecipe, rc.node, "owner")
	if err != nil || n == nil {
		return nil, err
	}
	return &userResolver{r: rc.r, node: n}, nil
}

func (rc *recipeResolver) FavouritedByUsers(ctx context.Context) ([]*userResolver, error) {
	nodes, err := rc.r.related(ctx, schema.EntityRecipe, rc.node, "favouritedByUsers", graph.ListOptions{})
	if err != nil {
		return nil, err
	}
	return rc.r.users(nodes), nil
}

type chatSessionResolver struct {
	r    *Resolver
	node schema.Node
}

func (s *chatSessionResolver) ID() graphql.ID      { return graphql.ID(s.node.ID()) }
func (s *chatSessionResolver) CreatedAt() DateTime { return dateTimeOf(s.node["createdAt"]) }

func (s *chatSessionResolver) Owner(ctx context.Context) (*userResolver, error) {
	n, err := s.r.single(ctx, schema.EntityChatSession, s.node, "owner")
	if err != nil || n == nil {
		return nil, err
	}
	return &userResolver{r: s.r, node: n}, nil
}

func (s *chatSessionResolver) Messages(ctx context.Context) ([]*chatMessageResolver, error) {
	nodes, err := s.r.related(ctx, schema.EntityChatSession, s.node, "messages", graph.ListOptions{OrderBy: "createdAt", Desc: true})
	if err != nil {
		return nil, err
	}
	return s.r.chatMessages(nodes), nil
}

type chatMessageResolver struct {
	r    *Resolver
	node schema.Node
}

func (m *chatMessageResolver) ID() graphql.ID      { return graphql.ID(m.node.ID()) }
func (m *chatMessageResolver) Content() string     { return m.node.String("content") }
func (m *chatMessageResolver) CreatedAt() DateTime { return dateTimeOf(m.node["createdAt"]) }
func (m *chatMessageResolver) IsOwnerHuman() bool  { return m.node.Bool("isOwnerHuman") }

func (m *chatMessageResolver) Session(ctx context.Context) (*chatSessionResolver, error) {
	n, err := m.r.single(ctx, schema.EntityChatMessage, m.node, "session")
	if err != nil || n == nil {
		return nil, err
	}
	return &chatSessionResolver{r: m.r, node: n}, nil
}

type deleteInfoResolver struct {
	info graph.DeleteInfo
}

func (d *deleteInfoResolver) NodesDeleted() int32         { return int32(d.info.NodesDeleted) }
func (d *deleteInfoResolver) RelationshipsDeleted() int32 { return int32(d.info.RelationshipsDeleted) }

func (r *Resolver) actors(nodes []schema.Node) []*actorResolver {
	out := make([]*actorResolver, len(nodes))
	for i, n := range nodes {
		out[i] = &actorResolver{r: r, node: n}
	}
	return out
}

func (r *Resolver) movies(nodes []schema.Node) []*movieResolver {
	out := make([]*movieResolver, len(nodes))
	for i, n := range nodes {
		out[i] = &movieResolver{r: r, node: n}
	}
	return out
}

func (r *Resolver) users(nodes []schema.Node) []*userResolver {
	out := make([]*userResolver, len(nodes))
	for i, n := range nodes {
		out[i] = &userResolver{r: r, node: n}
	}
	return out
}

func (r *Resolver) ingredients(nodes []schema.Node) []*ingredientResolver {
	out := make([]*ingredientResolver, len(nodes))
	for i, n := range nodes {
		out[i] = &ingredientResolver{r: r, node: n}
	}
	return out
}

func (r *Resolver) recipes(nodes []schema.Node) []*recipeResolver {
	out := make([]*recipeResolver, len(nodes))
	for i, n := range nodes {
		out[i] = &recipeResolver{r: r, node: n}
	}
	return out
}

func (r *Resolver) chatSessions(nodes []schema.Node) []*chatSessionResolver {
	out := make([]*chatSessionResolver, len(nodes))
	for i, n := range nodes {
		out[i] = &chatSessionResolver{r: r, node: n}
	}
	return out
}

func (r *Resolver) chatMessages(nodes []schema.Node) []*chatMessageResolver {
	out := make([]*chatMessageResolver, len(nodes))
	for i, n := range nodes {
		out[i] = &chatMessageResolver{r: r, node: n}
	}
	return out
}
