package graph

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nomnom-api/backend/internal/schema"
	apperrors "nomnom-api/backend/pkg/errors"
)

// Integration tests require a running Neo4j instance.
// Set NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD environment variables.
func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Skipf("Neo4j not reachable: %v", err)
	}
	t.Cleanup(func() { driver.Close(ctx) })

	repo := NewRepository(driver, testModel(t))
	_, err = repo.EnsureSchema(ctx, true)
	require.NoError(t, err)
	return repo
}

func createTestDriver() (neo4j.DriverWithContext, error) {
	uri := envOr("NEO4J_URI", "bolt://localhost:7687")
	user := envOr("NEO4J_USER", "neo4j")
	password := envOr("NEO4J_PASSWORD", "password")

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(context.Background())
		return nil, err
	}
	return driver, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func createTestUser(t *testing.T, repo *Repository) schema.Node {
	t.Helper()
	ctx := context.Background()
	id := "test-user-" + uuid.New().String()
	u, err := repo.Create(ctx, schema.EntityUser, map[string]interface{}{
		"id":           id,
		"display_name": "Tester",
		"email":        id + "@example.test",
	}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = repo.Delete(ctx, schema.EntityUser, id, nil) })
	return u
}

func recipeProps(name string, ingredients ...string) map[string]interface{} {
	qty := make([]string, len(ingredients))
	for i := range qty {
		qty[i] = "1"
	}
	return map[string]interface{}{
		"name":            name,
		"ingredients":     ingredients,
		"ingredients_qty": qty,
		"serving":         2.0,
		"time_taken_mins": 15.0,
		"thumbnail_url":   "https://img.test/r.png",
		"contents":        "Mix and serve.",
	}
}

func TestRepository_RecipeLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	owner := createTestUser(t, repo)

	var seen schema.Node
	recipe, err := repo.Create(ctx, schema.EntityRecipe, recipeProps("Lifecycle Pasta", "flour", "egg"),
		[]Link{{Field: "owner", TargetID: owner.ID()}},
		func(current, pending schema.Node) error {
			assert.Nil(t, current)
			seen = pending
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, owner.ID(), mustLookup(t, seen, "owner", "id"))
	assert.Equal(t, owner.ID(), mustLookup(t, recipe, "owner", "id"))
	assert.NotEmpty(t, recipe.ID())
	assert.IsType(t, time.Time{}, recipe["createdAt"])

	updated, err := repo.Update(ctx, schema.EntityRecipe, recipe.ID(), map[string]interface{}{"name": "Renamed"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.String("name"))
	assert.True(t, recipe["createdAt"].(time.Time).Equal(updated["createdAt"].(time.Time)), "createdAt is immutable")

	// A failing check leaves the node untouched.
	_, err = repo.Update(ctx, schema.EntityRecipe, recipe.ID(), map[string]interface{}{"name": "Denied"},
		func(_, _ schema.Node) error { return apperrors.NewForbidden(schema.EntityRecipe, "UPDATE") })
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeAuthorization))
	got, err := repo.Get(ctx, schema.EntityRecipe, recipe.ID())
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.String("name"))

	info, err := repo.Delete(ctx, schema.EntityRecipe, recipe.ID(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, info.NodesDeleted)

	_, err = repo.Get(ctx, schema.EntityRecipe, recipe.ID())
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))
}

func TestRepository_CreateWithMissingOwner(t *testing.T) {
	repo := newTestRepository(t)
	_, err := repo.Create(context.Background(), schema.EntityRecipe, recipeProps("Orphan"),
		[]Link{{Field: "owner", TargetID: "no-such-user"}}, nil)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))

	_, err = repo.Create(context.Background(), schema.EntityRecipe, recipeProps("Orphan"), nil, nil)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation))
}

func TestRepository_ConnectIsIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	a := createTestUser(t, repo)
	b := createTestUser(t, repo)

	created, err := repo.Connect(ctx, schema.EntityUser, a.ID(), "following", b.ID(), nil)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Connect(ctx, schema.EntityUser, a.ID(), "following", b.ID(), nil)
	require.NoError(t, err)
	assert.False(t, created)

	followers, err := repo.Related(ctx, schema.EntityUser, b.ID(), "followers", ListOptions{})
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, a.ID(), followers[0].ID())

	removed, err := repo.Disconnect(ctx, schema.EntityUser, a.ID(), "following", b.ID(), nil)
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = repo.Connect(ctx, schema.EntityUser, a.ID(), "following", a.ID(), nil)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation))
}

func TestRepository_ChatMessages(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	owner := createTestUser(t, repo)

	session, err := repo.Create(ctx, schema.EntityChatSession, map[string]interface{}{},
		[]Link{{Field: "owner", TargetID: owner.ID()}}, nil)
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		_, err := repo.CreateChatMessage(ctx, NewChatMessage{
			SessionID:    session.ID(),
			Content:      fmt.Sprintf("message %d", i),
			IsOwnerHuman: i%2 == 0,
		}, nil)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	history, err := repo.ChatHistory(ctx, session.ID(), 10)
	require.NoError(t, err)
	require.Len(t, history, 10)
	for i := 1; i < len(history); i++ {
		prev := history[i-1]["createdAt"].(time.Time)
		cur := history[i]["createdAt"].(time.Time)
		assert.True(t, prev.After(cur), "history must be newest first")
	}
	assert.Equal(t, "message 11", history[0].String("content"))

	all, err := repo.ChatHistory(ctx, session.ID(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 12)

	// Messages go with their session.
	info, err := repo.Delete(ctx, schema.EntityChatSession, session.ID(), nil)
	require.NoError(t, err)
	assert.Equal(t, 13, info.NodesDeleted)
}

func TestRepository_CreateChatMessageMissingSession(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	missing := "no-such-session-" + uuid.New().String()

	_, err := repo.CreateChatMessage(ctx, NewChatMessage{SessionID: missing, Content: "hi", IsOwnerHuman: true}, nil)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))

	_, err = repo.ChatHistory(ctx, missing, 10)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))
}

func TestRepository_SearchPaginationConsistency(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	owner := createTestUser(t, repo)
	marker := "zq" + strings.ReplaceAll(uuid.New().String()[:8], "-", "")

	for i := 0; i < 4; i++ {
		_, err := repo.Create(ctx, schema.EntityRecipe, recipeProps(fmt.Sprintf("%s dish %d", marker, i), "salt"),
			[]Link{{Field: "owner", TargetID: owner.ID()}}, nil)
		require.NoError(t, err)
	}

	// The full-text index is eventually consistent.
	require.Eventually(t, func() bool {
		n, err := repo.SearchRecipesCount(ctx, marker)
		return err == nil && n == 4
	}, 10*time.Second, 200*time.Millisecond)

	all, err := repo.SearchRecipes(ctx, marker, 0, Unbounded)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	page, err := repo.SearchRecipes(ctx, marker, 1, 2)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	empty, err := repo.SearchRecipes(ctx, "   ", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
	n, err := repo.SearchRecipesCount(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRepository_FindIngredientsByName(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	prefix := "zzing" + uuid.New().String()[:6]

	seeds := make([]IngredientSeed, 35)
	for i := range seeds {
		seeds[i] = IngredientSeed{Name: fmt.Sprintf("%s Item %02d", strings.ToUpper(prefix), i), Group: "test"}
	}
	created, err := repo.UpsertIngredients(ctx, seeds)
	require.NoError(t, err)
	assert.Equal(t, 35, created)
	t.Cleanup(func() {
		session := repo.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)
		_, _ = session.Run(ctx, "MATCH (i:Ingredient) WHERE i.name STARTS WITH $p DETACH DELETE i", map[string]interface{}{"p": prefix})
	})

	again, err := repo.UpsertIngredients(ctx, seeds[:3])
	require.NoError(t, err)
	assert.Zero(t, again)

	found, err := repo.FindIngredientsByName(ctx, "  "+strings.ToUpper(prefix)+" ITEM ")
	require.NoError(t, err)
	assert.Len(t, found, 30)
	for _, ing := range found {
		assert.Contains(t, ing.String("name"), prefix+" item ")
	}
}

func mustLookup(t *testing.T, n schema.Node, path ...string) interface{} {
	t.Helper()
	v, ok := n.Lookup(path...)
	require.True(t, ok, "missing %v", path)
	return v
}
