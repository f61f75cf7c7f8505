package graph

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nomnom-api/backend/internal/schema"
	apperrors "nomnom-api/backend/pkg/errors"
)

func testModel(t *testing.T) *schema.Model {
	t.Helper()
	m, err := schema.Load()
	require.NoError(t, err)
	return m
}

func entityOf(t *testing.T, m *schema.Model, name string) *schema.Entity {
	t.Helper()
	e, ok := m.Entity(name)
	require.True(t, ok, name)
	return e
}

func TestProjection_NestsSingleRelationships(t *testing.T) {
	m := testModel(t)

	got := projection(entityOf(t, m, schema.EntityRecipe), "n")
	assert.Equal(t, "n {.*, `owner`: head([(n)<-[:`OWNS`]-(n_owner:`User`) | n_owner {.*}])}", got)

	// User has only list relationships.
	assert.Equal(t, "n {.*}", projection(entityOf(t, m, schema.EntityUser), "n"))
}

func TestRelatedStatement_FollowsDirection(t *testing.T) {
	m := testModel(t)
	user := entityOf(t, m, schema.EntityUser)

	followers, _ := user.Relationship("followers")
	query, params, err := relatedStatement(user, followers, user, ListOptions{Limit: 5})
	require.NoError(t, err)
	assert.Contains(t, query, "MATCH (n:`User` {id: $id})<-[:`FOLLOWS`]-(t:`User`)")
	assert.Contains(t, query, "LIMIT $limit")
	assert.Equal(t, 5, params["limit"])

	following, _ := user.Relationship("following")
	query, _, err = relatedStatement(user, following, user, ListOptions{})
	require.NoError(t, err)
	assert.Contains(t, query, "MATCH (n:`User` {id: $id})-[:`FOLLOWS`]->(t:`User`)")
	assert.NotContains(t, query, "LIMIT")
}

func TestListStatement_FilterAndOrder(t *testing.T) {
	m := testModel(t)
	recipe := entityOf(t, m, schema.EntityRecipe)

	query, params, err := listStatement(recipe, ListOptions{
		Filter:  map[string]interface{}{"name": "Pasta"},
		OrderBy: "createdAt",
		Desc:    true,
		Skip:    10,
		Limit:   10,
	})
	require.NoError(t, err)
	assert.Contains(t, query, "WHERE n.`name` = $f0")
	assert.Contains(t, query, "ORDER BY node.`createdAt` DESC")
	assert.Equal(t, "Pasta", params["f0"])
	assert.Equal(t, 10, params["skip"])

	_, _, err = listStatement(recipe, ListOptions{Filter: map[string]interface{}{"owner": "x"}})
	assert.Error(t, err, "relationships are not filterable scalars")

	_, _, err = listStatement(recipe, ListOptions{OrderBy: "nope"})
	assert.Error(t, err)
}

func TestUnlinkStatement(t *testing.T) {
	m := testModel(t)
	recipe := entityOf(t, m, schema.EntityRecipe)
	fav, _ := recipe.Relationship("favouritedByUsers")

	assert.Equal(t,
		"MATCH (n:`Recipe` {id: $id})<-[r:`FAVOURITED`]-(t:`User`)\nWHERE t.id = $target\nDELETE r",
		unlinkStatement(recipe, fav))
	assert.Equal(t,
		"MATCH (n:`Recipe` {id: $id}), (t:`User` {id: $target})\nMERGE (n)<-[:`FAVOURITED`]-(t)",
		linkStatement(recipe, fav))
}

func TestDependents(t *testing.T) {
	m := testModel(t)

	chains := dependents(m, entityOf(t, m, schema.EntityChatSession))
	require.Len(t, chains, 1)
	assert.Equal(t, "messages", chains[0][0].Field)

	var paths []string
	for _, c := range dependents(m, entityOf(t, m, schema.EntityUser)) {
		var fields []string
		for _, rel := range c {
			fields = append(fields, rel.Field)
		}
		paths = append(paths, strings.Join(fields, "."))
	}
	assert.ElementsMatch(t, []string{"recipes", "chat_session", "chat_session.messages"}, paths)

	assert.Empty(t, dependents(m, entityOf(t, m, schema.EntityActor)))
	assert.Empty(t, dependents(m, entityOf(t, m, schema.EntityRecipe)))
}

func TestDeleteStatement(t *testing.T) {
	m := testModel(t)

	assert.Equal(t, "MATCH (n:`Movie` {id: $id})\nDETACH DELETE n",
		deleteStatement(m, entityOf(t, m, schema.EntityMovie)))

	session := deleteStatement(m, entityOf(t, m, schema.EntityChatSession))
	assert.Contains(t, session, "OPTIONAL MATCH (n)-[:`HAS_MESSAGE`]->(d0_0:`ChatMessage`)")
	assert.Contains(t, session, "WITH n, collect(DISTINCT d0_0) AS c0")
	assert.Contains(t, session, "FOREACH (x IN c0 | DETACH DELETE x)")

	user := deleteStatement(m, entityOf(t, m, schema.EntityUser))
	assert.Contains(t, user, "-[:`HAS`]->(d")
	assert.Contains(t, user, ")-[:`HAS_MESSAGE`]->(d")
	assert.True(t, strings.HasSuffix(user, "DETACH DELETE n"))
}

func TestWritableProps(t *testing.T) {
	m := testModel(t)
	recipe := entityOf(t, m, schema.EntityRecipe)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	client := time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)

	full := map[string]interface{}{
		"name":            "Pasta",
		"ingredients":     []string{"flour"},
		"ingredients_qty": []string{"1 cup"},
		"serving":         2.0,
		"time_taken_mins": 20.0,
		"thumbnail_url":   "https://img.test/p.png",
		"contents":        "Boil.",
		"createdAt":       client,
	}

	created, err := writableProps(recipe, full, schema.OperationCreate, now)
	require.NoError(t, err)
	assert.NotEmpty(t, created["id"])
	assert.Equal(t, now, created["createdAt"], "client timestamps are ignored")
	assert.Equal(t, now, created["updatedAt"])

	updated, err := writableProps(recipe, map[string]interface{}{"name": "Soup", "id": "other"}, schema.OperationUpdate, now)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name": "Soup", "updatedAt": now}, updated)

	_, err = writableProps(recipe, map[string]interface{}{"name": "Pasta"}, schema.OperationCreate, now)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation), "missing required fields")

	_, err = writableProps(recipe, map[string]interface{}{"owner": "user-a"}, schema.OperationUpdate, now)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation), "relationships are not properties")

	user := entityOf(t, m, schema.EntityUser)
	explicit, err := writableProps(user, map[string]interface{}{"id": "sub-1", "display_name": "A", "email": "a@x.test"}, schema.OperationCreate, now)
	require.NoError(t, err)
	assert.Equal(t, "sub-1", explicit["id"])
}

func TestEscapeSearchTerm(t *testing.T) {
	assert.Equal(t, "", EscapeSearchTerm("   "))
	assert.Equal(t, "pasta", EscapeSearchTerm(" pasta "))
	assert.Equal(t, `mac \& cheese\!`, EscapeSearchTerm("mac & cheese!"))
	assert.Equal(t, `title\:\(x\)`, EscapeSearchTerm("title:(x)"))
	assert.Equal(t, `a\\b`, EscapeSearchTerm(`a\b`))

	// Bare operators would otherwise fail to parse.
	assert.Equal(t, "not", EscapeSearchTerm("NOT"))
	assert.Equal(t, "salt and pepper", EscapeSearchTerm("salt AND pepper"))
	assert.Equal(t, "fish or chips", EscapeSearchTerm("  fish   OR chips "))
	assert.Equal(t, "Not Andouille", EscapeSearchTerm("Not Andouille"))
}

func TestSearchAndCountShareMatchingPredicate(t *testing.T) {
	m := testModel(t)
	search, ok := m.Operation(OpSearchRecipes)
	require.True(t, ok)
	count, ok := m.Operation(OpSearchRecipesCount)
	require.True(t, ok)

	firstLine := func(s string) string {
		return strings.TrimSpace(strings.SplitN(strings.TrimSpace(s), "\n", 2)[0])
	}
	assert.Equal(t, firstLine(search.Statement), firstLine(count.Statement))
	assert.Contains(t, firstLine(search.Statement), SearchIndexName)
}

func TestNormalizeIngredientName(t *testing.T) {
	assert.Equal(t, "basil", NormalizeIngredientName("  Basil "))
}

func TestMigrations(t *testing.T) {
	m := testModel(t)
	steps := migrations(m)
	require.NotEmpty(t, steps)

	var all []string
	for _, s := range steps {
		all = append(all, s.statements...)
	}
	joined := strings.Join(all, "\n")
	for _, name := range m.EntityNames() {
		assert.Contains(t, joined, "FOR (n:`"+name+"`) REQUIRE n.id IS UNIQUE")
	}
	assert.Contains(t, joined, "CREATE FULLTEXT INDEX "+SearchIndexName)
}
