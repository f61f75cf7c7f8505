package graph

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"nomnom-api/backend/internal/schema"
	apperrors "nomnom-api/backend/pkg/errors"
	"go.uber.org/zap"
)

// ============================================================================
// Custom Operations
// ============================================================================

// Names of the statement-backed operations declared in the type definitions.
const (
	OpSearchRecipes         = "searchRecipes"
	OpSearchRecipesCount    = "searchRecipesCount"
	OpFindIngredientsByName = "findIngredientsByName"
	OpGetChatHistory        = "getChatHistory"
	OpCreateChatMessage     = "createChatMessage"
)

// Unbounded is the limit used when a caller asks for every row.
const Unbounded = math.MaxInt32

// luceneSpecial lists the characters the full-text query parser treats as
// syntax.
const luceneSpecial = `+-&|!(){}[]^"~*?:\/`

// luceneKeywords are operators only in upper case; lower-cased they are
// plain words.
var luceneKeywords = map[string]bool{"AND": true, "OR": true, "NOT": true, "TO": true}

// EscapeSearchTerm makes term a literal full-text query.
func EscapeSearchTerm(term string) string {
	words := strings.Fields(term)
	for i, w := range words {
		if luceneKeywords[w] {
			words[i] = strings.ToLower(w)
			continue
		}
		var b strings.Builder
		for _, c := range w {
			if strings.ContainsRune(luceneSpecial, c) {
				b.WriteRune('\\')
			}
			b.WriteRune(c)
		}
		words[i] = b.String()
	}
	return strings.Join(words, " ")
}

func (r *Repository) operation(name string) (*schema.CustomOperation, error) {
	op, ok := r.model.Operation(name)
	if !ok {
		return nil, fmt.Errorf("operation %s is not declared", name)
	}
	return op, nil
}

// runOperation executes a declared statement in tx and returns the values of
// its result column.
func runOperation(ctx context.Context, tx neo4j.ManagedTransaction, op *schema.CustomOperation, args map[string]interface{}) ([]interface{}, error) {
	result, err := tx.Run(ctx, op.Statement, op.Params(args))
	if err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", op.Name, err)
	}
	var values []interface{}
	for result.Next(ctx) {
		v, _ := result.Record().Get(op.Column)
		values = append(values, v)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", op.Name, err)
	}
	return values, nil
}

func (r *Repository) readOperationNodes(ctx context.Context, name string, args map[string]interface{}) ([]schema.Node, error) {
	op, err := r.operation(name)
	if err != nil {
		return nil, err
	}
	out, err := r.read(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		values, err := runOperation(ctx, tx, op, args)
		if err != nil {
			return nil, err
		}
		return valuesToNodes(values), nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]schema.Node), nil
}

func valuesToNodes(values []interface{}) []schema.Node {
	nodes := make([]schema.Node, 0, len(values))
	for _, v := range values {
		if n, ok := toNode(v); ok {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// SearchRecipes ranks recipes by full-text relevance, best first. A blank
// term matches nothing.
func (r *Repository) SearchRecipes(ctx context.Context, term string, skip, limit int) ([]schema.Node, error) {
	term = EscapeSearchTerm(term)
	if term == "" {
		return []schema.Node{}, nil
	}
	return r.readOperationNodes(ctx, OpSearchRecipes, map[string]interface{}{
		"searchTerm": term,
		"skip":       skip,
		"limit":      limit,
	})
}

// SearchRecipesCount counts what SearchRecipes would return without paging.
func (r *Repository) SearchRecipesCount(ctx context.Context, term string) (int, error) {
	term = EscapeSearchTerm(term)
	if term == "" {
		return 0, nil
	}
	op, err := r.operation(OpSearchRecipesCount)
	if err != nil {
		return 0, err
	}
	out, err := r.read(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		values, err := runOperation(ctx, tx, op, map[string]interface{}{"searchTerm": term})
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			return 0, nil
		}
		n, _ := values[0].(int64)
		return int(n), nil
	})
	if err != nil {
		return 0, err
	}
	return out.(int), nil
}

// FindIngredientsByName matches ingredient names containing the trimmed,
// lower-cased fragment. The statement caps the result at 30.
func (r *Repository) FindIngredientsByName(ctx context.Context, name string) ([]schema.Node, error) {
	return r.readOperationNodes(ctx, OpFindIngredientsByName, map[string]interface{}{"name": name})
}

// ChatHistory returns up to limit messages of a session, newest first. A
// limit of zero or less returns every message.
func (r *Repository) ChatHistory(ctx context.Context, sessionID string, limit int) ([]schema.Node, error) {
	if limit <= 0 {
		limit = Unbounded
	}
	op, err := r.operation(OpGetChatHistory)
	if err != nil {
		return nil, err
	}
	session, err := r.entity(schema.EntityChatSession)
	if err != nil {
		return nil, err
	}

	out, err := r.read(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		if _, err := loadView(ctx, tx, session, sessionID); err != nil {
			return nil, err
		}
		values, err := runOperation(ctx, tx, op, map[string]interface{}{
			"sessionId": sessionID,
			"limit":     limit,
		})
		if err != nil {
			return nil, err
		}
		return valuesToNodes(values), nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]schema.Node), nil
}

// NewChatMessage is the client-controlled part of a chat message.
type NewChatMessage struct {
	SessionID    string
	Content      string
	IsOwnerHuman bool
}

// CreateChatMessage appends a message to a session. The identifier and the
// creation time are assigned here. check sees the session's authorization
// view before anything is written; a missing session is a not-found error.
func (r *Repository) CreateChatMessage(ctx context.Context, msg NewChatMessage, check func(session schema.Node) error) (schema.Node, error) {
	op, err := r.operation(OpCreateChatMessage)
	if err != nil {
		return nil, err
	}
	session, err := r.entity(schema.EntityChatSession)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	out, err := r.write(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		view, err := loadView(ctx, tx, session, msg.SessionID)
		if err != nil {
			return nil, err
		}
		if check != nil {
			if err := check(view); err != nil {
				return nil, err
			}
		}
		values, err := runOperation(ctx, tx, op, map[string]interface{}{
			"id":           id,
			"content":      msg.Content,
			"sessionId":    msg.SessionID,
			"isOwnerHuman": msg.IsOwnerHuman,
			"createdAt":    time.Now().UTC(),
		})
		if err != nil {
			return nil, err
		}
		nodes := valuesToNodes(values)
		if len(nodes) == 0 {
			// The session vanished between the check and the write.
			return nil, apperrors.NewNotFound(schema.EntityChatSession, msg.SessionID)
		}
		return nodes[0], nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Chat message created",
		zap.String("session_id", msg.SessionID),
		zap.String("message_id", id),
		zap.Bool("human", msg.IsOwnerHuman),
	)
	return out.(schema.Node), nil
}
