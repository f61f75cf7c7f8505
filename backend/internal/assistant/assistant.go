// Package assistant writes the automated side of a chat session: it reads
// the latest messages, asks a language model for the next turn and stores
// the answer as a non-human message.
package assistant

import (
	"context"
	"errors"

	"nomnom-api/backend/internal/adapter"
	"nomnom-api/backend/internal/graph"
	"nomnom-api/backend/internal/schema"
	apperrors "nomnom-api/backend/pkg/errors"
	"nomnom-api/backend/pkg/logger"
	"go.uber.org/zap"
)

// DefaultSystemPrompt frames the model as the app's cooking companion.
const DefaultSystemPrompt = `You are NomNom, a friendly cooking assistant.
Help the user decide what to cook, adapt recipes to the ingredients they have,
and explain techniques step by step. Keep answers short and practical.
Quantities use metric units unless the user asks otherwise.`

const defaultHistorySize = 20

// Completer produces the next assistant turn of a conversation.
// *adapter.LLMAdapter implements it.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, history []adapter.Message) (string, error)
}

// Store is the part of the entity store the assistant uses.
type Store interface {
	ChatHistory(ctx context.Context, sessionID string, limit int) ([]schema.Node, error)
	CreateChatMessage(ctx context.Context, msg graph.NewChatMessage, check func(session schema.Node) error) (schema.Node, error)
}

// Assistant answers chat sessions.
type Assistant struct {
	store        Store
	completer    Completer
	systemPrompt string
	historySize  int
	logger       *zap.Logger
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithSystemPrompt replaces DefaultSystemPrompt.
func WithSystemPrompt(p string) Option {
	return func(a *Assistant) { a.systemPrompt = p }
}

// WithHistorySize bounds how many recent messages are sent to the model.
func WithHistorySize(n int) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.historySize = n
		}
	}
}

// New creates an assistant.
func New(store Store, completer Completer, opts ...Option) *Assistant {
	a := &Assistant{
		store:        store,
		completer:    completer,
		systemPrompt: DefaultSystemPrompt,
		historySize:  defaultHistorySize,
		logger:       logger.Get(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Reply answers the latest messages of sessionID. check runs against the
// session before the answer is stored.
func (a *Assistant) Reply(ctx context.Context, sessionID string, check func(session schema.Node) error) (schema.Node, error) {
	recent, err := a.store.ChatHistory(ctx, sessionID, a.historySize)
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return nil, apperrors.NewValidation("sessionId", "session has no messages to answer")
	}

	history := transcript(recent)
	content, err := a.completer.Complete(ctx, a.systemPrompt, history)
	if err != nil {
		a.logger.Error("Assistant completion failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return nil, apperrors.NewUpstream("assistant", err)
	}
	if content == "" {
		return nil, apperrors.NewUpstream("assistant", errors.New("empty completion"))
	}

	msg, err := a.store.CreateChatMessage(ctx, graph.NewChatMessage{
		SessionID:    sessionID,
		Content:      content,
		IsOwnerHuman: false,
	}, check)
	if err != nil {
		return nil, err
	}

	a.logger.Info("Assistant replied",
		zap.String("session_id", sessionID),
		zap.Int("history", len(history)),
	)
	return msg, nil
}

// transcript turns newest-first messages into a chronological conversation.
func transcript(recent []schema.Node) []adapter.Message {
	out := make([]adapter.Message, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		role := adapter.RoleAssistant
		if recent[i].Bool("isOwnerHuman") {
			role = adapter.RoleUser
		}
		out = append(out, adapter.Message{Role: role, Content: recent[i].String("content")})
	}
	return out
}
