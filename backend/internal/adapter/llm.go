package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"nomnom-api/backend/pkg/logger"
	"go.uber.org/zap"
)

// Role of a chat turn.
type Role string

const (
	RoleUser      Role = openai.ChatMessageRoleUser
	RoleAssistant Role = openai.ChatMessageRoleAssistant
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role
	Content string
}

// LLMAdapter talks to an OpenAI-compatible chat completion endpoint.
type LLMAdapter struct {
	client      *openai.Client
	model       string
	mu          sync.RWMutex // Protects model field for concurrent access
	maxRetries  int
	backoff     time.Duration
	temperature float32
	logger      *zap.Logger
}

// Option configures an LLMAdapter.
type Option func(*LLMAdapter)

// WithRetries sets how many attempts a completion gets and the linear
// backoff between them.
func WithRetries(attempts int, backoff time.Duration) Option {
	return func(a *LLMAdapter) {
		if attempts > 0 {
			a.maxRetries = attempts
		}
		a.backoff = backoff
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) Option {
	return func(a *LLMAdapter) { a.temperature = t }
}

// NewLLMAdapter creates an adapter for the endpoint at baseURL, which is the
// server root without the /v1 suffix.
func NewLLMAdapter(baseURL, apiKey, modelID string, opts ...Option) *LLMAdapter {
	// Self-hosted gateways accept any key
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = strings.TrimSuffix(baseURL, "/") + "/v1"

	a := &LLMAdapter{
		client:      openai.NewClientWithConfig(config),
		model:       modelID,
		maxRetries:  3,
		backoff:     time.Second,
		temperature: 0.7,
		logger:      logger.Get(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetModel updates the model used by this adapter
func (a *LLMAdapter) SetModel(model string) {
	if model != "" {
		a.mu.Lock()
		a.model = model
		a.mu.Unlock()
		a.logger.Debug("LLM adapter model updated", zap.String("model", model))
	}
}

// GetModel returns the current model
func (a *LLMAdapter) GetModel() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.model
}

// Complete asks the model for the next assistant turn of history.
func (a *LLMAdapter) Complete(ctx context.Context, systemPrompt string, history []Message) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	currentModel := a.GetModel()
	req := openai.ChatCompletionRequest{
		Model:       currentModel,
		Messages:    messages,
		Temperature: a.temperature,
	}

	// Retry with linear backoff
	var resp openai.ChatCompletionResponse
	var err error
	for attempt := 0; attempt < a.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * a.backoff
			a.logger.Warn("Retrying LLM request",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err = a.client.CreateChatCompletion(ctx, req)
		if err == nil {
			break
		}

		a.logger.Error("LLM request failed",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.String("model", currentModel),
		)
		if !retryable(err) {
			break
		}
	}

	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in LLM response")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	a.logger.Debug("LLM response generated",
		zap.String("model", currentModel),
		zap.Int("history", len(history)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return content, nil
}

// retryable reports whether a failed request may succeed when repeated.
// Client errors other than rate limiting will not.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}
	return true
}
