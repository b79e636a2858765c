package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"amora/server/internal/config"
)

const (
	maxRetries = 3
	retryDelay = 1 * time.Second
)

// ChatTurn is one prior turn of a conversation sent to the oracle.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is one call to the completion oracle.
type CompletionRequest struct {
	System   string
	History  []ChatTurn
	UserTurn string
	// ImageURL attaches an image to the user turn (vision analysis).
	ImageURL string
	// JSONMode forces a JSON object reply (story and generator contracts).
	JSONMode    bool
	MaxTokens   int
	Temperature float32
}

// Oracle is the external text-completion service. It returns text or fails;
// no further contract is assumed.
type Oracle interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// OpenAIOracle calls the OpenAI chat completion API with bounded retries.
type OpenAIOracle struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

func NewOpenAIOracle(cfg config.OpenAIConfig) *OpenAIOracle {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIOracle{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

func (o *OpenAIOracle) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, turn := range req.History {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}
	switch {
	case req.ImageURL != "":
		messages = append(messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: req.UserTurn},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: req.ImageURL}},
			},
		})
	case req.UserTurn != "":
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: req.UserTurn,
		})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		chatReq.Temperature = req.Temperature
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(retryDelay * time.Duration(attempt)):
			}
		}

		resp, err := o.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("no choices returned from model")
			continue
		}
		return resp.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("completion failed after %d attempts: %w", maxRetries, lastErr)
}
