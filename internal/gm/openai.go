package gm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nexusweave/nexus/server/internal/model"
)

const generateTemperature = 0.7

// OpenAIGenerator speaks the OpenAI chat-completions protocol. A base URL
// override points it at local OpenAI-compatible servers (LM Studio, Ollama,
// vLLM); the API key is optional for those.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator builds a generator from the effective settings.
func NewOpenAIGenerator(s model.Settings) *OpenAIGenerator {
	cfg := openai.DefaultConfig(s.APIKey)
	if s.ModelURL != "" {
		cfg.BaseURL = strings.TrimRight(s.ModelURL, "/")
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(cfg),
		model:  s.ModelName,
	}
}

// Generate sends the system prompt and message window and returns the raw
// completion text. Failures come back as *ProviderError.
func (g *OpenAIGenerator) Generate(ctx context.Context, systemPrompt string, window []model.ChatTurn) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(window)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, turn := range window {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: generateTemperature,
	})
	if err != nil {
		return "", classifyError(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &ProviderError{Kind: ErrorKindEmpty, Message: "model returned empty response or invalid format"}
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &ProviderError{Kind: ErrorKindAuth, Message: "model provider rejected credentials", Err: err}
		default:
			return &ProviderError{Kind: ErrorKindHTTP, Message: "model provider request failed", Err: err}
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{Kind: ErrorKindHTTP, Message: "model provider request failed", Err: err}
	}
	return &ProviderError{Kind: ErrorKindNetwork, Message: "could not connect to model provider, check the model URL", Err: err}
}
