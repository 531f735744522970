package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"imgtranslate/internal/language"
)

// OpenAIBackend translates with an OpenAI-compatible chat model.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// NewOpenAIBackend creates a backend from an API key and optional base URL.
func NewOpenAIBackend(apiKey, baseURL, model string) *OpenAIBackend {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return NewOpenAIBackendWithClient(openai.NewClientWithConfig(cfg), model)
}

// NewOpenAIBackendWithClient creates a backend with an explicit client.
func NewOpenAIBackendWithClient(client *openai.Client, model string) *OpenAIBackend {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIBackend{client: client, model: model}
}

func (b *OpenAIBackend) Name() string { return "openai" }

// Translate asks the chat model for a translation and nothing else.
func (b *OpenAIBackend) Translate(ctx context.Context, req Request) (string, error) {
	target := req.TargetCode
	if l, ok := language.ByTargetCode(req.TargetCode); ok {
		target = fmt.Sprintf("%s (%s)", l.Name, l.TargetCode)
	}

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       b.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You are a translation engine. Translate the user's text from " +
					req.SourceCode + " into " + target + ". " +
					"Reply with the translation only, keep line breaks, add no notes or quotes.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.Text,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: chat completion: %v", ErrTranslationFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrTranslationFailed)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", ErrTranslationFailed)
	}
	return text, nil
}

// Ready checks that the configured model exists.
func (b *OpenAIBackend) Ready(ctx context.Context) error {
	if _, err := b.client.GetModel(ctx, b.model); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrModelUnavailable, b.model, err)
	}
	return nil
}
