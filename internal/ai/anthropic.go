package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/windoze95/voicepack-api/internal/config"
)

const (
	anthropicModel     = "claude-haiku-4-5-20251001"
	anthropicMaxTokens = 512

	// statusOverloaded is Anthropic's non-standard "overloaded" status.
	statusOverloaded = 529

	fallbackSystemPrompt = "You are a helpful voice assistant. Keep answers short."
)

var (
	errNoMessages = errors.New("no messages to send")
	errNoTurns    = errors.New("conversation has no user or assistant messages")
	errNoText     = errors.New("no text content in Claude response")
)

// AnthropicProvider answers free-form chat with Claude.
type AnthropicProvider struct {
	client  anthropic.Client
	prompts *config.Prompts
}

// NewAnthropicProvider returns a Claude chat provider. opts are appended
// after the API key, so tests can point it at a fake server.
func NewAnthropicProvider(apiKey string, prompts *config.Prompts, opts ...option.RequestOption) *AnthropicProvider {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicProvider{client: anthropic.NewClient(opts...), prompts: prompts}
}

// Name identifies the provider in stored chat history.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// Chat sends the conversation with the persona system prompt and returns the
// reply text.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", errNoMessages
	}

	system, err := p.systemPrompt()
	if err != nil {
		return "", err
	}
	extra, turns := messagesToAnthropicParams(messages)
	if len(turns) == 0 {
		return "", errNoTurns
	}
	if extra != "" {
		system += "\n\n" + extra
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(anthropicModel),
		MaxTokens: anthropicMaxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages:  turns,
	}
	resp, err := withRetry(ctx, "claude messages", retryableAnthropicError, func() (*anthropic.Message, error) {
		return p.client.Messages.New(ctx, params)
	})
	if err != nil {
		return "", err
	}
	return extractTextContent(resp)
}

func (p *AnthropicProvider) systemPrompt() (string, error) {
	if p.prompts == nil {
		return fallbackSystemPrompt, nil
	}
	system, err := p.prompts.ChatSystem()
	if err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return system, nil
}

// messagesToAnthropicParams joins system messages into one prompt and
// converts the user and assistant turns. Other roles are dropped.
func messagesToAnthropicParams(msgs []Message) (string, []anthropic.MessageParam) {
	var system []string
	var turns []anthropic.MessageParam

	for _, m := range msgs {
		block := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)}
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "user":
			turns = append(turns, anthropic.MessageParam{Role: anthropic.MessageParamRoleUser, Content: block})
		case "assistant":
			turns = append(turns, anthropic.MessageParam{Role: anthropic.MessageParamRoleAssistant, Content: block})
		}
	}
	return strings.Join(system, "\n\n"), turns
}

// retryableAnthropicError reports whether err is a rate limit, an overload or
// a transient server failure.
func retryableAnthropicError(err error) bool {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, statusOverloaded:
		return true
	}
	return false
}

func extractTextContent(msg *anthropic.Message) (string, error) {
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", errNoText
	}
	return strings.TrimSpace(b.String()), nil
}
