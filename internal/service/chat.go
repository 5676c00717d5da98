package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/windoze95/voicepack-api/internal/ai"
	"github.com/windoze95/voicepack-api/internal/logger"
	"github.com/windoze95/voicepack-api/internal/metrics"
	"github.com/windoze95/voicepack-api/internal/models"
	"github.com/windoze95/voicepack-api/internal/repository"
	"go.uber.org/zap"
)

const (
	// DefaultChatHistoryTurns is how many earlier exchanges are replayed to
	// the provider for a signed-in user.
	DefaultChatHistoryTurns = 5
	// MaxPromptLength bounds a single chat prompt in runes.
	MaxPromptLength = 4000
)

var (
	// ErrChatUnavailable is returned when no chat provider is configured.
	ErrChatUnavailable = errors.New("chat is not configured")
	// ErrEmptyPrompt is returned for blank prompts.
	ErrEmptyPrompt = errors.New("prompt is required")
	// ErrPromptTooLong is returned for prompts over MaxPromptLength.
	ErrPromptTooLong = fmt.Errorf("prompt exceeds %d characters", MaxPromptLength)
)

// ChatService forwards prompts to an LLM and keeps the exchange.
type ChatService struct {
	Provider     ai.ChatProvider
	Repo         repository.ChatRepo
	HistoryTurns int
}

// ChatReply is the response to a chat prompt.
type ChatReply struct {
	Response string `json:"response"`
	Provider string `json:"provider"`
}

// NewChatService creates a ChatService. repo may be nil.
func NewChatService(provider ai.ChatProvider, repo repository.ChatRepo) *ChatService {
	return &ChatService{
		Provider:     provider,
		Repo:         repo,
		HistoryTurns: DefaultChatHistoryTurns,
	}
}

// Chat sends prompt to the provider, prefixed by the user's recent history
// when userID is set, and stores the exchange.
func (s *ChatService) Chat(ctx context.Context, userID *uint, prompt string) (*ChatReply, error) {
	if s.Provider == nil {
		return nil, ErrChatUnavailable
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if len([]rune(prompt)) > MaxPromptLength {
		return nil, ErrPromptTooLong
	}

	messages := append(s.history(userID), ai.Message{Role: "user", Content: prompt})

	provider := s.Provider.Name()
	response, err := s.Provider.Chat(ctx, messages)
	if err != nil {
		metrics.ChatRequestsTotal.WithLabelValues(provider, "error").Inc()
		return nil, fmt.Errorf("chat with %s: %w", provider, err)
	}
	metrics.ChatRequestsTotal.WithLabelValues(provider, "ok").Inc()

	if s.Repo != nil {
		msg := &models.ChatMessage{
			UserID:   userID,
			Prompt:   prompt,
			Response: response,
			Provider: provider,
		}
		if err := s.Repo.CreateChatMessage(msg); err != nil {
			logger.Get().Error("failed to store chat message", zap.String("provider", provider), zap.Error(err))
		}
	}

	return &ChatReply{Response: response, Provider: provider}, nil
}

// history returns earlier exchanges as alternating user/assistant messages.
func (s *ChatService) history(userID *uint) []ai.Message {
	if s.Repo == nil || userID == nil || s.HistoryTurns <= 0 {
		return nil
	}

	past, err := s.Repo.GetRecentChatMessages(*userID, s.HistoryTurns)
	if err != nil {
		logger.Get().Warn("failed to load chat history", zap.Uint("user_id", *userID), zap.Error(err))
		return nil
	}

	messages := make([]ai.Message, 0, len(past)*2+1)
	for _, m := range past {
		messages = append(messages,
			ai.Message{Role: "user", Content: m.Prompt},
			ai.Message{Role: "assistant", Content: m.Response},
		)
	}
	return messages
}
