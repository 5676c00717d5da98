package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/windoze95/voicepack-api/internal/logger"
	"github.com/windoze95/voicepack-api/internal/service"
	"github.com/windoze95/voicepack-api/internal/util"
	"go.uber.org/zap"
)

// ChatHandler is the handler for LLM chat requests.
type ChatHandler struct {
	Service *service.ChatService
}

// NewChatHandler is the constructor function for initializing a new ChatHandler.
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{Service: chatService}
}

// Chat forwards a prompt to the configured provider.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req struct {
		Prompt string `json:"prompt" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	reply, err := h.Service.Chat(ctx, util.GetOptionalUserID(c), req.Prompt)
	switch {
	case errors.Is(err, service.ErrEmptyPrompt), errors.Is(err, service.ErrPromptTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, service.ErrChatUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case err != nil:
		logger.FromGin(c).Error("chat request failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to get a reply"})
		return
	}

	c.JSON(http.StatusOK, reply)
}
