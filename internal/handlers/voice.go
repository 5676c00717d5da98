package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/windoze95/voicepack-api/internal/audio"
	"github.com/windoze95/voicepack-api/internal/logger"
	"github.com/windoze95/voicepack-api/internal/models"
	"github.com/windoze95/voicepack-api/internal/service"
	"github.com/windoze95/voicepack-api/internal/ttscache"
	"github.com/windoze95/voicepack-api/internal/util"
	"go.uber.org/zap"
)

// DefaultMaxUploadBytes bounds audio uploads.
const DefaultMaxUploadBytes = 25 << 20

// VoiceHandler is the handler for voice queries and cached speech.
type VoiceHandler struct {
	Service        *service.VoiceService
	MaxUploadBytes int64
}

// NewVoiceHandler is the constructor function for initializing a new VoiceHandler.
func NewVoiceHandler(voiceService *service.VoiceService) *VoiceHandler {
	return &VoiceHandler{
		Service:        voiceService,
		MaxUploadBytes: DefaultMaxUploadBytes,
	}
}

// Transcribe handles a multipart audio upload in the "file" field.
func (h *VoiceHandler) Transcribe(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if h.MaxUploadBytes > 0 && fileHeader.Size > h.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file is too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read upload"})
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	req := service.VoiceRequest{
		UserID: util.GetOptionalUserID(c),
		Lang:   requestLanguage(c, c.PostForm("lang")),
		Source: models.SourceUpload,
	}
	result, err := h.Service.HandleAudio(ctx, req, file, fileHeader.Filename)
	if err != nil {
		h.writeAudioError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *VoiceHandler) writeAudioError(c *gin.Context, err error) {
	var convErr *audio.ConversionError
	switch {
	case errors.As(err, &convErr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ffmpeg conversion failed", "detail": convErr.Detail})
	case errors.Is(err, audio.ErrFFmpegMissing):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ffmpeg conversion failed", "detail": err.Error()})
	case errors.Is(err, service.ErrTranscriptionUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrTranscriptionFailed), errors.Is(err, context.DeadlineExceeded):
		logger.FromGin(c).Warn("transcription failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "speech recognition failed"})
	default:
		logger.FromGin(c).Error("failed to process upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process audio"})
	}
}

// Query answers a typed utterance.
func (h *VoiceHandler) Query(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
		Lang string `json:"lang"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	result := h.Service.HandleText(ctx, service.VoiceRequest{
		UserID: util.GetOptionalUserID(c),
		Lang:   requestLanguage(c, req.Lang),
		Source: models.SourceText,
	}, req.Text)

	c.JSON(http.StatusOK, result)
}

// ServeTTS streams a cached speech file by name.
func (h *VoiceHandler) ServeTTS(c *gin.Context) {
	if !h.Service.SpeechReady() {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	name := c.Param("name")
	f, err := h.Service.Speech.Cache.Open(name)
	if errors.Is(err, ttscache.ErrInvalidName) || errors.Is(err, ttscache.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("failed to open cached speech", zap.String("name", name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read audio"})
		return
	}
	defer f.Close()

	modTime := time.Time{}
	if info, err := f.Stat(); err == nil {
		modTime = info.ModTime()
	}

	c.Header("Content-Type", service.ContentTypeFor(name))
	c.Header("Cache-Control", "public, max-age=86400")
	http.ServeContent(c.Writer, c.Request, name, modTime, f)
}

// InteractionResponse is one entry of the voice history.
type InteractionResponse struct {
	ID           uint              `json:"id"`
	Source       string            `json:"source"`
	Transcript   string            `json:"transcript"`
	Intent       string            `json:"intent"`
	Entities     map[string]string `json:"entities"`
	ResponseText string            `json:"response_text"`
	TTSURL       string            `json:"tts_url,omitempty"`
	LatencyMs    int64             `json:"latency_ms"`
	CreatedAt    time.Time         `json:"created_at"`
}

// History lists the authenticated user's recent interactions.
func (h *VoiceHandler) History(c *gin.Context) {
	userID, err := util.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	page, pageSize := parsePagination(c)
	items, total, err := h.Service.History(userID, page, pageSize)
	if err != nil {
		logger.FromGin(c).Error("failed to load voice history", zap.Uint("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load history"})
		return
	}

	route := h.Service.TTSRoute
	if route == "" {
		route = service.DefaultTTSRoute
	}
	out := make([]InteractionResponse, 0, len(items))
	for _, it := range items {
		resp := InteractionResponse{
			ID:           it.ID,
			Source:       string(it.Source),
			Transcript:   it.Transcript,
			Intent:       it.Intent,
			Entities:     map[string]string(it.Entities),
			ResponseText: it.Reply,
			LatencyMs:    it.LatencyMs,
			CreatedAt:    it.CreatedAt,
		}
		if resp.Entities == nil {
			resp.Entities = map[string]string{}
		}
		if it.AudioName != "" {
			resp.TTSURL = route + it.AudioName
		}
		out = append(out, resp)
	}

	c.JSON(http.StatusOK, gin.H{"interactions": out, "total": total, "page": page, "page_size": pageSize})
}

// requestLanguage prefers an explicit language, then the signed-in user's
// setting. An empty result lets the service apply its default.
func requestLanguage(c *gin.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if user, err := util.GetUserFromContext(c); err == nil && user != nil && user.Settings != nil && user.Settings.IsValidLanguage() {
		return user.Settings.Language
	}
	return ""
}
