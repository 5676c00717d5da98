package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/windoze95/voicepack-api/internal/service"
)

// HealthHandler reports liveness and which voice stages are usable.
type HealthHandler struct {
	Voice *service.VoiceService
}

// NewHealthHandler is the constructor function for initializing a new HealthHandler.
func NewHealthHandler(voiceService *service.VoiceService) *HealthHandler {
	return &HealthHandler{Voice: voiceService}
}

// Root answers the bare liveness probe.
func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Health reports whether ffmpeg, speech synthesis and recognition are available.
func (h *HealthHandler) Health(c *gin.Context) {
	resp := gin.H{"ok": true, "ffmpeg": false, "tts": false, "asr": false}
	if h.Voice != nil {
		resp["ffmpeg"] = h.Voice.ConverterReady()
		resp["tts"] = h.Voice.SpeechReady()
		resp["asr"] = h.Voice.RecognitionReady()
	}
	c.JSON(http.StatusOK, resp)
}
