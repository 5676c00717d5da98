package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/windoze95/voicepack-api/internal/audio"
	"github.com/windoze95/voicepack-api/internal/logger"
	"github.com/windoze95/voicepack-api/internal/middleware"
	"github.com/windoze95/voicepack-api/internal/models"
	"github.com/windoze95/voicepack-api/internal/service"
	"go.uber.org/zap"
)

// WebSocket message types for voice sessions.
const (
	MsgTypeQuery     = "query"     // typed utterance from the client
	MsgTypeAudio     = "audio"     // recorded utterance from the client
	MsgTypeReply     = "reply"     // answer to a query or audio message
	MsgTypeError     = "error"     // error message
	MsgTypeConnected = "connected" // connection confirmed
)

// messageTimeout bounds the pipeline for one inbound message.
const messageTimeout = 30 * time.Second

// WSMessage is the envelope for all messages sent over a voice session.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// QueryPayload carries a typed utterance.
type QueryPayload struct {
	Text string `json:"text"`
	Lang string `json:"lang,omitempty"`
}

// AudioPayload carries recorded audio. Data is base64 in JSON.
type AudioPayload struct {
	Data     []byte `json:"data"`
	FileName string `json:"file_name,omitempty"`
	Lang     string `json:"lang,omitempty"`
}

// ReplyPayload wraps a voice result together with the message that caused it,
// so other devices in the same room can show the exchange.
type ReplyPayload struct {
	Origin string `json:"origin"`
	*service.VoiceResult
}

// ErrorPayload carries an error message to the client.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ConnectedPayload confirms a successful connection.
type ConnectedPayload struct {
	SessionID string `json:"session_id"`
	UserID    *uint  `json:"user_id,omitempty"`
}

// VoiceSessionHandler manages WebSocket voice sessions.
type VoiceSessionHandler struct {
	Hub       *Hub
	JwtSecret string
	Service   *service.VoiceService
	Upgrader  websocket.Upgrader
}

// NewVoiceSessionHandler returns a handler that accepts upgrades from the
// given browser origins. An empty list accepts any origin.
func NewVoiceSessionHandler(hub *Hub, jwtSecret string, voiceService *service.VoiceService, allowedOrigins []string) *VoiceSessionHandler {
	return &VoiceSessionHandler{
		Hub:       hub,
		JwtSecret: jwtSecret,
		Service:   voiceService,
		Upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if origin == o {
				return true
			}
		}
		// Allow localhost for development
		return strings.HasPrefix(origin, "http://localhost:") || origin == "http://localhost"
	}
}

// RoomFor returns the room a session joins: one per user, or a private room
// for anonymous sessions.
func RoomFor(userID *uint, sessionID string) string {
	if userID != nil {
		return fmt.Sprintf("user:%d", *userID)
	}
	return "anon:" + sessionID
}

// HandleVoiceSession upgrades an HTTP request to a voice session. A "token"
// query parameter signs the session in; without one the session is
// anonymous. An invalid token is rejected before the upgrade.
func (vh *VoiceSessionHandler) HandleVoiceSession(c *gin.Context) {
	log := logger.Get()

	var userID *uint
	if tokenString := strings.TrimSpace(c.Query("token")); tokenString != "" {
		id, err := middleware.ParseAccessToken(vh.JwtSecret, tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		userID = &id
	}

	conn, err := vh.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sessionID := uuid.NewString()
	client := NewClient(vh.Hub, conn, RoomFor(userID, sessionID), userID)
	vh.Hub.Join(client)

	vh.send(client, MsgTypeConnected, ConnectedPayload{SessionID: sessionID, UserID: userID})

	go client.WritePump()
	go client.ReadPump(vh.handleMessage)
}

// handleMessage parses an incoming message and routes it by type.
func (vh *VoiceSessionHandler) handleMessage(client *Client, data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		vh.sendError(client, "invalid message format")
		return
	}

	logger.Get().Debug("received ws message", append(client.logFields(), zap.String("type", msg.Type))...)

	switch msg.Type {
	case MsgTypeQuery:
		vh.handleQuery(client, msg.Payload)
	case MsgTypeAudio:
		vh.handleAudio(client, msg.Payload)
	default:
		vh.sendError(client, "unknown message type: "+msg.Type)
	}
}

func (vh *VoiceSessionHandler) handleQuery(client *Client, payload json.RawMessage) {
	var query QueryPayload
	if err := json.Unmarshal(payload, &query); err != nil {
		vh.sendError(client, "invalid query payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), messageTimeout)
	defer cancel()

	result := vh.Service.HandleText(ctx, vh.request(client, query.Lang), query.Text)
	vh.publishReply(client, MsgTypeQuery, result)
}

func (vh *VoiceSessionHandler) handleAudio(client *Client, payload json.RawMessage) {
	var clip AudioPayload
	if err := json.Unmarshal(payload, &clip); err != nil {
		vh.sendError(client, "invalid audio payload")
		return
	}
	if len(clip.Data) == 0 {
		vh.sendError(client, "audio data is required")
		return
	}
	if clip.FileName == "" {
		clip.FileName = "clip.webm"
	}

	ctx, cancel := context.WithTimeout(context.Background(), messageTimeout)
	defer cancel()

	result, err := vh.Service.HandleAudio(ctx, vh.request(client, clip.Lang), bytes.NewReader(clip.Data), clip.FileName)
	if err != nil {
		logger.Get().Warn("failed to process ws audio", append(client.logFields(), zap.Error(err))...)
		vh.sendError(client, audioErrorMessage(err))
		return
	}
	vh.publishReply(client, MsgTypeAudio, result)
}

func (vh *VoiceSessionHandler) request(client *Client, lang string) service.VoiceRequest {
	return service.VoiceRequest{
		UserID: client.UserID,
		Lang:   lang,
		Source: models.SourceWS,
	}
}

// publishReply sends the reply to every session in the client's room.
func (vh *VoiceSessionHandler) publishReply(client *Client, origin string, result *service.VoiceResult) {
	data, err := encode(MsgTypeReply, ReplyPayload{Origin: origin, VoiceResult: result})
	if err != nil {
		logger.Get().Error("failed to encode ws reply", zap.Error(err))
		return
	}
	vh.Hub.Publish(&RoomMessage{RoomID: client.RoomID, Message: data})
}

func (vh *VoiceSessionHandler) send(client *Client, msgType string, payload interface{}) {
	data, err := encode(msgType, payload)
	if err != nil {
		logger.Get().Error("failed to encode ws message", zap.String("type", msgType), zap.Error(err))
		return
	}
	if !vh.Hub.SendTo(client, data) {
		logger.Get().Debug("dropped ws message", append(client.logFields(), zap.String("type", msgType))...)
	}
}

// sendError sends an error message to a single client.
func (vh *VoiceSessionHandler) sendError(client *Client, message string) {
	vh.send(client, MsgTypeError, ErrorPayload{Message: message})
}

func audioErrorMessage(err error) string {
	var convErr *audio.ConversionError
	switch {
	case errors.As(err, &convErr), errors.Is(err, audio.ErrFFmpegMissing):
		return "ffmpeg conversion failed"
	case errors.Is(err, service.ErrTranscriptionUnavailable):
		return err.Error()
	case errors.Is(err, service.ErrTranscriptionFailed), errors.Is(err, context.DeadlineExceeded):
		return "speech recognition failed"
	default:
		return "failed to process audio"
	}
}

func encode(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WSMessage{Type: msgType, Payload: raw})
}
