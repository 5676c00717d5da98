package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/windoze95/voicepack-api/internal/actions"
	"github.com/windoze95/voicepack-api/internal/models"
	"github.com/windoze95/voicepack-api/internal/nlu"
	"github.com/windoze95/voicepack-api/internal/service"
	"github.com/windoze95/voicepack-api/internal/testutil"
	"github.com/windoze95/voicepack-api/internal/weather"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type sessionFixture struct {
	server *httptest.Server
	hub    *Hub
	stt    *testutil.MockSpeechProvider
	repo   *testutil.MockInteractionRepo
}

// setupVoiceSessions starts a hub and an httptest server serving voice
// sessions at /v1/ws/voice. Speech synthesis is disabled.
func setupVoiceSessions(t *testing.T) *sessionFixture {
	t.Helper()
	w := &testutil.MockWeatherLookup{LookupFunc: func(_ context.Context, city string) weather.Result {
		return weather.Result{Status: weather.StatusOK, City: city, TemperatureC: 21.5}
	}}
	clock := func() time.Time { return time.Date(2025, 3, 14, 9, 5, 0, 0, time.Local) }

	f := &sessionFixture{
		stt:  &testutil.MockSpeechProvider{},
		repo: testutil.NewMockInteractionRepo(),
	}
	voiceService := service.NewVoiceService(actions.NewDispatcher(w, actions.WithClock(clock)), nil, f.stt, &testutil.MockAudioConverter{}, f.repo, t.TempDir(), "en")

	ctx, cancel := context.WithCancel(context.Background())
	f.hub = NewHub()
	go f.hub.Run(ctx)

	r := gin.New()
	r.GET("/v1/ws/voice", NewVoiceSessionHandler(f.hub, testSecret, voiceService, nil).HandleVoiceSession)
	f.server = httptest.NewServer(r)

	t.Cleanup(func() {
		f.server.Close()
		cancel()
	})
	return f
}

func (f *sessionFixture) url(query string) string {
	u := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/v1/ws/voice"
	if query != "" {
		u += "?" + query
	}
	return u
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial failed (status %d): %v", status, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func makeAccessToken(userID uint) string {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
		"type":    "access",
	}
	s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	return s
}

// readMessage reads one envelope with a deadline so tests never hang.
func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	return msg
}

func writeMessage(t *testing.T, conn *websocket.Conn, msgType string, payload interface{}) {
	t.Helper()
	raw, _ := json.Marshal(payload)
	if err := conn.WriteJSON(WSMessage{Type: msgType, Payload: raw}); err != nil {
		t.Fatalf("failed to write message: %v", err)
	}
}

func readReply(t *testing.T, conn *websocket.Conn) ReplyPayload {
	t.Helper()
	msg := readMessage(t, conn)
	if msg.Type != MsgTypeReply {
		t.Fatalf("type = %q (%s), want reply", msg.Type, msg.Payload)
	}
	reply := ReplyPayload{VoiceResult: &service.VoiceResult{}}
	if err := json.Unmarshal(msg.Payload, &reply); err != nil {
		t.Fatalf("failed to decode reply: %v", err)
	}
	return reply
}

func expectError(t *testing.T, conn *websocket.Conn, want string) {
	t.Helper()
	msg := readMessage(t, conn)
	if msg.Type != MsgTypeError {
		t.Fatalf("type = %q, want error", msg.Type)
	}
	var payload ErrorPayload
	json.Unmarshal(msg.Payload, &payload)
	if payload.Message != want {
		t.Errorf("error = %q, want %q", payload.Message, want)
	}
}

func TestVoiceSession_AnonymousConnect(t *testing.T) {
	f := setupVoiceSessions(t)
	conn := dial(t, f.url(""))

	msg := readMessage(t, conn)
	if msg.Type != MsgTypeConnected {
		t.Fatalf("type = %q, want connected", msg.Type)
	}
	var payload ConnectedPayload
	json.Unmarshal(msg.Payload, &payload)
	if payload.SessionID == "" {
		t.Error("expected a session id")
	}
	if payload.UserID != nil {
		t.Errorf("UserID = %v, want nil", *payload.UserID)
	}
	if f.hub.ClientCount(RoomFor(nil, payload.SessionID)) != 1 {
		t.Error("session should be registered in its private room")
	}
}

func TestVoiceSession_Query(t *testing.T) {
	f := setupVoiceSessions(t)
	conn := dial(t, f.url(""))
	readMessage(t, conn)

	writeMessage(t, conn, MsgTypeQuery, QueryPayload{Text: "What's the time"})

	reply := readReply(t, conn)
	if reply.Origin != MsgTypeQuery {
		t.Errorf("Origin = %q", reply.Origin)
	}
	if reply.Intent != nlu.IntentGetTime {
		t.Errorf("Intent = %q", reply.Intent)
	}
	if reply.ResponseText != "It's 09:05 AM." {
		t.Errorf("ResponseText = %q", reply.ResponseText)
	}
	if reply.TTSURL != "" {
		t.Errorf("TTSURL = %q, want empty without synthesis", reply.TTSURL)
	}

	if f.repo.Count() != 1 {
		t.Fatalf("interactions = %d, want 1", f.repo.Count())
	}
	if got := f.repo.Last().Source; got != models.SourceWS {
		t.Errorf("Source = %q, want ws", got)
	}
}

func TestVoiceSession_Audio(t *testing.T) {
	f := setupVoiceSessions(t)
	f.stt.TranscribeAudioFunc = func(ctx context.Context, audioData []byte, fileName string) (string, error) {
		if string(audioData) != "fake-audio" {
			t.Errorf("audio = %q", audioData)
		}
		return "weather in paris", nil
	}
	conn := dial(t, f.url(""))
	readMessage(t, conn)

	writeMessage(t, conn, MsgTypeAudio, AudioPayload{Data: []byte("fake-audio"), FileName: "clip.webm"})

	reply := readReply(t, conn)
	if reply.Origin != MsgTypeAudio {
		t.Errorf("Origin = %q", reply.Origin)
	}
	if reply.Transcript != "weather in paris" {
		t.Errorf("Transcript = %q", reply.Transcript)
	}
	if reply.Intent != nlu.IntentWeather {
		t.Errorf("Intent = %q", reply.Intent)
	}
	if reply.ResponseText != "The current temperature in Paris is 22°C." {
		t.Errorf("ResponseText = %q", reply.ResponseText)
	}
}

func TestVoiceSession_AudioErrors(t *testing.T) {
	f := setupVoiceSessions(t)
	f.stt.TranscribeAudioFunc = func(ctx context.Context, audioData []byte, fileName string) (string, error) {
		return "", errors.New("upstream 500")
	}
	conn := dial(t, f.url(""))
	readMessage(t, conn)

	writeMessage(t, conn, MsgTypeAudio, AudioPayload{})
	expectError(t, conn, "audio data is required")

	writeMessage(t, conn, MsgTypeAudio, AudioPayload{Data: []byte("x")})
	expectError(t, conn, "speech recognition failed")

	if f.repo.Count() != 0 {
		t.Errorf("failed audio should not be recorded, got %d", f.repo.Count())
	}
}

func TestVoiceSession_BadMessages(t *testing.T) {
	f := setupVoiceSessions(t)
	conn := dial(t, f.url(""))
	readMessage(t, conn)

	conn.WriteMessage(websocket.TextMessage, []byte("not json"))
	expectError(t, conn, "invalid message format")

	writeMessage(t, conn, "dance", map[string]string{})
	expectError(t, conn, "unknown message type: dance")

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"query","payload":"oops"}`))
	expectError(t, conn, "invalid query payload")
}

func TestVoiceSession_InvalidToken(t *testing.T) {
	f := setupVoiceSessions(t)

	_, resp, err := websocket.DefaultDialer.Dial(f.url("token=garbage"), nil)
	if err == nil {
		t.Fatal("expected the upgrade to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", resp)
	}
}

func TestVoiceSession_UserRoomSharesReplies(t *testing.T) {
	f := setupVoiceSessions(t)
	token := makeAccessToken(42)

	phone := dial(t, f.url("token="+token))
	speaker := dial(t, f.url("token="+token))

	msg := readMessage(t, phone)
	var payload ConnectedPayload
	json.Unmarshal(msg.Payload, &payload)
	if payload.UserID == nil || *payload.UserID != 42 {
		t.Fatalf("UserID = %v, want 42", payload.UserID)
	}
	readMessage(t, speaker)

	writeMessage(t, phone, MsgTypeQuery, QueryPayload{Text: "set an alarm for 7 am"})

	for _, conn := range []*websocket.Conn{phone, speaker} {
		reply := readReply(t, conn)
		if reply.Intent != nlu.IntentSetAlarm {
			t.Errorf("Intent = %q", reply.Intent)
		}
	}

	stored := f.repo.Last()
	if stored.UserID == nil || *stored.UserID != 42 {
		t.Errorf("stored UserID = %v, want 42", stored.UserID)
	}
}

func TestHub_ShutdownDoesNotBlock(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	client := NewClient(hub, nil, "room", nil)
	hub.Join(client)
	if !hub.SendTo(client, []byte("hello")) {
		t.Fatal("SendTo should queue for a joined client")
	}

	cancel()
	<-stopped

	// The queue is closed after draining the buffered message.
	if msg := <-client.Send; string(msg) != "hello" {
		t.Errorf("msg = %q", msg)
	}
	if _, ok := <-client.Send; ok {
		t.Error("Send should be closed on shutdown")
	}

	done := make(chan struct{})
	go func() {
		hub.Publish(&RoomMessage{RoomID: "room", Message: []byte("late")})
		hub.leave(client)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked after shutdown")
	}
	if hub.SendTo(client, []byte("late")) {
		t.Error("SendTo should fail after shutdown")
	}
}
