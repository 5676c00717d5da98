package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/windoze95/voicepack-api/internal/actions"
	"github.com/windoze95/voicepack-api/internal/ai"
	"github.com/windoze95/voicepack-api/internal/audio"
	"github.com/windoze95/voicepack-api/internal/service"
	"github.com/windoze95/voicepack-api/internal/testutil"
	"github.com/windoze95/voicepack-api/internal/ttscache"
	"github.com/windoze95/voicepack-api/internal/util"
	"github.com/windoze95/voicepack-api/internal/weather"
)

type voiceDeps struct {
	synth     *testutil.MockSynthesisProvider
	stt       *testutil.MockSpeechProvider
	converter *testutil.MockAudioConverter
	repo      *testutil.MockInteractionRepo
}

func newTestVoiceService(t *testing.T) (*service.VoiceService, *voiceDeps) {
	t.Helper()
	deps := &voiceDeps{
		synth:     &testutil.MockSynthesisProvider{},
		stt:       &testutil.MockSpeechProvider{},
		converter: &testutil.MockAudioConverter{},
		repo:      testutil.NewMockInteractionRepo(),
	}
	w := &testutil.MockWeatherLookup{LookupFunc: func(_ context.Context, city string) weather.Result {
		return weather.Result{Status: weather.StatusOK, City: city, TemperatureC: 11.4}
	}}
	clock := func() time.Time { return time.Date(2025, 3, 14, 13, 45, 0, 0, time.Local) }

	cache, err := ttscache.New(filepath.Join(t.TempDir(), "tts_cache"))
	if err != nil {
		t.Fatalf("ttscache.New error: %v", err)
	}
	speech := service.NewSpeechService(cache, deps.synth, nil)
	svc := service.NewVoiceService(actions.NewDispatcher(w, actions.WithClock(clock)), speech, deps.stt, deps.converter, deps.repo, filepath.Join(t.TempDir(), "tmp"), "en")
	return svc, deps
}

func setupVoiceRouter(t *testing.T) (*gin.Engine, *voiceDeps) {
	svc, deps := newTestVoiceService(t)
	h := NewVoiceHandler(svc)

	r := gin.New()
	r.POST("/v1/transcribe", h.Transcribe)
	r.POST("/v1/voice/query", h.Query)
	r.GET("/v1/tts/:name", h.ServeTTS)
	r.GET("/v1/voice/history", func(c *gin.Context) {
		if c.GetHeader("X-Test-User") != "" {
			c.Set(util.UserIDKey, uint(9))
		}
		c.Next()
	}, h.History)
	return r, deps
}

func multipartUpload(t *testing.T, field, fileName string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, fileName)
		if err != nil {
			t.Fatalf("CreateFormFile error: %v", err)
		}
		fw.Write(data)
	}
	mw.Close()
	return &body, mw.FormDataContentType()
}

func TestTranscribe_Success(t *testing.T) {
	r, deps := setupVoiceRouter(t)
	deps.stt.TranscribeAudioFunc = func(ctx context.Context, data []byte, fileName string) (string, error) {
		return "What's the weather in London", nil
	}

	body, contentType := multipartUpload(t, "file", "clip.webm", []byte("webm"))
	req := httptest.NewRequest("POST", "/v1/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d. body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["transcript"] != "What's the weather in London" {
		t.Errorf("transcript = %v", resp["transcript"])
	}
	if resp["intent"] != "get_weather" {
		t.Errorf("intent = %v", resp["intent"])
	}
	if resp["response_text"] != "The current temperature in London is 11°C." {
		t.Errorf("response_text = %v", resp["response_text"])
	}
	entities, _ := resp["entities"].(map[string]interface{})
	if entities["city"] != "London" {
		t.Errorf("entities = %v", resp["entities"])
	}
	url, _ := resp["tts_url"].(string)
	if !strings.HasPrefix(url, "/v1/tts/") {
		t.Errorf("tts_url = %q", url)
	}

	// the advertised URL serves the audio
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", url, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET %s status = %d", url, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("Content-Type = %q, want audio/mpeg", ct)
	}
	if w.Body.String() != "audio:The current temperature in London is 11°C." {
		t.Errorf("audio body = %q", w.Body.String())
	}
}

func TestTranscribe_MissingFile(t *testing.T) {
	r, _ := setupVoiceRouter(t)

	body, contentType := multipartUpload(t, "", "", nil)
	req := httptest.NewRequest("POST", "/v1/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestTranscribe_FFmpegFailure(t *testing.T) {
	r, deps := setupVoiceRouter(t)
	deps.stt.TranscribeAudioFunc = func(ctx context.Context, data []byte, fileName string) (string, error) {
		return "unused", nil
	}
	deps.converter.ConvertFunc = func(ctx context.Context, src, dst string) error {
		return &audio.ConversionError{Detail: "clip.ogg: Invalid data found when processing input", Err: errors.New("exit status 1")}
	}

	body, contentType := multipartUpload(t, "file", "clip.ogg", []byte("not audio"))
	req := httptest.NewRequest("POST", "/v1/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["error"] != "ffmpeg conversion failed" {
		t.Errorf("error = %q", resp["error"])
	}
	if !strings.Contains(resp["detail"], "Invalid data") {
		t.Errorf("detail = %q", resp["detail"])
	}
}

func TestTranscribe_STTFailure(t *testing.T) {
	r, deps := setupVoiceRouter(t)
	deps.stt.TranscribeAudioFunc = func(ctx context.Context, data []byte, fileName string) (string, error) {
		return "", errors.New("upstream 500")
	}

	body, contentType := multipartUpload(t, "file", "clip.webm", []byte("webm"))
	req := httptest.NewRequest("POST", "/v1/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
}

func TestTranscribe_TooLarge(t *testing.T) {
	svc, _ := newTestVoiceService(t)
	h := NewVoiceHandler(svc)
	h.MaxUploadBytes = 4
	r := gin.New()
	r.POST("/v1/transcribe", h.Transcribe)

	body, contentType := multipartUpload(t, "file", "clip.webm", []byte("0123456789"))
	req := httptest.NewRequest("POST", "/v1/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", w.Code, http.StatusRequestEntityTooLarge)
	}
}

func TestQuery_Time(t *testing.T) {
	r, _ := setupVoiceRouter(t)

	req := httptest.NewRequest("POST", "/v1/voice/query", strings.NewReader(`{"text": "what is the time"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d. body: %s", w.Code, w.Body.String())
	}
	var resp service.VoiceResult
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.ResponseText != "It's 01:45 PM." {
		t.Errorf("response_text = %q", resp.ResponseText)
	}
	if resp.Transcript != "what is the time" {
		t.Errorf("transcript = %q", resp.Transcript)
	}
}

func TestQuery_SynthesisFailureOmitsURL(t *testing.T) {
	r, deps := setupVoiceRouter(t)
	deps.synth.SynthesizeFunc = func(ctx context.Context, text, lang string) (io.ReadCloser, error) {
		return nil, errors.New("tts down")
	}

	req := httptest.NewRequest("POST", "/v1/voice/query", strings.NewReader(`{"text": "play a song"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "tts_url") {
		t.Errorf("body should not contain tts_url: %s", w.Body.String())
	}
}

func TestQuery_InvalidJSON(t *testing.T) {
	r, _ := setupVoiceRouter(t)

	req := httptest.NewRequest("POST", "/v1/voice/query", strings.NewReader(`{"text":`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestServeTTS_NotFound(t *testing.T) {
	r, _ := setupVoiceRouter(t)

	for _, path := range []string{
		"/v1/tts/0000000000000000000000000000000000000000.mp3",
		"/v1/tts/..secret.mp3",
		"/v1/tts/.tmp-1",
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want %d", path, w.Code, http.StatusNotFound)
		}
		if w.Code == http.StatusNotFound && w.Body.String() != `{"error":"not found"}` {
			t.Errorf("GET %s body = %s", path, w.Body.String())
		}
	}
}

func TestHistory_Handler(t *testing.T) {
	r, deps := setupVoiceRouter(t)
	uid := uint(9)
	for i := 0; i < 3; i++ {
		stored := testutil.TestInteraction(uid)
		deps.repo.CreateInteraction(&stored)
	}

	req := httptest.NewRequest("GET", "/v1/voice/history?page=1&page_size=2", nil)
	req.Header.Set("X-Test-User", "1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d. body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Interactions []InteractionResponse `json:"interactions"`
		Total        int64                 `json:"total"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 3 || len(resp.Interactions) != 2 {
		t.Errorf("total = %d, len = %d", resp.Total, len(resp.Interactions))
	}
	if got := resp.Interactions[0].TTSURL; !strings.HasPrefix(got, "/v1/tts/") {
		t.Errorf("tts_url = %q", got)
	}
	if resp.Interactions[0].Entities["city"] != "Paris" {
		t.Errorf("entities = %v", resp.Interactions[0].Entities)
	}
}

func TestHistory_Handler_Unauthorized(t *testing.T) {
	r, _ := setupVoiceRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/voice/history", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestHealth(t *testing.T) {
	svc, deps := newTestVoiceService(t)
	h := NewHealthHandler(svc)
	r := gin.New()
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Body.String() != `{"status":"ok"}` {
		t.Errorf("root body = %s", w.Body.String())
	}

	deps.converter.Missing = true
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	var resp map[string]bool
	json.Unmarshal(w.Body.Bytes(), &resp)
	want := map[string]bool{"ok": true, "ffmpeg": false, "tts": true, "asr": true}
	for k, v := range want {
		if resp[k] != v {
			t.Errorf("%s = %v, want %v", k, resp[k], v)
		}
	}
}

func TestChat_Handler(t *testing.T) {
	provider := &testutil.MockChatProvider{
		ProviderName: "anthropic",
		ChatFunc: func(ctx context.Context, messages []ai.Message) (string, error) {
			return "Sure.", nil
		},
	}
	h := NewChatHandler(service.NewChatService(provider, testutil.NewMockChatRepo()))
	r := gin.New()
	r.POST("/v1/ai/chat", h.Chat)

	cases := []struct {
		body string
		want int
	}{
		{`{"prompt": "Tell me a joke"}`, http.StatusOK},
		{`{"prompt": "   "}`, http.StatusBadRequest},
		{`{}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("POST", "/v1/ai/chat", strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Errorf("body %s: status = %d, want %d", tc.body, w.Code, tc.want)
		}
	}
}

func TestChat_Handler_ProviderFailure(t *testing.T) {
	provider := &testutil.MockChatProvider{
		ChatFunc: func(ctx context.Context, messages []ai.Message) (string, error) {
			return "", errors.New("overloaded")
		},
	}
	h := NewChatHandler(service.NewChatService(provider, nil))
	r := gin.New()
	r.POST("/v1/ai/chat", h.Chat)

	req := httptest.NewRequest("POST", "/v1/ai/chat", strings.NewReader(`{"prompt": "hi"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}

	h = NewChatHandler(service.NewChatService(nil, nil))
	r = gin.New()
	r.POST("/v1/ai/chat", h.Chat)
	req = httptest.NewRequest("POST", "/v1/ai/chat", strings.NewReader(`{"prompt": "hi"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}
