package ai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestWhisperProvider_TranscribeAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("model = %q", got)
		}
		if got := r.FormValue("language"); got != "en" {
			t.Errorf("language = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"  what's the time  "}`))
	}))
	defer srv.Close()

	p := NewWhisperProviderWithBaseURL("sk-test", "en", srv.URL+"/v1")
	got, err := p.TranscribeAudio(context.Background(), []byte("RIFF...."), "clip.wav")
	if err != nil {
		t.Fatalf("TranscribeAudio error: %v", err)
	}
	if got != "what's the time" {
		t.Errorf("transcript = %q", got)
	}
}

func TestWhisperProvider_EmptyTranscriptIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":""}`))
	}))
	defer srv.Close()

	p := NewWhisperProviderWithBaseURL("sk-test", "", srv.URL+"/v1")
	got, err := p.TranscribeAudio(context.Background(), []byte("x"), "")
	if err != nil {
		t.Fatalf("TranscribeAudio error: %v", err)
	}
	if got != "" {
		t.Errorf("transcript = %q, want empty", got)
	}
}

func TestWhisperProvider_EmptyAudio(t *testing.T) {
	p := NewWhisperProvider("sk-test", "")
	if _, err := p.TranscribeAudio(context.Background(), nil, "a.wav"); err == nil {
		t.Error("expected error for empty audio")
	}
}

func TestWhisperProvider_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad audio","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	p := NewWhisperProviderWithBaseURL("sk-test", "", srv.URL+"/v1")
	if _, err := p.TranscribeAudio(context.Background(), []byte("x"), "a.wav"); err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestOpenAITTSProvider_Synthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/speech") {
			t.Errorf("path = %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"voice":"nova"`) {
			t.Errorf("request body = %s", body)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3-mp3-bytes"))
	}))
	defer srv.Close()

	p := NewOpenAITTSProviderWithBaseURL("sk-test", "nova", 2, srv.URL+"/v1")
	rc, err := p.Synthesize(context.Background(), "It's 09:05 AM.", "en")
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "ID3-mp3-bytes" {
		t.Errorf("audio = %q", got)
	}
	if p.Format() != ".mp3" || p.Voice() != "nova" {
		t.Errorf("Format/Voice = %q/%q", p.Format(), p.Voice())
	}
}

func TestOpenAITTSProvider_EmptyText(t *testing.T) {
	p := NewOpenAITTSProvider("sk-test", "", 1)
	if _, err := p.Synthesize(context.Background(), "   ", "en"); err == nil {
		t.Error("expected error for empty text")
	}
	if p.Voice() != "alloy" {
		t.Errorf("default voice = %q, want alloy", p.Voice())
	}
}

func TestOpenAITTSProvider_CancelledWhileQueued(t *testing.T) {
	p := NewOpenAITTSProvider("sk-test", "", 1)
	p.semaphore <- struct{}{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Synthesize(ctx, "hello", "en"); err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestOpenAITTSProvider_RetriesTransientFailure(t *testing.T) {
	defer func(w time.Duration) { retryWait = w }(retryWait)
	retryWait = time.Millisecond

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":{"message":"busy","type":"server_error"}}`))
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3"))
	}))
	defer srv.Close()

	p := NewOpenAITTSProviderWithBaseURL("sk-test", "", 1, srv.URL+"/v1")
	rc, err := p.Synthesize(context.Background(), "hello", "en")
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	rc.Close()
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}
