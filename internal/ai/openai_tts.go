package ai

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/windoze95/voicepack-api/internal/logger"
	"go.uber.org/zap"
)

// OpenAITTSProvider implements SynthesisProvider using the OpenAI speech API.
// The voice model detects the language from the text, so lang only feeds the
// log line.
type OpenAITTSProvider struct {
	client    *openai.Client
	voice     openai.SpeechVoice
	semaphore chan struct{}
}

// NewOpenAITTSProvider creates a speech synthesis provider limited to
// maxConcurrent in-flight requests.
func NewOpenAITTSProvider(apiKey, voice string, maxConcurrent int) *OpenAITTSProvider {
	return NewOpenAITTSProviderWithBaseURL(apiKey, voice, maxConcurrent, "")
}

// NewOpenAITTSProviderWithBaseURL points the provider at an OpenAI-compatible
// endpoint.
func NewOpenAITTSProviderWithBaseURL(apiKey, voice string, maxConcurrent int, baseURL string) *OpenAITTSProvider {
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &OpenAITTSProvider{
		client:    newOpenAIClient(apiKey, baseURL),
		voice:     openai.SpeechVoice(voice),
		semaphore: make(chan struct{}, maxConcurrent),
	}
}

// Format returns the file suffix of synthesized audio.
func (p *OpenAITTSProvider) Format() string { return ".mp3" }

// Voice returns the configured voice name.
func (p *OpenAITTSProvider) Voice() string { return string(p.voice) }

// Synthesize converts text to MP3 audio.
func (p *OpenAITTSProvider) Synthesize(ctx context.Context, text string, lang string) (io.ReadCloser, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text cannot be empty")
	}

	select {
	case p.semaphore <- struct{}{}:
		defer func() { <-p.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	start := time.Now()
	resp, err := withRetry(ctx, "speech synthesis", retryableOpenAIError, func() (openai.RawResponse, error) {
		return p.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
			Model:          openai.TTSModel1,
			Input:          text,
			Voice:          p.voice,
			ResponseFormat: openai.SpeechResponseFormatMp3,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Debug("speech synthesized",
		zap.String("voice", string(p.voice)),
		zap.String("lang", lang),
		zap.Int("text_length", len(text)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp.ReadCloser, nil
}
