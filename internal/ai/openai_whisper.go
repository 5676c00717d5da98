package ai

import (
	"bytes"
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// defaultClipName gives Whisper a file extension to sniff the format from.
const defaultClipName = "audio.wav"

// WhisperProvider transcribes clips with OpenAI Whisper.
type WhisperProvider struct {
	client   *openai.Client
	language string
}

// NewWhisperProvider returns a Whisper provider. language is an ISO-639-1
// hint and may be empty.
func NewWhisperProvider(apiKey, language string) *WhisperProvider {
	return NewWhisperProviderWithBaseURL(apiKey, language, "")
}

// NewWhisperProviderWithBaseURL points the provider at an OpenAI-compatible
// endpoint.
func NewWhisperProviderWithBaseURL(apiKey, language, baseURL string) *WhisperProvider {
	return &WhisperProvider{client: newOpenAIClient(apiKey, baseURL), language: language}
}

// TranscribeAudio returns the trimmed transcript of audioData. Silence yields
// an empty transcript, not an error.
func (p *WhisperProvider) TranscribeAudio(ctx context.Context, audioData []byte, fileName string) (string, error) {
	if len(audioData) == 0 {
		return "", errors.New("audio data is empty")
	}
	if fileName == "" {
		fileName = defaultClipName
	}

	resp, err := withRetry(ctx, "whisper transcription", retryableOpenAIError, func() (openai.AudioResponse, error) {
		return p.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    openai.Whisper1,
			Reader:   bytes.NewReader(audioData),
			FilePath: fileName,
			Language: p.language,
		})
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}
