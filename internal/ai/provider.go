package ai

import (
	"context"
	"io"
)

// SpeechProvider handles speech-to-text (Whisper).
type SpeechProvider interface {
	// TranscribeAudio returns the transcript of audioData. fileName carries
	// the container extension the upstream uses to detect the format. An
	// empty transcript is not an error.
	TranscribeAudio(ctx context.Context, audioData []byte, fileName string) (string, error)
}

// SynthesisProvider handles text-to-speech.
type SynthesisProvider interface {
	// Synthesize returns encoded audio for text. The caller closes the reader.
	Synthesize(ctx context.Context, text string, lang string) (io.ReadCloser, error)
	// Format is the file suffix of the produced audio, e.g. ".mp3".
	Format() string
	// Voice identifies the voice used, so cache keys change with it.
	Voice() string
}

// ChatProvider handles free-form conversation (Claude).
type ChatProvider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	Name() string
}

// Message represents a single message in a conversation.
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}
