package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/windoze95/voicepack-api/internal/ai"
	"github.com/windoze95/voicepack-api/internal/logger"
	"github.com/windoze95/voicepack-api/internal/metrics"
	"github.com/windoze95/voicepack-api/internal/ttscache"
	"go.uber.org/zap"
)

// ErrSpeechUnavailable is returned when no synthesis provider is configured.
var ErrSpeechUnavailable = errors.New("speech synthesis is not configured")

// AudioMirror copies synthesized audio to durable storage and returns its URL.
// AudioURL reports where an already mirrored key is served from.
type AudioMirror interface {
	UploadAudio(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	AudioURL(key string) string
}

// SpeechService synthesizes replies through the on-disk cache.
type SpeechService struct {
	Cache    *ttscache.Cache
	Provider ai.SynthesisProvider
	Mirror   AudioMirror
}

// SpeechResult describes a synthesized (or cached) reply.
type SpeechResult struct {
	Name      string
	Path      string
	Cached    bool
	MirrorURL string
}

// NewSpeechService creates a SpeechService. mirror may be nil.
func NewSpeechService(cache *ttscache.Cache, provider ai.SynthesisProvider, mirror AudioMirror) *SpeechService {
	return &SpeechService{
		Cache:    cache,
		Provider: provider,
		Mirror:   mirror,
	}
}

// Available reports whether synthesis can be attempted.
func (s *SpeechService) Available() bool {
	return s != nil && s.Cache != nil && s.Provider != nil
}

// CacheKey returns the parameters that identify a synthesis request.
func (s *SpeechService) CacheKey(text, lang string) map[string]interface{} {
	return map[string]interface{}{
		"text":  text,
		"lang":  lang,
		"voice": s.Provider.Voice(),
	}
}

// Synthesize returns the cache entry holding text spoken in lang, calling
// the provider only on a cache miss.
func (s *SpeechService) Synthesize(ctx context.Context, text, lang string) (*SpeechResult, error) {
	if !s.Available() {
		return nil, ErrSpeechUnavailable
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("nothing to synthesize")
	}

	path := s.Cache.PathFor(s.CacheKey(text, lang), s.Provider.Format())
	result := &SpeechResult{Name: filepath.Base(path), Path: path}

	if s.Cache.Exists(path) {
		metrics.TTSCacheLookups.WithLabelValues("hit").Inc()
		result.Cached = true
		if s.Mirror != nil {
			result.MirrorURL = s.Mirror.AudioURL(MirrorKey(result.Name))
		}
		return result, nil
	}
	metrics.TTSCacheLookups.WithLabelValues("miss").Inc()

	audio, err := s.Provider.Synthesize(ctx, text, lang)
	if err != nil {
		metrics.TTSFailures.Inc()
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	defer audio.Close()

	if err := s.Cache.Write(path, audio); err != nil {
		metrics.TTSFailures.Inc()
		return nil, fmt.Errorf("store speech: %w", err)
	}

	if s.Mirror != nil {
		result.MirrorURL = s.mirror(ctx, result)
	}

	return result, nil
}

// mirror uploads a fresh entry. Failures are logged; the local copy still serves.
func (s *SpeechService) mirror(ctx context.Context, result *SpeechResult) string {
	f, err := os.Open(result.Path)
	if err != nil {
		logger.Get().Warn("failed to open speech for mirroring", zap.String("name", result.Name), zap.Error(err))
		return ""
	}
	defer f.Close()

	url, err := s.Mirror.UploadAudio(ctx, MirrorKey(result.Name), f, ContentTypeFor(result.Name))
	if err != nil {
		logger.Get().Warn("failed to mirror speech", zap.String("name", result.Name), zap.Error(err))
		return ""
	}
	return url
}

// MirrorKey returns the object key a cache entry is mirrored under.
func MirrorKey(name string) string {
	return "tts/" + name
}

// ContentTypeFor returns the MIME type served for a cached audio file.
func ContentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav":
		return "audio/wav"
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".aac":
		return "audio/aac"
	case ".flac":
		return "audio/flac"
	default:
		return "audio/mpeg"
	}
}
