package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/windoze95/voicepack-api/internal/actions"
	"github.com/windoze95/voicepack-api/internal/ai"
	"github.com/windoze95/voicepack-api/internal/audio"
	"github.com/windoze95/voicepack-api/internal/logger"
	"github.com/windoze95/voicepack-api/internal/metrics"
	"github.com/windoze95/voicepack-api/internal/models"
	"github.com/windoze95/voicepack-api/internal/nlu"
	"github.com/windoze95/voicepack-api/internal/repository"
	"go.uber.org/zap"
)

// DefaultTTSRoute prefixes cached audio names in tts_url.
const DefaultTTSRoute = "/v1/tts/"

var (
	// ErrTranscriptionUnavailable is returned when no STT provider is configured.
	ErrTranscriptionUnavailable = errors.New("speech recognition is not configured")
	// ErrTranscriptionFailed wraps STT provider failures.
	ErrTranscriptionFailed = errors.New("speech recognition failed")
)

// AudioConverter normalises uploaded audio into speech-ready WAV.
type AudioConverter interface {
	Available() bool
	ConvertTo16kWav(ctx context.Context, src, dst string) error
}

// VoiceService runs the voice pipeline: transcribe, classify, dispatch and
// synthesize the reply.
type VoiceService struct {
	Classifier  *nlu.Classifier
	Dispatcher  *actions.Dispatcher
	Speech      *SpeechService
	STT         ai.SpeechProvider
	Converter   AudioConverter
	Repo        repository.InteractionRepo
	TmpDir      string
	DefaultLang string
	TTSRoute    string
}

// VoiceRequest carries the per-request context of a voice query.
type VoiceRequest struct {
	UserID *uint
	Lang   string
	Source models.InteractionSource
}

// VoiceResult is the response to a voice query.
type VoiceResult struct {
	Transcript   string       `json:"transcript"`
	Intent       nlu.Intent   `json:"intent"`
	Entities     nlu.Entities `json:"entities"`
	ResponseText string       `json:"response_text"`
	TTSURL       string       `json:"tts_url,omitempty"`
	AudioURL     string       `json:"audio_url,omitempty"`
	TTSName      string       `json:"-"`
}

// NewVoiceService creates a VoiceService with the default rules and routes.
// speech, stt, converter and repo may be nil; the matching stages are skipped
// or reported as unavailable.
func NewVoiceService(dispatcher *actions.Dispatcher, speech *SpeechService, stt ai.SpeechProvider, converter AudioConverter, repo repository.InteractionRepo, tmpDir, defaultLang string) *VoiceService {
	return &VoiceService{
		Classifier:  nlu.NewClassifier(nil),
		Dispatcher:  dispatcher,
		Speech:      speech,
		STT:         stt,
		Converter:   converter,
		Repo:        repo,
		TmpDir:      tmpDir,
		DefaultLang: defaultLang,
		TTSRoute:    DefaultTTSRoute,
	}
}

// SpeechReady reports whether replies can be synthesized.
func (s *VoiceService) SpeechReady() bool {
	return s.Speech.Available()
}

// RecognitionReady reports whether uploads can be transcribed.
func (s *VoiceService) RecognitionReady() bool {
	return s.STT != nil
}

// ConverterReady reports whether ffmpeg is available.
func (s *VoiceService) ConverterReady() bool {
	return s.Converter != nil && s.Converter.Available()
}

// HandleAudio stores an upload, converts it to 16 kHz mono WAV, transcribes
// it and answers the transcript. Temporary files are removed before return.
func (s *VoiceService) HandleAudio(ctx context.Context, req VoiceRequest, r io.Reader, fileName string) (*VoiceResult, error) {
	if s.STT == nil {
		return nil, ErrTranscriptionUnavailable
	}
	if err := os.MkdirAll(s.TmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create tmp dir: %w", err)
	}

	uid := uuid.New().String()
	rawPath := filepath.Join(s.TmpDir, uid+"_"+safeUploadName(fileName))
	wavPath := filepath.Join(s.TmpDir, uid+".wav")
	defer removeQuietly(rawPath, wavPath)

	if err := writeUpload(rawPath, r); err != nil {
		return nil, err
	}

	speechPath, err := s.prepareWav(ctx, rawPath, wavPath)
	if err != nil {
		metrics.TranscriptionFailures.WithLabelValues("convert").Inc()
		return nil, err
	}

	data, err := os.ReadFile(speechPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read converted audio: %w", err)
	}

	transcript, err := s.STT.TranscribeAudio(ctx, data, filepath.Base(speechPath))
	if err != nil {
		metrics.TranscriptionFailures.WithLabelValues("stt").Inc()
		return nil, fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}

	if req.Source == "" {
		req.Source = models.SourceUpload
	}
	return s.HandleText(ctx, req, transcript), nil
}

// prepareWav returns the path of a speech-ready WAV for rawPath, skipping
// ffmpeg when the upload already is one.
func (s *VoiceService) prepareWav(ctx context.Context, rawPath, wavPath string) (string, error) {
	if info := inspectFile(rawPath); info != nil && info.IsSpeechReady() {
		return rawPath, nil
	}

	if s.Converter == nil {
		return "", audio.ErrFFmpegMissing
	}
	if err := s.Converter.ConvertTo16kWav(ctx, rawPath, wavPath); err != nil {
		return "", err
	}

	if info := inspectFile(wavPath); info != nil {
		logger.Get().Debug("converted upload",
			zap.Int("sample_rate", info.SampleRate),
			zap.Duration("duration", info.Duration))
	}
	return wavPath, nil
}

// HandleText classifies text, dispatches it and synthesizes the reply.
// It always produces a reply; synthesis and persistence failures are logged
// and leave TTSURL empty.
func (s *VoiceService) HandleText(ctx context.Context, req VoiceRequest, text string) *VoiceResult {
	start := time.Now()
	if req.Source == "" {
		req.Source = models.SourceText
	}
	lang := s.langFor(req.Lang)

	intent, entities := s.classify(text)
	if entities == nil {
		entities = nlu.Entities{}
	}
	reply := s.Dispatcher.Dispatch(ctx, intent, entities)

	result := &VoiceResult{
		Transcript:   text,
		Intent:       intent,
		Entities:     entities,
		ResponseText: reply,
	}

	if s.Speech.Available() {
		speech, err := s.Speech.Synthesize(ctx, reply, lang)
		if err != nil {
			logger.Get().Warn("failed to synthesize reply", zap.String("intent", string(intent)), zap.Error(err))
		} else {
			result.TTSName = speech.Name
			result.TTSURL = s.ttsRoute() + speech.Name
			result.AudioURL = speech.MirrorURL
		}
	}

	elapsed := time.Since(start)
	metrics.VoiceRequestsTotal.WithLabelValues(string(intent), string(req.Source)).Inc()
	metrics.VoiceLatency.WithLabelValues(string(req.Source)).Observe(elapsed.Seconds())

	s.record(req, result, elapsed)
	return result
}

// History returns a page of the user's interactions, newest first.
func (s *VoiceService) History(userID uint, page, pageSize int) ([]models.Interaction, int64, error) {
	if s.Repo == nil {
		return []models.Interaction{}, 0, nil
	}
	return s.Repo.GetUserInteractions(userID, page, pageSize)
}

func (s *VoiceService) record(req VoiceRequest, result *VoiceResult, elapsed time.Duration) {
	if s.Repo == nil {
		return
	}

	interaction := &models.Interaction{
		UserID:     req.UserID,
		Source:     req.Source,
		Transcript: result.Transcript,
		Intent:     string(result.Intent),
		Entities:   models.EntityMap(result.Entities),
		Reply:      result.ResponseText,
		AudioName:  result.TTSName,
		AudioURL:   result.AudioURL,
		LatencyMs:  elapsed.Milliseconds(),
	}
	if err := s.Repo.CreateInteraction(interaction); err != nil {
		logger.Get().Error("failed to record interaction", zap.String("intent", interaction.Intent), zap.Error(err))
	}
}

func (s *VoiceService) classify(text string) (nlu.Intent, nlu.Entities) {
	if s.Classifier == nil {
		return nlu.Classify(text)
	}
	return s.Classifier.Classify(text)
}

func (s *VoiceService) langFor(lang string) string {
	if lang = strings.TrimSpace(lang); lang != "" {
		return lang
	}
	if s.DefaultLang != "" {
		return s.DefaultLang
	}
	return models.DefaultLanguage
}

func (s *VoiceService) ttsRoute() string {
	if s.TTSRoute == "" {
		return DefaultTTSRoute
	}
	return s.TTSRoute
}

func writeUpload(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to store upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to store upload: %w", err)
	}
	return f.Close()
}

func inspectFile(path string) *audio.WavInfo {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	info, err := audio.InspectWav(f)
	if err != nil {
		return nil
	}
	return info
}

// safeUploadName keeps only the base name of a client-supplied file name.
func safeUploadName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return name
}

func removeQuietly(paths ...string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Get().Warn("failed to remove temp file", zap.String("path", p), zap.Error(err))
		}
	}
}
