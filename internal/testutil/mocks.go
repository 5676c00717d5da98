package testutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/windoze95/voicepack-api/internal/ai"
	"github.com/windoze95/voicepack-api/internal/models"
	"github.com/windoze95/voicepack-api/internal/repository"
	"github.com/windoze95/voicepack-api/internal/weather"
)

// --- MockSpeechProvider ---

// MockSpeechProvider is a mock implementation of ai.SpeechProvider.
type MockSpeechProvider struct {
	TranscribeAudioFunc func(ctx context.Context, audioData []byte, fileName string) (string, error)
}

func (m *MockSpeechProvider) TranscribeAudio(ctx context.Context, audioData []byte, fileName string) (string, error) {
	if m.TranscribeAudioFunc != nil {
		return m.TranscribeAudioFunc(ctx, audioData, fileName)
	}
	return "", fmt.Errorf("TranscribeAudio not configured")
}

// --- MockSynthesisProvider ---

// MockSynthesisProvider is a mock implementation of ai.SynthesisProvider.
// Without SynthesizeFunc it returns "audio:<text>" and counts the call.
type MockSynthesisProvider struct {
	SynthesizeFunc func(ctx context.Context, text string, lang string) (io.ReadCloser, error)
	VoiceName      string

	mu    sync.Mutex
	Calls int
}

func (m *MockSynthesisProvider) Synthesize(ctx context.Context, text string, lang string) (io.ReadCloser, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()

	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text, lang)
	}
	return io.NopCloser(strings.NewReader("audio:" + text)), nil
}

func (m *MockSynthesisProvider) Format() string { return ".mp3" }

func (m *MockSynthesisProvider) Voice() string {
	if m.VoiceName == "" {
		return "test"
	}
	return m.VoiceName
}

// CallCount returns the number of Synthesize calls so far.
func (m *MockSynthesisProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// --- MockChatProvider ---

// MockChatProvider is a mock implementation of ai.ChatProvider.
type MockChatProvider struct {
	ChatFunc     func(ctx context.Context, messages []ai.Message) (string, error)
	ProviderName string
}

func (m *MockChatProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, messages)
	}
	return "", fmt.Errorf("Chat not configured")
}

func (m *MockChatProvider) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

// --- MockWeatherLookup ---

// MockWeatherLookup is a mock implementation of actions.WeatherLookup.
type MockWeatherLookup struct {
	LookupFunc func(ctx context.Context, city string) weather.Result
}

func (m *MockWeatherLookup) Lookup(ctx context.Context, city string) weather.Result {
	if m.LookupFunc != nil {
		return m.LookupFunc(ctx, city)
	}
	return weather.Result{Status: weather.StatusUnavailable, City: city, Err: fmt.Errorf("Lookup not configured")}
}

// --- MockAudioConverter ---

// MockAudioConverter is a mock implementation of service.AudioConverter.
// Without ConvertFunc it copies src to dst.
type MockAudioConverter struct {
	ConvertFunc func(ctx context.Context, src, dst string) error
	Missing     bool
}

func (m *MockAudioConverter) Available() bool { return !m.Missing }

func (m *MockAudioConverter) ConvertTo16kWav(ctx context.Context, src, dst string) error {
	if m.ConvertFunc != nil {
		return m.ConvertFunc(ctx, src, dst)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// --- MockAudioMirror ---

// MockAudioMirror records uploads in memory.
type MockAudioMirror struct {
	UploadErr error

	mu      sync.Mutex
	Objects map[string][]byte
}

func (m *MockAudioMirror) UploadAudio(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	if m.UploadErr != nil {
		return "", m.UploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Objects == nil {
		m.Objects = make(map[string][]byte)
	}
	m.Objects[key] = data
	return m.AudioURL(key), nil
}

func (m *MockAudioMirror) AudioURL(key string) string {
	return "https://mirror.example.com/" + key
}

// --- MockInteractionRepo ---

// MockInteractionRepo is an in-memory mock implementation of repository.InteractionRepo.
type MockInteractionRepo struct {
	mu           sync.Mutex
	Interactions []models.Interaction
	NextID       uint

	CreateErr error
}

// NewMockInteractionRepo creates a new MockInteractionRepo.
func NewMockInteractionRepo() *MockInteractionRepo {
	return &MockInteractionRepo{NextID: 1}
}

func (m *MockInteractionRepo) CreateInteraction(interaction *models.Interaction) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if !interaction.Source.IsValid() {
		return fmt.Errorf("invalid interaction Source provided")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	interaction.ID = m.NextID
	m.NextID++
	m.Interactions = append(m.Interactions, *interaction)
	return nil
}

func (m *MockInteractionRepo) GetUserInteractions(userID uint, page, pageSize int) ([]models.Interaction, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matching []models.Interaction
	for _, i := range m.Interactions {
		if i.UserID != nil && *i.UserID == userID {
			matching = append(matching, i)
		}
	}
	sort.Slice(matching, func(a, b int) bool { return matching[a].ID > matching[b].ID })

	total := int64(len(matching))
	start := (page - 1) * pageSize
	if start < 0 || start >= len(matching) {
		return []models.Interaction{}, total, nil
	}
	end := start + pageSize
	if end > len(matching) {
		end = len(matching)
	}
	return matching[start:end], total, nil
}

// Count returns the number of stored interactions.
func (m *MockInteractionRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Interactions)
}

// Last returns the most recently stored interaction.
func (m *MockInteractionRepo) Last() models.Interaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Interactions) == 0 {
		return models.Interaction{}
	}
	return m.Interactions[len(m.Interactions)-1]
}

// --- MockChatRepo ---

// MockChatRepo is an in-memory mock implementation of repository.ChatRepo.
type MockChatRepo struct {
	mu       sync.Mutex
	Messages []models.ChatMessage
	NextID   uint

	CreateErr error
	RecentErr error
}

// NewMockChatRepo creates a new MockChatRepo.
func NewMockChatRepo() *MockChatRepo {
	return &MockChatRepo{NextID: 1}
}

func (m *MockChatRepo) CreateChatMessage(msg *models.ChatMessage) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	msg.ID = m.NextID
	m.NextID++
	m.Messages = append(m.Messages, *msg)
	return nil
}

func (m *MockChatRepo) GetRecentChatMessages(userID uint, limit int) ([]models.ChatMessage, error) {
	if m.RecentErr != nil {
		return nil, m.RecentErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var matching []models.ChatMessage
	for _, msg := range m.Messages {
		if msg.UserID != nil && *msg.UserID == userID {
			matching = append(matching, msg)
		}
	}
	if len(matching) > limit {
		matching = matching[len(matching)-limit:]
	}
	return matching, nil
}

// --- MockUserRepo ---

// MockUserRepo is an in-memory mock implementation of repository.UserRepo.
type MockUserRepo struct {
	mu     sync.Mutex
	Users  map[uint]*models.User
	NextID uint

	CreateUserErr error
}

// NewMockUserRepo creates a new MockUserRepo with initialized maps.
func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{
		Users:  make(map[uint]*models.User),
		NextID: 1,
	}
}

func (m *MockUserRepo) CreateUser(user *models.User) (*models.User, error) {
	if m.CreateUserErr != nil {
		return nil, m.CreateUserErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.Users {
		if u.Username == user.Username {
			return nil, repository.ErrUsernameTaken
		}
	}

	user.ID = m.NextID
	m.NextID++
	m.Users[user.ID] = user
	return user, nil
}

func (m *MockUserRepo) GetUserByID(userID uint) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.Users[userID]
	if !ok {
		return nil, repository.NewNotFoundError("user not found")
	}
	return u, nil
}

func (m *MockUserRepo) GetUserAuthByUsername(username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.Users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, repository.NewNotFoundError("user not found")
}

func (m *MockUserRepo) UpdateProfile(userID uint, firstName, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.Users[userID]
	if !ok {
		return repository.NewNotFoundError("user not found")
	}
	if email != "" {
		for id, other := range m.Users {
			if id != userID && other.Email == email {
				return repository.ErrEmailTaken
			}
		}
		u.Email = email
	}
	if firstName != "" {
		u.FirstName = firstName
	}
	return nil
}

func (m *MockUserRepo) UpdateUserSettings(userID uint, settings *models.UserSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.Users[userID]
	if !ok {
		return repository.NewNotFoundError("user not found")
	}
	if u.Settings == nil {
		u.Settings = &models.UserSettings{UserID: userID}
	}
	u.Settings.Language = settings.Language
	u.Settings.Voice = settings.Voice
	return nil
}

func (m *MockUserRepo) UsernameExists(username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.Users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

// Compile-time interface checks.
var _ ai.SpeechProvider = (*MockSpeechProvider)(nil)
var _ ai.SynthesisProvider = (*MockSynthesisProvider)(nil)
var _ ai.ChatProvider = (*MockChatProvider)(nil)
var _ repository.InteractionRepo = (*MockInteractionRepo)(nil)
var _ repository.ChatRepo = (*MockChatRepo)(nil)
var _ repository.UserRepo = (*MockUserRepo)(nil)
