package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/windoze95/voicepack-api/internal/actions"
	"github.com/windoze95/voicepack-api/internal/ai"
	"github.com/windoze95/voicepack-api/internal/audio"
	"github.com/windoze95/voicepack-api/internal/config"
	"github.com/windoze95/voicepack-api/internal/db"
	"github.com/windoze95/voicepack-api/internal/kvstore"
	"github.com/windoze95/voicepack-api/internal/logger"
	"github.com/windoze95/voicepack-api/internal/router"
	"github.com/windoze95/voicepack-api/internal/s3"
	"github.com/windoze95/voicepack-api/internal/service"
	"github.com/windoze95/voicepack-api/internal/ttscache"
	"github.com/windoze95/voicepack-api/internal/weather"
	"github.com/windoze95/voicepack-api/internal/ws"
	"go.uber.org/zap"
)

const (
	geocodeCacheTTL  = 24 * time.Hour
	maxSynthesisJobs = 4
	shutdownTimeout  = 15 * time.Second
)

// flags are the command-line options.
type flags struct {
	envFile     string
	promptsFile string
}

func parseFlags(args []string) (flags, error) {
	var f flags
	fs := pflag.NewFlagSet("api", pflag.ContinueOnError)
	fs.StringVar(&f.envFile, "env", ".env", "dotenv file loaded before reading the environment")
	fs.StringVar(&f.promptsFile, "prompts", "configs/prompts.yaml", "assistant prompt definitions")
	err := fs.Parse(args)
	return f, err
}

// Entry point for the API.
func main() {
	opts, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}

	// A missing .env is normal in containers
	_ = godotenv.Load(opts.envFile)

	// Initialize structured logger (dev mode if GIN_MODE != release)
	logger.Init(os.Getenv("GIN_MODE") != "release")
	defer logger.Sync()
	log := logger.Get()

	ConfigureRuntime()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load the config
	var cfg *config.Config
	if c, err := config.LoadConfig(); err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	} else {
		cfg = c
	}

	// Check that all ENV variables are set
	if err := cfg.CheckConfigEnvFields(); err != nil {
		log.Fatal("missing required config fields", zap.Error(err))
	}

	// Load prompts from YAML
	prompts, err := config.LoadPrompts(opts.promptsFile)
	if err != nil {
		log.Fatal("failed to load prompts", zap.Error(err))
	}
	cfg.Prompts = prompts

	// Connect to the database
	database, err := db.New(cfg)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := database.DB()
	if err != nil {
		log.Fatal("failed to get underlying sql.DB", zap.Error(err))
	}
	defer sqlDB.Close()

	// Geocode cache, shared through Redis when configured
	store := newKVStore(ctx, cfg)
	defer store.Close()

	weatherClient := weather.NewClient(
		weather.WithTimeout(cfg.EnvVars.WeatherTimeout),
		weather.WithGeocodeCache(store, geocodeCacheTTL),
	)
	dispatcher := actions.NewDispatcher(weatherClient)

	speech, err := newSpeechService(ctx, cfg)
	if err != nil {
		log.Fatal("failed to set up speech cache", zap.Error(err))
	}

	deps := router.Dependencies{
		DB:         database,
		Dispatcher: dispatcher,
		Speech:     speech,
		STT:        ai.NewWhisperProvider(cfg.EnvVars.OpenAIAPIKey, cfg.EnvVars.TTSLang),
		Converter:  audio.NewConverter(),
		Hub:        ws.NewHub(),
	}
	if cfg.EnvVars.AnthropicAPIKey != "" {
		deps.Chat = ai.NewAnthropicProvider(cfg.EnvVars.AnthropicAPIKey, cfg.Prompts)
	} else {
		log.Warn("ANTHROPIC_API_KEY is not set; /v1/ai/chat is disabled")
	}
	if !deps.Converter.Available() {
		log.Warn("ffmpeg not found on PATH; uploads that are not 16 kHz mono WAV will fail")
	}

	go deps.Hub.Run(ctx)

	// Create a new gin router
	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := router.SetupRouter(ctx, cfg, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.EnvVars.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run the server
	go func() {
		log.Info("starting server", zap.String("port", cfg.EnvVars.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newKVStore connects to Redis when REDIS_URL is set and falls back to an
// in-process store swept once a minute.
func newKVStore(ctx context.Context, cfg *config.Config) kvstore.Store {
	log := logger.Get()

	if cfg.EnvVars.RedisURL != "" {
		rs, err := kvstore.NewRedisStore(cfg.EnvVars.RedisURL, "voicepack:")
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = rs.Ping(pingCtx)
			cancel()
			if err == nil {
				log.Info("using redis geocode cache")
				return rs
			}
			rs.Close()
		}
		log.Warn("redis unavailable, using in-memory cache", zap.Error(err))
	}

	ms := kvstore.NewMemoryStore()
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ms.Sweep()
			}
		}
	}()
	return ms
}

// newSpeechService opens the speech cache and, when configured, the S3
// mirror.
func newSpeechService(ctx context.Context, cfg *config.Config) (*service.SpeechService, error) {
	log := logger.Get()

	cache, err := ttscache.New(cfg.EnvVars.TTSCacheDir)
	if err != nil {
		return nil, err
	}
	provider := ai.NewOpenAITTSProvider(cfg.EnvVars.OpenAIAPIKey, cfg.EnvVars.TTSVoice, maxSynthesisJobs)

	var mirror service.AudioMirror
	if cfg.S3Enabled() {
		store, err := s3.NewAudioStore(ctx, cfg)
		if err != nil {
			log.Warn("s3 mirror unavailable", zap.Error(err))
		} else {
			mirror = store
			cache.OnRemove(func(name string) {
				delCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := store.DeleteAudio(delCtx, service.MirrorKey(name)); err != nil {
					log.Warn("failed to delete mirrored speech", zap.String("name", name), zap.Error(err))
				}
			})
		}
	}

	if maxAge := cfg.EnvVars.TTSCacheMaxAge; maxAge > 0 {
		interval := maxAge / 4
		if interval < time.Minute {
			interval = time.Minute
		}
		go cache.RunPruner(maxAge, interval, ctx.Done())
	}

	return service.NewSpeechService(cache, provider, mirror), nil
}

// ConfigureRuntime sets the number of operating system threads.
func ConfigureRuntime() {
	nuCPU := runtime.NumCPU()
	runtime.GOMAXPROCS(nuCPU)
	logger.Get().Info("runtime configured", zap.Int("cpus", nuCPU))
}
