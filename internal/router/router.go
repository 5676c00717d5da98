package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/windoze95/voicepack-api/internal/actions"
	"github.com/windoze95/voicepack-api/internal/ai"
	"github.com/windoze95/voicepack-api/internal/config"
	"github.com/windoze95/voicepack-api/internal/handlers"
	"github.com/windoze95/voicepack-api/internal/logger"
	"github.com/windoze95/voicepack-api/internal/metrics"
	"github.com/windoze95/voicepack-api/internal/middleware"
	"github.com/windoze95/voicepack-api/internal/repository"
	"github.com/windoze95/voicepack-api/internal/service"
	"github.com/windoze95/voicepack-api/internal/ws"
	"gorm.io/gorm"
)

// Dependencies are the long-lived components built at startup. Speech, STT,
// Chat and Converter may be nil; the matching routes report the stage as
// unavailable.
type Dependencies struct {
	DB         *gorm.DB
	Dispatcher *actions.Dispatcher
	Speech     *service.SpeechService
	STT        ai.SpeechProvider
	Chat       ai.ChatProvider
	Converter  service.AudioConverter
	Hub        *ws.Hub
}

// SetupRouter sets up the Gin router. Background work it starts ends with ctx.
func SetupRouter(ctx context.Context, cfg *config.Config, deps Dependencies) *gin.Engine {
	// Create default Gin router
	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	if len(cfg.EnvVars.AllowedOrigins) > 0 {
		corsConfig.AllowCredentials = true
		corsConfig.AllowOrigins = cfg.EnvVars.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowHeaders("Authorization", middleware.APIKeyHeader)
	r.Use(cors.New(corsConfig))

	// Add request ID middleware for request correlation
	r.Use(logger.RequestIDMiddleware())

	// Repositories
	userRepo := repository.NewUserRepository(deps.DB)
	interactionRepo := repository.NewInteractionRepository(deps.DB)
	chatRepo := repository.NewChatRepository(deps.DB)

	// Services
	userService := service.NewUserService(cfg, userRepo)
	voiceService := service.NewVoiceService(deps.Dispatcher, deps.Speech, deps.STT, deps.Converter, interactionRepo, cfg.EnvVars.TmpDir, cfg.EnvVars.TTSLang)
	chatService := service.NewChatService(deps.Chat, chatRepo)

	// Handlers
	healthHandler := handlers.NewHealthHandler(voiceService)
	userHandler := handlers.NewUserHandler(userService)
	voiceHandler := handlers.NewVoiceHandler(voiceService)
	chatHandler := handlers.NewChatHandler(chatService)

	// Liveness, capability and metrics routes
	r.GET("/", healthHandler.Root)
	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", metrics.Handler())

	limit := middleware.RateLimitByIP(cfg.EnvVars.RateLimitRPS, 5*time.Minute, 10*time.Minute, ctx.Done())
	attachUser := middleware.AttachUserToContext(userService)

	// Group for API routes that don't require a token; a valid one still
	// attributes the request to its user
	apiPublic := r.Group("/v1")
	{
		apiPublic.Use(middleware.OptionalTokenMiddleware(cfg))

		// User-related routes

		// Create a new user
		apiPublic.POST("/users", limit, userHandler.Signup)
		// Login a user
		apiPublic.POST("/auth/login", limit, userHandler.Login)
		// Refresh an access token
		apiPublic.POST("/auth/refresh", limit, userHandler.Refresh)

		// Voice routes

		// Transcribe an uploaded clip and answer it
		apiPublic.POST("/transcribe", limit, attachUser, voiceHandler.Transcribe)
		// Answer a typed utterance
		apiPublic.POST("/voice/query", limit, attachUser, voiceHandler.Query)
		// Serve cached speech
		apiPublic.GET("/tts/:name", voiceHandler.ServeTTS)

		// Chat with the assistant
		apiPublic.POST("/ai/chat", limit, middleware.CheckAPIKey(cfg.EnvVars.AIAPIKey), chatHandler.Chat)
	}

	// Group for API routes that require token verification
	apiProtected := r.Group("/v1")
	{
		apiProtected.Use(middleware.VerifyTokenMiddleware(cfg))

		// Verify a user's token
		apiProtected.GET("/auth/verify", attachUser, userHandler.Verify)
		// Get the current user
		apiProtected.GET("/users/me", attachUser, userHandler.GetMe)
		// Update the current user
		apiProtected.PUT("/users/me", attachUser, userHandler.UpdateMe)
		// Get and update the current user's voice settings
		apiProtected.GET("/users/me/settings", attachUser, userHandler.GetSettings)
		apiProtected.PUT("/users/me/settings", attachUser, userHandler.UpdateSettings)

		// List the current user's voice interactions
		apiProtected.GET("/voice/history", voiceHandler.History)
	}

	// WebSocket voice sessions (authenticated via optional query param token)
	if deps.Hub != nil {
		sessionHandler := ws.NewVoiceSessionHandler(deps.Hub, cfg.EnvVars.JwtSecretKey, voiceService, cfg.EnvVars.AllowedOrigins)
		r.GET("/v1/ws/voice", limit, sessionHandler.HandleVoiceSession)
	}

	return r
}
