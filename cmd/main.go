package main

import (
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pagechat/internal/infrastructure"
	"pagechat/internal/interfaces/http"
	"pagechat/internal/kvstore"
	"pagechat/internal/repository"
	"pagechat/internal/usecases"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found")
	}

	level, err := zerolog.ParseLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	backendBase := os.Getenv("BACKEND_BASE_URL")
	if backendBase == "" {
		log.Fatal().Msg("BACKEND_BASE_URL is required")
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	sqlite, err := infrastructure.NewSQLiteClient(envOr("SQLITE_PATH", "pagechat.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open local database")
	}
	defer sqlite.Close()

	kv := kvstore.NewSQLite(sqlite.DB)
	userRepo := repository.NewUserRepository(sqlite.DB)

	authUsecase := usecases.NewAuthUsecase(userRepo, jwtSecret)
	if err := authUsecase.EnsureAdmin(envOr("ADMIN_USERNAME", "root"), envOr("ADMIN_PASSWORD", "root")); err != nil {
		log.Warn().Err(err).Msg("failed to ensure admin user")
	}

	backend := infrastructure.NewBackendClient(backendBase)

	var adminChatID int64
	if raw := os.Getenv("TELEGRAM_ADMIN_CHAT_ID"); raw != "" {
		adminChatID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Warn().Str("value", raw).Msg("invalid TELEGRAM_ADMIN_CHAT_ID, handoff alerts disabled")
		}
	}
	notifier := infrastructure.NewTelegramNotifier(os.Getenv("TELEGRAM_BOT_TOKEN"), adminChatID)

	sessions := usecases.NewSessionManager(kv, backend, backend, backend, notifier)

	// Abandoned widgets keep polling the backend until reaped.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if n := sessions.ReapIdle(time.Hour); n > 0 {
				log.Info().Int("sessions", n).Msg("reaped idle sessions")
			}
		}
	}()

	authMiddleware := http.NewMiddleware(jwtSecret)

	if level > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	http.SetupRoutes(r, sessions, authUsecase, authMiddleware, envOr("PUBLIC_BASE_URL", "http://localhost:8080"))

	addr := envOr("PAGECHAT_ADDR", "0.0.0.0:8080")
	log.Info().Str("addr", addr).Msg("starting chat server")
	if err := r.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
