package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/orgperms-api/internal/config"
	"github.com/yukikurage/orgperms-api/internal/constants"
	"github.com/yukikurage/orgperms-api/internal/database"
	"github.com/yukikurage/orgperms-api/internal/handlers"
	"github.com/yukikurage/orgperms-api/internal/logging"
	"github.com/yukikurage/orgperms-api/internal/metrics"
	"github.com/yukikurage/orgperms-api/internal/middleware"
	"github.com/yukikurage/orgperms-api/internal/models"
	"github.com/yukikurage/orgperms-api/internal/repository"
	"github.com/yukikurage/orgperms-api/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	defaultRole, err := models.ParseRole(cfg.DefaultMemberRole)
	if err != nil {
		fatal("invalid DEFAULT_MEMBER_ROLE", err)
	}

	// Connect to database
	if err := database.Connect(cfg); err != nil {
		fatal("failed to connect to database", err)
	}

	// Run migrations
	if err := database.Migrate(); err != nil {
		fatal("failed to run migrations", err)
	}

	// Setup session middleware with Redis
	redisAddr := cfg.RedisHost + ":" + cfg.RedisPort
	store, err := redisStore.NewStore(
		10,        // Redis pool size
		"tcp",     // network type
		redisAddr, // Redis address from config
		"",        // username (empty for default user)
		"",        // password (empty = no password)
		[]byte(cfg.SessionSecret),
	)
	if err != nil {
		fatal("failed to create redis session store", err)
	}
	isProduction := cfg.GinMode == gin.ReleaseMode
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
	})

	m := metrics.New()

	db := database.GetDB()
	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	fieldRepo := repository.NewExportableFieldRepository(db)

	authService := services.NewAuthService(userRepo, cfg.JWTSecret, time.Duration(cfg.JWTExpiry)*time.Hour)
	orgService := services.NewOrganizationService(orgRepo, fieldRepo, logger)
	memberService := services.NewMembershipService(memberRepo, orgRepo, userRepo, defaultRole, logger)
	gate := services.NewGate(orgRepo, memberRepo, cfg.AllowSuperUserPerms, m, logger)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(logger),
		m.Instrument(),
		middleware.CORS(cfg.CORSAllowedOrigins),
		limiter.Middleware(),
		sessions.Sessions(constants.SessionCookieName, store),
	)

	r.GET("/health", handlers.Health)
	r.GET("/metrics", gin.WrapH(m.Handler()))

	router := &handlers.Router{
		Auth:          handlers.NewAuthHandler(authService),
		Organizations: handlers.NewOrganizationHandler(orgService, gate),
		Members:       handlers.NewMemberHandler(memberService),
		Permissions:   handlers.NewPermissionHandler(gate),
		Authenticator: authService,
		Gate:          gate,
	}
	router.RegisterRoutes(r)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweepLimiter(ctx, limiter)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("failed to start server", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}

func sweepLimiter(ctx context.Context, limiter *middleware.RateLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Sweep()
		}
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
