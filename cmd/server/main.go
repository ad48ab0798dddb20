// Package main runs the hackathon registration and event-desk HTTP
// server with WebSocket live feed and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jorgeteixe/hackackathon/config"
	"github.com/jorgeteixe/hackackathon/internal/attendance"
	"github.com/jorgeteixe/hackackathon/internal/auth"
	"github.com/jorgeteixe/hackackathon/internal/checkin"
	"github.com/jorgeteixe/hackackathon/internal/live"
	"github.com/jorgeteixe/hackackathon/internal/mailer"
	"github.com/jorgeteixe/hackackathon/internal/middleware"
	"github.com/jorgeteixe/hackackathon/internal/passes"
	"github.com/jorgeteixe/hackackathon/internal/registration"
	"github.com/jorgeteixe/hackackathon/internal/tokens"
	"github.com/jorgeteixe/hackackathon/pkg/database"
	"github.com/jorgeteixe/hackackathon/pkg/redis"
	"github.com/jorgeteixe/hackackathon/pkg/response"
	"github.com/jorgeteixe/hackackathon/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	// Redis drives only the occupancy gauge; the desk works without it.
	var gauge attendance.Gauge
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("redis unavailable, occupancy gauge disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		gauge = attendance.NewRedisGauge(rdb)
	}

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			CVBucket:             cfg.AWS.CVBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled, CV upload off", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	hub := live.NewHub(logger)

	// Mail
	emailLogs := mailer.NewLogRepository(pool)
	notifier := mailer.NewSMTP(cfg.Email, emailLogs, logger)
	emailHandler := mailer.NewHandler(emailLogs, logger)

	// Staff auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Registration lifecycle
	tokenRepo := tokens.NewRepository(pool)
	registrationRepo := registration.NewRepository(pool, tokenRepo)
	var cvStore registration.CVStore
	if s3Client != nil {
		cvStore = s3Client
	}
	registrationSvc := registration.NewService(registrationRepo, notifier, cvStore, cfg.Registration, logger)
	registrationHandler := registration.NewHandler(registrationSvc, logger)

	// Event desk
	checkinRepo := checkin.NewRepository(pool)
	checkinSvc := checkin.NewService(checkinRepo, hub, logger)
	checkinHandler := checkin.NewHandler(checkinSvc, logger)

	passRepo := passes.NewRepository(pool)
	passSvc := passes.NewService(passRepo, hub, logger)
	passHandler := passes.NewHandler(passSvc, logger)

	attendanceRepo := attendance.NewRepository(pool)
	attendanceSvc := attendance.NewService(attendanceRepo, gauge, hub, logger)
	attendanceHandler := attendance.NewHandler(attendanceSvc, logger)

	jwtValidate := func(token string) (string, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", err
		}
		return claims.Email, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Public: registration and emailed-token pages
	router.POST("/register", registrationHandler.Register)
	router.GET("/verify/:token", registrationHandler.VerifyEmail)
	router.GET("/confirm/:token", registrationHandler.ConfirmPage)
	router.POST("/confirm/:token", registrationHandler.ConfirmSeat)
	router.POST("/reject/:token", registrationHandler.RejectSeat)

	// Auth (public)
	router.POST("/auth/login", authHandler.Login)

	// Staff API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Desk
		api.POST("/checkin", checkinHandler.Checkin)
		api.GET("/participants/:email", registrationHandler.ParticipantInfo)

		// Passes
		api.GET("/passes/types", passHandler.ListTypes)
		api.POST("/passes", passHandler.Issue)
		api.POST("/passes/types", middleware.RequireRole("admin"), passHandler.CreateType)

		// Attendance. The static /occupancy route wins over :badge.
		api.GET("/attendance/occupancy", attendanceHandler.Occupancy)
		api.GET("/attendance/:badge", attendanceHandler.History)
		api.POST("/attendance/:badge/entry", attendanceHandler.Entry)
		api.POST("/attendance/:badge/exit", attendanceHandler.Exit)
		api.POST("/attendance/records/:id", middleware.RequireRole("admin"), attendanceHandler.Edit)

		// Admin
		api.POST("/participants/accept", middleware.RequireRole("admin"), registrationHandler.Accept)
		api.GET("/emails", middleware.RequireRole("admin"), emailHandler.ListLogs)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/live", live.ServeWs(hub, logger, jwtValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
