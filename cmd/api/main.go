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

	"github.com/gin-gonic/gin"

	"attendance/internal/attendance"
	"attendance/internal/auth"
	"attendance/internal/cloudinary"
	"attendance/internal/config"
	"attendance/internal/handler"
	"attendance/internal/httpmiddleware"
	"attendance/internal/logging"
	"attendance/internal/mail"
	"attendance/internal/metrics"
	"attendance/internal/notification"
	"attendance/internal/queue"
	"attendance/internal/staff"
	"attendance/internal/store"
	"attendance/internal/user"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Env, os.Stdout)
	slog.SetDefault(logger)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("api exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.App, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.DBAutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		logger.Warn("redis not reachable, session revocation and caching degrade until it is")
	}

	m := metrics.New()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "", logger)
	}
	dispatcher := mail.NewDispatcher(q, m, logger)

	users := user.NewService(user.NewRepository(db.Gorm), logger)
	if created, err := users.EnsureAdmin(ctx, "Administrator", cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return err
	} else if created {
		logger.Info("admin account seeded", "email", cfg.AdminEmail)
	}

	notes := notification.NewService(notification.NewRepository(db.Gorm), notification.Options{
		Cache:   notification.NewRedisCountCache(redisClient.Client, cfg.UnreadCacheTTL, logger),
		Metrics: m,
		Logger:  logger,
	})
	staffSvc := staff.NewService(staff.NewRepository(db.Gorm), user.NewRepository(db.Gorm), logger)
	att := attendance.NewService(attendance.NewRepository(db.Gorm), staffSvc, notes, attendance.Options{
		Location:   cfg.Timezone,
		LateCutoff: cfg.LateCutoff,
		Metrics:    m,
		Logger:     logger,
	})

	sessions := auth.NewSessions(auth.SessionConfig{
		Issuer:     cfg.JWTIssuer,
		SigningKey: cfg.JWTSigningKey,
		TTL:        cfg.SessionTTL,
		CookieName: cfg.SessionCookie,
		Secure:     cfg.CookieSecure,
	}, auth.NewRedisDenylist(redisClient.Client), logger)

	images := cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
	if images.Configured() {
		logger.Info("cloudinary configured", "cloud", cfg.CloudinaryCloudName)
	} else {
		logger.Info("cloudinary not configured, avatar uploads disabled")
	}

	h := handler.New(handler.Services{
		Users:         users,
		Staff:         staffSvc,
		Attendance:    att,
		Notifications: notes,
		Mail:          dispatcher,
		Sessions:      sessions,
		Images:        images,
		Logger:        logger,
	})
	router := h.Router(handler.RouterConfig{
		CORSOrigins: cfg.CORSOrigins,
		Metrics:     m,
		Limiter:     httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin, m),
		Health: map[string]func(context.Context) bool{
			"db":    db.Healthy,
			"redis": redisClient.Healthy,
		},
		AccessLog: true,
	})

	// The in-memory queue is consumed in-process.
	workerDone := make(chan struct{})
	if cfg.QueueBackend == "memory" {
		worker, err := newMailWorker(cfg, m, logger)
		if err != nil {
			return err
		}
		go func() {
			defer close(workerDone)
			if err := worker.Run(ctx, q); err != nil {
				logger.Error("mail worker stopped", "error", err)
			}
		}()
	} else {
		close(workerDone)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", "error", err)
	}
	<-workerDone
	logger.Info("server exited")
	return nil
}

func newMailWorker(cfg config.App, m *metrics.Metrics, logger *slog.Logger) (*mail.Worker, error) {
	renderer, err := mail.NewRenderer(cfg.AppName, cfg.FrontendURL)
	if err != nil {
		return nil, err
	}
	sender := mail.NewSender(cfg.MailBackend, smtpConfig(cfg), logger)
	return mail.NewWorker(renderer, sender, m, logger), nil
}

func smtpConfig(cfg config.App) mail.SMTPConfig {
	return mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	}
}
