package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"attendance/internal/config"
	"attendance/internal/logging"
	"attendance/internal/mail"
	"attendance/internal/metrics"
	"attendance/internal/queue"
	"attendance/internal/store"
)

// Worker consumes queued email jobs from Redis, renders them and sends
// them over SMTP.
func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Env, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend == "memory" {
		logger.Error("QUEUE_BACKEND=memory runs the mail worker inside the api process")
		os.Exit(1)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		logger.Warn("redis not reachable, waiting for it")
	}

	renderer, err := mail.NewRenderer(cfg.AppName, cfg.FrontendURL)
	if err != nil {
		logger.Error("load email templates failed", "error", err)
		os.Exit(1)
	}

	sender := mail.NewSender(cfg.MailBackend, mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	}, logger)
	logger.Info("mail worker configured", "backend", cfg.MailBackend, "smtp_host", cfg.SMTPHost)

	q := queue.NewRedisQueue(redisClient.Client, "", logger)
	worker := mail.NewWorker(renderer, sender, metrics.New(), logger)
	if err := worker.Run(ctx, q); err != nil {
		logger.Error("queue consume failed", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
