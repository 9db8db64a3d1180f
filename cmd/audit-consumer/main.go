package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/iliyamo/model-booking/internal/config"
	"github.com/iliyamo/model-booking/internal/logger"
	"github.com/iliyamo/model-booking/internal/queue"
)

// audit-consumer appends every booking lifecycle event published on the
// AMQP exchange to the audit log file.
func main() {
	cfg, err := config.LoadConsumerConfig()
	if err != nil {
		logger.New(logger.Config{}).Fatal("config", "error", err)
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "audit-consumer"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &queue.AuditConsumer{
		URL:      cfg.Events.RabbitURL,
		Exchange: cfg.Events.Exchange,
		Queue:    cfg.Events.AuditQueue,
		LogPath:  cfg.Events.AuditLogPath,
		Log:      log,
	}
	log.Info("audit-consumer started", "exchange", c.Exchange, "queue", c.Queue, "file", c.LogPath)
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("audit-consumer stopped", "error", err)
	}
	log.Info("audit-consumer stopped")
}
