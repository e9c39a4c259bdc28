package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/minhct/gh-event-pipeline/cfg"
	"github.com/minhct/gh-event-pipeline/internal/model"
	"github.com/minhct/gh-event-pipeline/internal/processor"
	"github.com/minhct/gh-event-pipeline/pkg/db"
	"github.com/minhct/gh-event-pipeline/pkg/kafka"
	"github.com/minhct/gh-event-pipeline/pkg/log"
)

func main() {
	// Local overrides, ignored when absent
	_ = godotenv.Load()

	loader, _ := cfg.NewViperLoader()
	config, err := loader.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, _ := log.NewCslLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := config.ValidateProcessor(); err != nil {
		logger.Error(ctx, "Configuration error: %v", err)
		os.Exit(1)
	}

	mysql, _ := db.NewMysql(config)
	defer mysql.Close()

	repoMd, _ := model.NewRepo(config, logger, mysql)
	metricMd, _ := model.NewMetric(config, logger, mysql)
	if err := mysql.Migrate(repoMd, metricMd); err != nil {
		logger.Error(ctx, "Failed to migrate database: %v", err)
		os.Exit(1)
	}

	consumer := kafka.NewConsumer(config, logger, config.Kafka.Topic, config.Kafka.ConsumerGroup)
	writer, _ := model.NewWriter(config, logger, mysql)

	proc, err := processor.NewProcessor(logger, config, consumer, writer)
	if err != nil {
		logger.Error(ctx, "Failed to build processor: %v", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info(ctx, "Received shutdown signal")
		cancel()
	}()

	if err := proc.Run(ctx); err != nil {
		logger.Error(ctx, "Processor terminated: %v", err)
		mysql.Close()
		os.Exit(1)
	}
}
