package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/minhct/gh-event-pipeline/cfg"
	"github.com/minhct/gh-event-pipeline/internal/githubapi"
	"github.com/minhct/gh-event-pipeline/internal/poller"
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

	if err := config.ValidatePoller(); err != nil {
		logger.Error(ctx, "Configuration error: %v", err)
		os.Exit(1)
	}

	tokens, err := githubapi.NewTokenPool(logger, config.Github.TokenList())
	if err != nil {
		logger.Error(ctx, "Failed to build token pool: %v", err)
		os.Exit(1)
	}
	logger.Info(ctx, "GitHub tokens configured: %d", tokens.Size())

	caller := githubapi.NewCaller(logger, config, tokens)
	producer := kafka.NewProducer(config, logger, config.Kafka.Topic)

	p, err := poller.NewPoller(logger, config, caller, producer)
	if err != nil {
		logger.Error(ctx, "Failed to build poller: %v", err)
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

	p.Run(ctx)
}
