package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/vcard-ledger/internal/api_gateway"
	"github.com/vcard-ledger/internal/api_gateway/service"
	"github.com/vcard-ledger/internal/config"
	"github.com/vcard-ledger/internal/data"
	"github.com/vcard-ledger/internal/logger"
	"github.com/vcard-ledger/internal/platform/messaging/producers"
	"github.com/vcard-ledger/internal/transaction_processor/components"
	"github.com/vcard-ledger/internal/transaction_processor/outbox_poller"
	processing "github.com/vcard-ledger/internal/transaction_processor/service"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize storage backend with app context
	backend, err := data.Open(appCtx, log, cfg)
	if err != nil {
		log.Error("Failed to initialize storage", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}

	// Authorizations, settlements and refunds run synchronously in the gateway
	processingService := components.CreateProcessingService(backend.Runner, backend.Repositories, log, cfg)

	// Verified webhooks are either queued for the transaction processor or processed inline
	var (
		dispatcher     service.EventDispatcher
		eventsProducer *producers.TopicProducer
	)
	if cfg.Webhook.Dispatch == config.WebhookDispatchKafka {
		eventsProducer, err = producers.NewTopicProducer(appCtx, log, &cfg.Kafka, cfg.Kafka.ProcessorEventsTopic)
		if err != nil {
			log.Error("Failed to initialize processor events Kafka producer", "error", err)
			os.Exit(1)
		}
		dispatcher = service.NewKafkaEventDispatcher(log, eventsProducer)
	} else {
		dispatcher = service.NewInlineEventDispatcher(processingService)
	}

	// With in-memory storage no other process can see the outbox, so the gateway relays it
	var (
		wg             sync.WaitGroup
		domainProducer *producers.TopicProducer
	)
	if backend.Driver == config.StorageDriverMemory {
		domainProducer, err = producers.NewTopicProducer(appCtx, log, &cfg.Kafka, cfg.Kafka.DomainEventsTopic)
		if err != nil {
			log.Error("Failed to initialize domain events Kafka producer", "error", err)
			os.Exit(1)
		}
		publisher := outbox_poller.NewEventPublisher(backend.Outbox, nil, domainProducer, log)
		poller := outbox_poller.NewPoller(&cfg.Outbox, backend.Outbox, publisher, log)

		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Start(appCtx)
		}()
	}

	// Initialize services
	outboxManager := components.NewOutboxManager(backend.Outbox, log)
	cardService := service.NewCardService(log, backend.Runner, backend.Cards, backend.Ledger, outboxManager)
	transactionService := service.NewTransactionService(log, backend.Cards, backend.Transactions, backend.Ledger)

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, api_gateway.Services{
		Cards:        cardService,
		Transactions: transactionService,
		Processing:   processingService,
		Webhooks:     dispatcher,
	})
	log.Info("REST server initialized",
		"storage", backend.Driver,
		"webhook_dispatch", cfg.Webhook.Dispatch,
	)

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Drain in-flight requests before tearing down their dependencies
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	cancelAppCtx()
	wg.Wait()

	if wpService, ok := processingService.(*processing.WorkerPoolProcessingService); ok {
		log.Info("Shutting down worker pool", "running_workers", wpService.Running())
		wpService.Shutdown()
	}

	if eventsProducer != nil {
		if err = eventsProducer.Close(); err != nil {
			log.Error("Error closing processor events Kafka producer", "error", err)
		}
	}
	if domainProducer != nil {
		if err = domainProducer.Close(); err != nil {
			log.Error("Error closing domain events Kafka producer", "error", err)
		}
	}

	backend.Close()

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
