package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rinconbridge/internal/api"
	"rinconbridge/internal/auth"
	"rinconbridge/internal/bus"
	"rinconbridge/internal/clock"
	"rinconbridge/internal/config"
	"rinconbridge/internal/entity"
	"rinconbridge/internal/ha"
	"rinconbridge/internal/rincon"
	"rinconbridge/internal/stream"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found, using environment variables")
	}

	cfg, err := config.Load(os.Getenv("BRIDGE_CONFIG"), logger)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Starting El Rincón de Lola bridge", zap.String("host", cfg.RinconHost))

	// Obtain a bearer token from the login flow when none is configured.
	token := cfg.RinconToken
	if token == "" {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		token, err = auth.Login(ctx, cfg.RinconHost, cfg.RinconUsername, cfg.RinconPassword, logger)
		cancel()
		if err != nil {
			logger.Fatal("Failed to obtain access token", zap.Error(err))
		}
	}

	clk := clock.NewRealClock()
	notifier := bus.NewNotifier(logger)
	apiClient := rincon.NewClient(cfg.RinconHost, token, logger)
	streamClient := stream.NewClient(cfg.RinconHost, token, stream.Config{}, notifier, clk, logger)
	registry := entity.NewRegistry(clk)

	// The registry always receives publications; Home Assistant is optional.
	sink := entity.MultiSink{registry}
	var haClient *ha.Client
	if cfg.HAURL != "" {
		haClient = ha.NewClient(cfg.HAURL, cfg.HAToken, logger)
		if err := haClient.Connect(); err != nil {
			logger.Fatal("Failed to connect to Home Assistant", zap.Error(err))
		}
		defer haClient.Disconnect()
		sink = append(sink, haClient)
	} else {
		logger.Info("HA_URL not set, running without Home Assistant publishing")
	}

	entities := []entity.Entity{
		entity.NewOccupancy(apiClient, notifier, sink, clk, logger),
		entity.NewTodayReservation(apiClient, notifier, sink, clk, logger),
		entity.NewPreviousReservation(apiClient, notifier, sink, clk, logger),
		entity.NewNextReservation(apiClient, notifier, sink, clk, logger),
		entity.NewStreamSensor(streamClient, notifier, sink, logger),
	}

	for _, e := range entities {
		if err := e.Activate(); err != nil {
			logger.Fatal("Failed to activate entity", zap.String("entity", e.UniqueID()), zap.Error(err))
		}
		logger.Info("Entity activated", zap.String("entity", e.UniqueID()), zap.String("name", e.Name()))
	}

	if err := streamClient.Start(); err != nil {
		logger.Fatal("Failed to start stream client", zap.Error(err))
	}

	apiServer := api.NewServer(registry, streamClient, logger, cfg.APIPort)
	if err := apiServer.Start(); err != nil {
		logger.Fatal("Failed to start API server", zap.Error(err))
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Bridge running. Press Ctrl+C to exit.")
	<-sigChan

	logger.Info("Shutting down gracefully...")

	streamClient.Stop()
	for i := len(entities) - 1; i >= 0; i-- {
		entities[i].Deactivate()
	}
	if err := apiServer.Stop(); err != nil {
		logger.Error("Failed to stop API server", zap.Error(err))
	}
}
