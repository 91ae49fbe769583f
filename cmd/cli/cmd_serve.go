package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sguter90/sensormaestro/pkg/cache"
	"github.com/sguter90/sensormaestro/pkg/config"
	"github.com/sguter90/sensormaestro/pkg/database"
	"github.com/sguter90/sensormaestro/pkg/hub"
	"github.com/sguter90/sensormaestro/pkg/ingest"
	"github.com/sguter90/sensormaestro/pkg/metrics"
	"github.com/sguter90/sensormaestro/pkg/mqttbridge"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the SensorMaestro server",
	Long:  `Start the SensorMaestro server to receive sensor data and push it to dashboards.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := configFrom(cmd)
	log := loggerFrom(cmd)
	defer log.Sync()

	if cfg.UsesDefaultAPIKey() {
		log.Warn("API_KEY is not set, using the default ingest key")
	}

	dbManager, err := database.NewDatabaseManager(cfg.DSN(), log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbManager.Close()

	// Run migrations
	if err := dbManager.Init(cmd.Context()); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	m := metrics.New()
	h := hub.New(hub.Options{
		QueueSize:       cfg.HubQueueSize,
		DeliveryTimeout: cfg.HubDeliveryTimeout,
		Logger:          log,
		Recorder:        m,
	})
	defer h.Close()

	opts := []ingest.Option{ingest.WithRecorder(m)}
	var latest LatestReader
	if lc := connectLatestCache(cmd.Context(), cfg, log); lc != nil {
		opts = append(opts, ingest.WithLatestStore(lc))
		latest = lc
	}

	svc := ingest.NewService(newClassifier(), dbManager, h, log, opts...)
	defer svc.Close()

	if mqttClient := startMQTT(cfg, svc, h, log); mqttClient != nil {
		defer mqttClient.Disconnect()
	}

	// Setup Router
	routeManager := NewRouteManager(Dependencies{
		Config:  cfg,
		Store:   dbManager,
		Hub:     h,
		Ingest:  svc,
		Metrics: m,
		Latest:  latest,
		Logger:  log,
	})
	routeManager.Setup()

	server := &http.Server{
		Handler:           routeManager.Router,
		Addr:              cfg.Addr(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown error", zap.Error(err))
		}
	}()

	log.Info("Starting SensorMaestro server", zap.String("addr", cfg.Addr()))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	log.Info("Server stopped")
	return nil
}

// connectLatestCache returns nil when redis is not configured or unreachable
func connectLatestCache(ctx context.Context, cfg *config.Config, log *zap.Logger) *cache.LatestCache {
	if cfg.RedisAddr == "" {
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := cache.Connect(pingCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Warn("Latest sample cache disabled", zap.Error(err))
		return nil
	}

	log.Info("Latest sample cache enabled", zap.String("redis_addr", cfg.RedisAddr))
	return cache.NewLatestCache(client, cfg.LatestTTL, log)
}

// startMQTT subscribes the ingest pipeline to the broker and mirrors hub
// events back to it. It returns nil when MQTT is not configured or unreachable.
func startMQTT(cfg *config.Config, svc *ingest.Service, h *hub.Hub, log *zap.Logger) *mqttbridge.Client {
	if cfg.MQTTBroker == "" {
		return nil
	}

	client, err := mqttbridge.NewClient(mqttbridge.Options{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientID,
		Username: cfg.MQTTUsername,
		Password: cfg.MQTTPassword,
	}, log)
	if err != nil {
		log.Warn("MQTT bridge disabled", zap.Error(err))
		return nil
	}

	if cfg.MQTTIngestTopic != "" {
		if err := mqttbridge.NewIngestHandler(svc, log).Start(client, cfg.MQTTIngestTopic); err != nil {
			log.Warn("MQTT ingest disabled", zap.Error(err))
		}
	}

	if cfg.MQTTEventsTopic != "" {
		if err := h.Register(mqttbridge.NewMirror(client, cfg.MQTTEventsTopic, log)); err != nil {
			log.Warn("MQTT event mirror disabled", zap.Error(err))
		}
	}

	return client
}
