package server

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/nicktill/heatcycle/pkg/api"
	"github.com/nicktill/heatcycle/pkg/config"
	"github.com/nicktill/heatcycle/pkg/cycles"
	"github.com/nicktill/heatcycle/pkg/events"
	"github.com/nicktill/heatcycle/pkg/export"
	"github.com/nicktill/heatcycle/pkg/history"
	"github.com/nicktill/heatcycle/pkg/homeassistant"
	"github.com/nicktill/heatcycle/pkg/server/monitor"
	"github.com/nicktill/heatcycle/pkg/statistics"
	"github.com/nicktill/heatcycle/pkg/storage"
	"github.com/nicktill/heatcycle/pkg/storage/badger"
)

// Config holds server configuration.
type Config struct {
	config.Env
	MaxStorageBytes int64
}

// LoadConfig loads configuration from environment variables and makes sure
// the data directory exists.
func LoadConfig() (Config, error) {
	env := config.Load()
	if err := os.MkdirAll(env.DataDir, 0755); err != nil {
		return Config{}, fmt.Errorf("create data directory: %w", err)
	}
	return Config{
		Env:             env,
		MaxStorageBytes: env.MaxStorageGB << 30,
	}, nil
}

// InitializeStorage opens the BadgerDB dataset store.
func InitializeStorage(cfg Config) (storage.Storage, error) {
	log.Println("Initializing BadgerDB dataset storage...")
	store, err := badger.New(badger.Config{
		Path:        cfg.DataDir,
		MaxMemoryMB: cfg.MaxMemoryMB,
	})
	if err != nil {
		return nil, err
	}
	log.Println("BadgerDB storage initialized successfully")
	return store, nil
}

// InitializeExtractor wires the Home Assistant sources into an extractor.
// The returned client is used for availability checks.
func InitializeExtractor(cfg Config, logger *slog.Logger) (*cycles.Extractor, *homeassistant.Client, error) {
	client, err := homeassistant.NewClient(homeassistant.Config{
		BaseURL: cfg.SupervisorURL,
		Token:   cfg.Token,
		Timeout: config.HATimeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, nil, err
	}
	if cfg.Token == "" {
		log.Println("⚠️  SUPERVISOR_TOKEN is not set, Home Assistant requests will be rejected")
	}

	var stats history.Source
	switch cfg.Statistics {
	case config.StatisticsDownsample:
		full, err := homeassistant.NewClient(homeassistant.Config{
			BaseURL:        cfg.SupervisorURL,
			Token:          cfg.Token,
			Timeout:        config.HATimeout,
			FullResolution: true,
			Logger:         logger,
		})
		if err != nil {
			return nil, nil, err
		}
		stats = statistics.NewSource(full, statistics.Period5m)
		log.Println("Statistics strategy reads full-resolution history downsampled to 5m")
	default:
		ws, err := homeassistant.NewStatisticsClient(homeassistant.StatisticsConfig{
			BaseURL: cfg.SupervisorURL,
			Token:   cfg.Token,
			Period:  statistics.Period5m,
			Timeout: config.HATimeout,
			Logger:  logger,
		})
		if err != nil {
			return nil, nil, err
		}
		stats = ws
		log.Println("Statistics strategy reads long-term statistics over WebSocket")
	}

	extractor := cycles.NewExtractor(cycles.ExtractorConfig{
		History:    client,
		Statistics: stats,
		ChunkSize:  config.FetchChunkSize,
		Logger:     logger,
	})
	log.Printf("Extractor ready (Home Assistant at %s)", client.BaseURL())
	return extractor, client, nil
}

// InitializeNotifier builds the event fan-out: the WebSocket hub always,
// MQTT when a broker is configured. The returned func disconnects MQTT.
func InitializeNotifier(cfg Config, hub *events.Hub) (events.Notifier, func()) {
	notifiers := events.Multi{hub}
	if cfg.MQTTBroker == "" {
		return notifiers, func() {}
	}

	mqttNotifier, client, err := events.DialMQTT(events.MQTTConfig{
		Broker: cfg.MQTTBroker,
		Topic:  cfg.MQTTTopic,
	})
	if err != nil {
		log.Printf("⚠️  MQTT notifications disabled: %v", err)
		return notifiers, func() {}
	}
	log.Printf("Dataset events published to MQTT topic %s/*", cfg.MQTTTopic)
	return append(notifiers, mqttNotifier), func() { client.Disconnect(250) }
}

// InitializeHandlers creates and configures all request handlers.
func InitializeHandlers(
	extractor api.Extractor,
	store storage.Storage,
	devices *config.Devices,
	notifier events.Notifier,
	storageMonitor *monitor.StorageMonitor,
) (*api.Handler, *export.Handler) {
	apiHandler := api.NewHandler(extractor, store)
	apiHandler.SetDevices(devices)
	apiHandler.SetNotifier(notifier)
	apiHandler.SetStorageChecker(storageMonitor)
	log.Printf("Extraction handler created (%d device presets)", devices.Len())

	exportHandler := export.NewHandler(store)
	log.Println("Export/Import handler created (JSON & CSV)")

	return apiHandler, exportHandler
}
