package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/nicktill/heatcycle/pkg/config"
	"github.com/nicktill/heatcycle/pkg/events"
	"github.com/nicktill/heatcycle/pkg/logging"
	"github.com/nicktill/heatcycle/pkg/server"
	"github.com/nicktill/heatcycle/pkg/server/monitor"
)

const (
	serverReadTimeout = 10 * time.Second
	// Extraction over a long window can take minutes
	serverWriteTimeout = config.ExtractTimeout + 30*time.Second
	shutdownTimeout    = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func run() error {
	cfg, err := server.LoadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer logger.Close()

	log.Println("🔥 Starting heatcycle extraction service")

	devices, err := config.LoadDevices(cfg.DevicesFile)
	if err != nil {
		return err
	}

	store, err := server.InitializeStorage(cfg)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	defer store.Close()

	storageMonitor := monitor.NewStorageMonitor(cfg.DataDir, cfg.MaxStorageBytes)
	log.Printf("💾 Storage limit enforcement enabled: %d GB max", cfg.MaxStorageGB)

	extractor, ha, err := server.InitializeExtractor(cfg, logger.Logger)
	if err != nil {
		return fmt.Errorf("initialize extractor: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	hub := events.NewHub()
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()
	log.Println("📡 WebSocket hub started for dataset events")

	notifier, closeNotifier := server.InitializeNotifier(cfg, hub)
	defer closeNotifier()

	apiHandler, exportHandler := server.InitializeHandlers(extractor, store, devices, notifier, storageMonitor)

	retentionMonitor := monitor.NewJobMonitor(2 * config.RetentionInterval)
	stopRetention := make(chan bool)
	wg.Add(1)
	go server.RunRetention(store, retentionMonitor, stopRetention, &wg)

	stopGC := make(chan bool)
	wg.Add(1)
	go server.RunBadgerGC(store, stopGC, &wg)

	router := mux.NewRouter()
	server.SetupRoutes(router, apiHandler, exportHandler, hub, ha, storageMonitor, retentionMonitor, cfg.Port)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Wrap(router),
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
	}

	go func() {
		log.Printf("🌐 Server starting on http://localhost:%s", cfg.Port)
		log.Println("📡 API endpoints:")
		log.Println("   POST   /v1/extract                      - Extract training examples")
		log.Println("   POST   /v1/devices/{device_id}/extract  - Extract a configured device")
		log.Println("   GET    /v1/datasets                     - List datasets")
		log.Println("   GET    /v1/datasets/{id}/export         - Export JSON or CSV")
		log.Println("   GET    /v1/health                       - Service health")
		log.Println("✅ Server ready to accept requests")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutdown signal received...")

	// Cancel before wg.Wait so the hub loop can exit
	log.Println("⏸️  Stopping background tasks...")
	cancel()
	close(stopRetention)
	close(stopGC)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	log.Println("🔄 Gracefully shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Server shutdown warning: %v", err)
	}

	log.Println("⏳ Waiting for background tasks to complete...")
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("✅ All background tasks stopped cleanly")
	case <-time.After(5 * time.Second):
		log.Println("⚠️  Some background tasks did not stop in time (forcing exit)")
	}

	log.Println("👋 heatcycle exited cleanly")
	return nil
}
