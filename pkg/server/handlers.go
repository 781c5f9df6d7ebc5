package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/nicktill/heatcycle/pkg/api"
	"github.com/nicktill/heatcycle/pkg/config"
	"github.com/nicktill/heatcycle/pkg/events"
	"github.com/nicktill/heatcycle/pkg/export"
	"github.com/nicktill/heatcycle/pkg/httpx"
	"github.com/nicktill/heatcycle/pkg/server/monitor"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

var startTime = time.Now()

// HomeAssistant is the availability view of the Home Assistant client.
type HomeAssistant interface {
	Available(ctx context.Context) bool
	BaseURL() string
}

// StorageUsage represents current storage usage stats.
type StorageUsage struct {
	UsedBytes int64 `json:"used_bytes"`
	MaxBytes  int64 `json:"max_bytes"`
}

// HomeAssistantStatus reports whether Home Assistant answered.
type HomeAssistantStatus struct {
	Available bool   `json:"available"`
	URL       string `json:"url"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status        string              `json:"status"`
	Version       string              `json:"version"`
	Uptime        string              `json:"uptime"`
	HomeAssistant HomeAssistantStatus `json:"home_assistant"`
	Extraction    monitor.JobStatus   `json:"extraction"`
	Retention     monitor.JobStatus   `json:"retention"`
	Clients       int                 `json:"websocket_clients"`
}

// handleHealth returns service health status. Home Assistant being
// unreachable or a failing job marks the service degraded.
func handleHealth(ha HomeAssistant, extraction, retention *monitor.JobMonitor, hub *events.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), config.HAPingTimeout)
		defer cancel()

		haStatus := HomeAssistantStatus{URL: ha.BaseURL(), Available: ha.Available(ctx)}

		overallStatus := "healthy"
		statusCode := http.StatusOK
		if !haStatus.Available || !extraction.IsHealthy() || !retention.IsHealthy() {
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.RespondJSON(w, statusCode, HealthResponse{
			Status:        overallStatus,
			Version:       Version,
			Uptime:        time.Since(startTime).Round(time.Second).String(),
			HomeAssistant: haStatus,
			Extraction:    extraction.Status(),
			Retention:     retention.Status(),
			Clients:       hub.Clients(),
		})
	}
}

// handleStorageUsage returns current storage usage.
func handleStorageUsage(monitor *monitor.StorageMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		usedBytes, err := monitor.GetUsage()
		if err != nil {
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}

		httpx.RespondJSON(w, http.StatusOK, StorageUsage{
			UsedBytes: usedBytes,
			MaxBytes:  monitor.GetLimit(),
		})
	}
}

// SetupRoutes configures all HTTP routes for the server.
func SetupRoutes(
	router *mux.Router,
	apiHandler *api.Handler,
	exportHandler *export.Handler,
	hub *events.Hub,
	ha HomeAssistant,
	storageMonitor *monitor.StorageMonitor,
	retentionMonitor *monitor.JobMonitor,
	port string,
) {
	router.Use(corsMiddleware(port))

	v1 := router.PathPrefix("/v1").Subrouter()

	// Extraction
	v1.HandleFunc("/extract", apiHandler.HandleExtract).Methods("POST")
	v1.HandleFunc("/devices", apiHandler.HandleListDevices).Methods("GET")
	v1.HandleFunc("/devices/{device_id}/extract", apiHandler.HandleDeviceExtract).Methods("POST")

	// Datasets; import is registered before {id} so it is not taken for one
	v1.HandleFunc("/datasets/import", exportHandler.HandleImport).Methods("POST")
	v1.HandleFunc("/datasets", apiHandler.HandleListDatasets).Methods("GET")
	v1.HandleFunc("/datasets/{id}", apiHandler.HandleGetDataset).Methods("GET")
	v1.HandleFunc("/datasets/{id}", apiHandler.HandleDeleteDataset).Methods("DELETE")
	v1.HandleFunc("/datasets/{id}/export", exportHandler.HandleExport).Methods("GET")

	// Service state
	v1.HandleFunc("/stats", apiHandler.HandleStats).Methods("GET")
	v1.HandleFunc("/storage", handleStorageUsage(storageMonitor)).Methods("GET")
	v1.HandleFunc("/health", handleHealth(ha, apiHandler.Monitor(), retentionMonitor, hub)).Methods("GET")

	// Dataset events
	v1.HandleFunc("/ws", hub.HandleWebSocket).Methods("GET")
}

// Wrap adds request logging and panic recovery around the router.
func Wrap(router http.Handler) http.Handler {
	recovered := handlers.RecoveryHandler(
		handlers.RecoveryLogger(log.Default()),
		handlers.PrintRecoveryStack(true),
	)(router)
	return handlers.LoggingHandler(log.Writer(), recovered)
}

// corsMiddleware restricts cross-origin access to localhost origins.
func corsMiddleware(port string) func(http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:" + port: true,
		"http://127.0.0.1:" + port: true,
		"http://localhost:3000":    true,
		"http://127.0.0.1:3000":    true,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); allowedOrigins[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
