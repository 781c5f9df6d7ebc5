package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/nicktill/heatcycle/pkg/config"
	"github.com/nicktill/heatcycle/pkg/cycles"
	"github.com/nicktill/heatcycle/pkg/events"
	"github.com/nicktill/heatcycle/pkg/httpx"
	"github.com/nicktill/heatcycle/pkg/server/monitor"
	"github.com/nicktill/heatcycle/pkg/storage"
)

// Extractor runs one extraction. *cycles.Extractor implements it.
type Extractor interface {
	Extract(ctx context.Context, cfg cycles.Config) ([]cycles.TrainingExample, error)
}

// StorageChecker rejects work once the data directory is full.
type StorageChecker interface {
	CheckLimit() error
}

// Handler serves extraction and dataset endpoints.
type Handler struct {
	extractor      Extractor
	store          storage.Storage
	devices        *config.Devices
	notifier       events.Notifier
	storageChecker StorageChecker
	monitor        *monitor.JobMonitor
	now            func() time.Time
}

// NewHandler creates a handler with no presets, notifier or storage limit.
func NewHandler(extractor Extractor, store storage.Storage) *Handler {
	return &Handler{
		extractor: extractor,
		store:     store,
		devices:   &config.Devices{},
		monitor:   monitor.NewOnDemandMonitor(),
		now:       time.Now,
	}
}

// SetDevices sets the presets served under /v1/devices.
func (h *Handler) SetDevices(devices *config.Devices) {
	h.devices = devices
}

// SetNotifier sets where dataset events are delivered.
func (h *Handler) SetNotifier(n events.Notifier) {
	h.notifier = n
}

// SetStorageChecker sets the storage checker consulted before extracting.
func (h *Handler) SetStorageChecker(checker StorageChecker) {
	h.storageChecker = checker
}

// SetMonitor replaces the extraction monitor.
func (h *Handler) SetMonitor(m *monitor.JobMonitor) {
	h.monitor = m
}

// Monitor returns the extraction monitor.
func (h *Handler) Monitor() *monitor.JobMonitor {
	return h.monitor
}

// HandleExtract handles POST /v1/extract. The body is a device preset.
func (h *Handler) HandleExtract(w http.ResponseWriter, r *http.Request) {
	var device config.Device
	if err := httpx.DecodeJSON(w, r, config.MaxRequestBytes, &device); err != nil {
		respondError(w, err)
		return
	}

	h.extract(w, r, device)
}

// HandleDeviceExtract handles POST /v1/devices/{device_id}/extract
func (h *Handler) HandleDeviceExtract(w http.ResponseWriter, r *http.Request) {
	device, err := h.devices.Get(mux.Vars(r)["device_id"])
	if err != nil {
		respondError(w, err)
		return
	}
	h.extract(w, r, device)
}

func (h *Handler) extract(w http.ResponseWriter, r *http.Request, device config.Device) {
	if h.storageChecker != nil {
		if err := h.storageChecker.CheckLimit(); err != nil {
			log.Printf("⚠️  Extraction for %s rejected: %v", device.DeviceID, err)
			respondError(w, err)
			return
		}
	}

	cfg, err := device.ExtractionConfig(h.now())
	if err != nil {
		respondError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.ExtractTimeout)
	defer cancel()

	start := time.Now()
	examples, err := h.extractor.Extract(ctx, cfg)
	if err != nil {
		h.recordExtractError(err)
		log.Printf("❌ Extraction for %s failed after %v: %v",
			device.DeviceID, time.Since(start).Round(time.Millisecond), err)
		respondError(w, err)
		return
	}

	ds := storage.NewDataset(device.DeviceID, cfg, examples)
	if err := h.store.Put(ctx, ds); err != nil {
		h.monitor.RecordFailure(err)
		log.Printf("❌ Failed to store dataset for %s: %v", device.DeviceID, err)
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	h.monitor.RecordSuccess(len(examples))

	log.Printf("✅ Extracted %d examples for %s over %d days in %v (dataset %s)",
		len(examples), device.DeviceID, device.Days(), time.Since(start).Round(time.Millisecond), ds.ID)

	h.notify(r.Context(), events.DatasetCreated(ds))
	httpx.RespondJSON(w, http.StatusCreated, ds)
}

// HandleListDevices handles GET /v1/devices
func (h *Handler) HandleListDevices(w http.ResponseWriter, r *http.Request) {
	devices := h.devices.List()
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"devices": devices,
		"count":   len(devices),
	})
}

// HandleListDatasets handles GET /v1/datasets
// Query params:
//   - device_id: only datasets for this device
//   - limit: max results (default 100, max 1000)
func (h *Handler) HandleListDatasets(w http.ResponseWriter, r *http.Request) {
	limit := config.DatasetListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httpx.RespondErrorString(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, config.DatasetMaxListLimit)
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.DatasetTimeout)
	defer cancel()

	datasets, err := h.store.List(ctx, storage.ListRequest{
		DeviceID: r.URL.Query().Get("device_id"),
		Limit:    limit,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"datasets": datasets,
		"count":    len(datasets),
	})
}

// HandleGetDataset handles GET /v1/datasets/{id}
func (h *Handler) HandleGetDataset(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), config.DatasetTimeout)
	defer cancel()

	ds, err := h.store.Get(ctx, mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, ds)
}

// HandleDeleteDataset handles DELETE /v1/datasets/{id}
func (h *Handler) HandleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ctx, cancel := context.WithTimeout(r.Context(), config.DatasetTimeout)
	defer cancel()

	if err := h.store.Delete(ctx, id); err != nil {
		respondError(w, err)
		return
	}

	log.Printf("🗑️  Deleted dataset %s", id)
	h.notify(r.Context(), events.DatasetDeleted(id))
	httpx.RespondJSON(w, http.StatusOK, map[string]string{
		"status": "deleted",
		"id":     id,
	})
}

// HandleStats handles GET /v1/stats
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), config.DatasetTimeout)
	defer cancel()

	stats, err := h.store.Stats(ctx)
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, stats)
}

// recordExtractError feeds the extraction monitor. Finding no cycles is a
// completed run; only server-side errors count against health.
func (h *Handler) recordExtractError(err error) {
	switch {
	case errors.Is(err, cycles.ErrNoValidCycles):
		h.monitor.RecordSuccess(0)
	case StatusFor(err) >= http.StatusInternalServerError:
		h.monitor.RecordFailure(err)
	}
}

// notify delivers an event without failing the request.
func (h *Handler) notify(ctx context.Context, ev events.Event) {
	if h.notifier == nil {
		return
	}
	if err := h.notifier.Notify(context.WithoutCancel(ctx), ev); err != nil {
		log.Printf("⚠️  Failed to publish %s event for dataset %s: %v", ev.Type, ev.DatasetID, err)
	}
}
