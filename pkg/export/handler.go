package export

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nicktill/heatcycle/pkg/httpx"
	"github.com/nicktill/heatcycle/pkg/storage"
)

// MaxImportBytes bounds the size of an import request body.
const MaxImportBytes = 32 << 20

// Handler handles export/import HTTP endpoints
type Handler struct {
	exporter *Exporter
	importer *Importer
}

// NewHandler creates a new export/import handler
func NewHandler(store storage.Storage) *Handler {
	return &Handler{
		exporter: NewExporter(store),
		importer: NewImporter(store),
	}
}

// HandleExport handles GET /v1/datasets/{id}/export
// Query params:
//   - format: "json" or "csv" (default: json)
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	format := r.URL.Query().Get("format")
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatCSV {
		httpx.RespondErrorString(w, http.StatusBadRequest, "Invalid format. Must be 'json' or 'csv'")
		return
	}

	// Fail before any header is written.
	if _, err := h.exporter.storage.Get(r.Context(), id); err != nil {
		respondStorageError(w, err)
		return
	}

	timestamp := time.Now().Format("20060102-150405")
	if format == FormatJSON {
		w.Header().Set("Content-Type", "application/json")
	} else {
		w.Header().Set("Content-Type", "text/csv")
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=heatcycle-%s-%s.%s", id, timestamp, format))

	result, err := h.exporter.Export(r.Context(), w, id, format)
	if err != nil {
		log.Printf("❌ Export of dataset %s failed: %v", id, err)
		return
	}

	log.Printf("✅ Exported dataset %s (%d examples, %s)", result.DatasetID, result.ExamplesExported, format)
}

// HandleImport handles POST /v1/datasets/import
// Accepts a JSON export and stores it as a dataset
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "application/json" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "Content-Type must be application/json")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxImportBytes)
	result, err := h.importer.ImportFromJSON(r.Context(), r.Body)
	if err != nil {
		log.Printf("❌ Import failed: %v", err)
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	if len(result.Errors) > 0 {
		log.Printf("⚠️  Import completed with %d validation errors", len(result.Errors))
		for i, e := range result.Errors {
			if i >= 10 {
				log.Printf("   ... and %d more errors", len(result.Errors)-10)
				break
			}
			log.Printf("   - %s", e)
		}
	}

	log.Printf("✅ Imported dataset %s for %s (%d examples)", result.DatasetID, result.DeviceID, result.ExamplesImported)
	httpx.RespondJSON(w, http.StatusCreated, result)
}

func respondStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httpx.RespondError(w, http.StatusNotFound, err)
	case errors.Is(err, storage.ErrInvalidID):
		httpx.RespondError(w, http.StatusBadRequest, err)
	default:
		httpx.RespondError(w, http.StatusInternalServerError, err)
	}
}
