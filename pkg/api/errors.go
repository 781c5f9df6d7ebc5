package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/nicktill/heatcycle/pkg/config"
	"github.com/nicktill/heatcycle/pkg/cycles"
	"github.com/nicktill/heatcycle/pkg/history"
	"github.com/nicktill/heatcycle/pkg/httpx"
	"github.com/nicktill/heatcycle/pkg/server/monitor"
	"github.com/nicktill/heatcycle/pkg/storage"
)

// StatusFor maps an error from extraction or storage to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, cycles.ErrInvalidConfig), errors.Is(err, storage.ErrInvalidID), errors.Is(err, httpx.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, config.ErrUnknownDevice):
		return http.StatusNotFound
	case errors.Is(err, cycles.ErrNoValidCycles):
		return http.StatusUnprocessableEntity
	case errors.Is(err, cycles.ErrStatisticsUnavailable):
		return http.StatusNotImplemented
	case errors.Is(err, history.ErrConnection):
		return http.StatusServiceUnavailable
	case errors.Is(err, monitor.ErrStorageFull):
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, err error) {
	httpx.RespondError(w, StatusFor(err), err)
}
