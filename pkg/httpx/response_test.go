package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondError(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, http.StatusUnprocessableEntity, errors.New("no valid heating cycles found"))

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Unprocessable Entity", resp.Error)
	assert.Equal(t, "no valid heating cycles found", resp.Message)
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		DeviceID string `json:"device_id"`
	}

	tests := []struct {
		name    string
		payload string
		max     int64
		wantErr bool
	}{
		{"valid", `{"device_id":"office"}`, 1024, false},
		{"empty", ``, 1024, true},
		{"malformed", `{"device_id":`, 1024, true},
		{"too large", `{"device_id":"office"}`, 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/", strings.NewReader(tt.payload))
			var got body
			err := DecodeJSON(httptest.NewRecorder(), req, tt.max, &got)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "office", got.DeviceID)
		})
	}
}
