package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/motion-control/mcc/internal/actuator"
	"github.com/motion-control/mcc/internal/fleet"
)

// Response is the unified envelope for every JSON endpoint.
type Response struct {
	Result        string      `json:"result"`
	Data          interface{} `json:"data,omitempty"`
	Code          string      `json:"code,omitempty"`
	Message       string      `json:"message,omitempty"`
	Details       interface{} `json:"details,omitempty"`
	CorrelationID string      `json:"correlationId"`
}

// Normalized error codes.
const (
	CodeInvalidRange     = "INVALID_RANGE"
	CodeBadRequest       = "BAD_REQUEST"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeUnavailable      = "UNAVAILABLE"
	CodeInternal         = "INTERNAL"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

// WriteSuccess writes the success envelope around data.
func WriteSuccess(w http.ResponseWriter, data interface{}) {
	writeResponse(w, http.StatusOK, &Response{
		Result:        "ok",
		Data:          data,
		CorrelationID: generateCorrelationID(),
	})
}

// WriteError writes the error envelope.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details interface{}) {
	writeResponse(w, statusCode, &Response{
		Result:        "error",
		Code:          code,
		Message:       message,
		Details:       details,
		CorrelationID: generateCorrelationID(),
	})
}

// WriteDomainError maps actuator and fleet errors onto normalized
// codes and status lines.
func WriteDomainError(w http.ResponseWriter, err error) {
	var rangeErr *actuator.RangeError
	var connectErr *actuator.ConnectError
	var transmitErr *actuator.TransmitError

	switch {
	case errors.As(err, &rangeErr):
		WriteError(w, http.StatusBadRequest, CodeInvalidRange, err.Error(), map[string]interface{}{
			"field": rangeErr.Field,
			"value": rangeErr.Value,
			"min":   rangeErr.Min,
			"max":   rangeErr.Max,
		})
	case errors.Is(err, actuator.ErrInvalidToken):
		WriteError(w, http.StatusBadRequest, CodeInvalidRange, err.Error(), nil)
	case errors.Is(err, fleet.ErrUnknownSlot):
		WriteError(w, http.StatusNotFound, CodeNotFound, "No motor on that slot", nil)
	case errors.Is(err, actuator.ErrAlreadyConnected),
		errors.Is(err, actuator.ErrSlotAssigned),
		errors.Is(err, fleet.ErrDeviceInUse):
		WriteError(w, http.StatusConflict, CodeConflict, err.Error(), nil)
	case errors.Is(err, actuator.ErrNotConnected):
		WriteError(w, http.StatusServiceUnavailable, CodeUnavailable, err.Error(), nil)
	case errors.As(err, &connectErr), errors.As(err, &transmitErr):
		WriteError(w, http.StatusServiceUnavailable, CodeUnavailable, err.Error(), nil)
	default:
		WriteError(w, http.StatusInternalServerError, CodeInternal, "Internal server error", nil)
	}
}

func writeResponse(w http.ResponseWriter, statusCode int, response *Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		fmt.Fprintf(w, "{\"result\":\"error\",\"code\":\"INTERNAL\"}")
	}
}

func generateCorrelationID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
