package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/orderhubapp/orderhub/internal/apperr"
)

type successEnvelope struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

type failEnvelope struct {
	Status string    `json:"status"`
	Error  errorBody `json:"error"`
}

type errorBody struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

// httpStatus maps each failure kind to exactly one HTTP status code.
func httpStatus(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidArgument:
		return http.StatusBadRequest
	case apperr.KindInvalidState, apperr.KindInvalidTransition:
		return http.StatusUnprocessableEntity
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindUpstreamFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondSuccess(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(successEnvelope{Status: "success", Data: data}); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// respondError translates a service error into the fail envelope. Internal
// details never leak: unknown errors get a generic message and a log line.
func respondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := apperr.KindOf(err)
	message := err.Error()
	if kind == apperr.KindInternal {
		logger.Error("request failed", "error", err)
		message = "internal server error"
	} else if kind == apperr.KindUpstreamFailure {
		logger.Warn("upstream dependency failed", "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus(kind))
	if err := json.NewEncoder(w).Encode(failEnvelope{
		Status: "fail",
		Error:  errorBody{Kind: kind, Message: message},
	}); err != nil {
		logger.Error("failed to encode error response", "error", err)
	}
}

func respondInvalidBody(w http.ResponseWriter, logger *slog.Logger, err error) {
	respondError(w, logger, apperr.InvalidArgument("%s", err.Error()))
}
