package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/orderhubapp/orderhub/internal/apperr"
)

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.KindNotFound, http.StatusNotFound},
		{apperr.KindInvalidArgument, http.StatusBadRequest},
		{apperr.KindInvalidState, http.StatusUnprocessableEntity},
		{apperr.KindInvalidTransition, http.StatusUnprocessableEntity},
		{apperr.KindConflict, http.StatusConflict},
		{apperr.KindForbidden, http.StatusForbidden},
		{apperr.KindUpstreamFailure, http.StatusBadGateway},
		{apperr.KindInternal, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := httpStatus(tc.kind); got != tc.want {
			t.Errorf("httpStatus(%s) = %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestRespondError_Envelope(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	respondError(rec, slog.New(slog.DiscardHandler), apperr.NotFound("no order found with ID abc"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var envelope failEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if envelope.Status != "fail" || envelope.Error.Kind != apperr.KindNotFound {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}
	if envelope.Error.Message != "no order found with ID abc" {
		t.Fatalf("message = %q", envelope.Error.Message)
	}
}

// Internal errors must not leak details to the client.
func TestRespondError_InternalIsOpaque(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	respondError(rec, slog.New(slog.DiscardHandler), apperr.New(apperr.KindInternal, "pgx: connection refused at 10.0.0.5"))

	var envelope failEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if envelope.Error.Message != "internal server error" {
		t.Fatalf("internal detail leaked: %q", envelope.Error.Message)
	}
}

func TestRespondSuccess_Envelope(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	respondSuccess(rec, slog.New(slog.DiscardHandler), http.StatusCreated, map[string]int{"n": 1})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if string(envelope["status"]) != `"success"` {
		t.Fatalf("status field = %s", envelope["status"])
	}
	if string(envelope["data"]) != `{"n":1}` {
		t.Fatalf("data field = %s", envelope["data"])
	}
}
