package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]string{"a": "b"})
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
}

func TestKindStatus(t *testing.T) {
	tests := []struct {
		kind   Kind
		status int
		label  string
	}{
		{KindMissingFile, http.StatusBadRequest, "missing_file"},
		{KindEngineFailure, http.StatusInternalServerError, "engine_error"},
	}
	for _, tt := range tests {
		if got := tt.kind.Status(); got != tt.status {
			t.Errorf("%v.Status() = %d, want %d", tt.kind, got, tt.status)
		}
		if got := tt.kind.String(); got != tt.label {
			t.Errorf("String() = %q, want %q", got, tt.label)
		}
	}
}

func TestWriteAPIError(t *testing.T) {
	t.Run("missing_file", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteAPIError(rec, missingFile())
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		var body ErrorResponse
		json.Unmarshal(rec.Body.Bytes(), &body)
		if body.Error != "No audio file provided" {
			t.Errorf("error = %q", body.Error)
		}
	})

	t.Run("wrapped_engine_failure_keeps_message", func(t *testing.T) {
		cause := errors.New("model exploded")
		err := fmt.Errorf("handler: %w", engineFailure(cause))
		if !errors.Is(err, cause) {
			t.Error("cause should be reachable via errors.Is")
		}
		rec := httptest.NewRecorder()
		WriteAPIError(rec, err)
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		var body ErrorResponse
		json.Unmarshal(rec.Body.Bytes(), &body)
		if body.Error != "handler: model exploded" {
			t.Errorf("error = %q", body.Error)
		}
	})

	t.Run("untyped_error_is_500", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteAPIError(rec, errors.New("plain"))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}
