package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
)

// Mock ResponseWriter that fails on Write
type failingResponseWriter struct {
	http.ResponseWriter
	writeCount int
}

func (f *failingResponseWriter) Write(b []byte) (int, error) {
	f.writeCount++
	return 0, errors.New("write failed")
}

func TestWriteJSON_EncodingFailure(t *testing.T) {
	w := httptest.NewRecorder()

	// A channel cannot be JSON encoded; the status must still be sent
	writeJSON(w, http.StatusOK, make(chan int))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Unexpected content type %q", ct)
	}
}

func TestWriteJSON_WriteFailure(t *testing.T) {
	fw := &failingResponseWriter{ResponseWriter: httptest.NewRecorder()}

	// Must not panic
	writeJSON(fw, http.StatusOK, map[string]string{"status": "ok"})

	if fw.writeCount == 0 {
		t.Error("Expected a write attempt")
	}
}

func TestWriteError_Shape(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, http.StatusBadRequest, `bad "input"`)

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body["error"] != `bad "input"` {
		t.Errorf("Unexpected error message %q", body["error"])
	}
	if len(body) != 1 {
		t.Errorf("Expected only the error field, got %v", body)
	}
}

func TestWriteServiceError_Mapping(t *testing.T) {
	h := &RestHandler{logger: zap.NewNop()}

	testCases := []struct {
		name string
		err  error
		code int
	}{
		{"invalid input", fmt.Errorf("target is required: %w", domain.ErrInvalidInput), http.StatusBadRequest},
		{"too large", fmt.Errorf("log: %w", domain.ErrPayloadTooLarge), http.StatusRequestEntityTooLarge},
		{"not found", fmt.Errorf("scan_1: %w", domain.ErrNotFound), http.StatusNotFound},
		{"internal", errors.New("connection refused to 10.0.0.5:5432"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.writeServiceError(w, tc.err)

			if w.Code != tc.code {
				t.Errorf("Expected %d, got %d", tc.code, w.Code)
			}
			if tc.code == http.StatusInternalServerError && strings.Contains(w.Body.String(), "10.0.0.5") {
				t.Error("Internal error details leaked to the client")
			}
		})
	}
}

func TestWriteJSON_EncodingEdgeCases(t *testing.T) {
	testCases := []struct {
		name string
		data interface{}
	}{
		{"nil", nil},
		{"empty map", map[string]string{}},
		{"empty slice", []string{}},
		{"unicode", "Hello 世界 🌍"},
		{"special chars", `"quotes" and \backslashes\`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeJSON(w, http.StatusOK, tc.data)

			if !json.Valid(w.Body.Bytes()) {
				t.Errorf("Invalid JSON written: %q", w.Body.String())
			}
		})
	}
}
