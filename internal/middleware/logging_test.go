package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/evyataryagoni/geocoder/internal/logger"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// TestLoggingMiddleware tests the completion line and the request-scoped logger
func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Level: "info", Output: &buf})

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(LoggingMiddleware(log))
	r.Get("/v1/geocode", func(w http.ResponseWriter, r *http.Request) {
		if logger.FromContext(r.Context(), nil) == nil {
			t.Error("expected a request logger in the context")
		}
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/geocode?q=Rosario", nil)
	req.Header.Set("X-Real-IP", "203.0.113.7")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected one JSON log line, got %q: %v", buf.String(), err)
	}

	if line["level"] != "warn" {
		t.Errorf("expected warn level for a 404, got %v", line["level"])
	}
	if line["route"] != "/v1/geocode" {
		t.Errorf("expected route /v1/geocode, got %v", line["route"])
	}
	if line["q"] != "Rosario" {
		t.Errorf("expected q Rosario, got %v", line["q"])
	}
	if line["ip"] != "203.0.113.7" {
		t.Errorf("expected ip 203.0.113.7, got %v", line["ip"])
	}
	if line["request_id"] == nil || line["request_id"] == "" {
		t.Error("expected a request_id")
	}
	if status, _ := line["status"].(float64); status != http.StatusNotFound {
		t.Errorf("expected status 404, got %v", line["status"])
	}
}
