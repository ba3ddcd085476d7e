package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// testMiddlewareLogger returns a silent logger for tests
func testMiddlewareLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("generates an id", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		if seen == "" || len(seen) != 36 {
			t.Errorf("generated id = %q, want a uuid", seen)
		}
		if w.Header().Get("X-Request-ID") != seen {
			t.Errorf("header = %q, want %q", w.Header().Get("X-Request-ID"), seen)
		}
	})

	t.Run("keeps the caller's id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if seen != "abc-123" || w.Header().Get("X-Request-ID") != "abc-123" {
			t.Errorf("id = %q, header = %q", seen, w.Header().Get("X-Request-ID"))
		}
	})
}

func TestGetRequestIDMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := GetRequestID(req.Context()); got != "" {
		t.Errorf("GetRequestID() = %q, want empty", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(testMiddlewareLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want INTERNAL_ERROR", resp.Code)
	}
}

func TestLoggingMiddlewareCapturesStatus(t *testing.T) {
	var captured int
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		if rw, ok := w.(*responseWriter); ok {
			captured = rw.statusCode
		}
	})

	w := httptest.NewRecorder()
	LoggingMiddleware(testMiddlewareLogger())(inner).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if w.Code != http.StatusTeapot || captured != http.StatusTeapot {
		t.Errorf("status = %d, captured = %d, want 418", w.Code, captured)
	}
}

func TestResponseWriterDefaultStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec}

	if _, err := rw.Write([]byte("ok")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if rw.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d, want 200", rw.statusCode)
	}
}

func TestRequestIDMiddlewareReplacesOversizedID(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", maxRequestIDLength+1))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if len(seen) != 36 {
		t.Errorf("id = %q, want a generated uuid", seen)
	}
}

func TestResponseLevel(t *testing.T) {
	tests := []struct {
		status int
		want   slog.Level
	}{
		{http.StatusOK, slog.LevelInfo},
		{http.StatusAccepted, slog.LevelInfo},
		{http.StatusNotFound, slog.LevelWarn},
		{http.StatusConflict, slog.LevelWarn},
		{StatusClientClosedRequest, slog.LevelDebug},
		{http.StatusInternalServerError, slog.LevelError},
		{http.StatusServiceUnavailable, slog.LevelError},
	}

	for _, tt := range tests {
		if got := responseLevel(tt.status); got != tt.want {
			t.Errorf("responseLevel(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestResponseWriterCountsBytes(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	rw.Write([]byte("hello "))
	rw.Write([]byte("world"))

	if rw.written != 11 {
		t.Errorf("written = %d, want 11", rw.written)
	}
	if rw.Unwrap() == nil {
		t.Error("Unwrap() returned nil")
	}
}
