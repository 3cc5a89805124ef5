package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithRequestLoggingPreservesStatus(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := WithRequestLogging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}), log)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/teapot", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	if rec.Body.String() != "short and stout" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestLoggingResponseWriterUnwrap(t *testing.T) {
	t.Parallel()

	// Websocket upgrades reach the underlying writer via Unwrap/Hijacker;
	// losing that breaks /ws behind the logging middleware.
	inner := httptest.NewRecorder()
	lrw := &loggingResponseWriter{ResponseWriter: inner, status: http.StatusOK}

	if lrw.Unwrap() != inner {
		t.Fatal("Unwrap did not return the wrapped writer")
	}
	if _, _, err := lrw.Hijack(); err == nil {
		t.Fatal("Hijack on a non-hijackable writer did not error")
	}
}
