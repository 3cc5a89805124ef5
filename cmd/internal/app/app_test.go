package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func testAppLogger() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewInMemoryMode(t *testing.T) {
	cfg := Config{LogLevel: "error"}

	a, err := New(cfg, testAppLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.dbEnabled {
		t.Fatal("db enabled without configuration")
	}
	if a.ws == nil {
		t.Fatal("websocket gateway not wired")
	}
}

func TestNewSQLiteMode(t *testing.T) {
	cfg := Config{
		LogLevel:   "error",
		SQLitePath: filepath.Join(t.TempDir(), "chatcall.db"),
	}

	a, err := New(cfg, testAppLogger())
	if err != nil {
		t.Fatalf("New with sqlite: %v", err)
	}
	if !a.dbEnabled {
		t.Fatal("sqlite mode did not enable db")
	}
	if err := a.store.Close(); err != nil {
		t.Fatalf("close sqlite store: %v", err)
	}
}

func TestHealthEndpoints(t *testing.T) {
	mux := http.NewServeMux()
	a, err := New(Config{LogLevel: "error"}, testAppLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	registerHTTP(mux, a.log, a.cfg, nil, false, a.ws)

	for _, tc := range []struct {
		path string
		want int
	}{
		{path: "/healthz", want: http.StatusOK},
		{path: "/readyz", want: http.StatusOK},
		{path: "/metrics", want: http.StatusOK},
	} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", tc.path, nil))
		if rec.Code != tc.want {
			t.Errorf("%s = %d, want %d", tc.path, rec.Code, tc.want)
		}
	}
}

func TestReadyzRequiresDB(t *testing.T) {
	mux := http.NewServeMux()
	a, err := New(Config{LogLevel: "error", ReadinessRequireDB: true}, testAppLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	registerHTTP(mux, a.log, a.cfg, nil, false, a.ws)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz without db = %d, want 503", rec.Code)
	}
}
