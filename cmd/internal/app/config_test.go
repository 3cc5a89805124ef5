package app

import (
	"testing"
	"time"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("CHATCALL_TEST_STR", "  hello  ")
	t.Setenv("CHATCALL_TEST_BOOL", "true")
	t.Setenv("CHATCALL_TEST_INT", "42")
	t.Setenv("CHATCALL_TEST_INT_BAD", "-5")
	t.Setenv("CHATCALL_TEST_DUR", "90s")

	if got := EnvString("CHATCALL_TEST_STR", "def"); got != "hello" {
		t.Errorf("EnvString = %q", got)
	}
	if got := EnvString("CHATCALL_TEST_MISSING", "def"); got != "def" {
		t.Errorf("EnvString default = %q", got)
	}
	if !EnvBool("CHATCALL_TEST_BOOL", false) {
		t.Error("EnvBool did not parse true")
	}
	if got := EnvInt("CHATCALL_TEST_INT", 1); got != 42 {
		t.Errorf("EnvInt = %d", got)
	}
	if got := EnvInt("CHATCALL_TEST_INT_BAD", 7); got != 7 {
		t.Errorf("EnvInt negative = %d, want default", got)
	}
	if got := EnvDuration("CHATCALL_TEST_DUR", time.Second); got != 90*time.Second {
		t.Errorf("EnvDuration = %v", got)
	}
	if got := EnvDuration("CHATCALL_TEST_MISSING", time.Second); got != time.Second {
		t.Errorf("EnvDuration default = %v", got)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.RingTimeout != 30*time.Second {
		t.Errorf("RingTimeout = %v", cfg.RingTimeout)
	}
	if cfg.SweepInterval != 15*time.Second {
		t.Errorf("SweepInterval = %v", cfg.SweepInterval)
	}
	if cfg.StaleAfter != 45*time.Second {
		t.Errorf("StaleAfter = %v", cfg.StaleAfter)
	}
	if cfg.DatabaseURL != "" || cfg.SQLitePath != "" {
		t.Error("persistence configured by default")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("CHATCALL_HTTP_ADDR", "127.0.0.1:9999")
	t.Setenv("CHATCALL_CALL_RING_TIMEOUT", "10s")
	t.Setenv("CHATCALL_SQLITE_PATH", "/tmp/chatcall.db")

	cfg := LoadConfig()
	if cfg.HTTPAddr != "127.0.0.1:9999" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.RingTimeout != 10*time.Second {
		t.Errorf("RingTimeout = %v", cfg.RingTimeout)
	}
	if cfg.SQLitePath != "/tmp/chatcall.db" {
		t.Errorf("SQLitePath = %q", cfg.SQLitePath)
	}
}
