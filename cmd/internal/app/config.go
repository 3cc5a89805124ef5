package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// Persistence. DatabaseURL wins when both are set; with neither, the
	// server runs on the in-memory store.
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	SQLitePath  string

	// Path to a Firebase service account JSON file. Empty disables push
	// notifications (a logging no-op gateway is used instead).
	FCMCredentialsFile string

	// Realtime tuning.
	RingTimeout   time.Duration
	SweepInterval time.Duration
	StaleAfter    time.Duration

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("CHATCALL_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("CHATCALL_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("CHATCALL_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("CHATCALL_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("CHATCALL_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("CHATCALL_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("CHATCALL_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("CHATCALL_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("CHATCALL_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("CHATCALL_DB_MIN_CONNS", 0),
		SQLitePath:  EnvString("CHATCALL_SQLITE_PATH", ""),

		FCMCredentialsFile: EnvString("CHATCALL_FCM_CREDENTIALS_FILE", ""),

		RingTimeout:   EnvDuration("CHATCALL_CALL_RING_TIMEOUT", 30*time.Second),
		SweepInterval: EnvDuration("CHATCALL_PRESENCE_SWEEP_INTERVAL", 15*time.Second),
		StaleAfter:    EnvDuration("CHATCALL_PRESENCE_STALE_AFTER", 45*time.Second),

		ReadinessRequireDB: EnvBool("CHATCALL_READINESS_REQUIRE_DB", false),
	}
}
