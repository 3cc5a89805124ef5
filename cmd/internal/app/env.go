package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// The whole config surface is CHATCALL_* environment variables. Each helper
// falls back to its default on an empty, unparsable, or out-of-range value
// rather than failing startup; a bad knob should never keep the signaling
// server from coming up with its defaults.

func envRaw(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// EnvString reads a string env var with a default.
func EnvString(key, def string) string {
	if v := envRaw(key); v != "" {
		return v
	}
	return def
}

// EnvBool reads a bool env var with a default.
func EnvBool(key string, def bool) bool {
	v := envRaw(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// EnvInt reads a positive int env var with a default. Zero and negative
// values fall back too; none of the integer knobs (queue sizes, header
// limits, pool sizes) are meaningful at or below zero.
func EnvInt(key string, def int) int {
	v := envRaw(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// EnvInt32 reads a non-negative int32 env var with a default. Zero is kept,
// the pgx pool treats a zero min-conns as "no floor".
func EnvInt32(key string, def int32) int32 {
	v := envRaw(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil || n < 0 {
		return def
	}
	return int32(n)
}

// EnvDuration reads a positive duration env var with a default, in Go
// duration syntax ("30s", "2m").
func EnvDuration(key string, def time.Duration) time.Duration {
	v := envRaw(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
