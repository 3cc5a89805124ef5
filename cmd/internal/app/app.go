// Package app wires the chatcall server runtime: config, logging, HTTP
// routes, stores, push, and the realtime websocket gateway.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MuhammadKomail/Chat-And-Calling-Socket-Backend/cmd/internal/realtime"
)

// App is the server runtime. It owns the HTTP server, the persistence
// layer, and the realtime component graph behind the websocket gateway.
type App struct {
	cfg Config
	log Logger

	store realtime.Store

	dbPool    *pgxpool.Pool
	dbEnabled bool

	presence *realtime.Presence

	ws *realtime.WSGateway
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	store, dbPool, dbEnabled, err := newStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	push, err := newPushGateway(context.Background(), cfg, log)
	if err != nil {
		store.Close()
		if dbPool != nil {
			dbPool.Close()
		}
		return nil, err
	}

	hub := realtime.NewHub(log)
	sessions := realtime.NewSessions(log, store)
	presence := realtime.NewPresence(log, sessions, cfg.SweepInterval, cfg.StaleAfter)
	rooms := realtime.NewActiveRooms()
	calls := realtime.NewCalls(log, sessions, presence, store, push, cfg.RingTimeout)
	relay := realtime.NewRelay(log, sessions)
	deliverer := realtime.NewDeliverer(log, hub, sessions, rooms, store, push)

	ws := realtime.NewWSGateway(log, realtime.WSGatewayDeps{
		Hub:       hub,
		Sessions:  sessions,
		Presence:  presence,
		Rooms:     rooms,
		Calls:     calls,
		Relay:     relay,
		Deliverer: deliverer,
		Store:     store,
	})

	return &App{
		cfg:       cfg,
		log:       log,
		store:     store,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		presence:  presence,
		ws:        ws,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal
// server error.
func (a *App) Run(ctx context.Context) error {
	a.presence.StartSweeper(ctx)

	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.ws)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.store.Close(); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}
	if a.dbPool != nil {
		a.dbPool.Close()
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newStore picks the persistence backend: Postgres when a database URL is
// configured, SQLite when a file path is, in-memory otherwise.
func newStore(ctx context.Context, cfg Config, log Logger) (realtime.Store, *pgxpool.Pool, bool, error) {
	switch {
	case cfg.DatabaseURL != "":
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, nil, false, err
		}

		// Ownership model:
		// - app owns pool lifecycle
		// - PostgresStore.Close() is a no-op
		store, err := realtime.NewPostgresStore(pool)
		if err != nil {
			pool.Close()
			return nil, nil, false, err
		}

		log.Info("db.enabled.postgres_store")
		return store, pool, true, nil

	case cfg.SQLitePath != "":
		store, err := realtime.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, false, err
		}

		log.Info("db.enabled.sqlite_store", "path", cfg.SQLitePath)
		return store, nil, true, nil

	default:
		log.Info("db.disabled.inmemory_store")
		return realtime.NewInMemoryStore(), nil, false, nil
	}
}

func newPushGateway(ctx context.Context, cfg Config, log Logger) (realtime.PushGateway, error) {
	if cfg.FCMCredentialsFile == "" {
		log.Info("push.disabled.nop_gateway")
		return realtime.NopPushGateway{Log: log}, nil
	}

	gw, err := realtime.NewFCMGateway(ctx, log, cfg.FCMCredentialsFile)
	if err != nil {
		return nil, err
	}

	log.Info("push.enabled.fcm_gateway")
	return gw, nil
}
