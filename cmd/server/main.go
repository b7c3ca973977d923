package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/moneyclicker/idle-engine/internal/api"
	"github.com/moneyclicker/idle-engine/internal/catalog"
	"github.com/moneyclicker/idle-engine/internal/clock"
	"github.com/moneyclicker/idle-engine/internal/config"
	"github.com/moneyclicker/idle-engine/internal/engine"
	"github.com/moneyclicker/idle-engine/internal/metrics"
	"github.com/moneyclicker/idle-engine/internal/model"
	"github.com/moneyclicker/idle-engine/internal/news"
	"github.com/moneyclicker/idle-engine/internal/rng"
	"github.com/moneyclicker/idle-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	// --- Catalog and balance ---
	cat := catalog.Default()
	if cfg.CatalogFile != "" {
		if cat, err = catalog.Load(cfg.CatalogFile); err != nil {
			slog.Error("catalog load failed", "err", err)
			os.Exit(1)
		}
		slog.Info("catalog loaded", "file", cfg.CatalogFile, "boosters", len(cat.Boosters), "skills", len(cat.Skills))
	}
	bal := config.DefaultBalance()
	if cfg.BalanceFile != "" {
		if bal, err = config.LoadBalance(cfg.BalanceFile); err != nil {
			slog.Error("balance load failed", "err", err)
			os.Exit(1)
		}
		slog.Info("balance loaded", "file", cfg.BalanceFile)
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	switch {
	case cfg.DatabaseURL != "":
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresStore(pool)
		if err := pg.Migrate(context.Background()); err != nil {
			slog.Error("database migration failed", "err", err)
			os.Exit(1)
		}
		st = pg
		slog.Info("connected to PostgreSQL")
	case cfg.SQLitePath != "":
		lite, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			slog.Error("sqlite open failed", "path", cfg.SQLitePath, "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, func() { lite.Close() })
		st = lite
		slog.Info("using SQLite save file", "path", cfg.SQLitePath)
	default:
		slog.Warn("DATABASE_URL and SQLITE_PATH not set, using in-memory store (saves will not persist)")
		st = store.NewMemoryStore()
	}

	// Wrap with Redis read-through cache if configured.
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		st = store.NewCachedStore(st, rdb, cfg.CacheTTL)
		slog.Info("Redis cache enabled", "ttl", cfg.CacheTTL)
	}

	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	// --- Headlines ---
	var gen news.Generator
	if cfg.NewsAPIURL != "" {
		gen = news.NewHTTPGenerator(cfg.NewsAPIURL, cfg.NewsAPIKey, cfg.NewsModel)
		slog.Info("headline generator enabled", "url", cfg.NewsAPIURL, "model", cfg.NewsModel)
	} else {
		slog.Warn("NEWS_API_URL not set, showing fallback headlines only")
	}
	policy := news.Policy{Cooldown: bal.NewsCooldown, Blackout: bal.NewsBlackout, Timeout: bal.NewsTimeout}

	// --- WebSocket hub ---
	wsHub := api.NewWSHub()
	go wsHub.Run()

	// --- Sessions ---
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	var spawned atomic.Uint64
	clk := clock.Real{}
	timing := engine.Timing{Tick: cfg.TickInterval, Save: cfg.SaveInterval, Rotation: bal.FallbackRotation}

	factory := func(id string) *engine.Session {
		src := rng.New(seed + spawned.Add(1))
		e := engine.New(engine.NewGame(cat, bal, src), clk)
		e.Subscribe(engine.NotifierFunc(func(s model.Snapshot) { wsHub.Broadcast(id, s) }))
		var ns *news.Service
		if gen != nil {
			ns = news.NewService(gen, policy, clk, rng.New(seed+spawned.Add(1)))
		}
		return engine.NewSession(id, e, st, ns, clk, timing)
	}

	baseCtx, stopSessions := context.WithCancel(context.Background())
	defer stopSessions()
	sessions := api.NewRegistry(baseCtx, factory)
	svc := api.NewService(sessions, cat, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","service":"idle-engine","sessions":%d,"ws_clients":%d}`,
			sessions.Len(), wsHub.Clients())
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", svc.Routes)

	// --- Server ---
	// No write timeout: headline requests may block up to the news timeout
	// and websocket connections are long-lived.
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		slog.Info("idle-engine listening", "port", cfg.Port, "tick", cfg.TickInterval, "save", cfg.SaveInterval)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("shutting down idle-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	if err := sessions.StopAll(ctx); err != nil {
		slog.Error("final saves incomplete", "err", err)
	}
	fmt.Println("idle-engine stopped")
}
