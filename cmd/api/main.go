package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"aibridge.io/internal/annotation"
	"aibridge.io/internal/audit"
	"aibridge.io/internal/auth"
	"aibridge.io/internal/authz"
	"aibridge.io/internal/bridge"
	"aibridge.io/internal/cache"
	"aibridge.io/internal/config"
	"aibridge.io/internal/dashboard"
	"aibridge.io/internal/httpapi"
	"aibridge.io/internal/migrate"
	"aibridge.io/internal/obs"
	"aibridge.io/internal/ratelimit"
	"aibridge.io/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	if err := run(*configPath); err != nil {
		obs.Error("gateway exited", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

// stores pairs the credential store with the directory it resolves against.
type stores struct {
	creds auth.Store
	dir   auth.Directory
	pg    *pg.Store
}

func run(configPath string) error {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	if st.pg != nil {
		defer st.pg.Close()
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}

	limiter := newLimiter(ctx, cfg, rdb)

	hub := audit.NewHub()
	sinks := []audit.Sink{hub}
	if cfg.Audit.Sink == "log" || cfg.Audit.Sink == "both" {
		sinks = append(sinks, audit.LogSink{})
	}
	if st.pg != nil && (cfg.Audit.Sink == "postgres" || cfg.Audit.Sink == "both") {
		sinks = append(sinks, pg.NewAuditSink(st.pg.DB()))
	}
	recorder := audit.New(cfg.Audit.QueueSize, sinks...)

	creds, err := auth.NewService(st.creds, auth.WithDirectory(st.dir))
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenIssuer(cfg.Auth.TokenSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	engine, err := annotation.New(annotation.Options{
		BaseURL:      cfg.Annotation.BaseURL,
		ServiceToken: cfg.Annotation.ServiceToken,
		Timeout:      cfg.Annotation.Timeout,
		RPS:          cfg.Annotation.RPS,
		Burst:        cfg.Annotation.Burst,
	})
	if err != nil {
		return err
	}
	br := bridge.New(engine, recorder,
		bridge.WithMaxTTL(cfg.Bridge.MaxTTL),
		bridge.WithRetry(cfg.Bridge.MaxAttempts, cfg.Bridge.BaseBackoff),
		bridge.WithFlightTimeout(cfg.Bridge.FlightTimeout),
	)
	creds.SetRevoker(br)
	go br.Run(ctx, cfg.Bridge.SweepInterval)

	authorizer := authz.New(st.dir, recorder)
	dash := dashboard.New(st.dir, authorizer, cache.NewCache(ctx, rdb), cfg.Dashboard.CacheTTL)

	trusted, err := cfg.Server.TrustedProxyPrefixes()
	if err != nil {
		return err
	}
	var probe httpapi.ReadyProbe
	if st.pg != nil {
		probe.DB = st.pg.DB()
	}
	api := httpapi.New(httpapi.Deps{
		Credentials: creds,
		Tokens:      tokens,
		Limiter:     limiter,
		Authz:       authorizer,
		Bridge:      br,
		Audit:       recorder,
		AuditHub:    hub,
		Dashboard:   dash,
		Engine:      engine,
		Ready:       probe,
		Version:     version,
		CORSOrigins: cfg.Server.CORSOrigins,
		MaxBody:     cfg.Server.MaxBodyBytes,

		TrustedProxies: trusted,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	health := httpapi.NewGRPCServer(probe)
	grpcSrv := grpc.NewServer()
	health.Register(grpcSrv)
	go health.Run(ctx, 10*time.Second)

	errCh := make(chan error, 2)
	go func() {
		obs.Info("http listening", map[string]any{"addr": srv.Addr, "version": version})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http listen: %w", err)
		}
	}()
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		go func() {
			obs.Info("grpc listening", map[string]any{"addr": cfg.Server.GRPCAddr})
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("grpc serve: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		stop()
		obs.Error("server failed", map[string]any{"error": err.Error()})
	}
	obs.Info("shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	grpcSrv.GracefulStop()
	if err := recorder.Close(shutdownCtx); err != nil {
		obs.Warn("audit drain incomplete", map[string]any{"error": err.Error()})
	}
	obs.Info("stopped", nil)
	return nil
}

func openStores(ctx context.Context, cfg *config.Config) (stores, error) {
	if cfg.Database.DSN == "" {
		obs.Warn("no database configured, using in-memory store", nil)
		mem := auth.NewMemoryStore()
		return stores{creds: mem, dir: mem}, nil
	}
	store, err := pg.Open(cfg.Database.DSN, pg.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return stores{}, fmt.Errorf("open db: %w", err)
	}
	if cfg.Database.MigrateOnStart {
		applied, err := migrate.NewManager(store.DB(), migrate.Migrations()).Up(ctx)
		if err != nil {
			_ = store.Close()
			return stores{}, fmt.Errorf("migrate: %w", err)
		}
		if len(applied) > 0 {
			obs.Info("migrations applied", map[string]any{"migrations": applied})
		}
	}
	return stores{creds: store, dir: store, pg: store}, nil
}

func newLimiter(ctx context.Context, cfg *config.Config, rdb *redis.Client) ratelimit.Limiter {
	if cfg.RateLimit.Backend == "redis" && rdb != nil {
		l := ratelimit.NewRedis(rdb, cfg.RateLimit.Limit, cfg.RateLimit.Window)
		go l.Fallback.Run(ctx, time.Minute)
		return l
	}
	mem := ratelimit.NewMemory(cfg.RateLimit.Limit, cfg.RateLimit.Window)
	go mem.Run(ctx, time.Minute)
	return mem
}
