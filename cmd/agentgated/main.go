// Command agentgated is the control plane process: one HTTP server
// exposing both the agent-facing request/plan/execute surface and the
// admin-facing approval, settings, and audit surface.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/actionhost/agentgate/internal/audit"
	"github.com/actionhost/agentgate/internal/authn"
	"github.com/actionhost/agentgate/internal/cache"
	"github.com/actionhost/agentgate/internal/capability"
	"github.com/actionhost/agentgate/internal/config"
	"github.com/actionhost/agentgate/internal/domain"
	"github.com/actionhost/agentgate/internal/httpapi"
	"github.com/actionhost/agentgate/internal/orchestrator"
	"github.com/actionhost/agentgate/internal/ratelimit"
	"github.com/actionhost/agentgate/internal/store"
	"github.com/actionhost/agentgate/internal/store/postgres"
	"github.com/actionhost/agentgate/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "agentgated: load config: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agentgated: build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.Database.DatabasePath == "" {
		log.Fatal("database.database_path (DATABASE_PATH) is required")
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pg, err := postgres.Open(connectCtx, cfg.Database.DatabasePath, cfg.Database.MaxConns, cfg.Database.MinConns)
	cancel()
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pg.Close()
	var st store.Store = pg

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	metrics := telemetry.New(reg)

	registry := capability.NewRegistry(log)
	capability.RegisterBuiltins(registry)

	auditLog := audit.New(st)
	limiter := ratelimit.New(cfg.Policy.RateLimitPerSec, cfg.Policy.RateLimitBurst)
	orch := orchestrator.New(st, registry, auditLog, limiter, log).WithMetrics(metrics)

	if cfg.Policy.SandboxPath != "" {
		if err := os.MkdirAll(cfg.Policy.SandboxPath, 0o755); err != nil {
			log.Fatal("create sandbox directory", zap.Error(err), zap.String("path", cfg.Policy.SandboxPath))
		}
	}

	if err := seedPolicyDefaults(context.Background(), st, cfg); err != nil {
		log.Fatal("seed policy defaults", zap.Error(err))
	}
	if err := bootstrapAdmin(context.Background(), st, cfg.Auth.BcryptCost, log); err != nil {
		log.Fatal("bootstrap admin user", zap.Error(err))
	}

	settingsCache := cache.New(rdb, log, func(ctx context.Context) (map[string]interface{}, error) {
		settings, err := st.ListSettings(ctx)
		if err != nil {
			return nil, err
		}
		values := make(map[string]interface{}, len(settings))
		for _, s := range settings {
			values[s.Key] = s.Value
		}
		return values, nil
	})

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	if err := settingsCache.Reload(watchCtx); err != nil {
		log.Warn("initial settings cache reload failed", zap.Error(err))
	}
	go settingsCache.Watch(watchCtx)

	session, err := buildSessionIssuer(cfg, log)
	if err != nil {
		log.Fatal("build session issuer", zap.Error(err))
	}
	server := httpapi.New(st, orch, session, log)

	go serveMetrics(cfg.Server.MetricsPort, reg, log)

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("agentgated listening", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	<-stop
	log.Info("agentgated shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	log.Info("agentgated exited")
}

func newLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	zcfg := zap.NewProductionConfig()
	if format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(zapLevel)
	return zcfg.Build()
}

// buildSessionIssuer signs admin sessions with RS256 when a keypair is
// configured, falling back to HS256 over SESSION_SECRET otherwise.
func buildSessionIssuer(cfg *config.Config, log *zap.Logger) (*authn.SessionIssuer, error) {
	if cfg.Auth.PrivateKeyPath == "" || cfg.Auth.PublicKeyPath == "" {
		return authn.NewSessionIssuer(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL), nil
	}

	privPEM, err := os.ReadFile(cfg.Auth.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	pubPEM, err := os.ReadFile(cfg.Auth.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}

	issuer, err := authn.NewRSASessionIssuer(privPEM, pubPEM, cfg.Auth.SessionTTL)
	if err != nil {
		log.Warn("invalid RSA session keypair, falling back to HMAC", zap.Error(err))
		return authn.NewSessionIssuer(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL), nil
	}
	log.Info("admin sessions signed with RS256", zap.String("public_key_path", cfg.Auth.PublicKeyPath))
	return issuer, nil
}

func serveMetrics(port int, reg *prometheus.Registry, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	addr := fmt.Sprintf(":%d", port)
	log.Info("metrics listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		log.Error("metrics server stopped", zap.Error(err))
	}
}

// seedPolicyDefaults writes the configured policy defaults into the
// settings table the first time agentgated starts against a fresh
// database, so safe mode and the shell allowlist are never unset.
func seedPolicyDefaults(ctx context.Context, st store.Store, cfg *config.Config) error {
	if _, err := st.GetSetting(ctx, domain.SettingSafeMode); err == store.ErrNotFound {
		if err := st.SetSetting(ctx, domain.Setting{Key: domain.SettingSafeMode, Value: cfg.Policy.SafeMode}); err != nil {
			return err
		}
	}
	if _, err := st.GetSetting(ctx, domain.SettingShellAllowlist); err == store.ErrNotFound {
		allow := make([]interface{}, len(cfg.Policy.ShellAllowList))
		for i, p := range cfg.Policy.ShellAllowList {
			allow[i] = p
		}
		if err := st.SetSetting(ctx, domain.Setting{Key: domain.SettingShellAllowlist, Value: allow}); err != nil {
			return err
		}
	}
	if cfg.Policy.SandboxPath == "" {
		return nil
	}
	if _, err := st.GetSetting(ctx, domain.SettingAllowedRoots); err == store.ErrNotFound {
		return st.SetSetting(ctx, domain.Setting{Key: domain.SettingAllowedRoots, Value: []interface{}{cfg.Policy.SandboxPath}})
	}
	return nil
}

// bootstrapAdmin creates the first admin user from ADMIN_BOOTSTRAP_USERNAME
// and ADMIN_BOOTSTRAP_PASSWORD if no admin user exists yet. Leaving either
// variable unset skips bootstrap silently, since most restarts hit an
// already-provisioned database.
func bootstrapAdmin(ctx context.Context, st store.Store, bcryptCost int, log *zap.Logger) error {
	username := os.Getenv("ADMIN_BOOTSTRAP_USERNAME")
	password := os.Getenv("ADMIN_BOOTSTRAP_PASSWORD")
	if username == "" || password == "" {
		return nil
	}
	if _, err := st.GetAdminUserByUsername(ctx, username); err == nil {
		return nil
	}

	hash, err := authn.HashPassword(password, bcryptCost)
	if err != nil {
		return err
	}
	if err := st.CreateAdminUser(ctx, domain.AdminUser{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}); err != nil {
		return err
	}
	log.Info("bootstrapped admin user", zap.String("username", username))
	return nil
}
