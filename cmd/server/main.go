// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal service
// packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"fundgate/internal/audit"
	auditfile "fundgate/internal/audit/store/file"
	auditpg "fundgate/internal/audit/store/postgres"
	"fundgate/internal/executor/loopback"
	"fundgate/internal/executor/sequence"
	jwttoken "fundgate/internal/jwt_token"
	"fundgate/internal/platform/config"
	"fundgate/internal/platform/httpserver"
	"fundgate/internal/platform/logger"
	"fundgate/internal/platform/metrics"
	platformredis "fundgate/internal/platform/redis"
	"fundgate/internal/safeguard/gate"
	"fundgate/internal/safeguard/ports"
	"fundgate/internal/safeguard/quota"
	"fundgate/internal/safeguard/ratelimit"
	"fundgate/internal/safeguard/staging"
	bucketstore "fundgate/internal/safeguard/store/bucket"
	quotastore "fundgate/internal/safeguard/store/quota"
	stagingstore "fundgate/internal/safeguard/store/staging"
	httptransport "fundgate/internal/transport/http"
)

const (
	jwtIssuer   = "fundgate"
	jwtAudience = "fundgate-api"

	sweepInterval   = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	log := logger.New()

	cfg, err := config.Load(".")
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	m := metrics.New()

	ledger, closeLedger, err := buildLedger(cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	quotaStore, err := quotastore.NewFile(cfg.QuotaPath, quotastore.WithLogger(log))
	if err != nil {
		return err
	}
	quotas, err := quota.New(quotaStore, quota.WithLogger(log))
	if err != nil {
		return err
	}

	stagingRegistry, err := staging.New(stagingstore.NewMemory(), ledger, cfg.StagingTTL(), staging.WithLogger(log))
	if err != nil {
		return err
	}

	buckets, closeBuckets, err := buildBuckets(cfg, log)
	if err != nil {
		return err
	}
	defer closeBuckets()

	limiter, err := ratelimit.New(buckets, cfg.RateLimitMessages, cfg.RateLimitWindow(),
		ratelimit.WithLogger(log), ratelimit.WithLedger(ledger))
	if err != nil {
		return err
	}

	executor, err := buildExecutor(cfg, log)
	if err != nil {
		return err
	}

	g, err := gate.New(ledger, quotas, stagingRegistry, limiter, executor,
		gate.Limits{
			PerTransferCents:   cfg.PerTransferLimitCents,
			DailyIdentityCents: cfg.DailyLimitCents,
			DailyGlobalCents:   cfg.GlobalDailyCents,
		},
		gate.WithLogger(log),
		gate.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, jwtIssuer, jwtAudience)
	handler := httptransport.NewHandler(g, ledger, log, jwttoken.NewJWTServiceAdapter(jwtService))
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting fundgate", "addr", cfg.Addr, "audit_backend", cfg.AuditBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if swept, err := g.SweepExpired(ctx); err != nil {
					log.Warn("staging sweep failed", "error", err)
				} else if swept > 0 {
					log.Info("expired staged transfers", "count", swept)
				}
			}
		}
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func buildLedger(cfg config.Config) (audit.Ledger, func(), error) {
	switch cfg.AuditBackend {
	case "postgres":
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, err
		}
		if _, err := db.Exec(auditpg.Schema); err != nil {
			db.Close()
			return nil, nil, err
		}
		return auditpg.New(db), func() { db.Close() }, nil
	default:
		return auditfile.New(cfg.AuditPath), func() {}, nil
	}
}

func buildBuckets(cfg config.Config, log *slog.Logger) (ports.BucketStore, func(), error) {
	rdb, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	if rdb == nil {
		return bucketstore.NewMemory(), func() {}, nil
	}
	log.Info("rate limit counters backed by redis")
	return bucketstore.NewRedis(rdb.Client, "fundgate:rate"), func() { rdb.Close() }, nil
}

func buildExecutor(cfg config.Config, log *slog.Logger) (ports.Executor, error) {
	if cfg.UpstreamURL == "" {
		log.Warn("no upstream configured, transfers execute against the loopback ledger")
		return loopback.New(), nil
	}

	auth, err := sequence.NewStaticAuthenticator(cfg.UpstreamToken)
	if err != nil {
		return nil, err
	}
	return sequence.New(cfg.UpstreamURL, cfg.UpstreamProfileID, auth, sequence.WithLogger(log))
}
