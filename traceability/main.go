package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/forno-labs/forno-go/internal/platform/auditlog"
	"github.com/forno-labs/forno-go/internal/platform/auth"
	"github.com/forno-labs/forno-go/internal/platform/env"
	"github.com/forno-labs/forno-go/internal/platform/httpserver"
	"github.com/forno-labs/forno-go/internal/platform/metrics"
	"github.com/forno-labs/forno-go/internal/platform/objectstore"
	"github.com/forno-labs/forno-go/internal/platform/policy"
	"github.com/forno-labs/forno-go/internal/platform/postgres"
	repopg "github.com/forno-labs/forno-go/internal/repo/postgres"
	"github.com/forno-labs/forno-go/internal/service/production"
	"github.com/forno-labs/forno-go/internal/service/reconcile"
)

const serviceName = "traceability"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("TRACEABILITY_HTTP_ADDR", ":8080")
	shutdownTimeout, err := env.Duration("TRACEABILITY_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	dbCfg, err := postgres.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid database config", "error", err)
		os.Exit(2)
	}
	db, err := postgres.Open(ctx, dbCfg)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	readinessChecks := []httpserver.ReadinessCheck{
		{
			Name: "postgres",
			Check: func(ctx context.Context) error {
				checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
				defer cancel()
				return db.PingContext(checkCtx)
			},
		},
	}

	archiveEnabled, err := env.Bool("FORNO_SNAPSHOT_ARCHIVE_ENABLED", true)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}
	var archive *objectstore.SnapshotArchive
	if archiveEnabled {
		storeCfg, err := objectstore.ConfigFromEnv()
		if err != nil {
			logger.Error("invalid object store config", "error", err)
			os.Exit(2)
		}
		storeClient, err := objectstore.NewMinIOClient(storeCfg)
		if err != nil {
			logger.Error("object store client init failed", "error", err)
			os.Exit(2)
		}
		startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := objectstore.EnsureBuckets(startupCtx, storeClient, storeCfg); err != nil {
			cancel()
			logger.Error("object store unavailable", "error", err)
			os.Exit(1)
		}
		cancel()
		archive = objectstore.NewSnapshotArchive(storeClient, storeCfg.BucketSnapshots)
		readinessChecks = append(readinessChecks, httpserver.ReadinessCheck{
			Name: "minio",
			Check: func(ctx context.Context) error {
				checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
				defer cancel()
				return objectstore.CheckBuckets(checkCtx, storeClient, storeCfg)
			},
		})
	}

	var policySpec *policy.Spec
	if policyPath := env.String("FORNO_POLICY_FILE", ""); policyPath != "" {
		spec, err := policy.LoadFile(policyPath)
		if err != nil {
			logger.Error("invalid capability policy", "path", policyPath, "error", err)
			os.Exit(2)
		}
		policySpec = &spec
		logger.Info("capability policy loaded", "path", policyPath, "rules", len(spec.Rules))
	}

	authCfg, err := auth.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid auth config", "error", err)
		os.Exit(2)
	}
	var authenticator auth.Authenticator
	var authorizer auth.AuthorizeFunc
	switch authCfg.Mode {
	case auth.ModeGateway:
		authenticator, err = auth.NewGatewayHeadersAuthenticator(authCfg.InternalSecret)
		if err != nil {
			logger.Error("invalid internal auth config", "error", err)
			os.Exit(2)
		}
		authorizer = auth.MethodRoleAuthorizer()
	case auth.ModeDev:
		authenticator = auth.NewDevAuthenticator(authCfg)
		authorizer = auth.MethodRoleAuthorizer()
	case auth.ModeDisabled:
		authenticator = auth.NewDevAuthenticator(auth.Config{
			DevSubject: "anonymous",
			DevRoles:   []string{auth.RoleAdmin},
		})
	}

	recipeStore := repopg.NewRecipeStore(db)
	userStore := repopg.NewUserStore(db)
	snapshotStore := repopg.NewSnapshotStore(db)
	runStore := repopg.NewRunStore(db)
	auditRecorder := auditlog.NewRecorder(db, logger)

	productionOpts := []production.Option{
		production.WithAudit(auditRecorder),
		production.WithLogger(logger),
	}
	if archive != nil {
		productionOpts = append(productionOpts, production.WithArchiver(archive))
	}
	productionSvc := production.New(recipeStore, userStore, snapshotStore, runStore, productionOpts...)
	reconcileSvc := reconcile.New(recipeStore, userStore, snapshotStore, runStore)

	m := metrics.New()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz(serviceName))
	mux.HandleFunc("/readyz", httpserver.ReadyzWithChecks(serviceName, readinessChecks...))
	mux.Handle("/metrics", m.Handler())

	api := newTraceabilityAPI(logger, productionSvc, reconcileSvc, policySpec, m)
	api.register(mux)

	handler := auth.Middleware{
		Logger:        logger,
		Authenticator: authenticator,
		Authorize:     authorizer,
		Audit: func(ctx context.Context, event auth.DenyEvent) error {
			auditCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
			defer cancel()
			return auditlog.InsertAuthDeny(auditCtx, db, serviceName, event)
		},
		SkipPrefixes: []string{"/healthz", "/readyz", "/metrics"},
	}.Wrap(mux)

	cfg := httpserver.Config{
		Service:         serviceName,
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}

	if err := httpserver.Run(ctx, logger, cfg, httpserver.Wrap(logger, serviceName, handler)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
