package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"github.com/99minutos/session-security/internal/api"
	"github.com/99minutos/session-security/internal/api/handler"
	"github.com/99minutos/session-security/internal/api/metrics"
	"github.com/99minutos/session-security/internal/api/middleware"
	"github.com/99minutos/session-security/internal/core/domain"
	"github.com/99minutos/session-security/internal/core/ports"
	"github.com/99minutos/session-security/internal/core/service"
	"github.com/99minutos/session-security/internal/infrastructure/db/mongo"
	"github.com/99minutos/session-security/internal/infrastructure/db/postgres"
	"github.com/99minutos/session-security/internal/infrastructure/db/redis"
	"github.com/99minutos/session-security/internal/infrastructure/hasher"
	"github.com/99minutos/session-security/internal/infrastructure/queue"
	"github.com/99minutos/session-security/internal/pkg/config"
	"github.com/99minutos/session-security/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// closer releases one backend during shutdown.
type closer func(ctx context.Context) error

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "session-security",
	})

	rules, err := config.LoadAccessRules(cfg.Routes.AccessRulesFile)
	if err != nil {
		return err
	}
	policy, err := service.NewAccessPolicy(rules)
	if err != nil {
		return err
	}

	var closers []closer
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("backend close failed")
			}
		}
	}()
	checks := make(map[string]handler.CheckFunc)

	var mongoDB *mongodriver.Database
	if cfg.UsesMongo() {
		client, db, err := mongo.Connect(ctx, mongo.Config{
			URI:         cfg.Mongo.URI,
			Database:    cfg.Mongo.Database,
			AppName:     "session-security",
			MaxPoolSize: cfg.Mongo.MaxPoolSize,
			Timeout:     cfg.Mongo.Timeout,
		})
		if err != nil {
			return err
		}
		closers = append(closers, client.Disconnect)
		checks["mongodb"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
		mongoDB = db
		log.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongodb")
	}

	// Audit workers outlive the request context so queued events drain on shutdown.
	var auditRepo ports.AuditRepository
	if mongoDB != nil {
		auditRepo = mongo.NewAuditRepository(mongoDB)
	}
	dispatcher := queue.NewDispatcher(cfg.AuditWorkers, auditRepo, log)
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	dispatcher.Start(workerCtx)
	defer func() {
		stopWorkers()
		dispatcher.Wait()
	}()

	store, err := buildAccountStore(ctx, cfg, mongoDB, checks, &closers, log)
	if err != nil {
		return err
	}

	onDisplace := func(h domain.SessionHandle) {
		metrics.SessionsDisplacedTotal.Inc()
		dispatcher.Record(domain.AuthEvent{
			Type:       domain.EventDisplaced,
			Identifier: h.Identifier,
			Reason:     "superseded by a newer login",
		})
	}
	registry, err := buildRegistry(ctx, workerCtx, cfg, onDisplace, checks, &closers, log)
	if err != nil {
		return err
	}

	authService := service.NewAuthService(store, hasher.NewBcrypt(cfg.BcryptCost), log)
	if err := authService.BootstrapAdmin(ctx, cfg.Bootstrap.AdminID, cfg.Bootstrap.AdminSecret); err != nil {
		return err
	}

	if cfg.Session.HashKey == "" {
		log.Warn().Msg("SESSION_HASH_KEY not set, sessions will not survive a restart")
	}
	cookie := middleware.NewSessionCookie(cfg.Session.CookieName, []byte(cfg.Session.HashKey),
		cfg.Session.CookieSecure, cfg.Session.MaxLifetime)

	e := api.NewRouter(api.Deps{
		Auth:       authService,
		Registry:   registry,
		Policy:     policy,
		Cookie:     cookie,
		Classifier: service.NewFailureClassifier(cfg.Routes.FailurePath),
		Audit:      dispatcher,
		Checks:     checks,
		Paths: api.Paths{
			Login:          cfg.Routes.LoginPath,
			Logout:         cfg.Routes.LogoutPath,
			LoginSuccess:   cfg.Routes.LoginSuccessPath,
			LogoutSuccess:  cfg.Routes.LogoutSuccessPath,
			Failure:        cfg.Routes.FailurePath,
			InvalidSession: cfg.Routes.InvalidSessionPath,
			Static:         cfg.Routes.StaticPrefixes,
		},
		Log: log,
	})

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).
			Str("session_backend", cfg.SessionBackend).
			Str("account_backend", cfg.AccountBackend).
			Int("rules", len(policy.Rules())).
			Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
	return nil
}

func buildAccountStore(
	ctx context.Context,
	cfg *config.Config,
	mongoDB *mongodriver.Database,
	checks map[string]handler.CheckFunc,
	closers *[]closer,
	log zerolog.Logger,
) (ports.AccountStore, error) {
	switch cfg.AccountBackend {
	case config.BackendMongo:
		store := mongo.NewAccountStore(mongoDB)
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, postgres.Config{DSN: cfg.Postgres.DSN, MaxConns: cfg.Postgres.MaxConns})
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, func(context.Context) error {
			pool.Close()
			return nil
		})
		checks["postgres"] = pool.Ping
		store := postgres.NewAccountStore(pool)
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		log.Info().Msg("connected to postgres")
		return store, nil
	default:
		log.Warn().Msg("using in-memory account store, accounts are lost on restart")
		return service.NewMemoryAccountStore(), nil
	}
}

func buildRegistry(
	ctx, workerCtx context.Context,
	cfg *config.Config,
	onDisplace ports.DisplaceFunc,
	checks map[string]handler.CheckFunc,
	closers *[]closer,
	log zerolog.Logger,
) (ports.SessionRegistry, error) {
	expiry := domain.SessionExpiry{
		IdleTimeout: cfg.Session.IdleTimeout,
		MaxLifetime: cfg.Session.MaxLifetime,
	}

	if cfg.SessionBackend == config.BackendRedis {
		client, err := redis.Connect(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, func(context.Context) error { return client.Close() })
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
		return redis.NewSessionRegistry(client, redis.RegistryOptions{
			Expiry:     expiry,
			OnDisplace: onDisplace,
			Log:        log,
		}), nil
	}

	registry := service.NewMemorySessionRegistry(
		service.WithExpiry(expiry),
		service.WithDisplaceHook(onDisplace),
	)
	*closers = append(*closers, func(context.Context) error { return registry.Close() })
	go registry.RunSweeper(workerCtx, cfg.Session.SweepInterval, func(n int) {
		metrics.SessionsEndedTotal.WithLabelValues("expired").Add(float64(n))
		log.Debug().Int("count", n).Msg("expired sessions swept")
	})
	return registry, nil
}
