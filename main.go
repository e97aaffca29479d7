package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/asklantern/lantern-engine/pkg/adapters/datasource"
	_ "github.com/asklantern/lantern-engine/pkg/adapters/datasource/mssql"
	_ "github.com/asklantern/lantern-engine/pkg/adapters/datasource/postgres"
	_ "github.com/asklantern/lantern-engine/pkg/adapters/datasource/snowflake"
	"github.com/asklantern/lantern-engine/pkg/audit"
	"github.com/asklantern/lantern-engine/pkg/config"
	"github.com/asklantern/lantern-engine/pkg/crypto"
	"github.com/asklantern/lantern-engine/pkg/database"
	"github.com/asklantern/lantern-engine/pkg/handlers"
	"github.com/asklantern/lantern-engine/pkg/llm"
	"github.com/asklantern/lantern-engine/pkg/logging"
	"github.com/asklantern/lantern-engine/pkg/middleware"
	"github.com/asklantern/lantern-engine/pkg/repositories"
	"github.com/asklantern/lantern-engine/pkg/services"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("failed to connect to engine store", zap.Error(err))
	}
	defer db.Close()

	if err := runMigrations(cfg, logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	encryptor, err := crypto.NewCredentialEncryptor(cfg.CredentialsKey)
	if err != nil {
		logger.Fatal("failed to create credential encryptor", zap.Error(err))
	}

	connMgr := datasource.NewConnectionManager(datasource.ConnectionManagerConfig{
		TTLMinutes:          cfg.Datasource.HandleTTLMinutes,
		ProbeTimeoutSeconds: cfg.Datasource.ProbeTimeoutSeconds,
	}, logger)
	defer func() { _ = connMgr.Close() }()

	userRepo := repositories.NewUserRepository(db)
	connRepo := repositories.NewConnectionRepository(db)
	schemaRepo := repositories.NewSchemaConfigRepository(db)

	connectionService := services.NewConnectionService(connRepo, encryptor, connMgr, logger)
	schemaService := services.NewSchemaService(schemaRepo, connectionService,
		time.Duration(cfg.Datasource.InspectTimeoutSeconds)*time.Second, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, connMgr, logger).RegisterRoutes(mux)
	handlers.NewUsersHandler(userRepo, logger).RegisterRoutes(mux)
	handlers.NewConnectionsHandler(connectionService, logger).RegisterRoutes(mux)
	handlers.NewSchemaHandler(schemaService, connectionService, cfg.LegacyConfigDir, logger).RegisterRoutes(mux)

	// The query pipeline only comes up when an LLM provider is configured.
	// Everything else works without one.
	if cfg.LLM.IsConfigured() {
		llmClient, err := llm.New(&cfg.LLM, logger)
		if err != nil {
			logger.Fatal("failed to create llm client", zap.Error(err))
		}
		queryService := services.NewQueryService(connectionService, schemaService, llmClient, logger)
		auditor := audit.NewSecurityAuditor(logger)
		handlers.NewQueryHandler(queryService, connectionService, auditor, logger).RegisterRoutes(mux)
		logger.Info("query pipeline enabled",
			zap.String("provider", cfg.LLM.Provider),
			zap.String("model", cfg.LLM.Model))
	} else {
		logger.Warn("query pipeline disabled: LLM_API_KEY and LLM_MODEL are not set")
	}

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting lantern-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version),
			zap.String("env", cfg.Env))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", zap.Error(err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}
}

// runMigrations applies pending schema migrations over a database/sql
// connection, which golang-migrate requires.
func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger)
}
