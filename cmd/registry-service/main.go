package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/lifelink-health/registry/pkg/auth"
	"github.com/lifelink-health/registry/pkg/common/config"
	"github.com/lifelink-health/registry/pkg/common/database"
	"github.com/lifelink-health/registry/pkg/common/kafka"
	"github.com/lifelink-health/registry/pkg/common/logger"
	"github.com/lifelink-health/registry/pkg/common/models"
	"github.com/lifelink-health/registry/pkg/compat"
	"github.com/lifelink-health/registry/pkg/identity"
	"github.com/lifelink-health/registry/pkg/middleware"
	"github.com/lifelink-health/registry/pkg/registry"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.ConnectPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer database.ClosePostgres(db)

	userRepo := identity.NewRepository(db)
	if err := userRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate user tables")
	}

	registryRepo := registry.NewRepository(db)
	if err := registryRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate registry tables")
	}

	table, err := compat.Load(cfg.CompatibilityTablePath)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load compatibility table")
	}

	redisClient := database.ConnectRedis(cfg)
	defer database.CloseRedis(redisClient)

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.MatchEventTopic)
	defer producer.Close()

	jwtManager, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTTTL)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to configure JWT")
	}

	var oidcAuth *auth.OIDCAuthenticator
	if cfg.OIDCIssuer != "" {
		oidcAuth, err = auth.NewOIDCAuthenticator(cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret, "")
		if err != nil {
			logger.Log.WithError(err).Warn("OIDC disabled")
		}
	}

	userService := identity.NewService(userRepo)
	registryService := registry.NewService(registryRepo, table, producer, redisClient, cfg.StatsCacheTTL)

	bootstrapAdmin(userService, cfg)

	authHandler := identity.NewHTTPHandler(userService, jwtManager, oidcAuth, cfg.MaxRequestBody)
	registryHandler := registry.NewHTTPHandler(registryService, userService, cfg.MaxRequestBody)

	router := mux.NewRouter()
	router.Use(middleware.Logging, middleware.Recovery)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	authHandler.Register(api)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.Authenticate(jwtManager, userService), middleware.RequireRole(models.RoleAdmin))
	registryHandler.RegisterAdmin(admin)

	authed := api.NewRoute().Subrouter()
	authed.Use(middleware.Authenticate(jwtManager, userService))
	registryHandler.Register(authed)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Registry Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Registry Service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Registry Service stopped")
}

func bootstrapAdmin(users *identity.Service, cfg *config.Config) {
	if cfg.BootstrapAdminEmail == "" || cfg.BootstrapAdminPassword == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	admin, err := users.Bootstrap(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword, cfg.BootstrapAdminName)
	if err != nil {
		logger.Log.WithError(err).Warn("admin bootstrap skipped")
		return
	}
	logger.Log.WithField("email", admin.Email).Info("admin account bootstrapped")
}
