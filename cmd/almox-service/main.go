package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/almoxsms/almox-backend/internal/almox/consumers"
	"github.com/almoxsms/almox-backend/internal/almox/events"
	"github.com/almoxsms/almox-backend/internal/almox/handler"
	"github.com/almoxsms/almox-backend/internal/almox/repository"
	"github.com/almoxsms/almox-backend/internal/almox/service"
	authhandler "github.com/almoxsms/almox-backend/internal/auth/handler"
	"github.com/almoxsms/almox-backend/internal/auth/jwt"
	authrepo "github.com/almoxsms/almox-backend/internal/auth/repository"
	authservice "github.com/almoxsms/almox-backend/internal/auth/service"
	"github.com/almoxsms/almox-backend/migrations"
	"github.com/almoxsms/almox-backend/pkg/config"
	"github.com/almoxsms/almox-backend/pkg/database"
	"github.com/almoxsms/almox-backend/pkg/httputil"
	"github.com/almoxsms/almox-backend/pkg/i18n"
	"github.com/almoxsms/almox-backend/pkg/logger"
	"github.com/almoxsms/almox-backend/pkg/messaging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shopspring/decimal"
)

const serviceName = "almox-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment, cfg.Server.LogLevel)
	log.Info().Msg("starting Almox Service")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Database.AutoMigrate {
		if err := migrations.Apply(ctx, db.DB); err != nil {
			log.Fatal().Err(err).Msg("failed to apply migrations")
		}
		log.Info().Strs("migrations", migrations.Names()).Msg("schema up to date")
	}

	st := repository.New(db)

	// RabbitMQ is optional; without it no events are published and alertas
	// are not maintained.
	var (
		rmq       *messaging.RabbitMQ
		publisher *events.AlmoxEventPublisher
	)
	if cfg.RabbitMQ.Enabled {
		rmq, err = messaging.New(&cfg.RabbitMQ, messaging.AlmoxTopology(serviceName), log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		publisher, err = events.NewAlmoxEventPublisher(rmq, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}

		alertaConsumer, err := consumers.NewAlertaConsumer(rmq, st.Alertas(), log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create alerta consumer")
		}
		if err := alertaConsumer.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start alerta consumer")
		}
		rmq.OnReconnect(func() {
			if err := alertaConsumer.Restart(ctx); err != nil {
				log.Error().Err(err).Msg("failed to restart alerta consumer")
			}
		})
		go rmq.Watch(ctx)
	} else {
		log.Warn().Msg("rabbitmq disabled, events will not be published")
	}

	deps := service.NewDeps(st, publisher, decimal.NewFromFloat(cfg.Ledger.LowStockRatio), log)
	handlers := handler.New(deps, cfg.Ledger.MaxPageSize, log)

	sessions := authrepo.NewSessionRepository(db)
	authService := authservice.NewAuthService(st.Usuarios(), deps.Resolver, sessions, jwt.NewManager(&cfg.JWT), log)
	authHandler := authhandler.NewAuthHandler(authService, log)

	go cleanSessions(ctx, sessions, log)

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(i18n.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"status":   "healthy",
			"service":  serviceName,
			"database": db.Health(r.Context()),
		}
		if rmq != nil {
			body["rabbitmq"] = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, body)
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", authHandler.Routes)
		r.Group(func(r chi.Router) {
			r.Use(authHandler.Authenticate)
			handlers.Register(r)
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stops the consumer and the session cleaner
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func cleanSessions(ctx context.Context, sessions *authrepo.SessionRepository, log *logger.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.CleanExpired(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("session cleanup failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("removed", n).Msg("expired sessions removed")
			}
		}
	}
}
