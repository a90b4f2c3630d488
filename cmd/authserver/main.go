package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/bambuco/moodle-auth-customized/internal/authmethod"
	"github.com/bambuco/moodle-auth-customized/internal/config"
	"github.com/bambuco/moodle-auth-customized/internal/handler"
	"github.com/bambuco/moodle-auth-customized/internal/mailer"
	"github.com/bambuco/moodle-auth-customized/internal/repository"
	"github.com/bambuco/moodle-auth-customized/internal/session"
	"github.com/bambuco/moodle-auth-customized/internal/stash"
	"github.com/bambuco/moodle-auth-customized/internal/token"
	"github.com/bambuco/moodle-auth-customized/internal/usecase"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg := config.New(&logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to disconnect from MongoDB")
		}
	}()

	db := client.Database(cfg.Mongo.Database)

	accountRepo := repository.NewAccountMongoRepository(ctx, &logger, db)
	tokenGen := token.NewGenerator()
	resetRepo := repository.NewResetRequestMongoRepository(ctx, &logger, db, accountRepo, tokenGen)
	sessionRepo := repository.NewSessionMongoRepository(db)
	historyRepo := repository.NewPasswordHistoryMongoRepository(db)

	manual := authmethod.NewManualBackend(accountRepo)
	registry := authmethod.NewRegistry(manual, authmethod.NoLoginBackend{}, authmethod.GuestBackend{})

	sender := mailer.NewMailer(&logger)
	tokenStash := stash.NewRedisStash(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	jwtAuth := session.NewJWTAuthenticator(cfg.Token.Issuer, cfg.Token.Issuer)
	sessions := session.NewManager(sessionRepo, jwtAuth, cfg)

	lookup := usecase.NewAccountLookup(accountRepo)
	resetRequests := usecase.NewResetRequestUsecase(
		lookup, resetRepo, registry, usecase.AllowAllCapabilities{}, sender, &logger, cfg, nil)
	passwordSet := usecase.NewPasswordSetUsecase(
		resetRepo, accountRepo, historyRepo, registry, sessions, &logger, cfg, nil)
	signup := usecase.NewSignupUsecase(
		accountRepo, manual, tokenGen, usecase.NoopCaptcha{}, sender, &logger, cfg)

	authHandler := handler.NewAuthHandler(resetRequests, passwordSet, signup, tokenStash, &logger, cfg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Mount("/auth", authHandler.Routes())

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shut down HTTP server")
	}
}
