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

	"phoneb/internal/accounts"
	"phoneb/internal/auth"
	"phoneb/internal/calls"
	"phoneb/internal/config"
	"phoneb/internal/contacts"
	"phoneb/internal/credentials"
	"phoneb/internal/history"
	"phoneb/internal/httpapi"
	"phoneb/internal/messages"
	"phoneb/internal/telephony"
	"phoneb/internal/token"
	"phoneb/internal/webhooks"
	"phoneb/pkg/logger"
	"phoneb/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	cipher, err := accounts.NewCipher(cfg.Twilio.SecretboxKey)
	if err != nil {
		log.Error("credential cipher init failed", "err", err)
		os.Exit(1)
	}

	accountRepo := accounts.NewPostgresRepo(db, cipher)
	profileRepo := accounts.NewProfilePostgresRepo(db, cipher)
	contactRepo := contacts.NewPostgresRepo(db)
	historySvc := history.NewService(history.NewPostgresRepo(db))

	provider := telephony.NewClient()
	resolver := credentials.NewResolver(accountRepo, profileRepo, cfg.Twilio, provider, cfg.WebhookURL(), log)

	handlers := httpapi.Handlers{
		Auth:     authManager,
		Accounts: accounts.NewService(accountRepo),
		Contacts: contactRepo,
		Tokens:   token.NewService(resolver, nil),
		Calls:    calls.NewService(resolver, provider, contactRepo, historySvc, rdb, cfg.VoiceInstructionURL(), log),
		Messages: messages.NewService(resolver, provider, contactRepo, historySvc, log),
		History:  historySvc,
		Ingestor: webhooks.NewIngestor(resolver, contactRepo, historySvc, log),
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, handlers, auth.RequireAccessToken(authManager), db)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
