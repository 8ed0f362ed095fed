package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hourinbox/webmail/internal/cache"
	"github.com/hourinbox/webmail/internal/config"
	"github.com/hourinbox/webmail/internal/credential"
	"github.com/hourinbox/webmail/internal/kv"
	"github.com/hourinbox/webmail/internal/mail"
	"github.com/hourinbox/webmail/internal/probe"
	"github.com/hourinbox/webmail/internal/server"
	"github.com/hourinbox/webmail/internal/session"
	"github.com/hourinbox/webmail/internal/store"
	"github.com/hourinbox/webmail/internal/vault"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("loading configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	secret, err := sessionSecret(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("resolving session secret")
	}

	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("opening database")
	}
	defer st.Close()

	kvStore := kv.NewMemoryStore()
	defer kvStore.Close()

	srv := server.New(
		cfg,
		st,
		session.NewStore(kvStore, cfg.SessionTTL()),
		cache.New(kvStore, log),
		mail.NewGateway(cfg.ConnectTimeout(), log),
		probe.New(cfg.ConnectTimeout()),
		vault.New(secret),
		kvStore,
		log,
	)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatal().Err(err).Msg("server failed")
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}

// sessionSecret resolves the vault secret: configuration first, then
// the OS keyring, generating and storing a fresh one on first run so
// sessions survive restarts on the same machine.
func sessionSecret(cfg *config.AppConfig) (string, error) {
	if cfg.Session.Secret != "" {
		return cfg.Session.Secret, nil
	}

	secret, err := credential.Get(credential.SessionSecretKey)
	if err == nil && secret != "" {
		return secret, nil
	}

	token, err := session.GenerateToken()
	if err != nil {
		return "", err
	}
	if err := credential.Set(credential.SessionSecretKey, token); err != nil {
		return "", err
	}
	return token, nil
}
