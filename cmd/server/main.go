// Command server runs the CRM identity service: login, account management,
// and role policy over HTTP.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/assurminut/crm-identity/internal/api"
	"github.com/assurminut/crm-identity/internal/api/handler"
	"github.com/assurminut/crm-identity/internal/core/domain"
	"github.com/assurminut/crm-identity/internal/core/service"
	"github.com/assurminut/crm-identity/internal/infrastructure/crypto"
	"github.com/assurminut/crm-identity/internal/infrastructure/queue"
	"github.com/assurminut/crm-identity/internal/pkg/config"
	"github.com/assurminut/crm-identity/pkg/logger"
)

const (
	serviceName     = "crm-identity"
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: serviceName,
	})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	secret := cfg.JWTSecret
	if secret == "" {
		var err error
		if secret, err = ephemeralSecret(); err != nil {
			return err
		}
		log.Warn().Msg("JWT_SECRET not set, tokens will not survive a restart")
	}

	// --- Infrastructure ---
	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	defer st.close(context.Background())

	sessions, err := openCache(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s cache: %w", cfg.Cache.Driver, err)
	}
	defer sessions.close()

	hasher := crypto.NewBcryptHasher(cfg.Auth.BcryptCost)

	dispatcher := queue.NewDispatcher(cfg.Audit.Workers, cfg.Audit.QueueSize, auditSink(cfg, st, logger.Component("audit")), logger.Component("dispatcher"))
	dispatcher.Start()

	// --- Services ---
	accounts := service.NewAccountService(st.accounts, hasher, sessions.cache, logger.Component("accounts"),
		service.WithAuditRecorder(dispatcher),
		service.WithStoreTimeout(cfg.Store.Timeout),
	)
	authn := service.NewAuthService(st.accounts, hasher, sessions.cache, secret, cfg.TokenTTL, cfg.Store.Timeout, logger.Component("auth"),
		service.WithTokenRevoker(sessions.revocations),
	)

	if err := bootstrap(ctx, cfg, accounts, log); err != nil {
		return err
	}

	// --- HTTP ---
	readiness := map[string]handler.Check{cfg.Store.Driver: st.ready}
	if sessions.ready != nil {
		readiness[cfg.Cache.Driver] = sessions.ready
	}
	e := api.NewRouter(api.Deps{
		Auth:        authn,
		Accounts:    accounts,
		JWTSecret:   secret,
		Revocations: sessions.revocations,
		LoginRate:   cfg.Auth.LoginRate,
		LoginBurst:  cfg.Auth.LoginBurst,
		Readiness:   readiness,
		Log:         logger.Component("http"),
	})

	serveErr := make(chan error, 1)
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	log.Info().
		Str("port", cfg.Port).
		Str("store", cfg.Store.Driver).
		Str("cache", cfg.Cache.Driver).
		Msg("server started")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("audit dispatcher did not drain")
	}
	if err := sessions.cache.Clear(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("clear auth cache")
	}
	log.Info().Msg("server stopped")
	return nil
}

// bootstrap seeds default accounts into an empty store, guarantees an
// administrator, and reports role caps that the stored data violates.
func bootstrap(ctx context.Context, cfg *config.Config, accounts *service.AccountService, log zerolog.Logger) error {
	if cfg.SeedFile != "" {
		seed, err := config.LoadSeed(cfg.SeedFile)
		if err != nil {
			return err
		}
		created, err := accounts.Seed(ctx, seed.Inputs())
		if err != nil {
			return fmt.Errorf("seed accounts: %w", err)
		}
		log.Info().Int("created", created).Str("file", cfg.SeedFile).Msg("seed file applied")
	}

	if _, err := accounts.EnsureAdmin(ctx, cfg.Admin.Input()); err != nil {
		return err
	}

	counts, err := accounts.VerifyRoleCaps(ctx)
	if errors.Is(err, domain.ErrBackingStoreUnavailable) {
		return err
	}
	event := log.Info()
	if err != nil {
		event = log.Warn().Err(err)
	}
	event.
		Int("admin", counts[domain.RoleAdmin]).
		Int("supervisor", counts[domain.RoleSupervisor]).
		Int("agent", counts[domain.RoleAgent]).
		Msg("role caps checked")
	return nil
}

func ephemeralSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
