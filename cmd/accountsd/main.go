package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/activitymap"
	logadapter "github.com/goliatone/go-accounts/adapters/logrus"
	"github.com/goliatone/go-accounts/config"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "accountsd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logadapter.NewJSON(os.Stdout, cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.Info("Starting accounts service", "version", version, "config", cfg.String())

	db, err := accounts.OpenDatabase(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := accounts.RunMigrations(db.DB, cfg.DBDriver); err != nil {
		return err
	}

	repo := accounts.NewRepositoryManager(db)
	repo.MustValidate()

	hasher := accounts.NewBcryptHasher()
	activity := activitymap.NewLogSink(logger.Named("activity"))

	reconciler := accounts.NewAdminReconciler(
		repo.Users(),
		hasher,
		accounts.AdminSpecFromConfig(cfg),
		accounts.WithReconcilerLogger(logger.Named("admin")),
		accounts.WithReconcilerActivitySink(activity),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	outcome, err := reconciler.Reconcile(ctx)
	cancel()
	if accounts.StartupFatal(err) {
		return fmt.Errorf("admin reconciliation: %w", err)
	}
	if err != nil {
		logger.Warn("Admin repair failed, keeping stored account", "outcome", outcome, "error", err)
	}

	tokens, err := accounts.NewTokenServiceFromConfig(cfg, accounts.WithTokenLogger(logger.Named("tokens")))
	if err != nil {
		return err
	}

	guard := accounts.NewGuard(tokens,
		accounts.WithAuthScheme(cfg.GetAuthScheme()),
		accounts.WithGuardLogger(logger.Named("guard")),
	)

	provider := accounts.NewUserProvider(repo.Users(), hasher).
		WithLogger(logger.Named("provider"))

	auther := accounts.NewAuthenticator(provider, tokens, cfg.GetTokenExpiration()).
		WithLogger(logger.Named("auth")).
		WithActivitySink(activity)

	httpAuth := accounts.NewHTTPAuthenticator(guard, cfg).
		WithLogger(logger.Named("http:auth"))

	srv := accounts.NewHTTPServer(logger.Named("http"), cfg.CORSOrigins)
	srv.Router().WithLogger(logger.Named("router"))

	accounts.RegisterAccountRoutes(srv.Router(),
		accounts.WithControllerLogger(logger.Named("http:ctrl")),
		accounts.WithControllerDebug(cfg.Debug),
		accounts.WithControllerRepository(repo),
		accounts.WithControllerAuthenticator(auther),
		accounts.WithControllerHTTPAuth(httpAuth),
		accounts.WithControllerRegistrar(
			accounts.NewRegisterUserHandler(repo, hasher, logger.Named("register"), activity),
		),
		accounts.WithControllerUserAdmin(
			accounts.NewUserAdmin(repo.Users(), logger.Named("users"), activity),
		),
		accounts.WithControllerAdminSetup(reconciler, cfg.GetAdminIdentity()),
		accounts.WithControllerServiceInfo("accounts", version),
	)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.ListenAddr)
		errCh <- srv.Serve(cfg.ListenAddr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case sig := <-WaitExitSignal():
		logger.Info("Shutting down", "signal", sig.String())
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("HTTP server stopped with error", "error", err)
	}

	return nil
}

func WaitExitSignal() <-chan os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return ch
}
