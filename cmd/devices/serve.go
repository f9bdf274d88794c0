// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/devices/internal/api"
	"github.com/holomush/devices/internal/auth"
	"github.com/holomush/devices/internal/auth/postgres"
	"github.com/holomush/devices/internal/config"
	"github.com/holomush/devices/internal/logging"
	"github.com/holomush/devices/internal/observability"
	"github.com/holomush/devices/internal/store"
)

const shutdownTimeout = 10 * time.Second

var errNotAccepting = errors.New("http listener not accepting requests")

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Connect to PostgreSQL, open the shared database session and serve the
HTTP API until SIGINT or SIGTERM.`,
		RunE: runServe,
	}

	cmd.Flags().String("application.host", "", "API listen host")
	cmd.Flags().Int("application.port", 0, "API listen port")
	cmd.Flags().String("log.format", "", "log format (json or text)")
	cmd.Flags().String("log.level", "", "log level (debug, info, warn, error)")
	cmd.Flags().String("metrics.addr", "", "metrics/health HTTP address")

	return cmd
}

// application is the assembled API: the handler plus what must be released
// when it stops.
type application struct {
	handler  http.Handler
	verifier *auth.PooledVerifier
}

func (a *application) Close() {
	a.verifier.Close()
}

// newApplication wires the auth components and the router on top of
// credentials.
func newApplication(cfg *config.Config, credentials auth.CredentialStore, metrics *observability.Metrics, logger *slog.Logger) (*application, error) {
	var opts []auth.PooledVerifierOption
	if metrics != nil {
		opts = append(opts, auth.WithVerifyObserver(metrics.ObservePasswordVerify))
	}
	verifier := auth.NewPooledVerifier(cfg.Hashing.Workers, opts...)

	validator, err := auth.NewValidator(credentials, verifier)
	if err != nil {
		verifier.Close()
		return nil, err
	}
	codec, err := auth.NewTokenCodec(auth.TokenConfig{Secret: []byte(cfg.JWT.SecretKey)})
	if err != nil {
		verifier.Close()
		return nil, err
	}
	authn, err := auth.NewAuthenticator(codec)
	if err != nil {
		verifier.Close()
		return nil, err
	}

	if cfg.Environment == config.EnvironmentProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := api.NewRouter(api.Deps{
		Validator:     validator,
		Codec:         codec,
		Authenticator: authn,
		TokenTTL:      cfg.JWT.TTL,
		Metrics:       metrics,
		Logger:        logger,
	})
	if err != nil {
		verifier.Close()
		return nil, err
	}

	return &application{handler: router, verifier: verifier}, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := logging.SetDefault(logging.Options{
		Service: "devices",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
	}); err != nil {
		return oops.With("operation", "set up logging").Wrap(err)
	}
	logger := slog.Default()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	logger.InfoContext(ctx, "starting devices service",
		"environment", cfg.Environment,
		"addr", cfg.Application.Addr(),
		"database", cfg.Database,
	)

	pool, err := store.Connect(ctx, cfg.Database.URL(), store.ConnectOptions{ConnectTimeout: cfg.Database.ConnectTimeout})
	if err != nil {
		return err
	}
	defer pool.Close()

	session, err := store.OpenSession(ctx, pool)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer closeCancel()
		if closeErr := session.Close(closeCtx); closeErr != nil {
			logger.Warn("error closing database session", "error", closeErr)
		}
	}()
	logger.InfoContext(ctx, "connected to database")

	var accepting atomic.Bool
	obsServer := observability.NewServer(cfg.Metrics.Addr,
		observability.WithReadinessCheck("http", func(context.Context) error {
			if !accepting.Load() {
				return errNotAccepting
			}
			return nil
		}),
		observability.WithReadinessCheck("database", pool.Ping),
	)

	app, err := newApplication(cfg, postgres.NewUserRepository(session), obsServer.Metrics(), logger)
	if err != nil {
		return err
	}
	defer app.Close()

	if cfg.Metrics.Addr != "" {
		obsErrChan, startErr := obsServer.Start()
		if startErr != nil {
			return oops.With("operation", "start observability server").Wrap(startErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	listener, err := net.Listen("tcp", cfg.Application.Addr())
	if err != nil {
		return oops.Code("LISTEN_FAILED").With("addr", cfg.Application.Addr()).Wrap(err)
	}
	httpServer := &http.Server{
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	accepting.Store(true)
	cmd.Println("devices API listening on " + listener.Addr().String())
	logger.InfoContext(ctx, "devices service ready", "addr", listener.Addr().String())

	var serveErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case serveErr = <-errChan:
		logger.Error("http server error", "error", serveErr)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	accepting.Store(false)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping http server", "error", err)
	}
	if err := obsServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}

	logger.Info("shutdown complete")
	if serveErr != nil {
		return oops.Code("SERVE_FAILED").Wrap(serveErr)
	}
	return nil
}

// monitorServerErrors cancels ctx when a background server fails. It exits
// when an error arrives, the channel closes, or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
