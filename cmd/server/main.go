// Command chatvault-server starts the secure conversation-log export server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/careline/chatvault/internal/config"
	"github.com/careline/chatvault/internal/keyvault"
	"github.com/careline/chatvault/internal/notify"
	"github.com/careline/chatvault/internal/profile"
	"github.com/careline/chatvault/internal/registry"
	"github.com/careline/chatvault/internal/server/adminapi"
	"github.com/careline/chatvault/internal/server/httpapi"
	"github.com/careline/chatvault/internal/service"
	"github.com/careline/chatvault/internal/token"
	"github.com/careline/chatvault/internal/vault"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses configuration, wires the components, and supervises the two
// HTTP listeners (public redemption, loopback admin) with signal-driven
// graceful shutdown.
func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logger.Fatal("configuration", zap.Error(err))
	}

	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("admin_addr", cfg.AdminAddr),
	)

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		logger.Fatal("create data dir", zap.Error(err))
	}

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Stores
	keys := keyvault.New(filepath.Join(cfg.DataDir, "user_keys"), cfg.MasterKey)
	msgVault := vault.New(cfg.DataDir, keys, cfg.MasterKey, logger)
	reg := registry.New(filepath.Join(cfg.DataDir, "exports_registry.json"), logger)
	profiles := profile.NewStore(cfg.DataDir)

	// Services
	signer := token.New(cfg.LinkSigningKey)
	mailer := notify.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPEmail, cfg.SMTPPassword)
	exportSvc := service.NewExportService(
		reg, signer, msgVault, nil, profiles, mailer,
		cfg.BaseURL, filepath.Join(cfg.DataDir, "bundles"),
		cfg.MaxDownloads, cfg.OTPLength, logger,
	)
	gateway := service.NewDownloadGateway(reg, signer, cfg.OTPAttemptLimit, cfg.DeleteOnExhaustion, logger)

	public := &http.Server{
		Addr:         cfg.Addr,
		Handler:      httpapi.NewHandler(gateway, logger).Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
	admin := &http.Server{
		Addr:         cfg.AdminAddr,
		Handler:      adminapi.NewHandler(msgVault, exportSvc, profiles, logger).Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("public listener up", zap.String("addr", cfg.Addr))
		errCh <- public.ListenAndServe()
	}()
	go func() {
		logger.Info("admin listener up", zap.String("addr", cfg.AdminAddr))
		errCh <- admin.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listener error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := public.Shutdown(shutdownCtx); err != nil {
		logger.Error("public shutdown", zap.Error(err))
	}
	if err := admin.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin shutdown", zap.Error(err))
	}

	logger.Info("shutdown complete")
}
