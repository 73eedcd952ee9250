package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yuxishi/service-status-dashboard/internal/analytics"
	"github.com/yuxishi/service-status-dashboard/internal/config"
	"github.com/yuxishi/service-status-dashboard/internal/dashboard"
	"github.com/yuxishi/service-status-dashboard/internal/handler"
	"github.com/yuxishi/service-status-dashboard/internal/logger"
	"github.com/yuxishi/service-status-dashboard/internal/metrics"
	"github.com/yuxishi/service-status-dashboard/internal/provider"
	"go.uber.org/zap"
)

func main() {
	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.Logging.Level, Environment: cfg.Logging.Environment})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	// Exit only after run's deferred cleanup and the logger flush.
	err = run(cfg, log)
	if err != nil {
		log.Error("Server stopped", zap.Error(err))
	}
	_ = log.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	store, err := analytics.Open(analytics.Config{
		Host:               cfg.Database.Host,
		Port:               cfg.Database.Port,
		Database:           cfg.Database.Database,
		User:               cfg.Database.User,
		Password:           cfg.Database.Password,
		Timeout:            cfg.Database.Timeout(),
		ExcludedSourceFile: cfg.Database.ExcludedSourceFile,
	})
	var counter provider.CompanyCounter
	if err != nil {
		log.Warn("Analytics store unavailable, duplicate count disabled", zap.Error(err))
	} else {
		defer store.Close()
		counter = store
	}

	accounts := make([]provider.QuotaAccount, 0, len(cfg.DaData.Accounts))
	for _, acc := range cfg.DaData.Accounts {
		accounts = append(accounts, provider.QuotaAccount{Name: acc.Name, Token: acc.Token, Secret: acc.Secret})
	}
	quota := provider.NewQuotaProvider(provider.QuotaConfig{
		BaseURL:  cfg.DaData.BaseURL,
		Service:  cfg.DaData.Service,
		Timeout:  cfg.DaData.Timeout(),
		Accounts: accounts,
	}, log)

	m := metrics.New()
	d := dashboard.New(
		provider.NewBalanceProvider(provider.BalanceConfig{
			BaseURL: cfg.XMLRiver.BaseURL,
			User:    cfg.XMLRiver.User,
			Key:     cfg.XMLRiver.Key,
			Timeout: cfg.XMLRiver.Timeout(),
		}, log),
		provider.NewDatabaseProvider(provider.DatabaseConfig{
			Host:    cfg.Database.Host,
			Port:    cfg.Database.Port,
			Timeout: cfg.Database.Timeout(),
		}, counter, log),
		quota,
		provider.NewSystemProvider(provider.GopsutilSampler{
			DiskPath:    cfg.System.DiskPath,
			CPUInterval: cfg.System.CPUSampleInterval(),
		}, log),
		m,
		log,
	)

	gin.SetMode(gin.ReleaseMode)
	r, err := handler.NewRouter(handler.New(d), m, log, handler.RouterConfig{
		RateLimitRPS:   cfg.RateLimit.RequestsPerSecond,
		RateLimitBurst: cfg.RateLimit.Burst,
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	// The write timeout has to outlast the slowest upstream call.
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.XMLRiver.Timeout()*2 + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info("Starting server",
		zap.String("addr", cfg.Addr()),
		zap.String("clickhouse", cfg.Database.Host+":"+cfg.Database.Port),
		zap.Strings("dadata_accounts", quota.Accounts()),
		zap.Float64("rate_limit_rps", cfg.RateLimit.RequestsPerSecond),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("Shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
