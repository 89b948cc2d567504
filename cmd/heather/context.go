package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Gobusters/ectologger"
	"github.com/gofrs/flock"
	"github.com/joho/godotenv"

	"github.com/Ramsey-B/heather/config"
	"github.com/Ramsey-B/heather/internal/app"
	"github.com/Ramsey-B/heather/pkg/logging"
	"github.com/Ramsey-B/heather/pkg/tracing"
	"github.com/Ramsey-B/heather/pkg/tracing/exporters"
)

type commandContext struct {
	envFile *string

	configOnce sync.Once
	config     *config.Config
	logger     ectologger.Logger
	configErr  error
}

func newCommandContext(envFile *string) *commandContext {
	return &commandContext{envFile: envFile}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if c.envFile != nil && strings.TrimSpace(*c.envFile) != "" {
			if err := godotenv.Load(strings.TrimSpace(*c.envFile)); err != nil {
				c.configErr = fmt.Errorf("load env file: %w", err)
				return
			}
		}
		cfg, err := config.Load()
		if err != nil {
			c.configErr = err
			return
		}
		logger, err := logging.New(cfg.LogLevel, cfg.PrettyLogs)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.logger = logger
	})
	return c.config, c.configErr
}

// withApp builds the app, starts it when start is set, and tears it down after fn.
func (c *commandContext) withApp(ctx context.Context, start bool, fn func(a *app.App) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	shutdown, err := tracing.NewProvider(ctx, c.logger, tracing.ProviderConfig{
		ServiceName: cfg.AppName,
		Exporter:    cfg.TraceExporter,
		OTLP: exporters.OTLPConfig{
			Endpoint: cfg.TraceOTLPEndpoint,
			Protocol: cfg.TraceOTLPProtocol,
			Insecure: cfg.TraceOTLPInsecure,
			Headers:  cfg.TraceOTLPHeaders,
		},
	})
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(context.WithoutCancel(ctx)) }()

	a, err := app.New(cfg, c.logger, app.Options{})
	if err != nil {
		return err
	}
	if !start {
		defer a.DB.Close()
		return fn(a)
	}

	if err := a.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := a.Stop(context.WithoutCancel(ctx)); err != nil {
			c.logger.WithError(err).Warn("Failed to stop cleanly")
		}
	}()
	return fn(a)
}

// withBatchLock keeps two batch runs on one host from binding the same records.
func (c *commandContext) withBatchLock(fn func() error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	lock := flock.New(cfg.BatchLockFile)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire batch lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another batch run holds %s", cfg.BatchLockFile)
	}
	defer func() { _ = lock.Unlock() }()

	return fn()
}
