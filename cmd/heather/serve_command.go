package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/heather/internal/app"
	"github.com/Ramsey-B/heather/internal/server"
	"github.com/Ramsey-B/heather/pkg/events"
	"github.com/Ramsey-B/heather/pkg/kafka"
	"github.com/Ramsey-B/heather/pkg/middleware"
	"github.com/Ramsey-B/heather/pkg/startup"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the review API and the identity change consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var verifier middleware.TokenVerifier
			if cfg.AuthEnabled {
				verifier, err = middleware.NewOIDCVerifier(runCtx, cfg.AuthIssuerURL, cfg.AuthClientID)
				if err != nil {
					return err
				}
			}

			return ctx.withApp(runCtx, false, func(a *app.App) error {
				if migrate {
					if err := a.Migrate(runCtx); err != nil {
						return err
					}
				}

				var srv *server.Server
				a.AddDependency(startup.Func{
					Name:     "http",
					Requires: []string{"services"},
					OnStart: func(ctx context.Context) error {
						srv = server.New(a, verifier)
						return srv.Start(ctx)
					},
					OnStop: func(ctx context.Context) error { return srv.Stop(ctx) },
				})
				addConsumer(a)

				if err := a.Start(runCtx); err != nil {
					return err
				}
				defer func() { _ = a.Stop(context.WithoutCancel(runCtx)) }()

				<-runCtx.Done()
				a.Logger.Info("Shutting down")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply database migrations before serving")
	return cmd
}

func addConsumer(a *app.App) {
	cfg := a.Config
	if !cfg.KafkaConsumerEnabled {
		return
	}

	var consumer *kafka.Consumer
	a.AddDependency(startup.Func{
		Name:     "kafka-consumer",
		Requires: []string{"services"},
		OnStart: func(ctx context.Context) error {
			var binder events.Binder
			if cfg.KafkaAutoBind {
				binder = a.Runner
			}
			handler := events.NewIdentityChangeHandler(a.Review, binder, a.Matches, a.Logger)
			consumer = kafka.NewConsumer(kafka.ConsumerConfig{
				Brokers:       cfg.KafkaBrokers,
				Topic:         cfg.KafkaInputTopic,
				ConsumerGroup: cfg.KafkaConsumerGroup,
				MaxAttempts:   cfg.KafkaMaxAttempts,
			}, a.Logger, handler.Handle)
			// the consumer outlives this startup call
			return consumer.Start(context.WithoutCancel(ctx))
		},
		OnStop: func(context.Context) error { return consumer.Stop() },
	})
}
