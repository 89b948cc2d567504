// Package app wires configuration, stores, the search index and the matching
// engine into one process, for both the HTTP server and the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Ramsey-B/heather/config"
	"github.com/Ramsey-B/heather/db"
	"github.com/Ramsey-B/heather/internal/repositories/identity"
	"github.com/Ramsey-B/heather/internal/repositories/item"
	"github.com/Ramsey-B/heather/internal/repositories/potentialmatch"
	"github.com/Ramsey-B/heather/internal/repositories/relationpreference"
	"github.com/Ramsey-B/heather/pkg/authority"
	"github.com/Ramsey-B/heather/pkg/database"
	"github.com/Ramsey-B/heather/pkg/events"
	"github.com/Ramsey-B/heather/pkg/graph"
	"github.com/Ramsey-B/heather/pkg/kafka"
	"github.com/Ramsey-B/heather/pkg/models"
	"github.com/Ramsey-B/heather/pkg/redis"
	"github.com/Ramsey-B/heather/pkg/review"
	"github.com/Ramsey-B/heather/pkg/scoring"
	"github.com/Ramsey-B/heather/pkg/search"
	"github.com/Ramsey-B/heather/pkg/startup"
)

type App struct {
	Config *config.Config
	Logger ectologger.Logger
	DB     database.DB

	Identities  *identity.Repository
	Items       *item.Repository
	Matches     *potentialmatch.Repository
	Preferences *relationpreference.Repository

	Index     search.Index
	Retriever *search.Retriever
	Scorer    *scoring.Scorer

	// Built by Start once the optional infrastructure is up.
	Review     *review.Service
	Runner     *authority.Runner
	Authorship *graph.AuthorshipProjection

	Redis    *redis.Client
	Graph    *graph.Client
	Producer *kafka.Producer

	startup *startup.Startup
}

// Options lets callers swap infrastructure, mainly for tests.
type Options struct {
	DB     database.DB
	Index  search.Index
	Fields []models.Field
}

// New builds the process without touching the network. Call Start before use.
func New(cfg *config.Config, logger ectologger.Logger, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	policy, err := scoring.ParsePolicy(cfg.ConfidencePolicy)
	if err != nil {
		return nil, err
	}

	fields := opts.Fields
	if len(fields) == 0 {
		fields, err = config.LoadFields(cfg.AuthorityFieldsFile)
		if err != nil {
			return nil, err
		}
	}

	dbInstance := opts.DB
	if dbInstance == nil {
		dbInstance, err = OpenDatabase(cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	index := opts.Index
	if index == nil {
		index, err = search.NewHTTPIndex(search.HTTPIndexConfig{
			BaseURL:   cfg.IndexURL,
			IDPath:    cfg.IndexIDPath,
			TotalPath: cfg.IndexTotalPath,
			Timeout:   cfg.IndexTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
	}

	a := &App{
		Config:      cfg,
		Logger:      logger,
		DB:          dbInstance,
		Identities:  identity.NewRepository(dbInstance, logger),
		Items:       item.NewRepository(dbInstance, logger),
		Matches:     potentialmatch.NewRepository(dbInstance, logger),
		Preferences: relationpreference.NewRepository(dbInstance, logger),
		Index:       index,
		Retriever: search.NewRetriever(index, search.RetrieverConfig{
			IndexName:      cfg.IndexName,
			AuthorityField: cfg.IndexAuthorityField,
			ScopeField:     cfg.IndexScopeField,
			PageSize:       cfg.IndexPageSize,
			PartialMatch:   cfg.IndexPartialMatch,
		}, logger),
		Scorer:  scoring.NewScorer(fields, policy, logger),
		startup: startup.NewStartup(logger, cfg.StartupMaxAttempts),
	}
	a.registerDependencies()
	return a, nil
}

// OpenDatabase opens the configured driver. Nothing is dialed until first use.
func OpenDatabase(cfg *config.Config, logger ectologger.Logger) (database.DB, error) {
	sqlxDB, err := sqlx.Open(cfg.DatabaseDriver, cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.DatabaseDriver, err)
	}

	if cfg.DatabaseDriver == "sqlite" {
		// one writer; every query inside a unit of work goes through its tx
		sqlxDB.SetMaxOpenConns(1)
	} else {
		sqlxDB.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
		sqlxDB.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
		sqlxDB.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)
	}

	return database.NewDatabaseInstance(sqlxDB, logger), nil
}

// Migrate brings the schema to the configured version, or the latest.
func (a *App) Migrate(ctx context.Context) error {
	version := uint(a.Config.DatabaseMigrationVersion)
	if version == 0 {
		latest, err := database.LatestVersion(db.Migrations())
		if err != nil {
			return err
		}
		version = uint(latest)
	}

	migrations := database.NewMigrationService(a.Logger, &database.MigrationConfig{
		Migrations:   db.Migrations(),
		Version:      version,
		Force:        a.Config.DatabaseMigrationForce,
		AutoRollback: a.Config.DatabaseMigrationAutoRollback,
	})
	return migrations.Migrate(ctx, a.Config.DatabaseName, a.DB)
}

func (a *App) registerDependencies() {
	cfg := a.Config
	services := []string{"database"}

	a.startup.AddDependency(startup.Func{
		Name:    "database",
		OnStart: func(ctx context.Context) error { return a.DB.PingContext(ctx) },
		OnStop:  func(context.Context) error { return a.DB.Close() },
	})

	if cfg.RedisEnabled {
		services = append(services, "redis")
		a.startup.AddDependency(startup.Func{
			Name: "redis",
			OnStart: func(ctx context.Context) error {
				client, err := redis.NewClient(ctx, redis.Config{
					Host:     cfg.RedisHost,
					Port:     cfg.RedisPort,
					Password: cfg.RedisPassword,
					DB:       cfg.RedisDB,
				}, a.Logger)
				if err != nil {
					return err
				}
				a.Redis = client
				return nil
			},
			OnStop: func(context.Context) error { return a.Redis.Close() },
		})
	}

	if cfg.GraphEnabled {
		services = append(services, "graph")
		a.startup.AddDependency(startup.Func{
			Name: "graph",
			OnStart: func(ctx context.Context) error {
				client, err := graph.NewClient(graph.Config{
					Host:     cfg.GraphDBHost,
					Port:     cfg.GraphDBPort,
					Username: cfg.GraphDBUser,
					Password: cfg.GraphDBPassword,
				}, a.Logger)
				if err != nil {
					return err
				}
				if err := client.VerifyConnectivity(ctx); err != nil {
					_ = client.Close(ctx)
					return err
				}
				a.Graph = client
				return nil
			},
			OnStop: func(ctx context.Context) error { return a.Graph.Close(ctx) },
		})
	}

	if cfg.KafkaProducerEnabled {
		services = append(services, "kafka-producer")
		a.startup.AddDependency(startup.Func{
			Name: "kafka-producer",
			OnStart: func(context.Context) error {
				a.Producer = kafka.NewProducer(kafka.ProducerConfig{
					Brokers:      cfg.KafkaBrokers,
					Topic:        cfg.KafkaOutputTopic,
					BatchSize:    cfg.KafkaBatchSize,
					BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
					RequiredAcks: cfg.KafkaRequiredAcks,
				}, a.Logger)
				return nil
			},
			OnStop: func(context.Context) error { return a.Producer.Close() },
		})
	}

	a.startup.AddDependency(startup.Func{
		Name:     "services",
		Requires: services,
		OnStart:  func(context.Context) error { return a.buildServices() },
	})
}

func (a *App) buildServices() error {
	cfg := a.Config

	nameScorer, err := scoring.ResolveNameScorer(cfg.AuthorityStrategy, scoring.StrategyDeps{
		Index:             a.Index,
		IdentityIndexName: cfg.IdentityIndexName,
		Identities:        a.Identities,
	})
	if err != nil {
		return err
	}

	var locker authority.IdentityLocker
	if a.Redis != nil {
		locker = redis.NewLocker(a.Redis)
	}

	runner, err := authority.NewRunner(authority.RunnerDeps{
		Identities:  a.Identities,
		Items:       a.Items,
		Preferences: a.Preferences,
		Retriever:   a.Retriever,
		Scorer:      a.Scorer,
		NameScorer:  nameScorer,
		Writer:      authority.NewWriter(a.DB, a.Items, a.Logger),
		Locker:      locker,
		Logger:      a.Logger,
	}, authority.RunnerConfig{
		RelationName: cfg.DefaultRelationName,
		Scope:        cfg.DefaultScope,
		LockTTL:      cfg.RedisLockTTL,
	})
	if err != nil {
		return err
	}
	a.Runner = runner

	a.Review = review.NewService(review.Deps{
		DB:          a.DB,
		Identities:  a.Identities,
		Items:       a.Items,
		Matches:     a.Matches,
		Preferences: a.Preferences,
		Retriever:   a.Retriever,
		Logger:      a.Logger,
	}, review.Config{
		RelationName: cfg.DefaultRelationName,
		Scope:        cfg.DefaultScope,
		Fields:       a.Scorer.Fields(),
	})
	if a.Producer != nil {
		a.Review.AddObserver(events.NewEmitter(a.Producer, a.Logger))
	}
	if a.Graph != nil {
		a.Authorship = graph.NewAuthorshipProjection(a.Graph, a.Logger)
		a.Review.AddObserver(a.Authorship)
	}
	return nil
}

// AddDependency registers a process-level dependency started after the services.
func (a *App) AddDependency(dependency startup.StartupDependency) {
	a.startup.AddDependency(dependency)
}

// Start connects infrastructure with retry and builds the services.
func (a *App) Start(ctx context.Context) error {
	return a.startup.Start(ctx)
}

// Stop releases everything Start acquired, in reverse order.
func (a *App) Stop(ctx context.Context) error {
	return a.startup.Stop(ctx)
}
