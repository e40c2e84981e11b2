package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/campaign"
	"github.com/sells-group/leadgen/internal/crm"
	"github.com/sells-group/leadgen/internal/events"
	"github.com/sells-group/leadgen/internal/pipeline"
	"github.com/sells-group/leadgen/internal/provider"
	"github.com/sells-group/leadgen/internal/scoring"
	"github.com/sells-group/leadgen/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leadgen.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens and migrates the store for the admin commands.
func openStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// appEnv holds everything the generate, campaign, scheduler and serve
// commands share.
type appEnv struct {
	Store     store.Store
	Providers *provider.Set
	Pipeline  *pipeline.Pipeline
	Campaigns *campaign.Service
	Events    events.Publisher
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Events != nil {
		if err := e.Events.Close(); err != nil {
			zap.L().Warn("close event publisher", zap.Error(err))
		}
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv wires the store, provider gates, scoring rules, the pipeline and
// the campaign service. Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	if err := cfg.Validate("pipeline"); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &appEnv{Store: st}

	env.Providers, err = provider.NewSet(cfg)
	if err != nil {
		env.Close()
		return nil, err
	}

	rules := scoring.DefaultRules()
	if cfg.Scoring.RulesFile != "" {
		rules, err = scoring.LoadRules(cfg.Scoring.RulesFile)
		if err != nil {
			env.Close()
			return nil, err
		}
		zap.L().Info("loaded scoring rules", zap.String("path", cfg.Scoring.RulesFile))
	}

	var opts []pipeline.Option
	if cfg.Salesforce.PushOnGenerate {
		sf, err := crm.Connect(cfg.Salesforce)
		if err != nil {
			env.Close()
			return nil, err
		}
		opts = append(opts, pipeline.WithPusher(crm.NewExporter(sf, st)))
		zap.L().Info("salesforce export enabled")
	}

	env.Pipeline = pipeline.New(st,
		env.Providers.Apollo, env.Providers.Hunter, env.Providers.LinkedIn,
		scoring.NewEngine(rules), cfg.Pipeline, opts...,
	)

	env.Events, err = events.New(cfg.Events)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Campaigns = campaign.NewService(st, env.Pipeline, env.Events)
	return env, nil
}
