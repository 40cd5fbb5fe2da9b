package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/keepnetlabs/mailtriage/internal/fetcher"
	"github.com/keepnetlabs/mailtriage/internal/pipeline"
	"github.com/keepnetlabs/mailtriage/internal/resilience"
	"github.com/keepnetlabs/mailtriage/internal/store"
	anthropicpkg "github.com/keepnetlabs/mailtriage/pkg/anthropic"
)

// pipelineEnv holds the initialized store and pipeline for the analyze and
// serve commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens the configured persistence backend and runs migrations.
func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	var err error

	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "sqlite", "":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "none":
		return store.NopStore{}, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initPipeline sets up the store, the inference client, and the fetcher, and
// builds the Pipeline. Callers should defer env.Close(). With offline set the
// pipeline runs against the stub inference client and a NopStore.
func initPipeline(ctx context.Context, offline bool) (*pipelineEnv, error) {
	var st store.Store
	var err error

	if offline {
		st = store.NopStore{}
	} else {
		st, err = initStore(ctx)
		if err != nil {
			return nil, err
		}
	}

	var ai anthropicpkg.Client
	if offline {
		ai = &pipeline.StubInferenceClient{}
	} else {
		if cfg.Anthropic.Key == "" {
			_ = st.Close()
			return nil, eris.New("MAILTRIAGE_ANTHROPIC_KEY is not set")
		}
		ai = anthropicpkg.NewClient(cfg.Anthropic.Key,
			anthropicpkg.WithRequestsPerSecond(cfg.Anthropic.RequestsPerSecond))
	}

	fc := fetcher.New(
		fetcher.WithTimeout(time.Duration(cfg.Source.TimeoutSecs)*time.Second),
		fetcher.WithRetryConfig(resilience.FromConfig(
			cfg.Pipeline.RetryMaxAttempts,
			cfg.Pipeline.RetryInitialDelayMs,
			cfg.Pipeline.RetryMaxDelayMs,
		)),
	)

	return &pipelineEnv{
		Store:    st,
		Pipeline: pipeline.New(cfg, st, ai, fc),
	}, nil
}
