package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ibimina/ingest-core/internal/adapter"
	"github.com/ibimina/ingest-core/internal/adapter/rw"
	"github.com/ibimina/ingest-core/internal/registry"
	"github.com/ibimina/ingest-core/internal/session"
)

// initRegistry builds the adapter registry, applying tuned confidence
// weights when a weights file is configured.
func initRegistry() (*registry.Registry, error) {
	if cfg.Adapters.WeightsFile == "" {
		return registry.NewWithDefaults(), nil
	}

	weights, err := adapter.LoadWeights(cfg.Adapters.WeightsFile)
	if err != nil {
		return nil, err
	}
	zap.L().Info("loaded adapter confidence weights",
		zap.String("file", cfg.Adapters.WeightsFile),
	)

	reg := registry.New()
	reg.Register(registry.Entry{
		Adapter:      rw.NewMTNStatementAdapterWithWeights(*weights.Statement),
		Type:         adapter.TypeStatement,
		CountryISO3:  "RWA",
		ProviderName: "MTN Rwanda",
		Priority:     100,
	})
	reg.Register(registry.Entry{
		Adapter:      rw.NewMTNSMSAdapterWithWeights(*weights.SMS),
		Type:         adapter.TypeSMS,
		CountryISO3:  "RWA",
		ProviderName: "MTN Rwanda",
		Priority:     100,
	})
	return reg, nil
}

// initSessionStore builds the session store driver selected in config.
// Callers should defer st.Close().
func initSessionStore(ctx context.Context) (session.Store, error) {
	opts := session.Options{
		Driver:     session.Driver(cfg.Session.Driver),
		ConnString: cfg.Session.DatabaseURL,
		RedisAddr:  cfg.Session.RedisAddr,
		SQLitePath: cfg.Session.SQLitePath,
		Table:      cfg.Session.Table,
		Namespace:  cfg.Session.Namespace,
		TTLSeconds: cfg.Session.TTLSeconds,
	}

	st, err := session.New(ctx, opts)
	if err != nil {
		return nil, eris.Wrap(err, "init session store")
	}
	return st, nil
}
