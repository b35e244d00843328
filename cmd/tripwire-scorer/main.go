package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"tripwire/internal/modkit"
	"tripwire/internal/modkit/module"
	"tripwire/internal/platform/config"
	"tripwire/internal/platform/logger"
	"tripwire/internal/platform/store"

	channelsmod "tripwire/internal/services/channels/module"
	scorermod "tripwire/internal/services/scorer/module"
)

func main() {
	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	rdsCfg := root.Prefix("SERVICE_REDIS_")

	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.Config{
		AppName: "tripwire",
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 8)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
			Migrate:     pgCfg.MayBool("MIGRATE", false),
		},
		RDS: store.RedisConfig{
			Enabled: rdsCfg.MayBool("ENABLED", false),
			Addr:    rdsCfg.MayString("ADDR", "localhost:6379"),
			DB:      rdsCfg.MayInt("DB", 0),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	deps := modkit.Deps{Log: *l, Cfg: root, PG: st.PG, RDS: st.RDS}

	channelsM := channelsmod.New(deps)
	cp := channelsM.Ports().(channelsmod.Ports)

	scorerM := scorermod.New(deps, cp.Reader)

	for _, m := range []module.Module{channelsM, scorerM} {
		module.Register(m.Name(), m.Ports())
	}

	if err := scorerM.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		l.Fatal().Err(err).Msg("scorer worker failed")
	}
	l.Info().Msg("scorer worker stopped")
}
