package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"tripwire/internal/modkit"
	"tripwire/internal/modkit/module"
	"tripwire/internal/platform/config"
	"tripwire/internal/platform/logger"
	"tripwire/internal/platform/store"

	auditmod "tripwire/internal/services/audit/module"
	channelsmod "tripwire/internal/services/channels/module"
	discoverymod "tripwire/internal/services/discovery/module"
	ledgermod "tripwire/internal/services/ledger/module"
)

func main() {
	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")
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
		CH: store.CHConfig{
			Enabled:   chCfg.MayBool("ENABLED", false),
			URL:       chCfg.MayString("DBURL", ""),
			ClientTag: "discovery",
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

	deps := modkit.Deps{Log: *l, Cfg: root, PG: st.PG, CH: st.CH, RDS: st.RDS}

	auditM := auditmod.New(deps)
	rec := auditM.Ports().(auditmod.Ports).Recorder

	ledgerM := ledgermod.New(deps, rec)
	lp := ledgerM.Ports().(ledgermod.Ports)

	channelsM := channelsmod.New(deps)
	cp := channelsM.Ports().(channelsmod.Ports)

	discoveryM := discoverymod.New(deps, lp.Ledger, cp.Sweep)

	for _, m := range []module.Module{auditM, ledgerM, channelsM, discoveryM} {
		module.Register(m.Name(), m.Ports())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return auditM.Run(gctx) })
	g.Go(func() error { return discoveryM.Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		l.Fatal().Err(err).Msg("discovery worker failed")
	}
	l.Info().Msg("discovery worker stopped")
}
