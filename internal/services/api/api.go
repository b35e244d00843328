// Package api provides the HTTP surface for the pipeline
package api

import (
	"tripwire/internal/platform/config"
	"tripwire/internal/platform/logger"
	"tripwire/internal/platform/metrics"
	phttp "tripwire/internal/platform/net/http"
	"tripwire/internal/platform/store"

	"tripwire/internal/modkit"
	"tripwire/internal/modkit/httpkit"
	"tripwire/internal/modkit/module"

	adminmod "tripwire/internal/services/api/admin/module"
	hooksmod "tripwire/internal/services/api/hooks/module"

	auditdomain "tripwire/internal/services/audit/domain"
	channelsmod "tripwire/internal/services/channels/module"
	discoverymod "tripwire/internal/services/discovery/module"
	feedbackmod "tripwire/internal/services/feedback/module"
	itemsmod "tripwire/internal/services/items/module"
	ledgermod "tripwire/internal/services/ledger/module"
)

// Options are the API options
type Options struct {
	Config config.Conf
	Store  *store.Store
	Logger *logger.Logger
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) {
	deps := modkit.Deps{
		Log: *opt.Logger,
		Cfg: opt.Config,
		PG:  opt.Store.PG,
		CH:  opt.Store.CH,
		RDS: opt.Store.RDS,
	}

	// worker modules own the ports the HTTP surface reads through
	// the API binary never spends budget, so the ledger gets a noop audit sink
	ledgerM := ledgermod.New(deps, auditdomain.Noop{})
	lp := ledgerM.Ports().(ledgermod.Ports)

	channelsM := channelsmod.New(deps)
	cp := channelsM.Ports().(channelsmod.Ports)

	discoveryM := discoverymod.New(deps, lp.Ledger, cp.Sweep)
	dp := discoveryM.Ports().(discoverymod.Ports)

	itemsM := itemsmod.New(deps)
	ip := itemsM.Ports().(itemsmod.Ports)

	feedbackM := feedbackmod.New(deps, cp.Writer)
	fp := feedbackM.Ports().(feedbackmod.Ports)

	adminM := adminmod.New(deps, modkit.WithPorts(adminmod.Ports{
		Ledger:   lp.Reader,
		Quota:    dp.Quota,
		Channels: cp.Reader,
		Items:    ip.Reader,
	}))
	hooksM := hooksmod.New(deps, modkit.WithPorts(hooksmod.Ports{
		Ingest:  dp.Ingest,
		Results: fp.Intake,
	}))

	for _, m := range []module.Module{ledgerM, channelsM, discoveryM, itemsM, feedbackM, adminM, hooksM} {
		module.Register(m.Name(), m.Ports())
	}

	// common stack at the root serves /health for probes
	r.Use(httpkit.CommonStack()...)

	httpkit.MountUnder(r, "/api/v1", nil, adminM.MountRoutes)
	httpkit.MountUnder(r, "/hooks", nil, hooksM.MountRoutes)

	r.Handle("/metrics", metrics.Handler())
}
