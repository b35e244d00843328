// Package module wires the discovery service and exposes its ports
package module

import (
	"context"

	"tripwire/internal/adapters/catalog"
	"tripwire/internal/modkit"
	"tripwire/internal/modkit/httpkit"
	chandomain "tripwire/internal/services/channels/domain"
	"tripwire/internal/services/discovery/service"
	ledgerdomain "tripwire/internal/services/ledger/domain"
)

// Module defines the discovery module
type Module struct {
	deps  modkit.Deps
	opts  Options
	svc   *service.Svc
	ports Ports
}

// New constructs the discovery module with its ports
func New(deps modkit.Deps, ledger ledgerdomain.LedgerPort, sweep chandomain.SweepPort) *Module {
	opts := FromConfig(deps.Cfg)

	cat := catalog.NewClient(catalog.Options{
		BaseURL: opts.CatalogURL,
		APIKey:  opts.CatalogKey,
		RPS:     opts.CatalogRPS,
	})
	svc := service.New(deps, ledger, sweep, cat, service.Config{
		SweepBatch: opts.SweepBatch,
		Keywords:   opts.Keywords,
	})

	m := &Module{deps: deps, opts: opts, svc: svc}
	m.ports = Ports{
		Ingest: svc,
		Quota:  svc,
	}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "discovery" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes returns no HTTP routes for discovery (the api module reads through ports)
func (m *Module) MountRoutes(_ httpkit.Router) {}

// Run starts the strategy loop, blocking until ctx is done
func (m *Module) Run(ctx context.Context) error {
	return m.svc.Run(ctx, service.RunOptions{
		TickInterval:  m.opts.TickInterval,
		TrendingEvery: m.opts.TrendingEvery,
		KeywordEvery:  m.opts.KeywordEvery,
	})
}
