// Package module wires the scorer worker
package module

import (
	"context"
	"time"

	"tripwire/internal/core/risk"
	"tripwire/internal/core/sampling"
	"tripwire/internal/modkit"
	"tripwire/internal/modkit/httpkit"
	"tripwire/internal/platform/config"
	chandomain "tripwire/internal/services/channels/domain"
	"tripwire/internal/services/scorer/service"
)

// Options controls scorer behavior. Values may also be read from env
type Options struct {
	BatchSize    int
	LeaseFor     time.Duration
	MaxAttempts  int
	RetryBase    time.Duration
	PollInterval time.Duration
}

// FromConfig reads options using the SCORER_ prefix
func FromConfig(cfg config.Conf) Options {
	sc := cfg.Prefix("SCORER_")
	return Options{
		BatchSize:    sc.MayInt("BATCH_SIZE", 50),
		LeaseFor:     sc.MayDuration("LEASE_FOR", 2*time.Minute),
		MaxAttempts:  sc.MayInt("MAX_ATTEMPTS", 5),
		RetryBase:    sc.MayDuration("RETRY_BASE", 30*time.Second),
		PollInterval: sc.MayDuration("POLL_INTERVAL", 5*time.Second),
	}
}

// Module defines the scorer module
type Module struct {
	deps modkit.Deps
	opts Options
	svc  *service.Svc
}

// New constructs the scorer module
func New(deps modkit.Deps, channels chandomain.ReaderPort) *Module {
	opts := FromConfig(deps.Cfg)

	svc := service.New(deps, channels, service.Config{
		BatchSize:   opts.BatchSize,
		LeaseFor:    opts.LeaseFor,
		MaxAttempts: opts.MaxAttempts,
		RetryBase:   opts.RetryBase,
		Risk:        risk.Default(),
		Sampling:    sampling.Default(),
	})
	return &Module{deps: deps, opts: opts, svc: svc}
}

// Name returns the module name
func (m *Module) Name() string { return "scorer" }

// Ports returns no ports, the scorer only consumes
func (m *Module) Ports() any { return struct{}{} }

// MountRoutes returns no HTTP routes for scorer
func (m *Module) MountRoutes(_ httpkit.Router) {}

// Run starts the scoring loop, blocking until ctx is done
func (m *Module) Run(ctx context.Context) error {
	return m.svc.Run(ctx, m.opts.PollInterval)
}
