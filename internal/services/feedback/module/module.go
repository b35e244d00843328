// Package module wires the feedback worker
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
	"tripwire/internal/services/feedback/domain"
	"tripwire/internal/services/feedback/service"
)

// Ports defines feedback module ports exposed via the registry
type Ports struct {
	Intake domain.IntakePort
}

// Options controls feedback behavior. Values may also be read from env
type Options struct {
	BatchSize    int
	LeaseFor     time.Duration
	MaxAttempts  int
	RetryBase    time.Duration
	RescoreLimit int
	PollInterval time.Duration
}

// FromConfig reads options using the FEEDBACK_ prefix
func FromConfig(cfg config.Conf) Options {
	fc := cfg.Prefix("FEEDBACK_")
	return Options{
		BatchSize:    fc.MayInt("BATCH_SIZE", 100),
		LeaseFor:     fc.MayDuration("LEASE_FOR", 2*time.Minute),
		MaxAttempts:  fc.MayInt("MAX_ATTEMPTS", 5),
		RetryBase:    fc.MayDuration("RETRY_BASE", 30*time.Second),
		RescoreLimit: fc.MayInt("RESCORE_LIMIT", 500),
		PollInterval: fc.MayDuration("POLL_INTERVAL", 5*time.Second),
	}
}

// Module defines the feedback module
type Module struct {
	deps  modkit.Deps
	opts  Options
	svc   *service.Svc
	ports Ports
}

// New constructs the feedback module
func New(deps modkit.Deps, channels chandomain.WriterPort) *Module {
	opts := FromConfig(deps.Cfg)

	svc := service.New(deps, channels, service.Config{
		BatchSize:    opts.BatchSize,
		LeaseFor:     opts.LeaseFor,
		MaxAttempts:  opts.MaxAttempts,
		RetryBase:    opts.RetryBase,
		RescoreLimit: opts.RescoreLimit,
		Risk:         risk.Default(),
		Sampling:     sampling.Default(),
	})
	m := &Module{deps: deps, opts: opts, svc: svc}
	m.ports = Ports{Intake: svc}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "feedback" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes returns no HTTP routes for feedback
func (m *Module) MountRoutes(_ httpkit.Router) {}

// Run starts the fold loop, blocking until ctx is done
func (m *Module) Run(ctx context.Context) error {
	return m.svc.Run(ctx, m.opts.PollInterval)
}
