// Package module wires the scheduler worker
package module

import (
	"context"
	"time"

	"tripwire/internal/adapters/vision"
	"tripwire/internal/modkit"
	"tripwire/internal/modkit/httpkit"
	"tripwire/internal/platform/config"
	auditdomain "tripwire/internal/services/audit/domain"
	ledgerdomain "tripwire/internal/services/ledger/domain"
	"tripwire/internal/services/scheduler/service"
)

// Options controls scheduler behavior. Values may also be read from env
type Options struct {
	BatchSize            int
	Concurrency          int
	LeaseFor             time.Duration
	MaxAttempts          int
	RetryBase            time.Duration
	PollInterval         time.Duration
	RecoveryGrace        time.Duration
	RecoveryEvery        time.Duration
	CostPerSampledSecond float64

	VisionURL string
	VisionKey string
}

// FromConfig reads options using the SCHEDULER_ prefix
func FromConfig(cfg config.Conf) Options {
	sc := cfg.Prefix("SCHEDULER_")
	return Options{
		BatchSize:            sc.MayInt("BATCH_SIZE", 20),
		Concurrency:          sc.MayInt("CONCURRENCY", 4),
		LeaseFor:             sc.MayDuration("LEASE_FOR", 10*time.Minute),
		MaxAttempts:          sc.MayInt("MAX_ATTEMPTS", 5),
		RetryBase:            sc.MayDuration("RETRY_BASE", time.Minute),
		PollInterval:         sc.MayDuration("POLL_INTERVAL", 5*time.Second),
		RecoveryGrace:        sc.MayDuration("RECOVERY_GRACE", 30*time.Minute),
		RecoveryEvery:        sc.MayDuration("RECOVERY_EVERY", 10*time.Minute),
		CostPerSampledSecond: sc.MayFloat64("COST_PER_SAMPLED_SECOND", 0.10),
		VisionURL:            sc.MayString("VISION_URL", "http://localhost:8082"),
		VisionKey:            sc.MayString("VISION_KEY", ""),
	}
}

// Module defines the scheduler module
type Module struct {
	deps modkit.Deps
	opts Options
	svc  *service.Svc
}

// New constructs the scheduler module
// audit may be nil when no sink is wired
func New(deps modkit.Deps, ledger ledgerdomain.LedgerPort, audit auditdomain.RecorderPort) *Module {
	opts := FromConfig(deps.Cfg)

	vis := vision.NewClient(vision.Options{
		BaseURL: opts.VisionURL,
		APIKey:  opts.VisionKey,
	})
	svc := service.New(deps, ledger, vis, service.Config{
		BatchSize:            opts.BatchSize,
		Concurrency:          opts.Concurrency,
		LeaseFor:             opts.LeaseFor,
		MaxAttempts:          opts.MaxAttempts,
		RetryBase:            opts.RetryBase,
		CostPerSampledSecond: opts.CostPerSampledSecond,
		Audit:                audit,
	})
	return &Module{deps: deps, opts: opts, svc: svc}
}

// Name returns the module name
func (m *Module) Name() string { return "scheduler" }

// Ports returns no ports, the scheduler only consumes
func (m *Module) Ports() any { return struct{}{} }

// MountRoutes returns no HTTP routes for scheduler
func (m *Module) MountRoutes(_ httpkit.Router) {}

// Run starts the dispatch loop, blocking until ctx is done
func (m *Module) Run(ctx context.Context) error {
	return m.svc.Run(ctx, service.RunOptions{
		Poll:          m.opts.PollInterval,
		RecoveryGrace: m.opts.RecoveryGrace,
		RecoveryEvery: m.opts.RecoveryEvery,
	})
}
