// Package module wires the audit trail sink
package module

import (
	"context"
	"time"

	"tripwire/internal/modkit"
	"tripwire/internal/modkit/httpkit"
	"tripwire/internal/platform/config"
	"tripwire/internal/services/audit/domain"
	"tripwire/internal/services/audit/service"
)

// Options controls audit buffering. Values may also be read from env
type Options struct {
	FlushEvery time.Duration
	FlushAt    int
	BufferCap  int
}

// FromConfig reads options using the AUDIT_ prefix
func FromConfig(cfg config.Conf) Options {
	ac := cfg.Prefix("AUDIT_")
	return Options{
		FlushEvery: ac.MayDuration("FLUSH_EVERY", 5*time.Second),
		FlushAt:    ac.MayInt("FLUSH_AT", 256),
		BufferCap:  ac.MayInt("BUFFER_CAP", 8192),
	}
}

// Ports defines audit module ports exposed via the registry
type Ports struct {
	Recorder domain.RecorderPort
}

// Module defines the audit module
type Module struct {
	deps     modkit.Deps
	ports    Ports
	recorder *service.Recorder
}

// New constructs the audit module. Without a columnar backend the recorder
// degrades to a noop so producers stay oblivious
func New(deps modkit.Deps) *Module {
	m := &Module{deps: deps}
	if deps.CH == nil {
		m.ports = Ports{Recorder: domain.Noop{}}
		return m
	}

	opts := FromConfig(deps.Cfg)
	m.recorder = service.NewRecorder(deps.CH, service.Config{
		FlushEvery: opts.FlushEvery,
		FlushAt:    opts.FlushAt,
		BufferCap:  opts.BufferCap,
	})
	m.ports = Ports{Recorder: m.recorder}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "audit" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes returns no HTTP routes for audit
func (m *Module) MountRoutes(_ httpkit.Router) {}

// Run creates the schema and flushes buffers until ctx is done
// with no backend it blocks idle so callers can treat it uniformly
func (m *Module) Run(ctx context.Context) error {
	if m.recorder == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := m.recorder.EnsureSchema(ctx); err != nil {
		return err
	}
	return m.recorder.Run(ctx)
}
