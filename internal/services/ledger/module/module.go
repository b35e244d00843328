// Package module wires the ledger service and exposes its ports
package module

import (
	"tripwire/internal/modkit"
	"tripwire/internal/modkit/httpkit"

	auditdomain "tripwire/internal/services/audit/domain"
	"tripwire/internal/services/ledger/service"
)

// Module defines the ledger module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the ledger module with its ports
// audit may be nil when no sink is wired
func New(deps modkit.Deps, audit auditdomain.RecorderPort) *Module {
	opts := FromConfig(deps.Cfg)

	svc := service.New(deps, service.Config{
		Allocations: opts.Allocations(),
		Audit:       audit,
	})

	m := &Module{deps: deps}
	m.ports = Ports{
		Ledger: svc,
		Reader: svc,
	}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "ledger" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes returns no HTTP routes for ledger (the api module reads through ports)
func (m *Module) MountRoutes(_ httpkit.Router) {}
