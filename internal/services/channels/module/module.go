// Package module wires the channels service and exposes its ports
package module

import (
	"tripwire/internal/modkit"
	"tripwire/internal/modkit/httpkit"
	"tripwire/internal/services/channels/service"
)

// Module defines the channels module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the channels module with its ports
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)

	svc := service.New(deps, service.Config{
		CacheTTL: opts.CacheTTL,
	})

	m := &Module{deps: deps}
	m.ports = Ports{
		Reader: svc,
		Writer: svc,
		Sweep:  svc,
	}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "channels" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes returns no HTTP routes for channels (the api module reads through ports)
func (m *Module) MountRoutes(_ httpkit.Router) {}
