// Package module wires the items read model and exposes its ports
package module

import (
	"tripwire/internal/modkit"
	"tripwire/internal/modkit/httpkit"
	"tripwire/internal/services/items/domain"
	"tripwire/internal/services/items/service"
)

// Ports defines items module ports exposed via the registry
type Ports struct {
	Reader domain.ReaderPort
}

// Module defines the items module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the items module with its ports
func New(deps modkit.Deps) *Module {
	m := &Module{deps: deps}
	m.ports = Ports{Reader: service.New(deps)}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "items" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes returns no HTTP routes for items (the api module reads through ports)
func (m *Module) MountRoutes(_ httpkit.Router) {}
