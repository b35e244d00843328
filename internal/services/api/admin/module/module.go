// Package module wires the admin read endpoints using modkit
package module

import (
	"tripwire/internal/modkit"
	"tripwire/internal/modkit/httpkit"

	adminhttp "tripwire/internal/services/api/admin/http"
)

// Ports re-exports the read surfaces the admin module consumes
type Ports = adminhttp.Ports

// Module implements the admin module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the admin module
// callers inject the read ports with modkit.WithPorts(Ports{...})
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("admin")}, opts...)...)

	p, ok := b.Ports.(Ports)
	if !ok {
		panic("admin module requires Ports via modkit.WithPorts")
	}
	if p.Ledger == nil || p.Quota == nil || p.Channels == nil || p.Items == nil {
		panic("admin module requires all read ports to be set")
	}
	return &Module{deps: deps, ports: p}
}

// Name returns the module name
func (m *Module) Name() string { return "admin" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes mounts the admin endpoints on the given router
func (m *Module) MountRoutes(r httpkit.Router) {
	adminhttp.Register(r, m.ports)
}
