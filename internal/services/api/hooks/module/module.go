// Package module wires the webhook endpoints using modkit
package module

import (
	"tripwire/internal/modkit"
	"tripwire/internal/modkit/httpkit"

	hookshttp "tripwire/internal/services/api/hooks/http"
)

// Ports re-exports the intake surfaces the hooks module consumes
type Ports = hookshttp.Ports

// Module implements the hooks module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the hooks module
// callers inject the intake ports with modkit.WithPorts(Ports{...})
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("hooks")}, opts...)...)

	p, ok := b.Ports.(Ports)
	if !ok {
		panic("hooks module requires Ports via modkit.WithPorts")
	}
	if p.Ingest == nil || p.Results == nil {
		panic("hooks module requires both intake ports to be set")
	}
	return &Module{deps: deps, ports: p}
}

// Name returns the module name
func (m *Module) Name() string { return "hooks" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes mounts the webhook endpoints on the given router
func (m *Module) MountRoutes(r httpkit.Router) {
	hookshttp.Register(r, m.ports)
}
