package module

import "tripwire/internal/services/channels/domain"

// Ports defines channels module ports exposed via the registry
type Ports struct {
	Reader domain.ReaderPort
	Writer domain.WriterPort
	Sweep  domain.SweepPort
}
