package module

import "tripwire/internal/services/discovery/domain"

// Ports defines discovery module ports exposed via the registry
type Ports struct {
	Ingest domain.IngestPort
	Quota  domain.QuotaPort
}
