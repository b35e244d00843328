package module

import "tripwire/internal/services/ledger/domain"

// Ports defines ledger module ports exposed via the registry
type Ports struct {
	Ledger domain.LedgerPort
	Reader domain.ReaderPort
}
