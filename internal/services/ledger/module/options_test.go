package module

import (
	"testing"

	"tripwire/internal/platform/config"
	"tripwire/internal/platform/testkit"
	"tripwire/internal/services/ledger/domain"
)

// confWithNoEnv namespaces reads away from any real environment
func confWithNoEnv() config.Conf { return config.New().Prefix("TEST_UNSET_") }

func TestAllocations_Split(t *testing.T) {
	o := Options{
		AnalysisDaily:  260,
		DiscoveryDaily: 1000,
		SplitTracking:  70,
		SplitTrending:  20,
		SplitKeyword:   10,
	}
	a := o.Allocations()

	if got := a[domain.ResourceAnalysis]; got != 260 {
		t.Fatalf("analysis = %v, want 260", got)
	}
	if got := a[domain.ResourceTracking]; got != 700 {
		t.Fatalf("tracking = %v, want 700", got)
	}
	if got := a[domain.ResourceTrending]; got != 200 {
		t.Fatalf("trending = %v, want 200", got)
	}
	if got := a[domain.ResourceKeyword]; got != 100 {
		t.Fatalf("keyword = %v, want 100", got)
	}
}

func TestAllocations_BadSplitPanics(t *testing.T) {
	o := Options{DiscoveryDaily: 1000, SplitTracking: 70, SplitTrending: 20, SplitKeyword: 20}
	testkit.MustPanic(t, func() { _ = o.Allocations() })
}

func TestFromConfig_Defaults(t *testing.T) {
	o := FromConfig(confWithNoEnv())
	if o.SplitTracking+o.SplitTrending+o.SplitKeyword != 100 {
		t.Fatalf("default split must sum to 100, got %+v", o)
	}
	if o.AnalysisDaily <= 0 || o.DiscoveryDaily <= 0 {
		t.Fatalf("default budgets must be positive, got %+v", o)
	}
}
