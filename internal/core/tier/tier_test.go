package tier

import (
	"testing"
	"time"
)

func TestClassify_Table(t *testing.T) {
	tests := []struct {
		name       string
		violations int
		scanned    int
		want       Tier
	}{
		{name: "no history defaults bronze", violations: 0, scanned: 0, want: Bronze},
		{name: "clean but thin history stays bronze", violations: 0, scanned: 19, want: Bronze},
		{name: "clean deep history parks as ignore", violations: 0, scanned: 20, want: Ignore},
		{name: "clean very deep history parks as ignore", violations: 0, scanned: 500, want: Ignore},
		{name: "rate just above zero is bronze", violations: 1, scanned: 100, want: Bronze},
		{name: "ten percent boundary is bronze", violations: 10, scanned: 100, want: Bronze},
		{name: "just over ten percent is silver", violations: 11, scanned: 100, want: Silver},
		{name: "quarter boundary is silver", violations: 25, scanned: 100, want: Silver},
		{name: "six of twenty is gold", violations: 6, scanned: 20, want: Gold},
		{name: "half boundary is gold", violations: 50, scanned: 100, want: Gold},
		{name: "just over half is platinum", violations: 51, scanned: 100, want: Platinum},
		{name: "all violations is platinum", violations: 20, scanned: 20, want: Platinum},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.violations, tc.scanned); got != tc.want {
				t.Fatalf("Classify(%d, %d) = %s, want %s", tc.violations, tc.scanned, got, tc.want)
			}
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	for i := 0; i < 100; i++ {
		if got := Classify(6, 20); got != Gold {
			t.Fatalf("pass %d: Classify(6, 20) = %s, want GOLD", i, got)
		}
	}
}

func TestCadence(t *testing.T) {
	tests := []struct {
		tier Tier
		want time.Duration
		ok   bool
	}{
		{Platinum, 24 * time.Hour, true},
		{Gold, 72 * time.Hour, true},
		{Silver, 7 * 24 * time.Hour, true},
		{Bronze, 30 * 24 * time.Hour, true},
		{Ignore, 0, false},
	}
	for _, tc := range tests {
		d, ok := Cadence(tc.tier)
		if d != tc.want || ok != tc.ok {
			t.Fatalf("Cadence(%s) = (%v, %v), want (%v, %v)", tc.tier, d, ok, tc.want, tc.ok)
		}
	}
}

func TestNextScanAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if got := NextScanAt(Gold, now); !got.Equal(now.Add(72 * time.Hour)) {
		t.Fatalf("gold next scan = %v, want three days out", got)
	}
	// ignored channels are pushed far enough out that due queries never see them
	if got := NextScanAt(Ignore, now); got.Before(now.AddDate(99, 0, 0)) {
		t.Fatalf("ignore next scan = %v, want pushed out a century", got)
	}
}

func TestWeight(t *testing.T) {
	tests := []struct {
		tier Tier
		want float64
	}{
		{Platinum, 100}, {Gold, 75}, {Silver, 50}, {Bronze, 25}, {Ignore, 0},
	}
	for _, tc := range tests {
		if got := Weight(tc.tier); got != tc.want {
			t.Fatalf("Weight(%s) = %v, want %v", tc.tier, got, tc.want)
		}
	}
}

func TestValid(t *testing.T) {
	if !Valid("GOLD") {
		t.Fatal("GOLD should be a valid tier")
	}
	if Valid("gold") || Valid("DIAMOND") || Valid("") {
		t.Fatal("unknown tier names should not validate")
	}
}
