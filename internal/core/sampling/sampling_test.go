package sampling

import "testing"

func TestBase_Bands(t *testing.T) {
	cfg := Default()
	tests := []struct {
		name string
		secs int
		want float64
	}{
		{name: "short clip full density", secs: 90, want: 1.0},
		{name: "two minute edge starts mid band", secs: 120, want: 0.5},
		{name: "mid band", secs: 240, want: 0.5},
		{name: "five minute edge starts long band", secs: 300, want: 0.33},
		{name: "long band", secs: 480, want: 0.33},
		{name: "longer band", secs: 900, want: 0.25},
		{name: "twenty minutes is long tail", secs: 1200, want: 0.15},
		{name: "hour long", secs: 3600, want: 0.15},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Base(cfg, tc.secs); got != tc.want {
				t.Fatalf("Base(%d) = %v, want %v", tc.secs, got, tc.want)
			}
		})
	}
}

func TestDensity_LowRiskUsesBase(t *testing.T) {
	cfg := Default()
	if got := Density(cfg, 480, 50); got != 0.33 {
		t.Fatalf("low risk density = %v, want band base 0.33", got)
	}
}

func TestDensity_HighRiskBoostCapped(t *testing.T) {
	cfg := Default()

	// a 20 minute item is long tail: base 0.15, boosted 0.225, under the 0.25 cap
	if got := Density(cfg, 1200, 85); got != 0.15*1.5 {
		t.Fatalf("boosted long tail density = %v, want %v", got, 0.15*1.5)
	}

	// a maxed boost on the long tail hits the 0.25 cap
	hot := cfg
	hot.HighRiskBoost = 2.0
	hot.LongTail = 0.2
	if got := Density(hot, 3600, 85); got != 0.25 {
		t.Fatalf("maxed long tail density = %v, want capped at 0.25", got)
	}

	// shortest band cannot exceed full density
	if got := Density(cfg, 60, 99); got != 1.0 {
		t.Fatalf("short boosted density = %v, want 1.0", got)
	}
}

func TestDensity_ThresholdEdge(t *testing.T) {
	cfg := Default()
	below := Density(cfg, 3600, 79.9)
	at := Density(cfg, 3600, 80)
	if below != cfg.LongTail {
		t.Fatalf("below threshold = %v, want base %v", below, cfg.LongTail)
	}
	if at <= below {
		t.Fatalf("at threshold = %v, want boosted above %v", at, below)
	}
}

func TestNormalize_Knobs(t *testing.T) {
	c := Config{LongTail: 0.5, HighRiskBoost: 5}.Normalize()
	if c.LongTail != 0.2 {
		t.Fatalf("long tail = %v, want pinned to 0.2", c.LongTail)
	}
	if c.HighRiskBoost != 2.0 {
		t.Fatalf("boost = %v, want pinned to 2.0", c.HighRiskBoost)
	}
	if c.HighRiskThreshold != 80 {
		t.Fatalf("threshold = %v, want defaulted to 80", c.HighRiskThreshold)
	}

	c = Config{LongTail: 0.05, HighRiskBoost: 1.0, HighRiskThreshold: 90}.Normalize()
	if c.LongTail != 0.1 || c.HighRiskBoost != 1.5 || c.HighRiskThreshold != 90 {
		t.Fatalf("normalized = %+v, want low knobs raised, threshold kept", c)
	}
}
