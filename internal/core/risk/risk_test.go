package risk

import (
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestScore_Bounds(t *testing.T) {
	cfg := Default()

	// hottest plausible item on the hottest channel stays within bounds
	hot := Signals{
		KeywordHits:  50,
		DurationSecs: 120,
		Views:        50_000_000,
		PublishedAt:  testNow.Add(-time.Hour),
	}
	if got := Score(cfg, 100, hot, testNow); got < 0 || got > 100 {
		t.Fatalf("hot score out of range: %v", got)
	}

	// empty signals on an ignored channel floor at zero
	if got := Score(cfg, 0, Signals{}, testNow); got != 0 {
		t.Fatalf("empty score = %v, want 0", got)
	}
}

func TestScore_Idempotent(t *testing.T) {
	cfg := Default()
	s := Signals{
		KeywordHits:  3,
		DurationSecs: 480,
		Views:        120_000,
		PublishedAt:  testNow.Add(-48 * time.Hour),
	}
	first := Score(cfg, 75, s, testNow)
	for i := 0; i < 50; i++ {
		if got := Score(cfg, 75, s, testNow); got != first {
			t.Fatalf("pass %d: score drifted from %v to %v", i, first, got)
		}
	}
}

func TestScore_ChannelBlend(t *testing.T) {
	cfg := Default()
	s := Signals{
		KeywordHits:  2,
		DurationSecs: 300,
		Views:        10_000,
		PublishedAt:  testNow.Add(-24 * time.Hour),
	}
	platinum := Score(cfg, 100, s, testNow)
	bronze := Score(cfg, 25, s, testNow)

	// same signals, hotter channel, higher score, by exactly the channel share
	want := cfg.ChannelWeight * 75
	if diff := platinum - bronze; diff < want-1e-9 || diff > want+1e-9 {
		t.Fatalf("channel share = %v, want %v", diff, want)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{-5, 0}, {0, 0}, {42.5, 42.5}, {100, 100}, {250, 100},
	}
	for _, tc := range tests {
		if got := Clamp(tc.in); got != tc.want {
			t.Fatalf("Clamp(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestKeywordScore_Saturation(t *testing.T) {
	cfg := Default()
	if got := keywordScore(cfg, 0); got != 0 {
		t.Fatalf("zero hits = %v, want 0", got)
	}
	if got := keywordScore(cfg, cfg.KeywordSaturation); got != 100 {
		t.Fatalf("saturated hits = %v, want 100", got)
	}
	if got := keywordScore(cfg, cfg.KeywordSaturation*10); got != 100 {
		t.Fatalf("over-saturated hits = %v, want 100", got)
	}
	if lo, hi := keywordScore(cfg, 1), keywordScore(cfg, 2); lo >= hi {
		t.Fatalf("keyword score not monotonic: %v >= %v", lo, hi)
	}
}

func TestDurationScore_Band(t *testing.T) {
	cfg := Default()
	if got := durationScore(cfg, 0); got != 0 {
		t.Fatalf("missing duration = %v, want 0", got)
	}
	if got := durationScore(cfg, 300); got != 100 {
		t.Fatalf("in-band duration = %v, want 100", got)
	}
	if in, out := durationScore(cfg, cfg.DurationIdealHigh), durationScore(cfg, cfg.DurationIdealHigh*4); out >= in {
		t.Fatalf("long duration should decay: %v >= %v", out, in)
	}
}

func TestRecencyScore_Decay(t *testing.T) {
	cfg := Default()
	fresh := recencyScore(cfg, testNow.Add(-time.Hour), testNow)
	stale := recencyScore(cfg, testNow.Add(-20*24*time.Hour), testNow)
	if fresh <= stale {
		t.Fatalf("recency should decay: fresh %v <= stale %v", fresh, stale)
	}
	if got := recencyScore(cfg, testNow.Add(-cfg.RecencyWindow), testNow); got != 0 {
		t.Fatalf("window edge = %v, want 0", got)
	}
	if got := recencyScore(cfg, time.Time{}, testNow); got != 0 {
		t.Fatalf("missing publish time = %v, want 0", got)
	}
}
