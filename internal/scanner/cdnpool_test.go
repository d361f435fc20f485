package scanner

import (
	"testing"

	"duskline/internal/core"
)

func TestCDNPoolFailsOverToBetterScoring(t *testing.T) {
	p := NewCDNPool([]string{"cloudflare", "fastly"})
	if got := p.Best(); got != "cloudflare" {
		t.Fatalf("expected cloudflare to lead a fresh pool, got %q", got)
	}

	results := []core.Endpoint{
		{CDN: "cloudflare", Quality: 0},
		{CDN: "cloudflare", Quality: 0},
		{CDN: "fastly", Quality: 1},
		{CDN: "fastly", Quality: 1},
	}
	p.UpdateFromScan(results)

	if got := p.Best(); got != "fastly" {
		t.Fatalf("expected fastly to win after cloudflare's results came back unclean, got %q", got)
	}
}

func TestCDNPoolDeactivateExcludesFromBest(t *testing.T) {
	p := NewCDNPool([]string{"cloudflare", "fastly"})
	p.Deactivate("cloudflare")
	if got := p.Best(); got != "fastly" {
		t.Fatalf("expected fastly after deactivating cloudflare, got %q", got)
	}
}

func TestCDNPoolSnapshotSortedByScore(t *testing.T) {
	p := NewCDNPool([]string{"cloudflare", "fastly", "gcore"})
	snap := p.Snapshot()
	for i := 1; i < len(snap); i++ {
		if snap[i].Score > snap[i-1].Score {
			t.Fatalf("snapshot not sorted by descending score: %+v", snap)
		}
	}
}
