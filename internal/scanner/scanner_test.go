package scanner

import (
	"testing"
	"time"

	"duskline/internal/core"
)

func TestQualityInvariants(t *testing.T) {
	cases := []time.Duration{10 * time.Millisecond, 150 * time.Millisecond, 500 * time.Millisecond}
	for _, lat := range cases {
		q := core.QualityScore(lat)
		if q < 0 || q > 1 {
			t.Fatalf("quality score %f out of [0,1] for latency %v", q, lat)
		}
	}
}

func TestFragSupportRanksFirst(t *testing.T) {
	slow := core.Endpoint{Latency: 50 * time.Millisecond, Quality: 1.0, FragSupport: true}
	fast := core.Endpoint{Latency: 5 * time.Millisecond, Quality: 1.0, FragSupport: false}

	if !slow.Less(fast) {
		t.Fatal("endpoint with fragmentation support must rank before one without, regardless of latency/quality")
	}
}

func TestCacheRoundTrip(t *testing.T) {
	c := NewCache()
	ep := core.Endpoint{CDN: "cloudflare"}
	c.Put("1.2.3.4", ep)

	got, ok := c.Get("1.2.3.4")
	if !ok || got.CDN != "cloudflare" {
		t.Fatalf("cache did not round-trip: got=%+v ok=%v", got, ok)
	}
	if c.Len() != 1 {
		t.Fatalf("expected cache len 1, got %d", c.Len())
	}
}
