package detect

import (
	"testing"

	"duskline/internal/antidpi"
)

func TestBelowMinSamplesNeverDetects(t *testing.T) {
	sizes := make([]int, 50)
	for i := range sizes {
		sizes[i] = 100
	}
	a := Analyze(sizes, antidpi.Normal)
	if a.Detected {
		t.Fatal("expected no detection below the sample-count floor")
	}
}

func TestLowVarianceTriggersDetection(t *testing.T) {
	sizes := make([]int, 200)
	for i := range sizes {
		sizes[i] = 100 // zero variance
	}
	a := Analyze(sizes, antidpi.Normal)
	if !a.Detected {
		t.Fatal("expected detection for zero-variance packet sizes")
	}
	if a.RecommendedMode != antidpi.Ghost {
		t.Fatalf("expected recommended mode Ghost, got %v", a.RecommendedMode)
	}
	if a.Confidence < 0 || a.Confidence > 1 {
		t.Fatalf("confidence out of [0,1]: %f", a.Confidence)
	}
}

func TestAlreadyGhostNeverReDetects(t *testing.T) {
	sizes := make([]int, 200)
	for i := range sizes {
		sizes[i] = 100
	}
	a := Analyze(sizes, antidpi.Ghost)
	if a.Detected {
		t.Fatal("expected no detection when already in Ghost mode")
	}
}

func TestHighVarianceNeverDetects(t *testing.T) {
	sizes := make([]int, 200)
	for i := range sizes {
		sizes[i] = i * 7 % 1000
	}
	a := Analyze(sizes, antidpi.Normal)
	if a.Detected {
		t.Fatal("expected no detection for high-variance sizes")
	}
}

func TestAdaptSwitchesModeOnDetection(t *testing.T) {
	tr := antidpi.New(antidpi.Normal, antidpi.ProfileStreaming)
	Adapt(tr, Analysis{Detected: true, RecommendedMode: antidpi.Ghost})
	if tr.Mode() != antidpi.Ghost {
		t.Fatalf("expected transformer mode switched to Ghost, got %v", tr.Mode())
	}
}

func TestAdaptNoOpWithoutDetection(t *testing.T) {
	tr := antidpi.New(antidpi.Normal, antidpi.ProfileStreaming)
	Adapt(tr, Analysis{Detected: false})
	if tr.Mode() != antidpi.Normal {
		t.Fatalf("expected mode unchanged, got %v", tr.Mode())
	}
}
