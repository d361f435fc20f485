package fingerprint

import (
	"math/rand/v2"
	"testing"
)

func TestRotateOnlyEveryInterval(t *testing.T) {
	reg := NewRegistry()
	m := NewManager(reg, rand.New(rand.NewPCG(1, 1)))
	m.SetRotationInterval(3)

	if _, rotated := m.Rotate(); rotated {
		t.Fatal("rotation should not happen on call 1 of 3")
	}
	if _, rotated := m.Rotate(); rotated {
		t.Fatal("rotation should not happen on call 2 of 3")
	}
	if _, rotated := m.Rotate(); !rotated {
		t.Fatal("rotation should happen on call 3 of 3")
	}
}

func TestWeightedPickAlwaysInCatalogue(t *testing.T) {
	reg := NewRegistry()
	rng := rand.New(rand.NewPCG(42, 7))
	ids := map[string]bool{}
	for _, fp := range reg.All() {
		ids[fp.ID] = true
	}
	for i := 0; i < 100; i++ {
		fp := reg.WeightedPick(rng)
		if !ids[fp.ID] {
			t.Fatalf("picked fingerprint %q not in catalogue", fp.ID)
		}
	}
}

func TestZeroWeightNeverPicked(t *testing.T) {
	reg := NewRegistry()
	for _, fp := range reg.All() {
		if fp.ID != "chrome" {
			reg.SetWeight(fp.ID, 0)
		}
	}
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 50; i++ {
		fp := reg.WeightedPick(rng)
		if fp.ID != "chrome" {
			t.Fatalf("expected only chrome to be picked, got %q", fp.ID)
		}
	}
}
