package antidpi

import "testing"

func TestPadNormalBoundary(t *testing.T) {
	tr := New(Normal, ProfileStreaming)
	b := []byte("hello world")
	out := tr.Pad(b)
	if len(out)%normalBoundary != 0 {
		t.Fatalf("padded length %d not a multiple of %d", len(out), normalBoundary)
	}
	if len(out) <= len(b) {
		t.Fatalf("padded length %d did not grow beyond input %d", len(out), len(b))
	}
}

func TestPadStealthBoundary(t *testing.T) {
	tr := New(Stealth, ProfileStreaming)
	b := make([]byte, 10)
	out := tr.Pad(b)
	if len(out)%stealthBoundary != 0 {
		t.Fatalf("stealth padded length %d not a multiple of %d", len(out), stealthBoundary)
	}
}

func TestFragmentReconstructsAndBounds(t *testing.T) {
	tr := New(Normal, ProfileStreaming)
	b := make([]byte, 1000)
	for i := range b {
		b[i] = byte(i)
	}
	chunks := tr.Fragment(b)

	var total int
	for _, c := range chunks {
		if len(c) > 140 {
			t.Fatalf("fragment length %d exceeds 140", len(c))
		}
		total += len(c)
	}
	if total != len(b) {
		t.Fatalf("reconstructed length %d != input %d", total, len(b))
	}

	// Reassembly must equal the original bytes in order.
	var flat []byte
	for _, c := range chunks {
		flat = append(flat, c...)
	}
	for i := range b {
		if flat[i] != b[i] {
			t.Fatalf("byte %d mismatch after fragment/reassemble", i)
		}
	}
}

func TestPreprocessGhostFragmentsThenPads(t *testing.T) {
	tr := New(Ghost, ProfileStreaming)
	b := make([]byte, 500)
	frags := tr.Preprocess(b)
	if len(frags) < 2 {
		t.Fatalf("expected ghost mode to fragment into multiple pieces, got %d", len(frags))
	}
}

func TestPreprocessStealthFragmentsOnly(t *testing.T) {
	tr := New(Stealth, ProfileStreaming)
	b := make([]byte, 500)
	frags := tr.Preprocess(b)
	var total int
	for _, f := range frags {
		total += len(f)
	}
	if total != len(b) {
		t.Fatalf("stealth preprocess should not add bytes, got %d want %d", total, len(b))
	}
}

func TestVarianceLowForClusteredSizes(t *testing.T) {
	sizes := make([]int, 200)
	for i := range sizes {
		sizes[i] = 600 + (i % 3) - 1 // within +-5 of 600
	}
	v := Variance(sizes)
	if v >= 100 {
		t.Fatalf("expected low variance for clustered sizes, got %f", v)
	}
}

func TestInterPacketDelayBoundsByProfile(t *testing.T) {
	tr := New(Ghost, ProfileGaming)
	for i := 0; i < 50; i++ {
		d := tr.InterPacketDelay()
		if d < 2e6 || d > 15e6 { // 2-15ms in nanoseconds
			t.Fatalf("gaming jitter %v out of [2ms,15ms]", d)
		}
	}
}

func TestDecoysAreNonEmpty(t *testing.T) {
	tr := New(Normal, ProfileStreaming)
	if len(tr.FakeTLSHello("example.com")) == 0 {
		t.Fatal("FakeTLSHello returned empty payload")
	}
	if len(tr.FakeQUICInitial()) == 0 {
		t.Fatal("FakeQUICInitial returned empty payload")
	}
	if len(tr.FakeSTUNBinding()) != 20 {
		t.Fatalf("FakeSTUNBinding expected 20-byte header, got %d", len(tr.FakeSTUNBinding()))
	}
}
