package orchestrator

import (
	"math/rand/v2"
	"testing"
	"time"

	"duskline/internal/config"
	"duskline/internal/core"
	"duskline/internal/dialer"
	"duskline/internal/fingerprint"
)

func TestReconnectManagerTracksIntent(t *testing.T) {
	rm := newReconnectManager()
	if rm.ShouldAutoRecover() {
		t.Fatal("should not recover before any intent is set")
	}
	rm.SetIntent(true)
	if !rm.ShouldAutoRecover() {
		t.Fatal("should recover once user-issued start intent is set")
	}
	rm.SetIntent(false)
	if rm.ShouldAutoRecover() {
		t.Fatal("an explicit stop must suppress auto-recovery")
	}
}

func TestStatsSnapshotPublishLatest(t *testing.T) {
	s := newStatsSnapshot()
	if _, at := s.Latest(); !at.IsZero() {
		t.Fatal("a fresh snapshot should report a zero timestamp")
	}

	want := core.TunnelState{Active: true, Port: 443}
	s.Publish(want)

	got, at := s.Latest()
	if got != want {
		t.Fatalf("Latest() = %+v, want %+v", got, want)
	}
	if at.IsZero() {
		t.Fatal("Latest() should report a non-zero publish time")
	}
}

func TestHealthMonitorStaleDetection(t *testing.T) {
	h := newHealthMonitor(5*time.Millisecond, 20*time.Millisecond)
	if h.Stale() {
		t.Fatal("a freshly created monitor should not be stale")
	}

	staleC := make(chan struct{}, 1)
	h.Start(func() {
		select {
		case staleC <- struct{}{}:
		default:
		}
	})
	defer h.Stop()

	select {
	case <-staleC:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected onStale to fire once activity goes quiet")
	}
}

func TestHealthMonitorTouchResetsStaleness(t *testing.T) {
	h := newHealthMonitor(time.Second, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	if !h.Stale() {
		t.Fatal("expected staleness after exceeding the threshold with no activity")
	}
	h.Touch()
	if h.Stale() {
		t.Fatal("Touch should reset staleness")
	}
}

func TestBuildLayersOrderingInnermostToOutermost(t *testing.T) {
	cfg := config.Default()
	cfg.Dialer.UseMux = true
	cfg.Dialer.UseHybrid = true
	cfg.Dialer.SNI = "example.com"

	e := &Engine{
		cfg:        cfg,
		fpRegistry: fingerprint.NewRegistry(),
	}
	e.fpManager = fingerprint.NewManager(e.fpRegistry, rand.New(rand.NewPCG(1, 1)))

	ep := core.Endpoint{}
	layers := e.buildLayers(ep)

	if len(layers) != 3 {
		t.Fatalf("expected 3 layers (mux, hybrid, tls-spoof), got %d", len(layers))
	}
	kinds := make([]core.LayerKind, len(layers))
	for i, l := range layers {
		kinds[i] = l.Descriptor().Kind
	}
	want := []core.LayerKind{core.LayerMultiplexer, core.LayerHybridHandshake, core.LayerTLSSpoof}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("layer[%d] kind = %s, want %s", i, kinds[i], want[i])
		}
	}
}

func TestBuildLayersOmitsDisabledOnes(t *testing.T) {
	cfg := config.Default()
	cfg.Dialer.UseMux = false
	cfg.Dialer.UseHybrid = false

	e := &Engine{cfg: cfg, fpRegistry: fingerprint.NewRegistry()}
	e.fpManager = fingerprint.NewManager(e.fpRegistry, rand.New(rand.NewPCG(1, 1)))

	layers := e.buildLayers(core.Endpoint{})
	if len(layers) != 1 {
		t.Fatalf("expected only the always-present tls-spoof layer, got %d", len(layers))
	}
	if layers[0].Descriptor().Kind != core.LayerTLSSpoof {
		t.Fatalf("sole layer kind = %s, want tls-spoof", layers[0].Descriptor().Kind)
	}
}

func TestStopWithoutStartIsSafe(t *testing.T) {
	e := New(config.Default(), nil)
	e.Stop("never started")
	if e.State().Active {
		t.Fatal("state should report inactive after Stop")
	}
}

var _ dialer.Layer = (*tlsSpoofLayer)(nil)
