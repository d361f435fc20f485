// Package orchestrator implements the Orchestration Engine from spec.md
// §4.11: it owns startup, the monitoring loop, hop/rotate/failover
// decisions, and the event bus. Grounded on the teacher's
// internal/service/tunnel_controller.go lifecycle (connect/disconnect
// state machine driving a shared registry and event bus) generalized from
// a multi-tunnel controller to this spec's single active transport.
package orchestrator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net"
	"sync"
	"time"

	"duskline/internal/antidpi"
	"duskline/internal/breaker"
	"duskline/internal/config"
	"duskline/internal/core"
	"duskline/internal/dialer"
	"duskline/internal/fingerprint"
	"duskline/internal/framer"
	"duskline/internal/log"
	"duskline/internal/porthop"
	"duskline/internal/scanner"
)

// Engine owns the full transport lifecycle described by spec.md §4.11.
type Engine struct {
	cfg config.Config
	bus *core.EventBus

	fpRegistry *fingerprint.Registry
	fpManager  *fingerprint.Manager

	scanner     *scanner.Scanner
	cdnPool     *scanner.CDNPool
	breaker     *breaker.Breaker
	hopper      *porthop.Hopper
	transformer *antidpi.Transformer
	health      *healthMonitor
	reconnect   *reconnectManager
	stats       *statsSnapshot

	mu         sync.Mutex
	state      core.TunnelState
	candidates []core.Endpoint
	conn       net.Conn

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an Engine from cfg, wiring a fresh event bus if bus is nil.
func New(cfg config.Config, bus *core.EventBus) *Engine {
	if bus == nil {
		bus = core.NewEventBus()
	}
	cdns := append([]string{cfg.Scan.CDN}, cfg.Scan.CDNAlternatives...)
	return &Engine{
		cfg:         cfg,
		bus:         bus,
		cdnPool:     scanner.NewCDNPool(cdns),
		fpRegistry:  fingerprint.NewRegistry(),
		transformer: antidpi.New(antidpi.ParseMode(cfg.DPI.Mode), antidpi.ParseProfile(cfg.DPI.Profile)),
		health:      newHealthMonitor(cfg.Monitoring.HealthInterval, 2*cfg.Monitoring.HealthInterval),
		reconnect:   newReconnectManager(),
		stats:       newStatsSnapshot(),
		breaker: breaker.New(breaker.Config{
			Threshold:   cfg.Breaker.Threshold,
			OpenTimeout: cfg.Breaker.OpenTimeout,
			MaxLatency:  cfg.Breaker.MaxLatency,
		}),
	}
}

// Bus returns the engine's event bus for external subscribers.
func (e *Engine) Bus() *core.EventBus { return e.bus }

// State returns a copy of the current tunnel state.
func (e *Engine) State() core.TunnelState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Start performs the full startup sequence from spec.md §4.11 steps 1-8:
// initialize the fingerprint manager, scan for endpoints, build and
// connect a Nested Dialer, and start the monitoring and health tasks (and,
// if enabled, the port-hopping task).
func (e *Engine) Start(ctx context.Context) error {
	e.reconnect.SetIntent(true)

	e.fpManager = fingerprint.NewManager(e.fpRegistry, rand.New(rand.NewPCG(1, uint64(time.Now().UnixNano()))))

	endpoints, err := e.runScan(ctx)
	if err != nil {
		return err
	}
	if len(endpoints) == 0 {
		return fmt.Errorf("[Orchestrator] scan produced no viable endpoints")
	}
	e.mu.Lock()
	e.candidates = endpoints
	e.mu.Unlock()

	if e.cfg.PortHop.Enabled {
		pool := make([]int, len(e.cfg.PortHop.Pool))
		for i, p := range e.cfg.PortHop.Pool {
			pool[i] = int(p)
		}
		e.hopper = porthop.New(pool, porthop.ParseStrategy(e.cfg.PortHop.Strategy), e.cfg.PortHop.HopInterval)
	}

	if err := e.connectBest(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.health.Start(func() { e.onHealthStale(runCtx) })

	if e.hopper != nil {
		e.wg.Add(1)
		go e.portHopLoop(runCtx)
	}

	e.wg.Add(1)
	go e.monitorLoop(runCtx)

	return nil
}

func (e *Engine) runScan(ctx context.Context) ([]core.Endpoint, error) {
	resolver := scanner.NewResolver("1.1.1.1:53")
	prober := scanner.NewProber(e.cfg.Scan.Timeout)
	sc := scanner.New(resolver, prober, scanner.NewCache())

	cdn := e.cdnPool.Best()
	if cdn != e.cfg.Scan.CDN {
		e.bus.Publish(core.Event{Type: core.EventCDNSwitched, Payload: core.CDNSwitchedPayload{Old: e.cfg.Scan.CDN, New: cdn}})
	}

	endpoints, err := sc.Scan(ctx, cdn, scanner.Config{
		CDN:        cdn,
		Ports:      e.cfg.Scan.Ports,
		MaxIPs:     e.cfg.Scan.MaxIPs,
		Timeout:    e.cfg.Scan.Timeout,
		MaxLatency: e.cfg.Scan.MaxLatency,
	})
	if err != nil {
		return nil, err
	}
	e.cdnPool.UpdateFromScan(endpoints)
	if len(endpoints) == 0 {
		e.cdnPool.Deactivate(cdn)
	}

	e.bus.Publish(core.Event{Type: core.EventScanCompleted, Payload: core.ScanCompletedPayload{Count: len(endpoints)}})
	return endpoints, nil
}

// connectBest builds a Nested Dialer for the best remaining candidate and
// connects it, recording the result in the Tunnel State.
func (e *Engine) connectBest(ctx context.Context) error {
	e.mu.Lock()
	if len(e.candidates) == 0 {
		e.mu.Unlock()
		return fmt.Errorf("[Orchestrator] no remaining candidate endpoints")
	}
	ep := e.candidates[0]
	e.mu.Unlock()

	layers := e.buildLayers(ep)
	nd := dialer.New(layers)

	conn, err := nd.Dial(ctx, "tcp", ep.Addr.String(), func(ld core.LayerDescriptor) {
		e.bus.Publish(core.Event{Type: core.EventLayerAdded, Payload: core.LayerAddedPayload{Kind: ld.Kind}})
	})
	if err != nil {
		e.bus.Publish(core.Event{Type: core.EventError, Payload: core.ErrorPayload{Err: err}})
		return err
	}

	e.mu.Lock()
	e.conn = conn
	e.state = core.TunnelState{
		Active:       true,
		Endpoint:     ep,
		Port:         ep.Addr.Port(),
		Protocol:     "duskline-nested",
		ActiveLayers: nd.Depth(),
		StartedAt:    time.Now(),
		SwitchCount:  e.state.SwitchCount,
	}
	state := e.state
	e.mu.Unlock()

	e.health.Touch()
	e.stats.Publish(state)
	e.bus.Publish(core.Event{Type: core.EventNestedChainComplete, Payload: core.NestedChainCompletePayload{Layers: nd.Depth()}})
	e.bus.Publish(core.Event{Type: core.EventTunnelStarted, Payload: core.TunnelStartedPayload{Endpoint: ep, Port: ep.Addr.Port()}})
	return nil
}

// buildLayers composes: outermost TLS-spoof (chosen SNI), then optionally
// hybrid-handshake, then the stream multiplexer, per spec.md §4.11 step 4.
// Layer order in the returned slice is innermost first, as the Nested
// Dialer expects: the multiplexer (closest to the application) comes first
// and TLS-spoof (outermost, on the wire) comes last.
func (e *Engine) buildLayers(ep core.Endpoint) []dialer.Layer {
	fp := e.fpManager.Current()
	if e.cfg.Dialer.FingerprintID != "" {
		if got, ok := e.fpRegistry.Get(e.cfg.Dialer.FingerprintID); ok {
			fp = got
		}
	}
	sni := e.cfg.Dialer.SNI
	if sni == "" {
		sni = e.cfg.Scan.CDN
	}

	var layers []dialer.Layer
	if e.cfg.Dialer.UseMux {
		layers = append(layers, &muxLayer{})
	}
	if e.cfg.Dialer.UseHybrid {
		layers = append(layers, &hybridLayer{identity: framer.NewIdentity(), host: sni, port: ep.Addr.Port()})
	}
	layers = append(layers, &tlsSpoofLayer{sni: sni, fp: fp})
	return layers
}

// Stop sets active=false, records the reason, and emits "tunnel-stopped".
func (e *Engine) Stop(reason string) {
	e.reconnect.SetIntent(false)
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	e.health.Stop()

	e.mu.Lock()
	e.state.Active = false
	e.state.LastError = reason
	if e.conn != nil {
		e.conn.Close()
	}
	e.mu.Unlock()

	e.bus.Publish(core.Event{Type: core.EventTunnelStopped, Payload: core.TunnelStoppedPayload{Reason: reason}})
}

// Stats returns the latest published Tunnel State snapshot.
func (e *Engine) Stats() (core.TunnelState, time.Time) {
	return e.stats.Latest()
}

func (e *Engine) onHealthStale(ctx context.Context) {
	if !e.reconnect.ShouldAutoRecover() {
		return
	}
	log.Log.Warnf("Orchestrator", "connection stale beyond health threshold, forcing failover")
	e.failover(ctx)
}
