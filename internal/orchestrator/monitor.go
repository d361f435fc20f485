package orchestrator

import (
	"context"
	"net"
	"time"

	"duskline/internal/core"
	"duskline/internal/detect"
	"duskline/internal/log"
)

// monitorLoop is the long-lived monitoring task from spec.md §4.11 step 7:
// every tick it measures TCP latency to the current endpoint, consults the
// Circuit Breaker, and consults the Detection Analyzer. It also publishes
// an updated tunnel-info snapshot every tick (step 8).
func (e *Engine) monitorLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.Monitoring.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.monitorTick(ctx)
		}
	}
}

func (e *Engine) monitorTick(ctx context.Context) {
	e.mu.Lock()
	ep := e.state.Endpoint
	e.mu.Unlock()

	latency, err := measureLatency(ctx, ep.Addr.String(), e.cfg.Scan.Timeout)
	if err != nil {
		latency = e.cfg.Breaker.MaxLatency + time.Second // treat a failed probe as a breach
	} else {
		e.health.Touch()
	}

	if e.breaker.ShouldTrip(latency) {
		e.bus.Publish(core.Event{Type: core.EventCircuitBreakerTriggered,
			Payload: core.CircuitBreakerTriggeredPayload{FailureCount: e.breaker.Failures()}})
		if e.reconnect.ShouldAutoRecover() {
			e.failover(ctx)
		}
	} else if latency <= e.cfg.Breaker.MaxLatency {
		e.breaker.RecordSuccess()
	}

	if e.transformer != nil {
		sizes := e.transformer.SizeHistory()
		analysis := detect.Analyze(sizes, e.transformer.Mode())
		if analysis.Detected {
			log.Log.Infof("Orchestrator", "detection analyzer flagged traffic (confidence=%.2f): %s", analysis.Confidence, analysis.Reason)
			detect.Adapt(e.transformer, analysis)
		}
	}

	e.mu.Lock()
	e.state.Counters.AvgLatencyMS = float64(latency.Milliseconds())
	state := e.state
	e.mu.Unlock()
	e.stats.Publish(state)
}

// measureLatency opens and closes a short-lived TCP connection to addr,
// returning the round-trip dial time.
func measureLatency(ctx context.Context, addr string, timeout time.Duration) (time.Duration, error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	var nd net.Dialer
	conn, err := nd.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return 0, err
	}
	latency := time.Since(start)
	conn.Close()
	return latency, nil
}

// portHopLoop is the long-lived port-hopping task from spec.md §4.11 step
// 6 (period cfg.PortHop.HopInterval, typically 60s).
func (e *Engine) portHopLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.PortHop.HopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !e.hopper.ShouldHop() {
				continue
			}
			oldPort := uint16(e.hopper.Current())
			newPort, hopped := e.hopper.Hop()
			if !hopped || uint16(newPort) == oldPort {
				continue
			}
			e.mu.Lock()
			e.state.Port = uint16(newPort)
			e.mu.Unlock()
			e.bus.Publish(core.Event{Type: core.EventPortSwitched,
				Payload: core.PortSwitchedPayload{Old: oldPort, New: uint16(newPort)}})
		}
	}
}

// failover switches to the next candidate endpoint, rotating the failed
// one to the back of the candidate list, and reconnects the Nested Dialer.
func (e *Engine) failover(ctx context.Context) {
	e.mu.Lock()
	if len(e.candidates) < 2 {
		e.mu.Unlock()
		return
	}
	old := e.candidates[0]
	e.candidates = append(e.candidates[1:], old)
	if e.conn != nil {
		e.conn.Close()
	}
	e.mu.Unlock()

	if err := e.connectBest(ctx); err != nil {
		e.bus.Publish(core.Event{Type: core.EventError, Payload: core.ErrorPayload{Err: err}})
		return
	}

	e.mu.Lock()
	e.state.SwitchCount++
	newEp := e.state.Endpoint
	e.mu.Unlock()

	e.bus.Publish(core.Event{Type: core.EventIPSwitched, Payload: core.IPSwitchedPayload{Old: old, New: newEp}})
}
