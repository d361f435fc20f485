// Command duskline runs the transport orchestration engine standalone,
// logging lifecycle events through the package logger (standard error). It
// is a thin demonstration binary:
// the config file format, flags, and process supervision are the whole of
// its job, grounded on the teacher's cmd/awg-split-tunnel/main.go
// console-mode startup (flag parsing, config load, logger wiring, signal
// handling) stripped of everything platform-specific (Windows service
// control, TUN adapter, WFP firewall).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"duskline/internal/config"
	"duskline/internal/core"
	"duskline/internal/log"
	"duskline/internal/orchestrator"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults baked in if omitted)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("duskline %s (commit=%s)\n", version, commit)
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[Main] %v\n", err)
			os.Exit(1)
		}
		cfg = *loaded
	}

	log.Log = log.New(cfg.Log)
	log.Log.Infof("Main", "duskline %s starting", version)

	bus := core.NewEventBus()
	unsubscribe := bus.Subscribe(logEvent)
	defer unsubscribe()

	engine := orchestrator.New(cfg, bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.Start(ctx); err != nil {
		log.Log.Errorf("Main", "startup failed: %v", err)
		os.Exit(1)
	}

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, os.Interrupt, syscall.SIGTERM)
	<-sigC

	engine.Stop("shutdown signal received")
	log.Log.Infof("Main", "duskline stopped")
}

// logEvent is the default event bus subscriber for standalone runs: it
// turns each lifecycle event into a single structured log line.
func logEvent(e core.Event) {
	switch p := e.Payload.(type) {
	case core.TunnelStartedPayload:
		log.Log.Infof("Events", "tunnel started endpoint=%s port=%d", p.Endpoint.Addr, p.Port)
	case core.TunnelStoppedPayload:
		log.Log.Infof("Events", "tunnel stopped reason=%q", p.Reason)
	case core.IPSwitchedPayload:
		log.Log.Infof("Events", "ip switched %s -> %s", p.Old.Addr, p.New.Addr)
	case core.PortSwitchedPayload:
		log.Log.Infof("Events", "port switched %d -> %d", p.Old, p.New)
	case core.ErrorPayload:
		log.Log.Warnf("Events", "error: %v", p.Err)
	case core.ScanCompletedPayload:
		log.Log.Infof("Events", "scan completed candidates=%d", p.Count)
	case core.CDNSwitchedPayload:
		log.Log.Infof("Events", "cdn switched %s -> %s", p.Old, p.New)
	case core.CircuitBreakerTriggeredPayload:
		log.Log.Warnf("Events", "circuit breaker triggered failures=%d", p.FailureCount)
	case core.LayerAddedPayload:
		log.Log.Debugf("Events", "layer added kind=%s", p.Kind)
	case core.NestedChainCompletePayload:
		log.Log.Infof("Events", "nested dial chain complete layers=%d", p.Layers)
	default:
		log.Log.Debugf("Events", "event type=%d", e.Type)
	}
}
