package core

import "sync"

// EventType identifies the kind of event fired on the bus. The first ten
// types form the external event catalogue; EventConfigReloaded is an extra
// type that nothing in this module publishes.
type EventType int

const (
	EventTunnelStarted EventType = iota
	EventTunnelStopped
	EventIPSwitched
	EventPortSwitched
	EventError
	EventScanCompleted
	EventCDNSwitched
	EventCircuitBreakerTriggered
	EventLayerAdded
	EventNestedChainComplete
	EventConfigReloaded
)

// Event carries data about something that happened in the system.
type Event struct {
	Type    EventType
	Payload any
}

// TunnelStartedPayload is published when the dialer finishes connecting.
type TunnelStartedPayload struct {
	Endpoint Endpoint
	Port     uint16
}

// TunnelStoppedPayload is published when the engine stops.
type TunnelStoppedPayload struct {
	Reason string
}

// IPSwitchedPayload is published on failover to a new candidate endpoint.
type IPSwitchedPayload struct {
	Old, New Endpoint
}

// PortSwitchedPayload is published by the Port Hopper on rotation.
type PortSwitchedPayload struct {
	Old, New uint16
}

// ErrorPayload is published for any non-fatal steady-state error.
type ErrorPayload struct {
	Err error
}

// ScanCompletedPayload is published when the Endpoint Scanner finishes.
type ScanCompletedPayload struct {
	Count int
}

// CDNSwitchedPayload is published when the engine changes CDN tag.
type CDNSwitchedPayload struct {
	Old, New string
}

// CircuitBreakerTriggeredPayload is published when the breaker trips open.
type CircuitBreakerTriggeredPayload struct {
	FailureCount int
}

// LayerAddedPayload is published once per layer during dialer composition.
type LayerAddedPayload struct {
	Kind LayerKind
}

// NestedChainCompletePayload is published once the dialer finishes
// connecting every configured layer.
type NestedChainCompletePayload struct {
	Layers int
}

// Handler is a callback for bus subscribers.
type Handler func(Event)

// busCapacity bounds the number of buffered events per subscriber before
// the oldest is dropped (spec.md §4.11, §6: "at most 1024 buffered items").
const busCapacity = 1024

// subscriber wraps a Handler with its own bounded, dropping channel so one
// slow subscriber cannot block publication to the others.
type subscriber struct {
	ch chan Event
}

// EventBus is a broadcast pub/sub bus. Publish never blocks: each
// subscriber has its own bounded channel, and when that channel is full the
// oldest buffered event is dropped to make room for the new one.
type EventBus struct {
	mu   sync.RWMutex
	subs []*subscriber
}

// NewEventBus creates a ready-to-use event bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers a handler that runs in its own goroutine, reading
// from a dedicated bounded queue fed by Publish.
func (eb *EventBus) Subscribe(h Handler) (unsubscribe func()) {
	sub := &subscriber{ch: make(chan Event, busCapacity)}

	eb.mu.Lock()
	eb.subs = append(eb.subs, sub)
	eb.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for {
			select {
			case e, ok := <-sub.ch:
				if !ok {
					return
				}
				h(e)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		eb.mu.Lock()
		defer eb.mu.Unlock()
		for i, s := range eb.subs {
			if s == sub {
				eb.subs = append(eb.subs[:i], eb.subs[i+1:]...)
				break
			}
		}
	}
}

// Publish broadcasts e to every subscriber. If a subscriber's queue is
// full, the oldest buffered event for that subscriber is dropped.
func (eb *EventBus) Publish(e Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, s := range eb.subs {
		for {
			select {
			case s.ch <- e:
			default:
				select {
				case <-s.ch:
				default:
				}
				continue
			}
			break
		}
	}
}
