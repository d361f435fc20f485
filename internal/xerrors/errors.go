// Package xerrors defines the typed error kinds from spec.md §7 and the
// propagation convention used throughout the teacher's provider layer:
// every error is tagged with its originating component in brackets and
// wrapped with %w so callers can still errors.Is/As through it.
package xerrors

import "fmt"

// Kind classifies an error for the orchestrator's recovery policy.
type Kind int

const (
	// KindConfiguration: invalid input, fatal at startup.
	KindConfiguration Kind = iota
	// KindResolution: DNS failure, retry once then fallback to static list.
	KindResolution
	// KindTransport: connect timeout or reset, recoverable via endpoint switch.
	KindTransport
	// KindHandshake: layer rejection, recoverable via fingerprint rotation
	// then endpoint switch.
	KindHandshake
	// KindIntegrity: truncated read, fatal for that connection.
	KindIntegrity
	// KindBudget: circuit breaker open, recoverable via backoff and switch.
	KindBudget
	// KindCancelled: propagated to caller, not logged as an error.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindResolution:
		return "resolution"
	case KindTransport:
		return "transport"
	case KindHandshake:
		return "handshake"
	case KindIntegrity:
		return "integrity"
	case KindBudget:
		return "budget"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// TunnelError wraps an underlying error with a Kind and the component
// (layer, framer, subsystem) that raised it.
type TunnelError struct {
	Kind      Kind
	Component string
	Err       error
}

func (e *TunnelError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Component, e.Kind, e.Err)
}

func (e *TunnelError) Unwrap() error { return e.Err }

// New builds a TunnelError, following the teacher's "[TAG] message: %w"
// wrapping convention.
func New(kind Kind, component string, err error) *TunnelError {
	return &TunnelError{Kind: kind, Component: component, Err: err}
}

// Recoverable reports whether the orchestrator's monitoring tick should
// attempt a switch/rotate/backoff rather than treat the error as fatal.
func (e *TunnelError) Recoverable() bool {
	switch e.Kind {
	case KindTransport, KindHandshake, KindBudget:
		return true
	default:
		return false
	}
}
