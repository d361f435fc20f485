// Package fingerprint implements the Fingerprint Registry and Fingerprint
// Manager from spec.md §3/§4.9: a fixed catalogue of rotatable client-hello
// fingerprints with weighted selection. The catalogue's cipher-suite lists
// are sourced from the real github.com/refraction-networking/utls
// ClientHelloID specs (the teacher's internal/provider/vless/config.go
// accepts a "fingerprint" name like "chrome"/"firefox"/"safari" that is
// handed to uTLS under the hood; here we generalize that one string field
// into the full catalogue entry spec.md's data model calls for).
package fingerprint

import (
	"math/rand/v2"
	"sync"

	utls "github.com/refraction-networking/utls"

	"github.com/google/uuid"
)

// Fingerprint is the sequence of cipher suites, extensions, and identity
// string an observer would attribute to a specific client implementation.
type Fingerprint struct {
	ID         string
	CipherSuites []uint16
	Extensions   []uint16
	UserID       string
	Weight       float64
}

// extensionTable lists the common extension codes seen in modern browser
// ClientHellos, in the order they typically appear. We do not walk uTLS's
// internal TLSExtension objects (the interface exposes no public numeric
// ID accessor); instead we reuse the real IANA codes directly, which is
// what an observer actually keys on.
var extensionTable = []uint16{
	0,     // server_name
	23,    // extended_master_secret
	65281, // renegotiation_info
	10,    // supported_groups
	11,    // ec_point_formats
	35,    // session_ticket
	16,    // application_layer_protocol_negotiation
	5,     // status_request
	13,    // signature_algorithms
	51,    // key_share
	45,    // psk_key_exchange_modes
	43,    // supported_versions
	21,    // padding
}

func cipherSuitesFor(id utls.ClientHelloID) []uint16 {
	spec, err := utls.UTLSIdToSpec(id)
	if err != nil {
		// Fall back to a conservative modern suite set; the registry must
		// never fail construction over an unresolvable uTLS spec.
		return []uint16{0x1301, 0x1302, 0x1303, 0xc02b, 0xc02f}
	}
	return append([]uint16(nil), spec.CipherSuites...)
}

// builtins is the fixed catalogue: one per common browser family and one
// per mobile OS class, per spec.md §4.9.
func builtins() []Fingerprint {
	entries := []struct {
		name   string
		helloID utls.ClientHelloID
	}{
		{"chrome", utls.HelloChrome_Auto},
		{"firefox", utls.HelloFirefox_Auto},
		{"safari", utls.HelloSafari_Auto},
		{"edge", utls.HelloEdge_Auto},
		{"ios", utls.HelloIOS_Auto},
		{"android", utls.HelloAndroid_11_OkHttp},
	}

	out := make([]Fingerprint, 0, len(entries))
	for _, e := range entries {
		out = append(out, Fingerprint{
			ID:           e.name,
			CipherSuites: cipherSuitesFor(e.helloID),
			Extensions:   append([]uint16(nil), extensionTable...),
			UserID:       uuid.NewString(),
			Weight:       1.0,
		})
	}
	return out
}

// Registry holds the fixed fingerprint catalogue. The set is fixed at
// construction; weights may be adjusted afterward.
type Registry struct {
	mu      sync.RWMutex
	entries []Fingerprint
}

// NewRegistry builds the default catalogue.
func NewRegistry() *Registry {
	return &Registry{entries: builtins()}
}

// All returns a copy of the catalogue.
func (r *Registry) All() []Fingerprint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Fingerprint, len(r.entries))
	copy(out, r.entries)
	return out
}

// Get returns the fingerprint with the given id.
func (r *Registry) Get(id string) (Fingerprint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Fingerprint{}, false
}

// SetWeight adjusts the selection weight of an existing catalogue entry.
func (r *Registry) SetWeight(id string, weight float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].ID == id {
			r.entries[i].Weight = weight
			return true
		}
	}
	return false
}

// WeightedPick draws one fingerprint by selection weight using the given
// source of randomness.
func (r *Registry) WeightedPick(rng *rand.Rand) Fingerprint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total float64
	for _, e := range r.entries {
		total += e.Weight
	}
	if total <= 0 {
		return r.entries[0]
	}

	pick := rng.Float64() * total
	for _, e := range r.entries {
		pick -= e.Weight
		if pick <= 0 {
			return e
		}
	}
	return r.entries[len(r.entries)-1]
}
