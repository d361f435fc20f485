// Package dialer implements the Nested Dialer from spec.md §4.4, grounded
// on the teacher's internal/provider/vless provider's layered
// connect-then-handshake sequencing (dial TCP, then run the VLESS header
// exchange) generalized here to an arbitrary ordered chain of layers.
package dialer

import (
	"context"
	"fmt"
	"net"

	"duskline/internal/core"
	"duskline/internal/xerrors"
)

// MaxDepth is the maximum number of layers a Nested Dialer will compose;
// requests beyond this are silently truncated, per spec.md §4.4.
const MaxDepth = 20

// Layer is one entry in the nested chain. Handshake runs the layer's
// protocol exchange over the connection established by the layer beneath
// it (or the raw transport, for the outermost layer called first).
type Layer interface {
	Descriptor() core.LayerDescriptor
	Handshake(ctx context.Context, conn net.Conn) (net.Conn, error)
}

// Dialer composes an ordered list of Layers onto one transport connection.
// The target endpoint is opened first; each layer's handshake then runs in
// order from outermost (index len-1, on the wire) to innermost (index 0,
// closest to the application). The layer list is not ordered wire-first.
type Dialer struct {
	layers []Layer
}

// New creates a Dialer, truncating layers beyond MaxDepth.
func New(layers []Layer) *Dialer {
	if len(layers) > MaxDepth {
		layers = layers[:MaxDepth]
	}
	return &Dialer{layers: layers}
}

// LayerAddedFunc is invoked once per layer as it is added to the dialer's
// chain, mirroring spec.md §4.11 step 4's "layer-added" event emission.
type LayerAddedFunc func(core.LayerDescriptor)

// Dial opens network to addr, then runs each layer's handshake outermost
// first. On any layer's handshake failure, the dialer closes the
// underlying transport and reports which layer failed.
func (d *Dialer) Dial(ctx context.Context, network, addr string, onLayerAdded LayerAddedFunc) (net.Conn, error) {
	var nd net.Dialer
	conn, err := nd.DialContext(ctx, network, addr)
	if err != nil {
		return nil, xerrors.New(xerrors.KindTransport, "NestedDialer", fmt.Errorf("dial %s: %w", addr, err))
	}

	cur := conn
	for i := len(d.layers) - 1; i >= 0; i-- {
		layer := d.layers[i]
		next, err := layer.Handshake(ctx, cur)
		if err != nil {
			cur.Close()
			return nil, xerrors.New(xerrors.KindHandshake, "NestedDialer",
				fmt.Errorf("layer %d (%s) handshake failed: %w", i, layer.Descriptor().Kind, err))
		}
		cur = next
		if onLayerAdded != nil {
			onLayerAdded(layer.Descriptor())
		}
	}
	return cur, nil
}

// Depth returns the number of layers actually composed (after truncation).
func (d *Dialer) Depth() int { return len(d.layers) }
