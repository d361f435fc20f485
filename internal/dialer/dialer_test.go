package dialer

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"duskline/internal/core"
)

type fakeLayer struct {
	kind   core.LayerKind
	fail   bool
	called bool
}

func (f *fakeLayer) Descriptor() core.LayerDescriptor {
	return core.LayerDescriptor{Kind: f.kind}
}

func (f *fakeLayer) Handshake(ctx context.Context, conn net.Conn) (net.Conn, error) {
	f.called = true
	if f.fail {
		return nil, errors.New("forced handshake failure")
	}
	return conn, nil
}

func listenLocal(t *testing.T) (net.Listener, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return ln, ln.Addr().String()
}

func TestDialRunsLayersOutermostFirst(t *testing.T) {
	ln, addr := listenLocal(t)
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
	}()

	var order []core.LayerKind
	inner := &fakeLayer{kind: core.LayerPlain}
	outer := &fakeLayer{kind: core.LayerTLSSpoof}

	d := New([]Layer{inner, outer})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := d.Dial(ctx, "tcp", addr, func(ld core.LayerDescriptor) {
		order = append(order, ld.Kind)
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if !inner.called || !outer.called {
		t.Fatal("expected both layers to run")
	}
	if len(order) != 2 || order[0] != core.LayerTLSSpoof || order[1] != core.LayerPlain {
		t.Fatalf("expected outermost-first layer-added order [TLSSpoof, Plain], got %v", order)
	}
}

func TestDialFailsOnLayerHandshakeError(t *testing.T) {
	ln, addr := listenLocal(t)
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
	}()

	d := New([]Layer{&fakeLayer{kind: core.LayerPlain, fail: true}})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := d.Dial(ctx, "tcp", addr, nil); err == nil {
		t.Fatal("expected dial to fail when a layer's handshake fails")
	}
}

func TestMaxDepthTruncation(t *testing.T) {
	layers := make([]Layer, MaxDepth+10)
	for i := range layers {
		layers[i] = &fakeLayer{kind: core.LayerPlain}
	}
	d := New(layers)
	if d.Depth() != MaxDepth {
		t.Fatalf("expected depth truncated to %d, got %d", MaxDepth, d.Depth())
	}
}
