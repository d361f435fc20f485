package relay

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"
)

func TestBuildChainSortsByLatencyAndTruncates(t *testing.T) {
	nodes := []Node{
		{Addr: "a:1", Latency: 300 * time.Millisecond},
		{Addr: "b:1", Latency: 50 * time.Millisecond},
		{Addr: "c:1", Latency: 150 * time.Millisecond},
		{Addr: "d:1", Latency: 10 * time.Millisecond},
	}
	chain := BuildChain(nodes, 2, false)
	if len(chain) != 2 {
		t.Fatalf("expected chain truncated to 2, got %d", len(chain))
	}
	if chain[0].Addr != "d:1" || chain[1].Addr != "b:1" {
		t.Fatalf("expected ascending-latency order starting with d then b, got %+v", chain)
	}
}

func TestBuildChainCapsAtMaxHops(t *testing.T) {
	var nodes []Node
	for i := 0; i < 10; i++ {
		nodes = append(nodes, Node{Addr: "x", Latency: time.Duration(i) * time.Millisecond})
	}
	chain := BuildChain(nodes, 10, true)
	if len(chain) != MaxHops {
		t.Fatalf("expected chain capped at MaxHops=%d, got %d", MaxHops, len(chain))
	}
}

// fakeProxy simulates one CONNECT hop: reads the request line and headers,
// then replies 200.
func fakeProxy(t *testing.T, ln net.Listener, expectHost string) {
	t.Helper()
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	r := bufio.NewReader(conn)
	line, _ := r.ReadString('\n')
	_ = line
	for {
		l, err := r.ReadString('\n')
		if err != nil || l == "\r\n" {
			break
		}
	}
	conn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n"))
}

func TestConnectSingleHop(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go fakeProxy(t, ln, "")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	conn, err := Connect(ctx, []Node{{Addr: ln.Addr().String()}})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	conn.Close()
}

func TestConnectEmptyChainFails(t *testing.T) {
	ctx := context.Background()
	if _, err := Connect(ctx, nil); err == nil {
		t.Fatal("expected error for empty chain")
	}
}
