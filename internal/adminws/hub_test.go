package adminws

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/coreproxy/edgeproxy/internal/proxy"
)

func discardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// newFakeClient builds a Client with no underlying connection, suitable for
// exercising Hub's register/unregister/broadcast bookkeeping directly since
// those paths only ever touch send, never conn.
func newFakeClient(hub *Hub, buf int) *Client {
	return &Client{hub: hub, send: make(chan []byte, buf), log: hub.log}
}

func TestHub_RegisterReceivesBroadcast(t *testing.T) {
	hub := NewHub(discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	c := newFakeClient(hub, 4)
	hub.Register(c)
	time.Sleep(50 * time.Millisecond) // let Run's select process the register case

	hub.Events() <- proxy.Event{Kind: "denied", Detail: "1.2.3.4", Time: time.Now()}

	select {
	case msg := <-c.send:
		var got wireEvent
		if err := json.Unmarshal(msg, &got); err != nil {
			t.Fatalf("decoding broadcast: %v", err)
		}
		if got.Kind != "denied" || got.Detail != "1.2.3.4" {
			t.Fatalf("unexpected payload: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestHub_UnregisterStopsDelivery(t *testing.T) {
	hub := NewHub(discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	c := newFakeClient(hub, 4)
	hub.Register(c)
	time.Sleep(50 * time.Millisecond)

	hub.Unregister(c)
	time.Sleep(50 * time.Millisecond)

	hub.Events() <- proxy.Event{Kind: "denied", Detail: "x", Time: time.Now()}
	time.Sleep(50 * time.Millisecond)

	select {
	case _, ok := <-c.send:
		if ok {
			t.Fatal("expected no delivery after unregister, got a message")
		}
	default:
		t.Fatal("expected send channel closed after unregister")
	}
}

func TestHub_ConnectionLimitDropsExcessClients(t *testing.T) {
	hub := NewHub(discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	for i := 0; i < maxClients; i++ {
		hub.Register(newFakeClient(hub, 1))
	}
	time.Sleep(100 * time.Millisecond)

	overflow := newFakeClient(hub, 1)
	hub.Register(overflow)
	time.Sleep(100 * time.Millisecond)

	select {
	case _, ok := <-overflow.send:
		if ok {
			t.Fatal("expected overflow client's send channel to be closed")
		}
	default:
		t.Fatal("expected overflow client's send channel to be closed, got no signal")
	}
}

func TestHub_SlowClientDisconnectedOnFullBuffer(t *testing.T) {
	hub := NewHub(discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	c := newFakeClient(hub, 0) // unbuffered: any broadcast fills it immediately
	hub.Register(c)
	time.Sleep(50 * time.Millisecond)

	hub.Events() <- proxy.Event{Kind: "evicted", Detail: "k1", Time: time.Now()}
	time.Sleep(50 * time.Millisecond)

	select {
	case _, ok := <-c.send:
		if ok {
			t.Fatal("expected send channel closed after dropped broadcast")
		}
	default:
		t.Fatal("expected send channel to be closed, got nothing")
	}
}

func TestHub_ContextCancelClosesAllClients(t *testing.T) {
	hub := NewHub(discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	c := newFakeClient(hub, 4)
	hub.Register(c)
	time.Sleep(50 * time.Millisecond)

	cancel()
	time.Sleep(50 * time.Millisecond)

	select {
	case _, ok := <-c.send:
		if ok {
			t.Fatal("expected send channel closed after context cancellation")
		}
	default:
		t.Fatal("expected send channel to be closed after shutdown")
	}
}
