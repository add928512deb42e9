package ratelimit

import (
	"net/http"
	"testing"
	"time"
)

func TestTable_BurstThenDenyThenRefill(t *testing.T) {
	table := New(60, 1) // 1 token/sec, burst 1
	now := time.Now()
	table.nowFunc = func() time.Time { return now }

	if !table.Allow("1.2.3.4") {
		t.Fatalf("first request should be admitted")
	}

	now = now.Add(500 * time.Millisecond)
	if table.Allow("1.2.3.4") {
		t.Fatalf("second request 500ms later should be denied")
	}

	now = now.Add(1500 * time.Millisecond)
	if !table.Allow("1.2.3.4") {
		t.Fatalf("third request 1500ms after the first should be admitted")
	}
}

func TestTable_ZeroInitialTokensPreventsColdStartBurst(t *testing.T) {
	table := New(60, 5)
	now := time.Now()
	table.nowFunc = func() time.Time { return now }

	if table.Allow("9.9.9.9") {
		t.Fatalf("a brand-new client must not be admitted before its first refill tick")
	}
}

func TestTable_IndependentClients(t *testing.T) {
	table := New(60, 1)
	now := time.Now()
	table.nowFunc = func() time.Time { return now }

	if !table.Allow("1.1.1.1") {
		t.Fatalf("client A's first request should be admitted")
	}
	if !table.Allow("2.2.2.2") {
		t.Fatalf("client B must not be affected by client A's bucket")
	}
}

func TestClientIP_PrefersForwardedFor(t *testing.T) {
	r := &http.Request{Header: http.Header{"X-Forwarded-For": {"203.0.113.5, 10.0.0.1"}}, RemoteAddr: "10.0.0.1:1234"}
	if got := ClientIP(r); got != "203.0.113.5" {
		t.Fatalf("expected 203.0.113.5, got %q", got)
	}
}

func TestClientIP_FallsBackOnWhitespaceForwardedFor(t *testing.T) {
	r := &http.Request{Header: http.Header{"X-Forwarded-For": {"   "}}, RemoteAddr: "198.51.100.7:9999"}
	if got := ClientIP(r); got != "198.51.100.7" {
		t.Fatalf("expected fallback to peer address, got %q", got)
	}
}

func TestClientIP_NoAttributablity(t *testing.T) {
	r := &http.Request{Header: http.Header{}, RemoteAddr: ""}
	if got := ClientIP(r); got != "" {
		t.Fatalf("expected empty client IP, got %q", got)
	}
}
